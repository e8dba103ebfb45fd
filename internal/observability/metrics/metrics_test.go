package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("method", "card"),
		attribute.String("invoice_id", "456"),
		attribute.String("tier", "first"),
	)
	require.Len(t, attrs, 2)
	assert.Equal(t, attribute.Key("method"), attrs[0].Key)
	assert.Equal(t, attribute.Key("tier"), attrs[1].Key)
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.RecordPayment(context.Background(), "card", "accepted")
	m.RecordReminder(context.Background(), "first")
	m.RecordMutation(context.Background(), "finalize", "ok")

	m, err := New(Config{}, noop.NewMeterProvider())
	require.NoError(t, err)
	m.RecordPayment(context.Background(), "card", "accepted")
}
