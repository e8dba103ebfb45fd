package context

import (
	"context"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextValues(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, RequestIDFromContext(ctx))
	assert.Empty(t, CorrelationIDFromContext(ctx))
	assert.Empty(t, ActorFromContext(ctx))

	ctx = WithRequestID(ctx, " req-1 ")
	ctx = WithCorrelationID(ctx, "corr")
	ctx = WithActor(ctx, "maria")
	assert.Equal(t, "req-1", RequestIDFromContext(ctx))
	assert.Equal(t, "corr", CorrelationIDFromContext(ctx))
	assert.Equal(t, "maria", ActorFromContext(ctx))
}

func TestNewCorrelationIDIsMonotonic(t *testing.T) {
	a := NewCorrelationID()
	b := NewCorrelationID()

	_, err := ulid.ParseStrict(a)
	require.NoError(t, err)
	assert.Less(t, a, b)
}
