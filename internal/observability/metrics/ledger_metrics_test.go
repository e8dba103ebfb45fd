package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/smallbiznis/invoiceledger/internal/invoice/domain"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestClassifyReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"deadline", context.DeadlineExceeded, ReasonDeadlineExceeded},
		{"db_lock_timeout", &pgconn.PgError{Code: "55P03"}, ReasonDBLockTimeout},
		{"serialization_failure", &pgconn.PgError{Code: "40001"}, ReasonSerializationFailure},
		{"unique_violation", gorm.ErrDuplicatedKey, ReasonUniqueViolation},
		{"unknown", errors.New("boom"), ReasonUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifyReason(tc.err))
		})
	}
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ok", Outcome(nil))
	assert.Equal(t, "overpayment_rejected", Outcome(domain.ErrPaymentExceedsBalance))
	assert.Equal(t, "concurrent_modification", Outcome(domain.ErrVersionConflict))
	assert.Equal(t, ReasonUnknown, Outcome(errors.New("boom")))
}

func TestLedgerMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewLedgerMetrics(registry, Config{ServiceName: "invoiceledger", Environment: "test"})

	m.IncTransition(domain.InvoiceStatusDraft, domain.InvoiceStatusSent)
	m.IncTransition(domain.InvoiceStatusSent, domain.InvoiceStatusSent)
	m.IncConflict("record_payment")
	m.IncConflict("record_payment")
	m.AddSweepItems("reminded", 3)
	m.ObserveOperation("finalize", 10*time.Millisecond, nil)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.transitions.WithLabelValues("draft", "sent")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.transitions.WithLabelValues("sent", "sent")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.conflicts.WithLabelValues("record_payment")))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.sweepItems.WithLabelValues("reminded")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.opDuration))
}

func TestLedgerMetricsNilSafe(t *testing.T) {
	var m *LedgerMetrics
	m.IncTransition(domain.InvoiceStatusDraft, domain.InvoiceStatusSent)
	m.IncConflict("x")
	m.ObserveOperation("x", time.Second, nil)
	m.IncSweepRun("ok")
	m.ObserveSweepDuration(time.Second)
	m.AddSweepItems("x", 1)
}
