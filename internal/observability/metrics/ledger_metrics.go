package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/invoiceledger/internal/invoice/domain"
	"gorm.io/gorm"
)

const (
	ReasonDeadlineExceeded     = "deadline_exceeded"
	ReasonDBLockTimeout        = "db_lock_timeout"
	ReasonSerializationFailure = "serialization_failure"
	ReasonUniqueViolation      = "unique_violation"
	ReasonUnknown              = "unknown"
)

// LedgerMetrics captures aggregate transitions, store conflicts and the
// reminder sweep, scraped from /metrics.
type LedgerMetrics struct {
	transitions   *prometheus.CounterVec
	conflicts     *prometheus.CounterVec
	opDuration    *prometheus.HistogramVec
	sweepRuns     *prometheus.CounterVec
	sweepDuration prometheus.Histogram
	sweepItems    *prometheus.CounterVec
}

var (
	ledgerMetricsOnce sync.Once
	ledgerMetrics     *LedgerMetrics
)

// Ledger returns the process-wide ledger metrics registered on the default registry.
func Ledger(cfg Config) *LedgerMetrics {
	ledgerMetricsOnce.Do(func() {
		ledgerMetrics = NewLedgerMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return ledgerMetrics
}

func NewLedgerMetrics(registerer prometheus.Registerer, cfg Config) *LedgerMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	constLabels := constLabels(cfg)

	m := &LedgerMetrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "invoiceledger_invoice_transitions_total",
			Help:        "Invoice status transitions by stored status.",
			ConstLabels: constLabels,
		}, []string{"from", "to"}),
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "invoiceledger_store_conflicts_total",
			Help:        "Optimistic concurrency conflicts on save by operation.",
			ConstLabels: constLabels,
		}, []string{"operation"}),
		opDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "invoiceledger_operation_duration_seconds",
			Help:        "Load-mutate-save latency by operation and outcome.",
			Buckets:     []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			ConstLabels: constLabels,
		}, []string{"operation", "outcome"}),
		sweepRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "invoiceledger_reminder_sweep_runs_total",
			Help:        "Reminder sweep runs by outcome.",
			ConstLabels: constLabels,
		}, []string{"outcome"}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "invoiceledger_reminder_sweep_duration_seconds",
			Help:        "Reminder sweep latency.",
			Buckets:     []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			ConstLabels: constLabels,
		}),
		sweepItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "invoiceledger_reminder_sweep_items_total",
			Help:        "Invoices visited by the reminder sweep by result.",
			ConstLabels: constLabels,
		}, []string{"result"}),
	}

	registerer.MustRegister(
		m.transitions,
		m.conflicts,
		m.opDuration,
		m.sweepRuns,
		m.sweepDuration,
		m.sweepItems,
	)
	return m
}

func constLabels(cfg Config) prometheus.Labels {
	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "invoiceledger"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	return prometheus.Labels{"service": serviceName, "env": environment}
}

// IncTransition counts a stored status change. Unchanged statuses are ignored.
func (m *LedgerMetrics) IncTransition(from, to domain.InvoiceStatus) {
	if m == nil || from == to {
		return
	}
	m.transitions.WithLabelValues(string(from), string(to)).Inc()
}

func (m *LedgerMetrics) IncConflict(operation string) {
	if m == nil {
		return
	}
	m.conflicts.WithLabelValues(operation).Inc()
}

// ObserveOperation records latency with the error kind as outcome.
func (m *LedgerMetrics) ObserveOperation(operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.opDuration.WithLabelValues(operation, Outcome(err)).Observe(duration.Seconds())
}

func (m *LedgerMetrics) IncSweepRun(outcome string) {
	if m == nil {
		return
	}
	m.sweepRuns.WithLabelValues(outcome).Inc()
}

func (m *LedgerMetrics) ObserveSweepDuration(duration time.Duration) {
	if m == nil {
		return
	}
	m.sweepDuration.Observe(duration.Seconds())
}

func (m *LedgerMetrics) AddSweepItems(result string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.sweepItems.WithLabelValues(result).Add(float64(count))
}

// Outcome maps err to a low-cardinality label: "ok", a domain error kind,
// or an infrastructure reason.
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if kind := domain.Kind(err); kind != "" {
		return kind
	}
	return ClassifyReason(err)
}

// ClassifyReason buckets infrastructure errors.
func ClassifyReason(err error) string {
	if err == nil {
		return ReasonUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ReasonDeadlineExceeded
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ReasonUniqueViolation
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "55P03":
			return ReasonDBLockTimeout
		case "40001":
			return ReasonSerializationFailure
		case "23505":
			return ReasonUniqueViolation
		}
	}
	return ReasonUnknown
}
