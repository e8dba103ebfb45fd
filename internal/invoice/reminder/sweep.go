// Package reminder records due reminders for overdue invoices in one pass.
// It only acts on the advisory tier computed by the domain and never
// escalates on its own.
package reminder

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cockroachdb/errors"
	"github.com/smallbiznis/invoiceledger/internal/clock"
	"github.com/smallbiznis/invoiceledger/internal/config"
	"github.com/smallbiznis/invoiceledger/internal/invoice/domain"
	obscontext "github.com/smallbiznis/invoiceledger/internal/observability/context"
	obslogger "github.com/smallbiznis/invoiceledger/internal/observability/logger"
	"github.com/smallbiznis/invoiceledger/internal/observability/metrics"
	"github.com/smallbiznis/invoiceledger/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	LockKey = "invoiceledger:reminder-sweep"
	Actor   = "reminder-sweep"

	defaultBatchSize  = 100
	defaultMaxRetries = 5
)

type Params struct {
	fx.In

	Invoices domain.Service
	Clock    clock.Clock
	Config   config.Config
	Log      *zap.Logger
	Locker   Locker                 `optional:"true"`
	Ledger   *metrics.LedgerMetrics `optional:"true"`
}

type Sweeper struct {
	invoices  domain.Service
	clock     clock.Clock
	log       *zap.Logger
	locker    Locker
	lockTTL   time.Duration
	ledger    *metrics.LedgerMetrics
	batchSize int

	newBackOff func() backoff.BackOff
}

// Result counts what one pass did.
type Result struct {
	Scanned int
	Sent    int
	Skipped int
	Failed  int
	Locked  bool
}

func New(p Params) *Sweeper {
	ttl := p.Config.Invoice.ReminderLockTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Sweeper{
		invoices:   p.Invoices,
		clock:      p.Clock,
		log:        p.Log.Named("invoice.reminder"),
		locker:     p.Locker,
		lockTTL:    ttl,
		ledger:     p.Ledger,
		batchSize:  defaultBatchSize,
		newBackOff: defaultBackOff,
	}
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = time.Second
	b.MaxElapsedTime = 10 * time.Second
	return backoff.WithMaxRetries(b, defaultMaxRetries)
}

// Run walks every effectively overdue invoice and records the tier that is
// due at the current time. A failure on one invoice does not stop the pass.
func (s *Sweeper) Run(ctx context.Context) (res Result, err error) {
	start := s.clock.Now()
	ctx = obscontext.WithCorrelationID(ctx, obscontext.NewCorrelationID())
	ctx = obscontext.WithActor(ctx, Actor)
	log := obslogger.WithContext(ctx, s.log)

	defer func() {
		outcome := "ok"
		switch {
		case err != nil:
			outcome = metrics.Outcome(err)
		case res.Locked:
			outcome = "locked"
		case res.Failed > 0:
			outcome = "partial"
		}
		s.ledger.IncSweepRun(outcome)
		s.ledger.ObserveSweepDuration(s.clock.Now().Sub(start))
		s.ledger.AddSweepItems("sent", res.Sent)
		s.ledger.AddSweepItems("skipped", res.Skipped)
		s.ledger.AddSweepItems("failed", res.Failed)
	}()

	if s.locker != nil {
		token, ok, lockErr := s.locker.TryLock(ctx, LockKey, s.lockTTL)
		if lockErr != nil {
			return res, lockErr
		}
		if !ok {
			log.Info("reminder sweep already running elsewhere")
			res.Locked = true
			return res, nil
		}
		defer func() {
			if relErr := s.locker.Release(context.WithoutCancel(ctx), LockKey, token); relErr != nil {
				log.Warn("release sweep lock", zap.Error(relErr))
			}
		}()
	}

	req := domain.ListInvoiceRequest{
		Pagination: pagination.Pagination{PageSize: s.batchSize},
		Statuses:   []domain.InvoiceStatus{domain.InvoiceStatusOverdue},
	}
	for {
		page, listErr := s.invoices.List(ctx, req)
		if listErr != nil {
			return res, errors.Wrap(listErr, "list overdue invoices")
		}
		for _, inv := range page.Invoices {
			res.Scanned++
			if inv.DueReminderTier == nil {
				res.Skipped++
				continue
			}
			sent, remindErr := s.remind(ctx, inv.ID)
			switch {
			case remindErr != nil:
				res.Failed++
				obslogger.WithInvoice(log, inv.ID).Warn("reminder not recorded", zap.Error(remindErr))
			case sent:
				res.Sent++
			default:
				res.Skipped++
			}
		}
		if !page.HasMore {
			break
		}
		req.PageToken = page.NextPageToken
	}

	log.Info("reminder sweep finished",
		zap.Int("scanned", res.Scanned),
		zap.Int("sent", res.Sent),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", res.Failed),
	)
	return res, nil
}

// remind re-reads the due tier and records it conditionally on the version
// it was computed from. A concurrent change reloads and tries again.
func (s *Sweeper) remind(ctx context.Context, invoiceID string) (bool, error) {
	var sent bool
	op := func() error {
		due, err := s.invoices.DueReminder(ctx, invoiceID)
		if err != nil {
			return backoff.Permanent(err)
		}
		if due.Tier == nil {
			sent = false
			return nil
		}
		version := due.Version
		_, err = s.invoices.SendReminder(ctx, domain.SendReminderRequest{
			InvoiceID:       invoiceID,
			ExpectedVersion: &version,
			Tier:            *due.Tier,
		})
		switch {
		case err == nil:
			sent = true
			return nil
		case errors.Is(err, domain.ErrConcurrentModification):
			return err
		default:
			return backoff.Permanent(err)
		}
	}
	if err := backoff.Retry(op, backoff.WithContext(s.newBackOff(), ctx)); err != nil {
		return false, err
	}
	return sent, nil
}
