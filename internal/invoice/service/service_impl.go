package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/cockroachdb/errors"
	"github.com/smallbiznis/invoiceledger/internal/clock"
	"github.com/smallbiznis/invoiceledger/internal/config"
	invoicedomain "github.com/smallbiznis/invoiceledger/internal/invoice/domain"
	"github.com/smallbiznis/invoiceledger/internal/observability/logger"
	"github.com/smallbiznis/invoiceledger/internal/observability/metrics"
	"github.com/smallbiznis/invoiceledger/internal/observability/tracing"
	"github.com/smallbiznis/invoiceledger/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type ServiceParam struct {
	fx.In

	Repo      invoicedomain.Repository
	Sequence  invoicedomain.SequenceAllocator
	Clock     clock.Clock
	Log       *zap.Logger
	GenID     *snowflake.Node
	Reminders *config.ReminderConfigHolder

	Notifier invoicedomain.Notifier `optional:"true"`
	Metrics  *metrics.Metrics       `optional:"true"`
	Ledger   *metrics.LedgerMetrics `optional:"true"`
}

type Service struct {
	repo      invoicedomain.Repository
	seq       invoicedomain.SequenceAllocator
	clock     clock.Clock
	log       *zap.Logger
	genID     *snowflake.Node
	reminders *config.ReminderConfigHolder
	notifier  invoicedomain.Notifier
	metrics   *metrics.Metrics
	ledger    *metrics.LedgerMetrics
}

func NewService(p ServiceParam) invoicedomain.Service {
	return &Service{
		repo:      p.Repo,
		seq:       p.Sequence,
		clock:     p.Clock,
		log:       p.Log.Named("invoice.service"),
		genID:     p.GenID,
		reminders: p.Reminders,
		notifier:  p.Notifier,
		metrics:   p.Metrics,
		ledger:    p.Ledger,
	}
}

// mutation applies one aggregate operation. It must not touch anything
// outside inv.
type mutation func(ctx context.Context, inv *invoicedomain.Invoice, now time.Time) error

func (s *Service) policy() invoicedomain.ReminderPolicy {
	return invoicedomain.ReminderPolicy(s.reminders.Get())
}

func (s *Service) Create(ctx context.Context, req invoicedomain.CreateInvoiceRequest) (resp invoicedomain.Response, err error) {
	ctx, finish := s.begin(ctx, "create")
	defer func() { finish(err) }()

	now := s.clock.Now()
	items := make([]invoicedomain.LineItem, 0, len(req.LineItems))
	for _, in := range req.LineItems {
		items = append(items, in.LineItem())
	}

	inv, err := invoicedomain.NewInvoice(invoicedomain.NewInvoiceParams{
		ID:            s.genID.Generate(),
		Customer:      req.Customer,
		Currency:      req.Currency,
		IssueDate:     req.IssueDate,
		DueDate:       req.DueDate,
		PaymentTerms:  req.PaymentTerms,
		PaymentMethod: req.PaymentMethod,
		BankDetails:   req.BankDetails,
		LineItems:     items,
		Now:           now,
	})
	if err != nil {
		return invoicedomain.Response{}, err
	}

	saved, err := s.repo.Save(ctx, inv, 0)
	if err != nil {
		return invoicedomain.Response{}, err
	}

	logger.WithInvoice(logger.WithContext(ctx, s.log), saved.ID.String()).Info("invoice created",
		zap.String("currency", saved.Currency),
		zap.Int("line_items", len(saved.LineItems)),
	)
	return invoicedomain.NewResponse(saved, now, s.policy()), nil
}

func (s *Service) Get(ctx context.Context, id string) (invoicedomain.Response, error) {
	invoiceID, err := parseID(id)
	if err != nil {
		return invoicedomain.Response{}, err
	}
	inv, err := s.repo.Load(ctx, invoiceID)
	if err != nil {
		return invoicedomain.Response{}, err
	}
	return invoicedomain.NewResponse(inv, s.clock.Now(), s.policy()), nil
}

// List pages over invoices by id. Statuses are matched against the
// effective status at the time of the call, so "overdue" also returns
// sent invoices whose due date has passed.
func (s *Service) List(ctx context.Context, req invoicedomain.ListInvoiceRequest) (invoicedomain.ListInvoiceResponse, error) {
	size := req.Size()
	var afterID snowflake.ID
	if req.PageToken != "" {
		cursor, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return invoicedomain.ListInvoiceResponse{}, invoicedomain.ErrInvalidPageToken
		}
		id, err := snowflake.ParseString(cursor.ID)
		if err != nil {
			return invoicedomain.ListInvoiceResponse{}, invoicedomain.ErrInvalidPageToken
		}
		afterID = id
	}

	wanted := make(map[invoicedomain.InvoiceStatus]bool, len(req.Statuses))
	for _, status := range req.Statuses {
		if !status.Valid() {
			return invoicedomain.ListInvoiceResponse{}, errors.WithHintf(invoicedomain.ErrInvalidStatusFilter, "unknown status %q", status)
		}
		wanted[status] = true
	}
	var stored []invoicedomain.InvoiceStatus
	if len(req.Statuses) > 0 {
		stored = invoicedomain.StoredStatusesFor(req.Statuses)
	}

	now := s.clock.Now()
	matched := make([]*invoicedomain.Invoice, 0, size+1)
	for len(matched) <= size {
		batch, err := s.repo.Query(ctx, invoicedomain.Filter{
			Statuses: stored,
			Currency: strings.ToUpper(strings.TrimSpace(req.Currency)),
			DueFrom:  req.DueFrom,
			DueTo:    req.DueTo,
			AfterID:  afterID,
			Limit:    size + 1,
		})
		if err != nil {
			return invoicedomain.ListInvoiceResponse{}, err
		}
		for _, inv := range batch {
			if len(wanted) == 0 || wanted[inv.EffectiveStatus(now)] {
				matched = append(matched, inv)
			}
		}
		if len(batch) < size+1 {
			break
		}
		afterID = batch[len(batch)-1].ID
	}

	page, info := pagination.BuildCursorPageInfo(matched, size, func(inv *invoicedomain.Invoice) string {
		return inv.ID.String()
	})

	policy := s.policy()
	out := make([]invoicedomain.Response, 0, len(page))
	for _, inv := range page {
		out = append(out, invoicedomain.NewResponse(inv, now, policy))
	}
	return invoicedomain.ListInvoiceResponse{PageInfo: info, Invoices: out}, nil
}

func (s *Service) AddLineItem(ctx context.Context, req invoicedomain.AddLineItemRequest) (invoicedomain.Response, error) {
	return s.mutate(ctx, "add_line_item", req.InvoiceID, req.ExpectedVersion,
		func(_ context.Context, inv *invoicedomain.Invoice, now time.Time) error {
			return inv.AddLineItem(req.Item.LineItem(), now)
		})
}

func (s *Service) UpdateLineItem(ctx context.Context, req invoicedomain.UpdateLineItemRequest) (invoicedomain.Response, error) {
	return s.mutate(ctx, "update_line_item", req.InvoiceID, req.ExpectedVersion,
		func(_ context.Context, inv *invoicedomain.Invoice, now time.Time) error {
			return inv.UpdateLineItem(req.Index, req.Item.LineItem(), now)
		})
}

func (s *Service) RemoveLineItem(ctx context.Context, req invoicedomain.RemoveLineItemRequest) (invoicedomain.Response, error) {
	return s.mutate(ctx, "remove_line_item", req.InvoiceID, req.ExpectedVersion,
		func(_ context.Context, inv *invoicedomain.Invoice, now time.Time) error {
			return inv.RemoveLineItem(req.Index, now)
		})
}

func (s *Service) Finalize(ctx context.Context, req invoicedomain.TransitionRequest) (invoicedomain.Response, error) {
	return s.mutate(ctx, "finalize", req.InvoiceID, req.ExpectedVersion,
		func(ctx context.Context, inv *invoicedomain.Invoice, now time.Time) error {
			return inv.Finalize(ctx, s.seq, now)
		})
}

func (s *Service) Cancel(ctx context.Context, req invoicedomain.TransitionRequest) (invoicedomain.Response, error) {
	return s.mutate(ctx, "cancel", req.InvoiceID, req.ExpectedVersion,
		func(_ context.Context, inv *invoicedomain.Invoice, now time.Time) error {
			return inv.Cancel(now)
		})
}

func (s *Service) Archive(ctx context.Context, req invoicedomain.TransitionRequest) (invoicedomain.Response, error) {
	return s.mutate(ctx, "archive", req.InvoiceID, req.ExpectedVersion,
		func(_ context.Context, inv *invoicedomain.Invoice, now time.Time) error {
			return inv.Archive(now)
		})
}

func (s *Service) RecordPayment(ctx context.Context, req invoicedomain.RecordPaymentRequest) (invoicedomain.Response, error) {
	method := req.Method
	resp, err := s.mutate(ctx, "record_payment", req.InvoiceID, req.ExpectedVersion,
		func(_ context.Context, inv *invoicedomain.Invoice, now time.Time) error {
			payment, err := inv.RecordPayment(req.Amount, req.Method, req.Reference, now)
			if err != nil {
				return err
			}
			method = payment.Method
			return nil
		})
	label := string(method)
	if label == "" {
		label = "unspecified"
	}
	s.metrics.RecordPayment(ctx, label, metrics.Outcome(err))
	return resp, err
}

// SendReminder records the reminder and then notifies. A failed delivery
// is logged and does not fail the call.
func (s *Service) SendReminder(ctx context.Context, req invoicedomain.SendReminderRequest) (invoicedomain.Response, error) {
	var (
		reminder invoicedomain.Reminder
		snapshot *invoicedomain.Invoice
	)
	resp, err := s.mutate(ctx, "send_reminder", req.InvoiceID, req.ExpectedVersion,
		func(_ context.Context, inv *invoicedomain.Invoice, now time.Time) error {
			r, err := inv.SendReminder(req.Tier, req.Notes, now)
			if err != nil {
				return err
			}
			reminder = r
			snapshot = inv
			return nil
		})
	if err != nil {
		return resp, err
	}

	s.metrics.RecordReminder(ctx, string(reminder.Tier))
	if s.notifier != nil && snapshot != nil {
		notification := invoicedomain.NewReminderNotification(snapshot, reminder, reminder.SentAt)
		if nerr := s.notifier.NotifyReminder(ctx, notification); nerr != nil {
			logger.WithInvoice(logger.WithContext(ctx, s.log), resp.ID).Warn("reminder notification failed",
				zap.String("tier", string(reminder.Tier)),
				zap.Error(nerr),
			)
		}
	}
	return resp, nil
}

func (s *Service) AddNote(ctx context.Context, req invoicedomain.AddNoteRequest) (invoicedomain.Response, error) {
	return s.mutate(ctx, "add_note", req.InvoiceID, req.ExpectedVersion,
		func(_ context.Context, inv *invoicedomain.Invoice, now time.Time) error {
			_, err := inv.AddNote(req.Author, req.Text, now)
			return err
		})
}

func (s *Service) DueReminder(ctx context.Context, id string) (invoicedomain.DueReminderResponse, error) {
	invoiceID, err := parseID(id)
	if err != nil {
		return invoicedomain.DueReminderResponse{}, err
	}
	inv, err := s.repo.Load(ctx, invoiceID)
	if err != nil {
		return invoicedomain.DueReminderResponse{}, err
	}

	now := s.clock.Now()
	resp := invoicedomain.DueReminderResponse{
		InvoiceID: inv.ID.String(),
		Version:   inv.Version,
	}
	if inv.IsOverdue(now) {
		resp.DaysOverdue = invoicedomain.DaysOverdue(inv.DueDate, now)
	}
	if tier, ok := invoicedomain.DueReminderTier(inv, now, s.policy()); ok {
		resp.Tier = &tier
	}
	return resp, nil
}

// mutate loads the invoice, applies fn and saves conditionally on the
// loaded version. Nothing is persisted when fn fails.
func (s *Service) mutate(ctx context.Context, operation, id string, expected *int64, fn mutation) (resp invoicedomain.Response, err error) {
	ctx, finish := s.begin(ctx, operation)
	defer func() { finish(err) }()

	invoiceID, err := parseID(id)
	if err != nil {
		return invoicedomain.Response{}, err
	}
	inv, err := s.repo.Load(ctx, invoiceID)
	if err != nil {
		return invoicedomain.Response{}, err
	}
	if expected != nil && *expected != inv.Version {
		s.ledger.IncConflict(operation)
		return invoicedomain.Response{}, errors.WithHintf(invoicedomain.ErrVersionConflict,
			"expected version %d, current version %d", *expected, inv.Version)
	}

	loadedVersion := inv.Version
	from := inv.Status
	now := s.clock.Now()
	if err := fn(ctx, inv, now); err != nil {
		return invoicedomain.Response{}, err
	}

	saved, err := s.repo.Save(ctx, inv, loadedVersion)
	if err != nil {
		if errors.Is(err, invoicedomain.ErrConcurrentModification) {
			s.ledger.IncConflict(operation)
		}
		return invoicedomain.Response{}, err
	}

	if from != saved.Status {
		s.ledger.IncTransition(from, saved.Status)
	}
	logger.WithInvoice(logger.WithContext(ctx, s.log), saved.ID.String()).Info("invoice updated",
		zap.String("operation", operation),
		zap.String("status", string(saved.Status)),
		zap.Int64("version", saved.Version),
	)
	return invoicedomain.NewResponse(saved, now, s.policy()), nil
}

// begin opens the span and returns the function that records the outcome.
func (s *Service) begin(ctx context.Context, operation string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := tracing.StartOperation(ctx, operation)
	return ctx, func(err error) {
		tracing.EndOperation(span, invoicedomain.Kind(err), err)
		s.ledger.ObserveOperation(operation, time.Since(start), err)
		s.metrics.RecordMutation(ctx, operation, metrics.Outcome(err))
		if err != nil && invoicedomain.Kind(err) == "" {
			logger.WithContext(ctx, s.log).Error("invoice operation failed",
				zap.String("operation", operation),
				zap.Error(err),
			)
		}
	}
}

func parseID(id string) (snowflake.ID, error) {
	parsed, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || parsed <= 0 {
		return 0, invoicedomain.ErrInvalidInvoiceID
	}
	return parsed, nil
}
