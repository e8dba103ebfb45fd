// Package repository persists invoice aggregates with gorm.
package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/samber/lo"
	"github.com/smallbiznis/invoiceledger/internal/invoice/domain"
	"github.com/smallbiznis/invoiceledger/pkg/db"
	"github.com/smallbiznis/invoiceledger/pkg/db/option"
	"github.com/smallbiznis/invoiceledger/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

type repo struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	invoices repository.Repository[invoiceModel]
}

func New(p Params) domain.Repository {
	return &repo{
		db:       p.DB,
		log:      p.Log.Named("invoice.repository"),
		genID:    p.GenID,
		invoices: repository.ProvideStore[invoiceModel](p.DB),
	}
}

func (r *repo) Load(ctx context.Context, id snowflake.ID) (*domain.Invoice, error) {
	if id == 0 {
		return nil, domain.ErrInvoiceNotFound
	}
	model, err := r.invoices.FindOne(ctx, &invoiceModel{ID: id})
	if err != nil {
		return nil, err
	}
	if model == nil {
		return nil, domain.ErrInvoiceNotFound
	}

	invoices, err := r.hydrate(ctx, r.db, []*invoiceModel{model})
	if err != nil {
		return nil, err
	}
	return invoices[0], nil
}

// Save persists inv conditionally on the stored version. Line items are
// rewritten while the invoice is a draft; payments, reminders and notes are
// append-only, so only entries beyond the stored count are inserted.
func (r *repo) Save(ctx context.Context, inv *domain.Invoice, expectedVersion int64) (*domain.Invoice, error) {
	if inv == nil || expectedVersion < 0 {
		return nil, domain.ErrInvalidVersion
	}

	saved := inv.Clone()
	saved.Version = expectedVersion + 1
	model := fromDomain(saved)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if expectedVersion == 0 {
			if err := r.invoices.WithTrx(tx).Create(ctx, &model); err != nil {
				if db.IsDuplicateKeyErr(err) {
					return domain.ErrVersionConflict
				}
				return err
			}
			return r.insertChildren(ctx, tx, saved, childCounts{}, true)
		}

		res := tx.WithContext(ctx).Model(&invoiceModel{}).
			Where("id = ? AND version = ?", saved.ID, expectedVersion).
			Updates(map[string]any{
				"invoice_number": model.InvoiceNumber,
				"customer_name":  model.CustomerName,
				"customer_email": model.CustomerEmail,
				"currency":       model.Currency,
				"issue_date":     model.IssueDate,
				"due_date":       model.DueDate,
				"status":         model.Status,
				"payment_terms":  model.PaymentTerms,
				"payment_method": model.PaymentMethod,
				"bank_details":   model.BankDetails,
				"version":        model.Version,
				"finalized_at":   model.FinalizedAt,
				"paid_at":        model.PaidAt,
				"cancelled_at":   model.CancelledAt,
				"closed_at":      model.ClosedAt,
				"updated_at":     model.UpdatedAt,
			})
		if res.Error != nil {
			if db.IsDuplicateKeyErr(res.Error) {
				return domain.ErrVersionConflict
			}
			return res.Error
		}
		if res.RowsAffected == 0 {
			return r.missingOrConflict(ctx, tx, saved.ID)
		}

		counts, err := r.countChildren(ctx, tx, saved.ID)
		if err != nil {
			return err
		}
		if counts.payments > len(saved.Payments) || counts.reminders > len(saved.Reminders) || counts.notes > len(saved.Notes) {
			// Stored history is longer than ours: the copy is stale.
			return domain.ErrVersionConflict
		}

		replaceItems := saved.Status == domain.InvoiceStatusDraft
		if replaceItems {
			if err := tx.WithContext(ctx).Where("invoice_id = ?", saved.ID).Delete(&lineItemModel{}).Error; err != nil {
				return err
			}
		}
		return r.insertChildren(ctx, tx, saved, counts, replaceItems)
	})
	if err != nil {
		if errors.Is(err, domain.ErrVersionConflict) {
			r.log.Debug("version conflict on save",
				zap.String("invoice_id", saved.ID.String()),
				zap.Int64("expected_version", expectedVersion),
			)
		}
		return nil, err
	}
	return saved, nil
}

func (r *repo) missingOrConflict(ctx context.Context, tx *gorm.DB, id snowflake.ID) error {
	count, err := r.invoices.WithTrx(tx).Count(ctx, &invoiceModel{ID: id})
	if err != nil {
		return err
	}
	if count == 0 {
		return domain.ErrInvoiceNotFound
	}
	return domain.ErrVersionConflict
}

type childCounts struct {
	payments  int
	reminders int
	notes     int
}

func (r *repo) countChildren(ctx context.Context, tx *gorm.DB, id snowflake.ID) (childCounts, error) {
	var counts childCounts
	for _, c := range []struct {
		model any
		dst   *int
	}{
		{&paymentModel{}, &counts.payments},
		{&reminderModel{}, &counts.reminders},
		{&noteModel{}, &counts.notes},
	} {
		var n int64
		if err := tx.WithContext(ctx).Model(c.model).Where("invoice_id = ?", id).Count(&n).Error; err != nil {
			return childCounts{}, err
		}
		*c.dst = int(n)
	}
	return counts, nil
}

func (r *repo) insertChildren(ctx context.Context, tx *gorm.DB, inv *domain.Invoice, from childCounts, withItems bool) error {
	if withItems {
		items := lo.Map(inv.LineItems, func(li domain.LineItem, i int) *lineItemModel {
			return &lineItemModel{
				ID:          r.genID.Generate(),
				InvoiceID:   inv.ID,
				Position:    i,
				Description: li.Description,
				Quantity:    li.Quantity,
				Unit:        li.Unit,
				UnitPrice:   li.UnitPrice,
				VATRate:     li.VATRate,
			}
		})
		if err := repository.ProvideStore[lineItemModel](tx).BatchCreate(ctx, items); err != nil {
			return err
		}
	}

	payments := make([]*paymentModel, 0, len(inv.Payments)-from.payments)
	for i := from.payments; i < len(inv.Payments); i++ {
		p := inv.Payments[i]
		payments = append(payments, &paymentModel{
			ID:         r.genID.Generate(),
			InvoiceID:  inv.ID,
			Position:   i,
			Amount:     p.Amount,
			Method:     string(p.Method),
			Reference:  p.Reference,
			RecordedAt: p.RecordedAt,
		})
	}
	if err := repository.ProvideStore[paymentModel](tx).BatchCreate(ctx, payments); err != nil {
		return r.appendErr(err)
	}

	reminders := make([]*reminderModel, 0, len(inv.Reminders)-from.reminders)
	for i := from.reminders; i < len(inv.Reminders); i++ {
		rem := inv.Reminders[i]
		reminders = append(reminders, &reminderModel{
			ID:        r.genID.Generate(),
			InvoiceID: inv.ID,
			Position:  i,
			Tier:      string(rem.Tier),
			Notes:     rem.Notes,
			SentAt:    rem.SentAt,
		})
	}
	if err := repository.ProvideStore[reminderModel](tx).BatchCreate(ctx, reminders); err != nil {
		return r.appendErr(err)
	}

	notes := make([]*noteModel, 0, len(inv.Notes)-from.notes)
	for i := from.notes; i < len(inv.Notes); i++ {
		n := inv.Notes[i]
		notes = append(notes, &noteModel{
			ID:        r.genID.Generate(),
			InvoiceID: inv.ID,
			Position:  i,
			Author:    n.Author,
			Text:      n.Text,
			CreatedAt: n.CreatedAt,
		})
	}
	return r.appendErr(repository.ProvideStore[noteModel](tx).BatchCreate(ctx, notes))
}

// appendErr maps a position collision to a version conflict.
func (r *repo) appendErr(err error) error {
	if db.IsDuplicateKeyErr(err) {
		return domain.ErrVersionConflict
	}
	return err
}

func (r *repo) Query(ctx context.Context, filter domain.Filter) ([]*domain.Invoice, error) {
	opts := []option.QueryOption{
		option.WithSortBy(option.QuerySortBy{SortBy: "id", OrderBy: "asc", Allow: map[string]bool{"id": true}}),
		option.WithLimit(filter.Limit),
	}
	if len(filter.Statuses) > 0 {
		opts = append(opts, option.ApplyOperator(option.Condition{
			Field:    "status",
			Operator: option.IN,
			Value:    lo.Map(filter.Statuses, func(s domain.InvoiceStatus, _ int) string { return string(s) }),
		}))
	}
	if filter.DueBefore != nil {
		opts = append(opts, option.ApplyOperator(option.Condition{
			Field:    "due_date",
			Operator: option.LT,
			Value:    *filter.DueBefore,
		}))
	}
	if filter.DueFrom != nil {
		opts = append(opts, option.ApplyOperator(option.Condition{
			Field:    "due_date",
			Operator: option.GTE,
			Value:    *filter.DueFrom,
		}))
	}
	if filter.DueTo != nil {
		opts = append(opts, option.ApplyOperator(option.Condition{
			Field:    "due_date",
			Operator: option.LTE,
			Value:    *filter.DueTo,
		}))
	}
	if filter.IssuedFrom != nil {
		opts = append(opts, option.ApplyOperator(option.Condition{
			Field:    "issue_date",
			Operator: option.GTE,
			Value:    *filter.IssuedFrom,
		}))
	}
	if filter.IssuedTo != nil {
		opts = append(opts, option.ApplyOperator(option.Condition{
			Field:    "issue_date",
			Operator: option.LTE,
			Value:    *filter.IssuedTo,
		}))
	}
	if filter.AfterID != 0 {
		opts = append(opts, option.ApplyOperator(option.Condition{
			Field:    "id",
			Operator: option.GT,
			Value:    int64(filter.AfterID),
		}))
	}

	// One consistent snapshot: an invoice saved concurrently is read either
	// before or after the save, never torn between header and children.
	var out []*domain.Invoice
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		models, err := r.invoices.WithTrx(tx).Find(ctx, &invoiceModel{Currency: filter.Currency}, opts...)
		if err != nil {
			return err
		}
		out, err = r.hydrate(ctx, tx, models)
		return err
	})
	return out, err
}

func (r *repo) hydrate(ctx context.Context, tx *gorm.DB, models []*invoiceModel) ([]*domain.Invoice, error) {
	if len(models) == 0 {
		return []*domain.Invoice{}, nil
	}
	ids := lo.Map(models, func(m *invoiceModel, _ int) snowflake.ID { return m.ID })
	byID := make(map[snowflake.ID]*domain.Invoice, len(models))
	out := make([]*domain.Invoice, 0, len(models))
	for _, m := range models {
		inv := m.toDomain()
		byID[m.ID] = inv
		out = append(out, inv)
	}

	inIDs := option.ApplyOperator(option.Condition{Field: "invoice_id", Operator: option.IN, Value: ids})
	byPosition := option.WithSortBy(option.QuerySortBy{SortBy: "position", OrderBy: "asc", Allow: map[string]bool{"position": true}})

	items, err := repository.ProvideStore[lineItemModel](tx).Find(ctx, nil, inIDs, byPosition)
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		inv := byID[it.InvoiceID]
		inv.LineItems = append(inv.LineItems, domain.LineItem{
			Description: it.Description,
			Quantity:    it.Quantity,
			Unit:        it.Unit,
			UnitPrice:   it.UnitPrice,
			VATRate:     it.VATRate,
		})
	}

	payments, err := repository.ProvideStore[paymentModel](tx).Find(ctx, nil, inIDs, byPosition)
	if err != nil {
		return nil, err
	}
	for _, p := range payments {
		inv := byID[p.InvoiceID]
		inv.Payments = append(inv.Payments, domain.Payment{
			Amount:     p.Amount,
			Method:     domain.PaymentMethod(p.Method),
			Reference:  p.Reference,
			RecordedAt: p.RecordedAt.UTC(),
		})
	}

	reminders, err := repository.ProvideStore[reminderModel](tx).Find(ctx, nil, inIDs, byPosition)
	if err != nil {
		return nil, err
	}
	for _, rem := range reminders {
		inv := byID[rem.InvoiceID]
		inv.Reminders = append(inv.Reminders, domain.Reminder{
			Tier:   domain.ReminderTier(rem.Tier),
			Notes:  rem.Notes,
			SentAt: rem.SentAt.UTC(),
		})
	}

	notes, err := repository.ProvideStore[noteModel](tx).Find(ctx, nil, inIDs, byPosition)
	if err != nil {
		return nil, err
	}
	for _, n := range notes {
		inv := byID[n.InvoiceID]
		inv.Notes = append(inv.Notes, domain.Note{
			Author:    n.Author,
			Text:      n.Text,
			CreatedAt: n.CreatedAt.UTC(),
		})
	}
	return out, nil
}
