// Package sequence allocates human-readable invoice numbers from a
// per-period counter row.
package sequence

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/smallbiznis/invoiceledger/internal/clock"
	"github.com/smallbiznis/invoiceledger/internal/config"
	"github.com/smallbiznis/invoiceledger/internal/invoice/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Counter is the last value handed out for a prefix within a period (YYYYMM).
type Counter struct {
	Prefix    string    `gorm:"primaryKey;type:varchar(16)"`
	Period    string    `gorm:"primaryKey;type:varchar(6)"`
	LastValue int64     `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (Counter) TableName() string { return "invoice_sequences" }

type Params struct {
	fx.In

	DB     *gorm.DB
	Clock  clock.Clock
	Config config.Config
	Log    *zap.Logger
}

type Allocator struct {
	db     *gorm.DB
	clock  clock.Clock
	prefix string
	log    *zap.Logger
}

func New(p Params) *Allocator {
	prefix := p.Config.Invoice.NumberPrefix
	if prefix == "" {
		prefix = "INV"
	}
	return &Allocator{
		db:     p.DB,
		clock:  p.Clock,
		prefix: prefix,
		log:    p.Log.Named("invoice.sequence"),
	}
}

var _ domain.SequenceAllocator = (*Allocator)(nil)

// NextInvoiceNumber increments the counter atomically in the database and
// formats it as PREFIX-YYYYMM-00001. Numbers are never reused; a number
// allocated for a save that later fails leaves a gap.
func (a *Allocator) NextInvoiceNumber(ctx context.Context) (string, error) {
	now := a.clock.Now().UTC()
	period := now.Format("200601")

	var (
		next int64
		err  error
	)
	if a.db.Dialector.Name() == "mysql" {
		next, err = a.nextMySQL(ctx, period, now)
	} else {
		next, err = a.nextUpsert(ctx, period, now)
	}
	if err != nil {
		a.log.Error("failed to allocate invoice number", zap.String("period", period), zap.Error(err))
		return "", errors.Wrap(err, "allocate invoice sequence")
	}
	if next <= 0 {
		return "", errors.Newf("invoice sequence returned %d", next)
	}
	return fmt.Sprintf("%s-%s-%05d", a.prefix, period, next), nil
}

// nextUpsert serves postgres and sqlite, which both support ON CONFLICT ... RETURNING.
func (a *Allocator) nextUpsert(ctx context.Context, period string, now time.Time) (int64, error) {
	var next int64
	err := a.db.WithContext(ctx).Raw(`
INSERT INTO invoice_sequences (prefix, period, last_value, created_at, updated_at)
VALUES (?, ?, 1, ?, ?)
ON CONFLICT (prefix, period)
DO UPDATE SET last_value = invoice_sequences.last_value + 1, updated_at = excluded.updated_at
RETURNING last_value`, a.prefix, period, now, now).Scan(&next).Error
	return next, err
}

func (a *Allocator) nextMySQL(ctx context.Context, period string, now time.Time) (int64, error) {
	var next int64
	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(`
INSERT INTO invoice_sequences (prefix, period, last_value, created_at, updated_at)
VALUES (?, ?, LAST_INSERT_ID(1), ?, ?)
ON DUPLICATE KEY UPDATE last_value = LAST_INSERT_ID(last_value + 1), updated_at = VALUES(updated_at)`,
			a.prefix, period, now, now).Error; err != nil {
			return err
		}
		return tx.Raw("SELECT LAST_INSERT_ID()").Scan(&next).Error
	})
	return next, err
}
