package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Repository is the persistence boundary of the aggregate.
type Repository interface {
	// Load returns ErrInvoiceNotFound for unknown ids.
	Load(ctx context.Context, id snowflake.ID) (*Invoice, error)
	// Save writes inv if the stored version still equals expectedVersion and
	// returns the persisted copy with its new version. expectedVersion 0
	// inserts a new invoice. A mismatch yields ErrVersionConflict.
	Save(ctx context.Context, inv *Invoice, expectedVersion int64) (*Invoice, error)
	Query(ctx context.Context, filter Filter) ([]*Invoice, error)
}

// Filter narrows Query by stored columns. Zero values match everything.
type Filter struct {
	Statuses   []InvoiceStatus
	Currency   string
	DueBefore  *time.Time
	DueFrom    *time.Time
	DueTo      *time.Time
	IssuedFrom *time.Time
	IssuedTo   *time.Time
	AfterID    snowflake.ID
	Limit      int
}

// SequenceAllocator hands out unique, never reused invoice numbers.
type SequenceAllocator interface {
	NextInvoiceNumber(ctx context.Context) (string, error)
}

// StoredStatusesFor maps effective statuses to the stored statuses that may
// produce them, so a store query can be narrowed before re-checking at now.
func StoredStatusesFor(effective []InvoiceStatus) []InvoiceStatus {
	seen := map[InvoiceStatus]bool{}
	out := make([]InvoiceStatus, 0, len(effective)+1)
	add := func(s InvoiceStatus) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, s := range effective {
		switch s {
		case InvoiceStatusSent, InvoiceStatusOverdue:
			add(InvoiceStatusSent)
			add(InvoiceStatusOverdue)
		default:
			add(s)
		}
	}
	return out
}
