package domain

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	invoicedomain "github.com/smallbiznis/invoiceledger/internal/invoice/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	issued = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	due    = time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
)

type counterSequence struct{ n int }

func (s *counterSequence) NextInvoiceNumber(context.Context) (string, error) {
	s.n++
	return fmt.Sprintf("INV-202603-%05d", s.n), nil
}

type builder struct {
	t    *testing.T
	node *snowflake.Node
	seq  *counterSequence
}

func newBuilder(t *testing.T) *builder {
	node, err := snowflake.NewNode(3)
	require.NoError(t, err)
	return &builder{t: t, node: node, seq: &counterSequence{}}
}

func (b *builder) draft(currency, price string) *invoicedomain.Invoice {
	inv, err := invoicedomain.NewInvoice(invoicedomain.NewInvoiceParams{
		ID:        b.node.Generate(),
		Customer:  invoicedomain.Customer{Name: "Acme"},
		Currency:  currency,
		IssueDate: issued,
		DueDate:   due,
		LineItems: []invoicedomain.LineItem{{
			Description: "Service",
			Quantity:    decimal.NewFromInt(1),
			Unit:        "unit",
			UnitPrice:   decimal.RequireFromString(price),
			VATRate:     decimal.Zero,
		}},
		Now: issued,
	})
	require.NoError(b.t, err)
	return inv
}

func (b *builder) sent(currency, price string, payments ...string) *invoicedomain.Invoice {
	inv := b.draft(currency, price)
	require.NoError(b.t, inv.Finalize(context.Background(), b.seq, issued))
	for _, amount := range payments {
		_, err := inv.RecordPayment(decimal.RequireFromString(amount), "", "", issued.Add(time.Hour))
		require.NoError(b.t, err)
	}
	return inv
}

func TestComputePortfolio(t *testing.T) {
	b := newBuilder(t)
	invoices := []*invoicedomain.Invoice{
		b.sent("EUR", "100.00", "100.00"),
		b.sent("EUR", "50.00", "50.00"),
		b.sent("EUR", "30.00"),
	}

	report, err := Compute("eur", issued.AddDate(0, 0, 4), invoices)
	require.NoError(t, err)

	assert.Equal(t, "EUR", report.Currency)
	assert.Equal(t, 3, report.InvoiceCount)
	assert.Equal(t, "150.00", report.PaidTotal)
	assert.Equal(t, "30.00", report.OutstandingTotal)
	assert.Equal(t, "0.00", report.OverdueAmount)
	assert.Equal(t, "0.8333", report.CollectionRate)
	assert.Equal(t, StatusSummary{Count: 2, Total: "150.00"}, report.ByStatus[invoicedomain.InvoiceStatusPaid])
	assert.Equal(t, StatusSummary{Count: 1, Total: "30.00"}, report.ByStatus[invoicedomain.InvoiceStatusSent])
}

func TestComputeOverdueAndExcludedStatuses(t *testing.T) {
	b := newBuilder(t)
	partlyPaid := b.sent("EUR", "200.00", "50.00")
	cancelled := b.sent("EUR", "80.00")
	require.NoError(t, cancelled.Cancel(issued.Add(2*time.Hour)))
	draft := b.draft("EUR", "999.00")

	now := due.AddDate(0, 0, 3)
	report, err := Compute("EUR", now, []*invoicedomain.Invoice{partlyPaid, cancelled, draft})
	require.NoError(t, err)

	assert.Equal(t, "150.00", report.OutstandingTotal)
	assert.Equal(t, "150.00", report.OverdueAmount)
	assert.Equal(t, "50.00", report.PaidTotal)
	assert.Equal(t, "0.2500", report.CollectionRate)
	assert.Equal(t, 1, report.ByStatus[invoicedomain.InvoiceStatusOverdue].Count)
	assert.Equal(t, StatusSummary{Count: 1, Total: "80.00"}, report.ByStatus[invoicedomain.InvoiceStatusCancelled])
	assert.Equal(t, StatusSummary{Count: 1, Total: "999.00"}, report.ByStatus[invoicedomain.InvoiceStatusDraft])
	assert.NotContains(t, report.ByStatus, invoicedomain.InvoiceStatusSent)
}

func TestEmptyPortfolioHasZeroCollectionRate(t *testing.T) {
	report, err := Compute("JPY", issued, nil)
	require.NoError(t, err)
	assert.Equal(t, "0", report.PaidTotal)
	assert.Equal(t, "0.0000", report.CollectionRate)
	assert.Empty(t, report.ByStatus)
}

func TestIncrementalFoldMatchesFullFold(t *testing.T) {
	b := newBuilder(t)
	invoices := []*invoicedomain.Invoice{
		b.sent("EUR", "10.00", "4.00"),
		b.sent("EUR", "25.50"),
		b.sent("EUR", "7.25", "7.25"),
		b.draft("EUR", "3.00"),
	}
	now := due.AddDate(0, 0, 1)

	full, err := Compute("EUR", now, invoices)
	require.NoError(t, err)

	left := NewAccumulator("EUR", now)
	right := NewAccumulator("EUR", now)
	for i, inv := range invoices {
		target := left
		if i%2 == 1 {
			target = right
		}
		require.NoError(t, target.Add(inv))
	}
	require.NoError(t, left.Merge(right))
	assert.Equal(t, full, left.Report())
}

func TestCurrencyMismatch(t *testing.T) {
	b := newBuilder(t)
	acc := NewAccumulator("EUR", issued)

	err := acc.Add(b.sent("USD", "10.00"))
	assert.ErrorIs(t, err, invoicedomain.ErrValidation)
	assert.ErrorIs(t, err, invoicedomain.ErrCurrencyMismatch)

	assert.ErrorIs(t, acc.Merge(NewAccumulator("USD", issued)), invoicedomain.ErrCurrencyMismatch)
}
