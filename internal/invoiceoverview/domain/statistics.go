// Package domain folds invoices into portfolio statistics.
package domain

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"
	invoicedomain "github.com/smallbiznis/invoiceledger/internal/invoice/domain"
)

const collectionRatePlaces = 4

type StatisticsRequest struct {
	Currency string                        `form:"currency"`
	Statuses []invoicedomain.InvoiceStatus `form:"status"`
}

type Service interface {
	Statistics(ctx context.Context, req StatisticsRequest) (StatisticsReport, error)
}

type StatusSummary struct {
	Count int    `json:"count"`
	Total string `json:"total"`
}

// StatisticsReport is rendered at the currency's minor unit. Statuses are
// effective statuses as of GeneratedAt.
type StatisticsReport struct {
	Currency         string                                        `json:"currency"`
	InvoiceCount     int                                           `json:"invoice_count"`
	ByStatus         map[invoicedomain.InvoiceStatus]StatusSummary `json:"by_status"`
	PaidTotal        string                                        `json:"paid_total"`
	OutstandingTotal string                                        `json:"outstanding_total"`
	OverdueAmount    string                                        `json:"overdue_amount"`
	CollectionRate   string                                        `json:"collection_rate"`
	GeneratedAt      time.Time                                     `json:"generated_at"`
}

type statusTotals struct {
	count int
	total decimal.Decimal
}

// Accumulator is an incremental fold over invoices of one currency.
// Each invoice is read once and never modified.
type Accumulator struct {
	currency    string
	now         time.Time
	count       int
	byStatus    map[invoicedomain.InvoiceStatus]*statusTotals
	paid        decimal.Decimal
	outstanding decimal.Decimal
	overdue     decimal.Decimal
}

func NewAccumulator(currency string, now time.Time) *Accumulator {
	return &Accumulator{
		currency:    strings.ToUpper(strings.TrimSpace(currency)),
		now:         now,
		byStatus:    make(map[invoicedomain.InvoiceStatus]*statusTotals),
		paid:        decimal.Zero,
		outstanding: decimal.Zero,
		overdue:     decimal.Zero,
	}
}

// Add folds one invoice's contribution into the accumulator.
func (a *Accumulator) Add(inv *invoicedomain.Invoice) error {
	if inv == nil {
		return nil
	}
	if inv.Currency != a.currency {
		return errors.WithHintf(invoicedomain.ErrCurrencyMismatch,
			"invoice %s is in %s, report is in %s", inv.ID, inv.Currency, a.currency)
	}

	status := inv.EffectiveStatus(a.now)
	grand := inv.Totals().GrandTotal
	balance := inv.OutstandingBalance()

	totals, ok := a.byStatus[status]
	if !ok {
		totals = &statusTotals{total: decimal.Zero}
		a.byStatus[status] = totals
	}
	totals.count++
	totals.total = totals.total.Add(grand)
	a.count++

	a.paid = a.paid.Add(inv.AmountPaid())
	if status == invoicedomain.InvoiceStatusSent || status == invoicedomain.InvoiceStatusOverdue {
		a.outstanding = a.outstanding.Add(balance)
	}
	if inv.Status.Payable() && a.now.After(inv.DueDate) && balance.IsPositive() {
		a.overdue = a.overdue.Add(balance)
	}
	return nil
}

// Merge adds the contributions gathered by other, e.g. from a parallel scan.
func (a *Accumulator) Merge(other *Accumulator) error {
	if other == nil {
		return nil
	}
	if other.currency != a.currency {
		return errors.WithHintf(invoicedomain.ErrCurrencyMismatch,
			"cannot merge %s statistics into %s", other.currency, a.currency)
	}
	for status, totals := range other.byStatus {
		mine, ok := a.byStatus[status]
		if !ok {
			mine = &statusTotals{total: decimal.Zero}
			a.byStatus[status] = mine
		}
		mine.count += totals.count
		mine.total = mine.total.Add(totals.total)
	}
	a.count += other.count
	a.paid = a.paid.Add(other.paid)
	a.outstanding = a.outstanding.Add(other.outstanding)
	a.overdue = a.overdue.Add(other.overdue)
	return nil
}

// CollectionRate is paid / (paid + outstanding), or zero when nothing was
// paid or is outstanding.
func (a *Accumulator) CollectionRate() decimal.Decimal {
	denominator := a.paid.Add(a.outstanding)
	if denominator.IsZero() {
		return decimal.Zero
	}
	return a.paid.Div(denominator).Round(collectionRatePlaces)
}

func (a *Accumulator) Report() StatisticsReport {
	places := invoicedomain.MinorUnits(a.currency)
	byStatus := make(map[invoicedomain.InvoiceStatus]StatusSummary, len(a.byStatus))
	for status, totals := range a.byStatus {
		byStatus[status] = StatusSummary{Count: totals.count, Total: totals.total.StringFixed(places)}
	}
	return StatisticsReport{
		Currency:         a.currency,
		InvoiceCount:     a.count,
		ByStatus:         byStatus,
		PaidTotal:        a.paid.StringFixed(places),
		OutstandingTotal: a.outstanding.StringFixed(places),
		OverdueAmount:    a.overdue.StringFixed(places),
		CollectionRate:   a.CollectionRate().StringFixed(collectionRatePlaces),
		GeneratedAt:      a.now,
	}
}

// Compute is the full-fold form of Accumulator.
func Compute(currency string, now time.Time, invoices []*invoicedomain.Invoice) (StatisticsReport, error) {
	acc := NewAccumulator(currency, now)
	for _, inv := range invoices {
		if err := acc.Add(inv); err != nil {
			return StatisticsReport{}, err
		}
	}
	return acc.Report(), nil
}
