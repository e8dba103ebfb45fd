package domain

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"
)

// SumPayments returns the exact sum of recorded payment amounts.
func SumPayments(payments []Payment) decimal.Decimal {
	total := decimal.Zero
	for _, p := range payments {
		total = total.Add(p.Amount)
	}
	return total
}

// OutstandingBalance is grandTotal minus the sum of payments.
func OutstandingBalance(grandTotal decimal.Decimal, payments []Payment) decimal.Decimal {
	return grandTotal.Sub(SumPayments(payments))
}

// IsOverdue is a pure function of the stored status, due date, balance and
// the current time. Only sent and overdue invoices can be overdue.
func IsOverdue(status InvoiceStatus, dueDate time.Time, balance decimal.Decimal, now time.Time) bool {
	return status.Payable() && now.After(dueDate) && balance.IsPositive()
}

// validatePayment checks a candidate payment against the current balance
// without touching the ledger.
func validatePayment(amount decimal.Decimal, method PaymentMethod, balance decimal.Decimal, places int32) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if exceedsPlaces(amount, places) {
		return ErrInvalidAmountPrecision
	}
	if !method.Valid() {
		return ErrInvalidPaymentMethod
	}
	if amount.GreaterThan(balance) {
		return errors.WithHintf(ErrPaymentExceedsBalance, "outstanding balance is %s", balance.StringFixed(places))
	}
	return nil
}
