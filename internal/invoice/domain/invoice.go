package domain

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"
)

// NewInvoiceParams carries the header fields of a new draft.
type NewInvoiceParams struct {
	ID            snowflake.ID
	Customer      Customer
	Currency      string
	IssueDate     time.Time
	DueDate       time.Time
	PaymentTerms  string
	PaymentMethod PaymentMethod
	BankDetails   *BankDetails
	LineItems     []LineItem
	Now           time.Time
}

// NewInvoice validates params and returns a draft. The invoice number is
// left unset until Finalize.
func NewInvoice(p NewInvoiceParams) (*Invoice, error) {
	if p.ID == 0 {
		return nil, ErrInvalidInvoiceID
	}
	if strings.TrimSpace(p.Customer.Name) == "" {
		return nil, ErrInvalidCustomer
	}
	currency := strings.ToUpper(strings.TrimSpace(p.Currency))
	if len(currency) != 3 {
		return nil, ErrInvalidCurrency
	}
	if p.IssueDate.IsZero() {
		return nil, ErrInvalidIssueDate
	}
	if !p.DueDate.After(p.IssueDate) {
		return nil, ErrInvalidDueDate
	}
	method := p.PaymentMethod
	if method == "" {
		method = PaymentMethodBankTransfer
	}
	if !method.Valid() {
		return nil, ErrInvalidPaymentMethod
	}
	places := MinorUnits(currency)
	for _, item := range p.LineItems {
		if err := item.Validate(places); err != nil {
			return nil, err
		}
	}

	var bank *BankDetails
	if p.BankDetails != nil {
		bd := *p.BankDetails
		bank = &bd
	}

	return &Invoice{
		ID:            p.ID,
		Customer:      p.Customer,
		Currency:      currency,
		IssueDate:     p.IssueDate,
		DueDate:       p.DueDate,
		Status:        InvoiceStatusDraft,
		LineItems:     append([]LineItem(nil), p.LineItems...),
		PaymentTerms:  p.PaymentTerms,
		PaymentMethod: method,
		BankDetails:   bank,
		CreatedAt:     p.Now,
		UpdatedAt:     p.Now,
	}, nil
}

// Places returns the minor unit exponent of the invoice currency.
func (inv *Invoice) Places() int32 {
	return MinorUnits(inv.Currency)
}

// Totals is always recomputed from the current line items.
func (inv *Invoice) Totals() Totals {
	return CalculateTotals(inv.LineItems, inv.Places())
}

func (inv *Invoice) AmountPaid() decimal.Decimal {
	return SumPayments(inv.Payments)
}

func (inv *Invoice) OutstandingBalance() decimal.Decimal {
	return OutstandingBalance(inv.Totals().GrandTotal, inv.Payments)
}

func (inv *Invoice) IsOverdue(now time.Time) bool {
	return IsOverdue(inv.Status, inv.DueDate, inv.OutstandingBalance(), now)
}

// EffectiveStatus is the status as observed at now: a sent invoice past its
// due date with a positive balance reads as overdue.
func (inv *Invoice) EffectiveStatus(now time.Time) InvoiceStatus {
	if inv.IsOverdue(now) {
		return InvoiceStatusOverdue
	}
	return inv.Status
}

// LastReminderTier returns the most recently recorded tier.
func (inv *Invoice) LastReminderTier() (ReminderTier, bool) {
	if len(inv.Reminders) == 0 {
		return "", false
	}
	return inv.Reminders[len(inv.Reminders)-1].Tier, true
}

func (inv *Invoice) AddLineItem(item LineItem, now time.Time) error {
	if inv.Status != InvoiceStatusDraft {
		return ErrInvoiceNotDraft
	}
	if err := item.Validate(inv.Places()); err != nil {
		return err
	}
	inv.LineItems = append(inv.LineItems, item)
	inv.UpdatedAt = now
	return nil
}

func (inv *Invoice) UpdateLineItem(index int, item LineItem, now time.Time) error {
	if inv.Status != InvoiceStatusDraft {
		return ErrInvoiceNotDraft
	}
	if index < 0 || index >= len(inv.LineItems) {
		return ErrInvalidLineItemIndex
	}
	if err := item.Validate(inv.Places()); err != nil {
		return err
	}
	inv.LineItems[index] = item
	inv.UpdatedAt = now
	return nil
}

func (inv *Invoice) RemoveLineItem(index int, now time.Time) error {
	if inv.Status != InvoiceStatusDraft {
		return ErrInvoiceNotDraft
	}
	if index < 0 || index >= len(inv.LineItems) {
		return ErrInvalidLineItemIndex
	}
	items := make([]LineItem, 0, len(inv.LineItems)-1)
	items = append(items, inv.LineItems[:index]...)
	inv.LineItems = append(items, inv.LineItems[index+1:]...)
	inv.UpdatedAt = now
	return nil
}

// Finalize moves a draft to sent and assigns the invoice number. The
// allocator is called exactly once, after every guard has passed.
func (inv *Invoice) Finalize(ctx context.Context, seq SequenceAllocator, now time.Time) error {
	if inv.Status != InvoiceStatusDraft {
		return ErrInvoiceNotDraft
	}
	if len(inv.LineItems) == 0 {
		return ErrInvoiceHasNoLineItems
	}
	if !inv.Totals().GrandTotal.IsPositive() {
		return ErrInvoiceTotalNotPositive
	}

	number, err := seq.NextInvoiceNumber(ctx)
	if err != nil {
		return errors.Wrap(err, "allocate invoice number")
	}
	if strings.TrimSpace(number) == "" {
		return ErrInvalidInvoiceNumber
	}

	inv.InvoiceNumber = &number
	inv.Status = InvoiceStatusSent
	inv.FinalizedAt = &now
	inv.UpdatedAt = now
	return nil
}

// RecordPayment validates the payment against the current balance and only
// then appends it. A rejected payment leaves the invoice untouched.
func (inv *Invoice) RecordPayment(amount decimal.Decimal, method PaymentMethod, reference string, now time.Time) (Payment, error) {
	if !inv.Status.Payable() {
		return Payment{}, ErrInvoiceNotPayable
	}
	if method == "" {
		method = inv.PaymentMethod
	}
	balance := inv.OutstandingBalance()
	if err := validatePayment(amount, method, balance, inv.Places()); err != nil {
		return Payment{}, err
	}

	payment := Payment{
		Amount:     amount,
		Method:     method,
		Reference:  strings.TrimSpace(reference),
		RecordedAt: now,
	}
	inv.Payments = append(inv.Payments, payment)

	switch remaining := balance.Sub(amount); {
	case remaining.IsZero():
		inv.Status = InvoiceStatusPaid
		inv.PaidAt = &now
	case IsOverdue(inv.Status, inv.DueDate, remaining, now):
		inv.Status = InvoiceStatusOverdue
	}
	inv.UpdatedAt = now
	return payment, nil
}

// SendReminder appends a reminder. Tiers may repeat but never de-escalate.
func (inv *Invoice) SendReminder(tier ReminderTier, notes string, now time.Time) (Reminder, error) {
	if !inv.Status.Payable() {
		return Reminder{}, ErrInvoiceNotRemindable
	}
	if !tier.Valid() {
		return Reminder{}, ErrInvalidReminderTier
	}
	if last, ok := inv.LastReminderTier(); ok && tier.Severity() < last.Severity() {
		return Reminder{}, errors.WithHintf(ErrReminderTierDowngrade, "last reminder tier is %s", last)
	}

	reminder := Reminder{Tier: tier, Notes: strings.TrimSpace(notes), SentAt: now}
	inv.Reminders = append(inv.Reminders, reminder)
	inv.UpdatedAt = now
	return reminder, nil
}

func (inv *Invoice) Cancel(now time.Time) error {
	switch inv.Status {
	case InvoiceStatusDraft, InvoiceStatusSent, InvoiceStatusOverdue:
	default:
		return ErrInvoiceNotCancellable
	}
	inv.Status = InvoiceStatusCancelled
	inv.CancelledAt = &now
	inv.UpdatedAt = now
	return nil
}

func (inv *Invoice) Archive(now time.Time) error {
	if inv.Status != InvoiceStatusPaid {
		return ErrInvoiceNotArchivable
	}
	inv.Status = InvoiceStatusClosed
	inv.ClosedAt = &now
	inv.UpdatedAt = now
	return nil
}

// AddNote appends an attributed note. Notes are allowed in every status.
func (inv *Invoice) AddNote(author, text string, now time.Time) (Note, error) {
	author = strings.TrimSpace(author)
	text = strings.TrimSpace(text)
	if author == "" {
		return Note{}, ErrInvalidAuthor
	}
	if text == "" {
		return Note{}, ErrInvalidNote
	}
	note := Note{Author: author, Text: text, CreatedAt: now}
	inv.Notes = append(inv.Notes, note)
	inv.UpdatedAt = now
	return note, nil
}
