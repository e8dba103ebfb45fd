// Package domain contains the invoice aggregate and the rules that govern it.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// InvoiceStatus represents invoice lifecycle states.
type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "draft"
	InvoiceStatusSent      InvoiceStatus = "sent"
	InvoiceStatusOverdue   InvoiceStatus = "overdue"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
	InvoiceStatusClosed    InvoiceStatus = "closed"
)

var invoiceStatuses = []InvoiceStatus{
	InvoiceStatusDraft,
	InvoiceStatusSent,
	InvoiceStatusOverdue,
	InvoiceStatusPaid,
	InvoiceStatusCancelled,
	InvoiceStatusClosed,
}

// InvoiceStatuses lists every status in lifecycle order.
func InvoiceStatuses() []InvoiceStatus {
	return append([]InvoiceStatus(nil), invoiceStatuses...)
}

func (s InvoiceStatus) Valid() bool {
	return lo.Contains(invoiceStatuses, s)
}

// Payable reports whether payments and reminders may be recorded.
func (s InvoiceStatus) Payable() bool {
	return s == InvoiceStatusSent || s == InvoiceStatusOverdue
}

type PaymentMethod string

const (
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodCard         PaymentMethod = "card"
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodDirectDebit  PaymentMethod = "direct_debit"
	PaymentMethodPayPal       PaymentMethod = "paypal"
	PaymentMethodOther        PaymentMethod = "other"
)

var paymentMethods = []PaymentMethod{
	PaymentMethodBankTransfer,
	PaymentMethodCard,
	PaymentMethodCash,
	PaymentMethodDirectDebit,
	PaymentMethodPayPal,
	PaymentMethodOther,
}

func (m PaymentMethod) Valid() bool {
	return lo.Contains(paymentMethods, m)
}

// ReminderTier is an escalation level. Tiers are ordered by severity.
type ReminderTier string

const (
	ReminderTierFirst  ReminderTier = "first"
	ReminderTierSecond ReminderTier = "second"
	ReminderTierFinal  ReminderTier = "final"
)

// Severity returns 1..3 for known tiers and 0 otherwise.
func (t ReminderTier) Severity() int {
	switch t {
	case ReminderTierFirst:
		return 1
	case ReminderTierSecond:
		return 2
	case ReminderTierFinal:
		return 3
	default:
		return 0
	}
}

func (t ReminderTier) Valid() bool {
	return t.Severity() > 0
}

type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

type BankDetails struct {
	AccountHolder string `json:"account_holder"`
	IBAN          string `json:"iban"`
	BIC           string `json:"bic,omitempty"`
	BankName      string `json:"bank_name,omitempty"`
}

type LineItem struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	Unit        string          `json:"unit"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	VATRate     decimal.Decimal `json:"vat_rate"`
}

// Payment is an immutable ledger entry.
type Payment struct {
	Amount     decimal.Decimal `json:"amount"`
	Method     PaymentMethod   `json:"method"`
	Reference  string          `json:"reference,omitempty"`
	RecordedAt time.Time       `json:"recorded_at"`
}

type Reminder struct {
	Tier   ReminderTier `json:"tier"`
	Notes  string       `json:"notes,omitempty"`
	SentAt time.Time    `json:"sent_at"`
}

type Note struct {
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Invoice is the aggregate root. Payments, reminders and notes are
// append-only; line items may change only while the invoice is a draft.
type Invoice struct {
	ID            snowflake.ID
	InvoiceNumber *string
	Customer      Customer
	Currency      string
	IssueDate     time.Time
	DueDate       time.Time
	Status        InvoiceStatus
	LineItems     []LineItem
	PaymentTerms  string
	PaymentMethod PaymentMethod
	BankDetails   *BankDetails
	Payments      []Payment
	Reminders     []Reminder
	Notes         []Note
	Version       int64
	FinalizedAt   *time.Time
	PaidAt        *time.Time
	CancelledAt   *time.Time
	ClosedAt      *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Clone returns a deep copy so callers can mutate without aliasing.
func (inv *Invoice) Clone() *Invoice {
	if inv == nil {
		return nil
	}
	out := *inv
	if inv.InvoiceNumber != nil {
		out.InvoiceNumber = lo.ToPtr(*inv.InvoiceNumber)
	}
	if inv.BankDetails != nil {
		bd := *inv.BankDetails
		out.BankDetails = &bd
	}
	out.LineItems = append([]LineItem(nil), inv.LineItems...)
	out.Payments = append([]Payment(nil), inv.Payments...)
	out.Reminders = append([]Reminder(nil), inv.Reminders...)
	out.Notes = append([]Note(nil), inv.Notes...)
	out.FinalizedAt = cloneTime(inv.FinalizedAt)
	out.PaidAt = cloneTime(inv.PaidAt)
	out.CancelledAt = cloneTime(inv.CancelledAt)
	out.ClosedAt = cloneTime(inv.ClosedAt)
	return &out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
