package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/invoiceledger/pkg/db/pagination"
)

// Service is the caller-facing API. Every mutation loads the aggregate,
// applies exactly one operation and saves it conditionally on the version.
type Service interface {
	Create(ctx context.Context, req CreateInvoiceRequest) (Response, error)
	Get(ctx context.Context, id string) (Response, error)
	List(ctx context.Context, req ListInvoiceRequest) (ListInvoiceResponse, error)

	AddLineItem(ctx context.Context, req AddLineItemRequest) (Response, error)
	UpdateLineItem(ctx context.Context, req UpdateLineItemRequest) (Response, error)
	RemoveLineItem(ctx context.Context, req RemoveLineItemRequest) (Response, error)

	Finalize(ctx context.Context, req TransitionRequest) (Response, error)
	Cancel(ctx context.Context, req TransitionRequest) (Response, error)
	Archive(ctx context.Context, req TransitionRequest) (Response, error)

	RecordPayment(ctx context.Context, req RecordPaymentRequest) (Response, error)
	SendReminder(ctx context.Context, req SendReminderRequest) (Response, error)
	AddNote(ctx context.Context, req AddNoteRequest) (Response, error)

	DueReminder(ctx context.Context, id string) (DueReminderResponse, error)
}

type LineItemInput struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	Unit        string          `json:"unit"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	VATRate     decimal.Decimal `json:"vat_rate"`
}

func (in LineItemInput) LineItem() LineItem {
	return LineItem(in)
}

type CreateInvoiceRequest struct {
	Customer      Customer        `json:"customer"`
	Currency      string          `json:"currency"`
	IssueDate     time.Time       `json:"issue_date"`
	DueDate       time.Time       `json:"due_date"`
	PaymentTerms  string          `json:"payment_terms"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	BankDetails   *BankDetails    `json:"bank_details,omitempty"`
	LineItems     []LineItemInput `json:"line_items"`
}

// ListInvoiceRequest filters by effective status.
type ListInvoiceRequest struct {
	pagination.Pagination
	Statuses []InvoiceStatus `form:"status"`
	Currency string          `form:"currency"`
	DueFrom  *time.Time      `form:"due_from" time_format:"2006-01-02"`
	DueTo    *time.Time      `form:"due_to" time_format:"2006-01-02"`
}

type ListInvoiceResponse struct {
	pagination.PageInfo
	Invoices []Response `json:"invoices"`
}

// ExpectedVersion, when set, must equal the stored version or the call
// fails with ErrVersionConflict before any mutation.
type AddLineItemRequest struct {
	InvoiceID       string        `json:"-"`
	ExpectedVersion *int64        `json:"-"`
	Item            LineItemInput `json:"item"`
}

type UpdateLineItemRequest struct {
	InvoiceID       string        `json:"-"`
	ExpectedVersion *int64        `json:"-"`
	Index           int           `json:"-"`
	Item            LineItemInput `json:"item"`
}

type RemoveLineItemRequest struct {
	InvoiceID       string
	ExpectedVersion *int64
	Index           int
}

type TransitionRequest struct {
	InvoiceID       string
	ExpectedVersion *int64
}

type RecordPaymentRequest struct {
	InvoiceID       string          `json:"-"`
	ExpectedVersion *int64          `json:"-"`
	Amount          decimal.Decimal `json:"amount"`
	Method          PaymentMethod   `json:"method"`
	Reference       string          `json:"reference"`
}

type SendReminderRequest struct {
	InvoiceID       string       `json:"-"`
	ExpectedVersion *int64       `json:"-"`
	Tier            ReminderTier `json:"tier"`
	Notes           string       `json:"notes"`
}

type AddNoteRequest struct {
	InvoiceID       string `json:"-"`
	ExpectedVersion *int64 `json:"-"`
	Author          string `json:"author"`
	Text            string `json:"text"`
}

type DueReminderResponse struct {
	InvoiceID   string        `json:"invoice_id"`
	Tier        *ReminderTier `json:"tier"`
	DaysOverdue int           `json:"days_overdue"`
	Version     int64         `json:"version"`
}
