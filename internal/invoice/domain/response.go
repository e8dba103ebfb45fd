package domain

import (
	"time"

	"github.com/samber/lo"
)

type LineItemResponse struct {
	Description string `json:"description"`
	Quantity    string `json:"quantity"`
	Unit        string `json:"unit"`
	UnitPrice   string `json:"unit_price"`
	VATRate     string `json:"vat_rate"`
	Subtotal    string `json:"subtotal"`
	Tax         string `json:"tax"`
	Total       string `json:"total"`
}

type PaymentResponse struct {
	Amount     string        `json:"amount"`
	Method     PaymentMethod `json:"method"`
	Reference  string        `json:"reference,omitempty"`
	RecordedAt time.Time     `json:"recorded_at"`
}

// Response is the read model of an invoice as observed at a point in time.
// Amounts are rendered at the currency's minor unit.
type Response struct {
	ID                 string             `json:"id"`
	InvoiceNumber      *string            `json:"invoice_number"`
	Customer           Customer           `json:"customer"`
	Currency           string             `json:"currency"`
	IssueDate          time.Time          `json:"issue_date"`
	DueDate            time.Time          `json:"due_date"`
	Status             InvoiceStatus      `json:"status"`
	StoredStatus       InvoiceStatus      `json:"stored_status"`
	IsOverdue          bool               `json:"is_overdue"`
	DaysOverdue        int                `json:"days_overdue"`
	DueReminderTier    *ReminderTier      `json:"due_reminder_tier"`
	LineItems          []LineItemResponse `json:"line_items"`
	PaymentTerms       string             `json:"payment_terms"`
	PaymentMethod      PaymentMethod      `json:"payment_method"`
	BankDetails        *BankDetails       `json:"bank_details,omitempty"`
	Payments           []PaymentResponse  `json:"payments"`
	Reminders          []Reminder         `json:"reminders"`
	Notes              []Note             `json:"notes"`
	Subtotal           string             `json:"subtotal"`
	TaxTotal           string             `json:"tax_total"`
	GrandTotal         string             `json:"grand_total"`
	AmountPaid         string             `json:"amount_paid"`
	OutstandingBalance string             `json:"outstanding_balance"`
	Version            int64              `json:"version"`
	FinalizedAt        *time.Time         `json:"finalized_at,omitempty"`
	PaidAt             *time.Time         `json:"paid_at,omitempty"`
	CancelledAt        *time.Time         `json:"cancelled_at,omitempty"`
	ClosedAt           *time.Time         `json:"closed_at,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// NewResponse derives every computed field from inv at now.
func NewResponse(inv *Invoice, now time.Time, policy ReminderPolicy) Response {
	places := inv.Places()
	totals := inv.Totals()
	paid := inv.AmountPaid()
	overdue := inv.IsOverdue(now)

	resp := Response{
		ID:                 inv.ID.String(),
		InvoiceNumber:      inv.InvoiceNumber,
		Customer:           inv.Customer,
		Currency:           inv.Currency,
		IssueDate:          inv.IssueDate,
		DueDate:            inv.DueDate,
		Status:             inv.EffectiveStatus(now),
		StoredStatus:       inv.Status,
		IsOverdue:          overdue,
		PaymentTerms:       inv.PaymentTerms,
		PaymentMethod:      inv.PaymentMethod,
		BankDetails:        inv.BankDetails,
		Reminders:          append([]Reminder{}, inv.Reminders...),
		Notes:              append([]Note{}, inv.Notes...),
		Subtotal:           totals.Subtotal.StringFixed(places),
		TaxTotal:           totals.TaxTotal.StringFixed(places),
		GrandTotal:         totals.GrandTotal.StringFixed(places),
		AmountPaid:         paid.StringFixed(places),
		OutstandingBalance: totals.GrandTotal.Sub(paid).StringFixed(places),
		Version:            inv.Version,
		FinalizedAt:        inv.FinalizedAt,
		PaidAt:             inv.PaidAt,
		CancelledAt:        inv.CancelledAt,
		ClosedAt:           inv.ClosedAt,
		CreatedAt:          inv.CreatedAt,
		UpdatedAt:          inv.UpdatedAt,
	}
	if overdue {
		resp.DaysOverdue = DaysOverdue(inv.DueDate, now)
	}
	if tier, ok := DueReminderTier(inv, now, policy); ok {
		resp.DueReminderTier = lo.ToPtr(tier)
	}

	resp.LineItems = lo.Map(inv.LineItems, func(li LineItem, _ int) LineItemResponse {
		line := li.Calculate(places)
		return LineItemResponse{
			Description: li.Description,
			Quantity:    li.Quantity.String(),
			Unit:        li.Unit,
			UnitPrice:   li.UnitPrice.String(),
			VATRate:     li.VATRate.String(),
			Subtotal:    line.Subtotal.StringFixed(places),
			Tax:         line.Tax.StringFixed(places),
			Total:       line.Total.StringFixed(places),
		}
	})
	resp.Payments = lo.Map(inv.Payments, func(p Payment, _ int) PaymentResponse {
		return PaymentResponse{
			Amount:     p.Amount.StringFixed(places),
			Method:     p.Method,
			Reference:  p.Reference,
			RecordedAt: p.RecordedAt,
		}
	})
	return resp
}
