package repository

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/invoiceledger/internal/invoice/domain"
	"gorm.io/datatypes"
)

type invoiceModel struct {
	ID            snowflake.ID                            `gorm:"primaryKey"`
	InvoiceNumber *string                                 `gorm:"type:varchar(64);uniqueIndex:ux_invoices_number"`
	CustomerName  string                                  `gorm:"type:varchar(255);not null"`
	CustomerEmail string                                  `gorm:"type:varchar(255)"`
	Currency      string                                  `gorm:"type:varchar(3);not null;index"`
	IssueDate     time.Time                               `gorm:"not null"`
	DueDate       time.Time                               `gorm:"not null;index"`
	Status        string                                  `gorm:"type:varchar(16);not null;index"`
	PaymentTerms  string                                  `gorm:"type:text"`
	PaymentMethod string                                  `gorm:"type:varchar(32);not null"`
	BankDetails   datatypes.JSONType[*domain.BankDetails] `gorm:""`
	Version       int64                                   `gorm:"not null"`
	FinalizedAt   *time.Time                              `gorm:""`
	PaidAt        *time.Time                              `gorm:""`
	CancelledAt   *time.Time                              `gorm:""`
	ClosedAt      *time.Time                              `gorm:""`
	CreatedAt     time.Time                               `gorm:"not null"`
	UpdatedAt     time.Time                               `gorm:"not null"`
}

func (invoiceModel) TableName() string { return "invoices" }

type lineItemModel struct {
	ID          snowflake.ID    `gorm:"primaryKey"`
	InvoiceID   snowflake.ID    `gorm:"not null;uniqueIndex:ux_invoice_line_items_position,priority:1"`
	Position    int             `gorm:"not null;uniqueIndex:ux_invoice_line_items_position,priority:2"`
	Description string          `gorm:"type:text;not null"`
	Quantity    decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Unit        string          `gorm:"type:varchar(32);not null"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	VATRate     decimal.Decimal `gorm:"column:vat_rate;type:decimal(7,4);not null"`
}

func (lineItemModel) TableName() string { return "invoice_line_items" }

type paymentModel struct {
	ID         snowflake.ID    `gorm:"primaryKey"`
	InvoiceID  snowflake.ID    `gorm:"not null;uniqueIndex:ux_invoice_payments_position,priority:1"`
	Position   int             `gorm:"not null;uniqueIndex:ux_invoice_payments_position,priority:2"`
	Amount     decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Method     string          `gorm:"type:varchar(32);not null"`
	Reference  string          `gorm:"type:varchar(255)"`
	RecordedAt time.Time       `gorm:"not null"`
}

func (paymentModel) TableName() string { return "invoice_payments" }

type reminderModel struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	InvoiceID snowflake.ID `gorm:"not null;uniqueIndex:ux_invoice_reminders_position,priority:1"`
	Position  int          `gorm:"not null;uniqueIndex:ux_invoice_reminders_position,priority:2"`
	Tier      string       `gorm:"type:varchar(16);not null"`
	Notes     string       `gorm:"type:text"`
	SentAt    time.Time    `gorm:"not null"`
}

func (reminderModel) TableName() string { return "invoice_reminders" }

type noteModel struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	InvoiceID snowflake.ID `gorm:"not null;uniqueIndex:ux_invoice_notes_position,priority:1"`
	Position  int          `gorm:"not null;uniqueIndex:ux_invoice_notes_position,priority:2"`
	Author    string       `gorm:"type:varchar(255);not null"`
	Text      string       `gorm:"type:text;not null"`
	CreatedAt time.Time    `gorm:"not null"`
}

func (noteModel) TableName() string { return "invoice_notes" }

// Models lists the tables owned by this repository, in creation order.
func Models() []any {
	return []any{&invoiceModel{}, &lineItemModel{}, &paymentModel{}, &reminderModel{}, &noteModel{}}
}

func fromDomain(inv *domain.Invoice) invoiceModel {
	return invoiceModel{
		ID:            inv.ID,
		InvoiceNumber: inv.InvoiceNumber,
		CustomerName:  inv.Customer.Name,
		CustomerEmail: inv.Customer.Email,
		Currency:      inv.Currency,
		IssueDate:     inv.IssueDate,
		DueDate:       inv.DueDate,
		Status:        string(inv.Status),
		PaymentTerms:  inv.PaymentTerms,
		PaymentMethod: string(inv.PaymentMethod),
		BankDetails:   datatypes.NewJSONType(inv.BankDetails),
		Version:       inv.Version,
		FinalizedAt:   inv.FinalizedAt,
		PaidAt:        inv.PaidAt,
		CancelledAt:   inv.CancelledAt,
		ClosedAt:      inv.ClosedAt,
		CreatedAt:     inv.CreatedAt,
		UpdatedAt:     inv.UpdatedAt,
	}
}

func (m invoiceModel) toDomain() *domain.Invoice {
	return &domain.Invoice{
		ID:            m.ID,
		InvoiceNumber: m.InvoiceNumber,
		Customer:      domain.Customer{Name: m.CustomerName, Email: m.CustomerEmail},
		Currency:      m.Currency,
		IssueDate:     m.IssueDate.UTC(),
		DueDate:       m.DueDate.UTC(),
		Status:        domain.InvoiceStatus(m.Status),
		PaymentTerms:  m.PaymentTerms,
		PaymentMethod: domain.PaymentMethod(m.PaymentMethod),
		BankDetails:   m.BankDetails.Data(),
		Version:       m.Version,
		FinalizedAt:   utc(m.FinalizedAt),
		PaidAt:        utc(m.PaidAt),
		CancelledAt:   utc(m.CancelledAt),
		ClosedAt:      utc(m.ClosedAt),
		CreatedAt:     m.CreatedAt.UTC(),
		UpdatedAt:     m.UpdatedAt.UTC(),
	}
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
