package domain

import (
	"context"
	"time"
)

// ReminderNotification is what gets delivered to the customer or the team
// once a reminder has been recorded.
type ReminderNotification struct {
	InvoiceID          string
	InvoiceNumber      string
	CustomerName       string
	CustomerEmail      string
	Tier               ReminderTier
	Currency           string
	OutstandingBalance string
	DueDate            time.Time
	DaysOverdue        int
	Notes              string
}

// Notifier delivers reminder notifications. Delivery failures never undo
// the recorded reminder.
type Notifier interface {
	NotifyReminder(ctx context.Context, n ReminderNotification) error
}

func NewReminderNotification(inv *Invoice, reminder Reminder, now time.Time) ReminderNotification {
	n := ReminderNotification{
		InvoiceID:          inv.ID.String(),
		CustomerName:       inv.Customer.Name,
		CustomerEmail:      inv.Customer.Email,
		Tier:               reminder.Tier,
		Currency:           inv.Currency,
		OutstandingBalance: inv.OutstandingBalance().StringFixed(inv.Places()),
		DueDate:            inv.DueDate,
		DaysOverdue:        DaysOverdue(inv.DueDate, now),
		Notes:              reminder.Notes,
	}
	if inv.InvoiceNumber != nil {
		n.InvoiceNumber = *inv.InvoiceNumber
	}
	return n
}
