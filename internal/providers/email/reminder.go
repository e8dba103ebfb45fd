package email

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"

	"github.com/cockroachdb/errors"
	"github.com/smallbiznis/invoiceledger/internal/invoice/domain"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templates embed.FS

var reminderTemplate = template.Must(template.ParseFS(templates, "templates/reminder.html"))

// ReminderNotifier mails the customer's billing contact.
type ReminderNotifier struct {
	provider Provider
	log      *zap.Logger
}

func NewReminderNotifier(provider Provider, log *zap.Logger) *ReminderNotifier {
	return &ReminderNotifier{provider: provider, log: log.Named("providers.email")}
}

func (n *ReminderNotifier) NotifyReminder(ctx context.Context, msg domain.ReminderNotification) error {
	if msg.CustomerEmail == "" {
		n.log.Debug("customer has no email, reminder not mailed", zap.String("invoice_id", msg.InvoiceID))
		return nil
	}

	var body bytes.Buffer
	if err := reminderTemplate.Execute(&body, msg); err != nil {
		return errors.Wrap(err, "render reminder email")
	}
	return n.provider.Send(ctx, []string{msg.CustomerEmail}, reminderSubject(msg), body.String())
}

func reminderSubject(msg domain.ReminderNotification) string {
	switch msg.Tier {
	case domain.ReminderTierFinal:
		return fmt.Sprintf("Final reminder: invoice %s is overdue", msg.InvoiceNumber)
	case domain.ReminderTierSecond:
		return fmt.Sprintf("Second reminder: invoice %s is overdue", msg.InvoiceNumber)
	default:
		return fmt.Sprintf("Payment reminder: invoice %s", msg.InvoiceNumber)
	}
}
