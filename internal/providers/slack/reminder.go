package slack

import (
	"context"
	"fmt"
	"strconv"

	"github.com/slack-go/slack"
	"github.com/smallbiznis/invoiceledger/internal/invoice/domain"
)

var tierColors = map[domain.ReminderTier]string{
	domain.ReminderTierFirst:  "#f2c744",
	domain.ReminderTierSecond: "#f29544",
	domain.ReminderTierFinal:  "#d9433f",
}

// ReminderNotifier tells the team channel that a reminder went out.
type ReminderNotifier struct {
	provider Provider
}

func NewReminderNotifier(provider Provider) *ReminderNotifier {
	return &ReminderNotifier{provider: provider}
}

func (n *ReminderNotifier) NotifyReminder(ctx context.Context, msg domain.ReminderNotification) error {
	return n.provider.PostMessage(ctx, reminderMessage(msg))
}

func reminderMessage(msg domain.ReminderNotification) *slack.WebhookMessage {
	return &slack.WebhookMessage{
		Text: fmt.Sprintf("%s reminder sent for invoice %s (%s)", msg.Tier, msg.InvoiceNumber, msg.CustomerName),
		Attachments: []slack.Attachment{{
			Color: tierColors[msg.Tier],
			Fields: []slack.AttachmentField{
				{Title: "Outstanding", Value: msg.OutstandingBalance + " " + msg.Currency, Short: true},
				{Title: "Days overdue", Value: strconv.Itoa(msg.DaysOverdue), Short: true},
				{Title: "Due date", Value: msg.DueDate.Format("2006-01-02"), Short: true},
			},
		}},
	}
}
