package providers

import (
	"context"
	stderrors "errors"

	"github.com/smallbiznis/invoiceledger/internal/invoice/domain"
	"github.com/smallbiznis/invoiceledger/internal/providers/email"
	"github.com/smallbiznis/invoiceledger/internal/providers/slack"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	email.Module,
	slack.Module,
	fx.Provide(NewNotifier),
)

type NotifierParams struct {
	fx.In

	Email *email.ReminderNotifier
	Slack *slack.ReminderNotifier
}

func NewNotifier(p NotifierParams) domain.Notifier {
	return Fanout{p.Email, p.Slack}
}

// Fanout delivers to every channel and joins their failures.
type Fanout []domain.Notifier

func (f Fanout) NotifyReminder(ctx context.Context, n domain.ReminderNotification) error {
	var errs []error
	for _, notifier := range f {
		if notifier == nil {
			continue
		}
		if err := notifier.NotifyReminder(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}
