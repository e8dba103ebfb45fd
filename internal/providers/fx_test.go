package providers

import (
	"context"
	"errors"
	"testing"

	"github.com/smallbiznis/invoiceledger/internal/invoice/domain"
	"github.com/stretchr/testify/assert"
)

type notifierFunc func(context.Context, domain.ReminderNotification) error

func (f notifierFunc) NotifyReminder(ctx context.Context, n domain.ReminderNotification) error {
	return f(ctx, n)
}

func TestFanoutDeliversToEveryChannel(t *testing.T) {
	var calls int
	ok := notifierFunc(func(context.Context, domain.ReminderNotification) error { calls++; return nil })
	boom := errors.New("smtp down")
	failing := notifierFunc(func(context.Context, domain.ReminderNotification) error { calls++; return boom })

	err := Fanout{failing, nil, ok}.NotifyReminder(context.Background(), domain.ReminderNotification{})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, calls)

	assert.NoError(t, Fanout{ok}.NotifyReminder(context.Background(), domain.ReminderNotification{}))
}
