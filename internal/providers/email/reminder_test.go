package email

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/invoiceledger/internal/config"
	"github.com/smallbiznis/invoiceledger/internal/invoice/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) Send(ctx context.Context, to []string, subject string, htmlBody string) error {
	return m.Called(ctx, to, subject, htmlBody).Error(0)
}

func notification(tier domain.ReminderTier) domain.ReminderNotification {
	return domain.ReminderNotification{
		InvoiceID:          "42",
		InvoiceNumber:      "INV-202603-00007",
		CustomerName:       "Acme GmbH",
		CustomerEmail:      "ap@acme.test",
		Tier:               tier,
		Currency:           "EUR",
		OutstandingBalance: "142.00",
		DueDate:            time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		DaysOverdue:        31,
	}
}

func TestReminderNotifierSendsRenderedMail(t *testing.T) {
	provider := &mockProvider{}
	provider.On("Send", mock.Anything, []string{"ap@acme.test"}, "Final reminder: invoice INV-202603-00007 is overdue",
		mock.MatchedBy(func(body string) bool {
			return assert.Contains(t, body, "final reminder") &&
				assert.Contains(t, body, "142.00 EUR") &&
				assert.Contains(t, body, "2026-03-15")
		})).Return(nil).Once()

	n := NewReminderNotifier(provider, zap.NewNop())
	require.NoError(t, n.NotifyReminder(context.Background(), notification(domain.ReminderTierFinal)))
	provider.AssertExpectations(t)
}

func TestReminderNotifierSkipsMissingEmail(t *testing.T) {
	provider := &mockProvider{}
	n := NewReminderNotifier(provider, zap.NewNop())

	msg := notification(domain.ReminderTierFirst)
	msg.CustomerEmail = ""
	require.NoError(t, n.NotifyReminder(context.Background(), msg))
	provider.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestReminderSubject(t *testing.T) {
	assert.Equal(t, "Payment reminder: invoice INV-202603-00007", reminderSubject(notification(domain.ReminderTierFirst)))
	assert.Equal(t, "Second reminder: invoice INV-202603-00007 is overdue", reminderSubject(notification(domain.ReminderTierSecond)))
}

func TestNewFromConfig(t *testing.T) {
	assert.IsType(t, &NoOpProvider{}, NewFromConfig(config.Config{}))

	cfg := config.Config{Email: config.EmailConfig{SMTPHost: "smtp.test", SMTPPort: 25, SMTPFrom: "billing@me.test"}}
	assert.IsType(t, &SMTPProvider{}, NewFromConfig(cfg))
}

func TestBuildMessage(t *testing.T) {
	msg := string(buildMessage("billing@me.test", []string{"a@x.test", "b@x.test"}, "Hello", "<p>hi</p>"))
	assert.Contains(t, msg, "To: a@x.test, b@x.test\r\n")
	assert.Contains(t, msg, "Subject: Hello\r\n")
	assert.Contains(t, msg, "\r\n\r\n<p>hi</p>")
}
