package slack

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/slack-go/slack"
)

type Provider interface {
	PostMessage(ctx context.Context, msg *slack.WebhookMessage) error
}

// NoOpProvider is used when no webhook is configured.
type NoOpProvider struct{}

func (p *NoOpProvider) PostMessage(ctx context.Context, msg *slack.WebhookMessage) error {
	return nil
}

// WebhookProvider posts to a Slack incoming webhook.
type WebhookProvider struct {
	url     string
	channel string
}

func NewWebhook(url, channel string) *WebhookProvider {
	return &WebhookProvider{url: url, channel: channel}
}

func (p *WebhookProvider) PostMessage(ctx context.Context, msg *slack.WebhookMessage) error {
	if msg.Channel == "" {
		msg.Channel = p.channel
	}
	if err := slack.PostWebhookContext(ctx, p.url, msg); err != nil {
		return errors.Wrap(err, "post slack webhook")
	}
	return nil
}
