package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"copytrader/internal/models"
	"copytrader/internal/resilience"
)

// WebhookChannel posts notifications as JSON to a URL.
type WebhookChannel struct {
	url     string
	client  *resty.Client
	breaker *resilience.Breaker
}

// NewWebhookChannel creates a WebhookChannel.
func NewWebhookChannel(url string) *WebhookChannel {
	client := resty.New()
	client.SetTimeout(10 * time.Second)
	client.SetRetryCount(2)
	client.SetHeader("User-Agent", "copytrader/1.0")
	return &WebhookChannel{
		url:     url,
		client:  client,
		breaker: resilience.NewBreaker("webhook", resilience.DefaultBreakerConfig()),
	}
}

// Breaker exposes the channel's circuit breaker for health checks.
func (w *WebhookChannel) Breaker() *resilience.Breaker {
	return w.breaker
}

// Name returns the name of the channel.
func (w *WebhookChannel) Name() string { return "webhook" }

// IsEnabled reports whether a URL is configured.
func (w *WebhookChannel) IsEnabled() bool { return w.url != "" }

type webhookPayload struct {
	User      string `json:"user"`
	ID        string `json:"id"`
	Type      string `json:"type"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// Send posts the notification. After repeated failures the breaker opens
// and sends fail fast until the cooldown passes.
func (w *WebhookChannel) Send(ctx context.Context, userID string, n models.Notification) error {
	return w.breaker.Do(ctx, func(ctx context.Context) error {
		return w.post(ctx, userID, n)
	})
}

func (w *WebhookChannel) post(ctx context.Context, userID string, n models.Notification) error {
	resp, err := w.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(webhookPayload{
			User:      userID,
			ID:        n.ID,
			Type:      string(n.Type),
			Title:     n.Title,
			Message:   n.Message,
			Timestamp: n.Timestamp.Format(time.RFC3339),
		}).
		Post(w.url)
	if err != nil {
		return fmt.Errorf("sending webhook: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode())
	}
	return nil
}
