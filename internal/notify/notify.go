// Package notify delivers user notifications about copy-trading activity.
package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"copytrader/internal/config"
	"copytrader/internal/models"
	"copytrader/pkg/id"
	"copytrader/pkg/utils"
)

// Channel is one notification destination.
type Channel interface {
	Name() string
	Send(ctx context.Context, userID string, n models.Notification) error
	IsEnabled() bool
}

// MultiNotifier sends notifications to multiple channels.
type MultiNotifier struct {
	channels []Channel
	mu       sync.RWMutex
	now      func() time.Time
}

// NewMultiNotifier creates a MultiNotifier with the given channels.
func NewMultiNotifier(channels ...Channel) *MultiNotifier {
	return &MultiNotifier{
		channels: channels,
		now:      time.Now,
	}
}

// FromConfig builds the channels enabled in cfg. The inbox channel is always
// present when inbox is non-nil.
func FromConfig(cfg config.NotificationConfig, inbox *InboxChannel) *MultiNotifier {
	mn := NewMultiNotifier()
	if inbox != nil {
		mn.AddChannel(inbox)
	}
	if cfg.Terminal {
		mn.AddChannel(NewTerminalChannel(nil))
	}
	if cfg.WebhookURL != "" {
		mn.AddChannel(NewWebhookChannel(cfg.WebhookURL))
	}
	return mn
}

// AddChannel adds a notification channel.
func (mn *MultiNotifier) AddChannel(ch Channel) {
	mn.mu.Lock()
	defer mn.mu.Unlock()
	mn.channels = append(mn.channels, ch)
}

// Channel returns the channel registered under name.
func (mn *MultiNotifier) Channel(name string) (Channel, bool) {
	mn.mu.RLock()
	defer mn.mu.RUnlock()
	for _, ch := range mn.channels {
		if ch.Name() == name {
			return ch, true
		}
	}
	return nil, false
}

// Send stamps n with an id and timestamp when missing and delivers it to
// every enabled channel.
func (mn *MultiNotifier) Send(ctx context.Context, userID string, n models.Notification) error {
	if n.ID == "" {
		n.ID = id.New(id.KindNotification)
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = mn.now()
	}

	mn.mu.RLock()
	channels := mn.channels
	mn.mu.RUnlock()

	var errs []string
	for _, ch := range channels {
		if !ch.IsEnabled() {
			continue
		}
		if err := ch.Send(ctx, userID, n); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", ch.Name(), err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notification errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// TradeExecuted notifies about an auto-copied or approved trade.
func (mn *MultiNotifier) TradeExecuted(ctx context.Context, userID string, txn models.Transaction) error {
	who := txn.ExpertName
	if who == "" {
		who = txn.ExpertID
	}
	return mn.Send(ctx, userID, models.Notification{
		Type:  models.NotificationTrade,
		Title: fmt.Sprintf("Copied %s %s", strings.ToUpper(string(txn.Type)), txn.Symbol),
		Message: fmt.Sprintf("%s %s shares of %s at %s (total %s) following %s",
			verb(txn.Type), txn.Shares, txn.Symbol,
			utils.FormatMoney(txn.Price), utils.FormatMoney(txn.Total), who),
	})
}

// TradeQueued notifies about a trade waiting for approval.
func (mn *MultiNotifier) TradeQueued(ctx context.Context, userID string, pt models.PendingTrade) error {
	who := pt.ExpertName
	if who == "" {
		who = pt.ExpertID
	}
	return mn.Send(ctx, userID, models.Notification{
		Type:  models.NotificationPending,
		Title: fmt.Sprintf("Approval needed: %s %s", strings.ToUpper(string(pt.Action)), pt.Symbol),
		Message: fmt.Sprintf("%s wants to %s %s shares of %s at %s",
			who, pt.Action, pt.Shares, pt.Symbol, utils.FormatMoney(pt.Price)),
	})
}

// Warning notifies about a copy trade that could not be executed.
func (mn *MultiNotifier) Warning(ctx context.Context, userID, title, message string) error {
	return mn.Send(ctx, userID, models.Notification{
		Type:    models.NotificationWarning,
		Title:   title,
		Message: message,
	})
}

func verb(t models.TradeAction) string {
	if t == models.ActionSell {
		return "Sold"
	}
	return "Bought"
}
