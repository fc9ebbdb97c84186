package notify

import (
	"context"
	"sync"

	"copytrader/internal/models"
	"copytrader/internal/store"
)

// DefaultInboxLimit caps the number of notifications kept per user.
const DefaultInboxLimit = 100

// Push prepends n to inbox, dropping the oldest entries beyond limit.
func Push(inbox []models.Notification, n models.Notification, limit int) []models.Notification {
	if limit <= 0 {
		limit = DefaultInboxLimit
	}
	size := len(inbox) + 1
	if size > limit {
		size = limit
	}
	out := make([]models.Notification, 0, size)
	out = append(out, n)
	for _, old := range inbox {
		if len(out) == limit {
			break
		}
		out = append(out, old)
	}
	return out
}

// MarkRead returns a copy of inbox with the given ids marked read. No ids
// marks everything read.
func MarkRead(inbox []models.Notification, ids ...string) ([]models.Notification, int) {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	out := make([]models.Notification, len(inbox))
	changed := 0
	for i, n := range inbox {
		if !n.Read && (len(ids) == 0 || want[n.ID]) {
			n.Read = true
			changed++
		}
		out[i] = n
	}
	return out, changed
}

// Unread counts unread notifications.
func Unread(inbox []models.Notification) int {
	count := 0
	for _, n := range inbox {
		if !n.Read {
			count++
		}
	}
	return count
}

// InboxChannel persists notifications per user in a store.KV.
type InboxChannel struct {
	kv    store.KV
	limit int
	mu    sync.Mutex
}

// NewInboxChannel creates an InboxChannel.
func NewInboxChannel(kv store.KV, limit int) *InboxChannel {
	if limit <= 0 {
		limit = DefaultInboxLimit
	}
	return &InboxChannel{kv: kv, limit: limit}
}

// Name returns the name of the channel.
func (c *InboxChannel) Name() string { return "inbox" }

// IsEnabled always reports true.
func (c *InboxChannel) IsEnabled() bool { return true }

// Send stores n at the head of the user's inbox.
func (c *InboxChannel) Send(ctx context.Context, userID string, n models.Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	inbox, err := c.List(ctx, userID)
	if err != nil {
		return err
	}
	return store.Save(ctx, c.kv, store.UserNotificationsKey(userID), Push(inbox, n, c.limit))
}

// List returns the user's inbox, newest first.
func (c *InboxChannel) List(ctx context.Context, userID string) ([]models.Notification, error) {
	return store.Load(ctx, c.kv, store.UserNotificationsKey(userID), []models.Notification{})
}

// MarkRead marks notifications read and returns how many changed.
func (c *InboxChannel) MarkRead(ctx context.Context, userID string, ids ...string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	inbox, err := c.List(ctx, userID)
	if err != nil {
		return 0, err
	}
	next, changed := MarkRead(inbox, ids...)
	if changed == 0 {
		return 0, nil
	}
	return changed, store.Save(ctx, c.kv, store.UserNotificationsKey(userID), next)
}

// Clear deletes the user's inbox.
func (c *InboxChannel) Clear(ctx context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.kv.Delete(ctx, store.UserNotificationsKey(userID))
}
