// Package stream distributes expert copy signals to interested consumers.
package stream

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"copytrader/internal/models"
)

// AllExperts subscribes to signals from every expert.
const AllExperts = "*"

// HubConfig holds configuration for the Hub.
type HubConfig struct {
	// BufferSize is the size of the internal signal channel buffer.
	BufferSize int
	// SubscriberBufferSize is the size of each subscriber's channel buffer.
	SubscriberBufferSize int
	// BroadcastTimeout is the maximum time to wait on a full subscriber.
	BroadcastTimeout time.Duration
	// SlowConsumerDropThreshold is the number of drops before a subscriber is
	// reported as slow.
	SlowConsumerDropThreshold int
}

// DefaultHubConfig returns the default hub configuration.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		BufferSize:                256,
		SubscriberBufferSize:      64,
		BroadcastTimeout:          50 * time.Millisecond,
		SlowConsumerDropThreshold: 10,
	}
}

// Hub fans signals from any number of sources out to subscribers keyed by
// expert ID.
type Hub struct {
	config      HubConfig
	logger      zerolog.Logger
	mu          sync.RWMutex
	subscribers map[string][]*Subscriber
	signals     chan models.CopySignal
	done        chan struct{}
	started     bool
	stopped     bool

	received  atomic.Uint64
	broadcast atomic.Uint64
	dropped   atomic.Uint64
}

// Subscriber represents a channel subscriber with metadata.
type Subscriber struct {
	ID        string
	Expert    string
	Channel   chan models.CopySignal
	Dropped   atomic.Uint64
	CreatedAt time.Time
}

// NewHub creates a new hub with default configuration.
func NewHub(logger zerolog.Logger) *Hub {
	return NewHubWithConfig(DefaultHubConfig(), logger)
}

// NewHubWithConfig creates a new hub with custom configuration.
func NewHubWithConfig(config HubConfig, logger zerolog.Logger) *Hub {
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultHubConfig().BufferSize
	}
	if config.SubscriberBufferSize <= 0 {
		config.SubscriberBufferSize = DefaultHubConfig().SubscriberBufferSize
	}
	return &Hub{
		config:      config,
		logger:      logger.With().Str("component", "hub").Logger(),
		subscribers: make(map[string][]*Subscriber),
		signals:     make(chan models.CopySignal, config.BufferSize),
		done:        make(chan struct{}),
	}
}

// Start runs the distribution loop in a goroutine.
func (h *Hub) Start(ctx context.Context) {
	go func() { _ = h.Run(ctx) }()
}

// Run distributes signals until ctx is cancelled or Stop is called.
func (h *Hub) Run(ctx context.Context) error {
	h.mu.Lock()
	if h.started {
		h.mu.Unlock()
		return nil
	}
	h.started = true
	h.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			h.Stop()
			return nil
		case <-h.done:
			return nil
		case sig := <-h.signals:
			h.received.Add(1)
			h.dispatch(sig)
		}
	}
}

// Stop stops the hub and closes all subscriber channels.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopped {
		return
	}
	h.stopped = true
	close(h.done)

	for expert, subs := range h.subscribers {
		for _, sub := range subs {
			close(sub.Channel)
		}
		delete(h.subscribers, expert)
	}
}

// Subscribe returns a channel receiving signals from expertID, or from every
// expert when expertID is AllExperts.
func (h *Hub) Subscribe(expertID, subscriberID string) <-chan models.CopySignal {
	ch := make(chan models.CopySignal, h.config.SubscriberBufferSize)
	sub := &Subscriber{
		ID:        subscriberID,
		Expert:    expertID,
		Channel:   ch,
		CreatedAt: time.Now(),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		close(ch)
		return ch
	}
	h.subscribers[expertID] = append(h.subscribers[expertID], sub)
	return ch
}

// Unsubscribe removes and closes a subscriber channel.
func (h *Hub) Unsubscribe(expertID string, ch <-chan models.CopySignal) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := h.subscribers[expertID]
	for i, sub := range subs {
		if sub.Channel == ch {
			close(sub.Channel)
			h.subscribers[expertID] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(h.subscribers[expertID]) == 0 {
		delete(h.subscribers, expertID)
	}
}

// Publish queues a signal for distribution without blocking. It reports
// false when the hub buffer is full and the signal was dropped.
func (h *Hub) Publish(sig models.CopySignal) bool {
	select {
	case h.signals <- sig:
		return true
	default:
		h.dropped.Add(1)
		h.logger.Warn().Str("expert", sig.ExpertID).Str("symbol", sig.Symbol).Msg("Hub buffer full, signal dropped")
		return false
	}
}

// PublishContext queues a signal, waiting for buffer space.
func (h *Hub) PublishContext(ctx context.Context, sig models.CopySignal) error {
	select {
	case <-h.done:
		return context.Canceled
	default:
	}
	select {
	case h.signals <- sig:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
		return context.Canceled
	}
}

// dispatch delivers sig to the expert's subscribers and to AllExperts
// subscribers. Holding the read lock keeps Stop from closing channels
// mid-send.
func (h *Hub) dispatch(sig models.CopySignal) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, key := range []string{sig.ExpertID, AllExperts} {
		for _, sub := range h.subscribers[key] {
			h.deliver(sub, sig)
		}
	}
}

func (h *Hub) deliver(sub *Subscriber, sig models.CopySignal) {
	select {
	case sub.Channel <- sig:
		h.broadcast.Add(1)
		return
	default:
	}

	if h.config.BroadcastTimeout > 0 {
		timer := time.NewTimer(h.config.BroadcastTimeout)
		defer timer.Stop()
		select {
		case sub.Channel <- sig:
			h.broadcast.Add(1)
			return
		case <-timer.C:
		}
	}

	n := sub.Dropped.Add(1)
	h.dropped.Add(1)
	if th := h.config.SlowConsumerDropThreshold; th > 0 && n%uint64(th) == 0 {
		h.logger.Warn().Str("subscriber", sub.ID).Uint64("dropped", n).Msg("Slow signal consumer")
	}
}

// SubscriberCount returns the number of subscribers for an expert key.
func (h *Hub) SubscriberCount(expertID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[expertID])
}

// HubMetrics contains hub counters.
type HubMetrics struct {
	Received    uint64 `json:"received"`
	Broadcast   uint64 `json:"broadcast"`
	Dropped     uint64 `json:"dropped"`
	Subscribers int    `json:"subscribers"`
}

// Metrics returns hub counters.
func (h *Hub) Metrics() HubMetrics {
	h.mu.RLock()
	count := 0
	for _, subs := range h.subscribers {
		count += len(subs)
	}
	h.mu.RUnlock()

	return HubMetrics{
		Received:    h.received.Load(),
		Broadcast:   h.broadcast.Load(),
		Dropped:     h.dropped.Load(),
		Subscribers: count,
	}
}
