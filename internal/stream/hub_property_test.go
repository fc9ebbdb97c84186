package stream

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"copytrader/internal/models"
)

func signal(expert string, i int) models.CopySignal {
	return models.CopySignal{
		ExpertID: expert,
		Symbol:   "AAPL",
		Action:   models.ActionBuy,
		Price:    decimal.NewFromInt(int64(100 + i)),
		Quantity: decimal.NewFromInt(1),
	}
}

// Property: every subscriber to an expert (and every AllExperts subscriber)
// receives every signal that expert publishes, in order.
func TestProperty_SubscribersReceiveAllSignals(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("fast subscribers receive all signals in order", prop.ForAll(
		func(subscriberCount int, signalCount int) bool {
			hub := NewHubWithConfig(HubConfig{
				BufferSize:           1000,
				SubscriberBufferSize: 100,
				BroadcastTimeout:     time.Second,
			}, zerolog.Nop())

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			hub.Start(ctx)

			channels := make([]<-chan models.CopySignal, 0, subscriberCount+1)
			for i := 0; i < subscriberCount; i++ {
				channels = append(channels, hub.Subscribe("alice", fmt.Sprint(i)))
			}
			channels = append(channels, hub.Subscribe(AllExperts, "all"))
			other := hub.Subscribe("bob", "bob")

			var wg sync.WaitGroup
			var failures int64
			for _, ch := range channels {
				wg.Add(1)
				go func(ch <-chan models.CopySignal) {
					defer wg.Done()
					timeout := time.After(5 * time.Second)
					for i := 0; i < signalCount; i++ {
						select {
						case sig := <-ch:
							if !sig.Price.Equal(decimal.NewFromInt(int64(100 + i))) {
								atomic.AddInt64(&failures, 1)
							}
						case <-timeout:
							atomic.AddInt64(&failures, 1)
							return
						}
					}
				}(ch)
			}

			for i := 0; i < signalCount; i++ {
				if !hub.Publish(signal("alice", i)) {
					return false
				}
			}
			wg.Wait()

			select {
			case <-other:
				return false
			default:
			}
			m := hub.Metrics()
			return failures == 0 && m.Dropped == 0 && m.Received == uint64(signalCount)
		},
		gen.IntRange(1, 5),
		gen.IntRange(1, 30),
	))

	properties.TestingRun(t)
}

// A subscriber that never reads must not stop others from receiving.
func TestSlowConsumerDoesNotBlockOthers(t *testing.T) {
	hub := NewHubWithConfig(HubConfig{
		BufferSize:                100,
		SubscriberBufferSize:      2,
		BroadcastTimeout:          time.Millisecond,
		SlowConsumerDropThreshold: 1,
	}, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub.Start(ctx)

	fast := hub.Subscribe("alice", "fast")
	_ = hub.Subscribe("alice", "slow")

	const n = 10
	received := 0
	done := make(chan struct{})
	go func() {
		defer close(done)
		for range fast {
			received++
			if received == n {
				return
			}
		}
	}()

	for i := 0; i < n; i++ {
		require.NoError(t, hub.PublishContext(ctx, signal("alice", i)))
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("fast subscriber starved")
	}
	assert.Equal(t, n, received)
	assert.Eventually(t, func() bool { return hub.Metrics().Dropped >= n-2 }, time.Second, 5*time.Millisecond)
}

func TestStopClosesSubscribers(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	hub.Start(ctx)

	ch := hub.Subscribe(AllExperts, "s")
	assert.Equal(t, 1, hub.SubscriberCount(AllExperts))
	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel not closed")
	}

	late := hub.Subscribe("x", "late")
	_, ok := <-late
	assert.False(t, ok)
	assert.ErrorIs(t, hub.PublishContext(context.Background(), signal("x", 0)), context.Canceled)
}

func TestUnsubscribe(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	a := hub.Subscribe("e", "a")
	b := hub.Subscribe("e", "b")
	hub.Unsubscribe("e", a)
	assert.Equal(t, 1, hub.SubscriberCount("e"))
	_, ok := <-a
	assert.False(t, ok)
	hub.Unsubscribe("e", b)
	assert.Equal(t, 0, hub.SubscriberCount("e"))
}

func TestPublishDropsWhenFull(t *testing.T) {
	hub := NewHubWithConfig(HubConfig{BufferSize: 1, SubscriberBufferSize: 1}, zerolog.Nop())
	assert.True(t, hub.Publish(signal("e", 0)))
	assert.False(t, hub.Publish(signal("e", 1)))
	assert.Equal(t, uint64(1), hub.Metrics().Dropped)
}
