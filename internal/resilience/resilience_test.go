package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func fail(context.Context) error { return errBoom }
func ok(context.Context) error   { return nil }

func TestBreaker_OpensAndRecovers(t *testing.T) {
	now := time.Date(2024, 5, 6, 14, 0, 0, 0, time.UTC)
	b := NewBreaker("kafka", BreakerConfig{FailureThreshold: 3, SuccessThreshold: 1, Cooldown: time.Minute})
	b.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, b.Do(ctx, fail), errBoom)
	}
	assert.Equal(t, CircuitOpen, b.State())

	called := false
	err := b.Do(ctx, func(context.Context) error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)

	now = now.Add(2 * time.Minute)
	require.NoError(t, b.Do(ctx, ok))
	assert.Equal(t, CircuitClosed, b.State())

	s := b.Stats()
	assert.Equal(t, int64(4), s.Calls)
	assert.Equal(t, int64(3), s.Failures)
	assert.Equal(t, int64(1), s.Rejected)
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	now := time.Date(2024, 5, 6, 14, 0, 0, 0, time.UTC)
	b := NewBreaker("webhook", BreakerConfig{FailureThreshold: 1, Cooldown: time.Second})
	b.now = func() time.Time { return now }
	ctx := context.Background()

	_ = b.Do(ctx, fail)
	now = now.Add(2 * time.Second)
	_ = b.Do(ctx, fail)
	assert.Equal(t, CircuitOpen, b.State())
	assert.ErrorIs(t, b.Do(ctx, ok), ErrCircuitOpen)
}

func TestBreaker_CancellationIsNotAFailure(t *testing.T) {
	b := NewBreaker("kafka", BreakerConfig{FailureThreshold: 1, Cooldown: time.Minute})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := b.Do(ctx, func(ctx context.Context) error { return ctx.Err() })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, CircuitClosed, b.State())
}

func TestProperty_BreakerOpensOnlyAtThreshold(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("closed below threshold, open at threshold", prop.ForAll(
		func(threshold, failures int) bool {
			b := NewBreaker("p", BreakerConfig{FailureThreshold: threshold, Cooldown: time.Hour})
			for i := 0; i < failures; i++ {
				_ = b.Do(context.Background(), fail)
			}
			if failures >= threshold {
				return b.State() == CircuitOpen
			}
			return b.State() == CircuitClosed
		},
		gen.IntRange(1, 10),
		gen.IntRange(0, 20),
	))

	properties.TestingRun(t)
}

func TestChecker_WorstStatusWins(t *testing.T) {
	c := NewChecker(time.Second)
	c.Register("store", PingCheck(func(context.Context) error { return nil }))

	r := c.Check(context.Background())
	assert.Equal(t, HealthStatusHealthy, r.Status)
	require.Len(t, r.Components, 1)
	assert.Equal(t, "store", r.Components[0].Name)

	b := NewBreaker("kafka", BreakerConfig{FailureThreshold: 1, Cooldown: time.Hour})
	_ = b.Do(context.Background(), fail)
	c.Register("kafka", BreakerCheck(b))
	r = c.Check(context.Background())
	assert.Equal(t, HealthStatusDegraded, r.Status)
	assert.True(t, r.Healthy())

	c.Register("redis", PingCheck(func(context.Context) error { return errBoom }))
	r = c.Check(context.Background())
	assert.Equal(t, HealthStatusUnhealthy, r.Status)
	assert.False(t, r.Healthy())
	assert.Equal(t, []string{"kafka", "redis", "store"}, []string{r.Components[0].Name, r.Components[1].Name, r.Components[2].Name})
}

func TestChecker_RecoversPanics(t *testing.T) {
	c := NewChecker(time.Second)
	c.Register("bad", func(context.Context) ComponentHealth { panic("nope") })

	r := c.Check(context.Background())
	require.Len(t, r.Components, 1)
	assert.Equal(t, "bad", r.Components[0].Name)
	assert.Equal(t, HealthStatusUnhealthy, r.Components[0].Status)
}

func TestRateLimiter_RefillsOverTime(t *testing.T) {
	clock := time.Unix(0, 0)
	r := NewRateLimiter(2, 3)
	r.now = func() time.Time { return clock }
	r.lastUpdate = clock

	for i := 0; i < 3; i++ {
		assert.True(t, r.Allow(), "burst token %d", i)
	}
	assert.False(t, r.Allow())
	assert.Equal(t, 500*time.Millisecond, r.RetryAfter())

	clock = clock.Add(500 * time.Millisecond)
	assert.True(t, r.Allow())
	assert.False(t, r.Allow())

	clock = clock.Add(time.Hour)
	for i := 0; i < 3; i++ {
		assert.True(t, r.Allow())
	}
	assert.False(t, r.Allow())
}

func TestRateLimiter_WaitHonorsContext(t *testing.T) {
	r := NewRateLimiter(0, 1)
	require.NoError(t, r.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, r.Wait(ctx), context.DeadlineExceeded)
}
