package resilience

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a token bucket.
type RateLimiter struct {
	rate  float64 // tokens per second
	burst int

	mu         sync.Mutex
	tokens     float64
	lastUpdate time.Time
	now        func() time.Time
}

// NewRateLimiter creates a full bucket. A burst below one is raised to one.
func NewRateLimiter(rate float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	r := &RateLimiter{
		rate:  rate,
		burst: burst,
		now:   time.Now,
	}
	r.tokens = float64(burst)
	r.lastUpdate = r.now()
	return r
}

// Allow takes one token if available.
func (r *RateLimiter) Allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.tokens += now.Sub(r.lastUpdate).Seconds() * r.rate
	r.lastUpdate = now
	if r.tokens > float64(r.burst) {
		r.tokens = float64(r.burst)
	}

	if r.tokens >= 1 {
		r.tokens--
		return true
	}
	return false
}

// RetryAfter estimates how long until the next token is available.
func (r *RateLimiter) RetryAfter() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.tokens >= 1 || r.rate <= 0 {
		return 0
	}
	return time.Duration((1 - r.tokens) / r.rate * float64(time.Second))
}

// Wait blocks until a token is available or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	for {
		if r.Allow() {
			return nil
		}
		wait := r.RetryAfter()
		if wait <= 0 {
			wait = 10 * time.Millisecond
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}
