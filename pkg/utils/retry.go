package utils

import (
	"context"
	"errors"
	"math"
	"time"
)

// RetryConfig controls Retry. MaxAttempts <= 0 retries until ctx is done.
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	// OnRetry runs before each wait with the 1-based attempt that failed.
	OnRetry func(attempt int, delay time.Duration, err error)
}

type permanentError struct{ err error }

func (p permanentError) Error() string { return p.err.Error() }
func (p permanentError) Unwrap() error { return p.err }

// Permanent wraps err so that Retry returns it immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

// Retry calls fn until it succeeds, fails permanently, runs out of attempts
// or ctx is done. A permanent error is returned unwrapped.
func Retry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		var perm permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if cfg.MaxAttempts > 0 && attempt >= cfg.MaxAttempts {
			return err
		}

		delay := cfg.Backoff(attempt - 1)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, delay, err)
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Backoff returns the wait after the given zero-based retry, capped at MaxDelay.
func (c RetryConfig) Backoff(retry int) time.Duration {
	factor := math.Max(c.BackoffFactor, 1)
	delay := float64(c.InitialDelay) * math.Pow(factor, float64(retry))
	if c.MaxDelay > 0 {
		delay = math.Min(delay, float64(c.MaxDelay))
	}
	return time.Duration(delay)
}
