// Package retry provides a generic exponential-backoff executor for
// fallible operations, typically network fetches.
package retry

import (
	"context"
	"math"
	"time"
)

// Config is an immutable backoff policy, supplied per call site.
type Config struct {
	MaxAttempts       int
	InitialDelay      time.Duration
	BackoffMultiplier float64
	MaxDelay          time.Duration
}

// NetworkDefaults is the policy used for font fetches.
var NetworkDefaults = Config{
	MaxAttempts:       3,
	InitialDelay:      time.Second,
	BackoffMultiplier: 2,
	MaxDelay:          10 * time.Second,
}

// None disables retries: a single attempt, no waiting.
var None = Config{
	MaxAttempts:       1,
	InitialDelay:      0,
	BackoffMultiplier: 1,
	MaxDelay:          0,
}

// sleep is overridable in tests to observe waits without real delays.
var sleep = sleepCtx

// Do runs op up to cfg.MaxAttempts times, waiting
// min(InitialDelay * BackoffMultiplier^(attempt-1), MaxDelay) between
// attempts. On exhaustion the last error is returned unmodified.
//
// Do does not classify errors: every failure is retried up to the
// attempt limit. Callers that need fatal short-circuiting must check
// inside op and return early through their own state.
func Do[T any](ctx context.Context, cfg Config, op func(context.Context) (T, error)) (T, error) {
	var zero T

	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if attempt < attempts {
			if err := sleep(ctx, Delay(cfg, attempt)); err != nil {
				return zero, err
			}
		}
	}

	return zero, lastErr
}

// Delay returns the wait inserted after the given 1-based failed attempt.
func Delay(cfg Config, attempt int) time.Duration {
	if cfg.InitialDelay <= 0 {
		return 0
	}
	d := float64(cfg.InitialDelay) * math.Pow(cfg.BackoffMultiplier, float64(attempt-1))
	if max := float64(cfg.MaxDelay); cfg.MaxDelay > 0 && d > max {
		d = max
	}
	return time.Duration(d)
}

// sleepCtx waits for d or until the context is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
