// Package syncer implements the best-effort backend synchronization layer:
// an HTTP client wrapping every remote call in a uniform retry policy, and
// ordered per-entity queues that carry sync work off the mutation path.
package syncer

import (
	"context"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"github.com/JamesKayten/SimpleCP-AIM-test-sub000/internal/errors"
)

// Retry policy defaults. Delays grow as initial*multiplier^(attempt-1),
// capped at max, then scaled by a uniform jitter in [0.8, 1.2].
const (
	DefaultMaxAttempts  = 3
	DefaultInitialDelay = 1 * time.Second
	DefaultMultiplier   = 2.0
	DefaultMaxDelay     = 8 * time.Second

	jitterMin = 0.8
	jitterMax = 1.2
)

// RetryPolicy controls how a failed backend call is retried.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration

	// Jitter returns the multiplicative jitter factor for one delay.
	// Nil means uniform [0.8, 1.2].
	Jitter func() float64

	// Sleep waits out a backoff delay. Nil means a context-aware timer.
	// Tests inject a recorder here.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy returns the standard policy: 3 attempts, 1s initial
// delay doubling per attempt, capped at 8s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  DefaultMaxAttempts,
		InitialDelay: DefaultInitialDelay,
		Multiplier:   DefaultMultiplier,
		MaxDelay:     DefaultMaxDelay,
	}
}

// Delay computes the jittered backoff delay before retrying after the given
// 1-based attempt number.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	base := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt-1))
	if capped := float64(p.MaxDelay); base > capped {
		base = capped
	}

	jitter := p.Jitter
	if jitter == nil {
		jitter = uniformJitter
	}
	return time.Duration(base * jitter())
}

func uniformJitter() float64 {
	return jitterMin + rand.Float64()*(jitterMax-jitterMin)
}

func (p RetryPolicy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
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

// ExecuteWithRetry runs op up to policy.MaxAttempts times. A non-retryable
// error propagates immediately; a retryable one is retried after a jittered
// exponential backoff. The backoff wait is context-aware and never blocks
// other work: cancelling ctx aborts the wait and returns the last error.
func ExecuteWithRetry(ctx context.Context, policy RetryPolicy, name string, op func(ctx context.Context) error) error {
	maxAttempts := policy.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if !errors.IsRetryable(lastErr) {
			return lastErr
		}
		if attempt == maxAttempts {
			break
		}

		delay := policy.Delay(attempt)
		slog.Debug("backend call failed, retrying",
			"op", name,
			"attempt", attempt,
			"max_attempts", maxAttempts,
			"delay", delay,
			"err", lastErr,
		)
		if err := policy.sleep(ctx, delay); err != nil {
			return lastErr
		}
	}
	return lastErr
}
