package syncer

import (
	"context"
	"testing"
	"time"

	"github.com/JamesKayten/SimpleCP-AIM-test-sub000/internal/errors"
)

// noSleep replaces the backoff wait so retry tests run instantly.
func noSleep(ctx context.Context, d time.Duration) error { return nil }

func TestExecuteWithRetry_ExhaustsAttempts(t *testing.T) {
	policy := DefaultRetryPolicy()
	policy.Sleep = noSleep

	calls := 0
	err := ExecuteWithRetry(context.Background(), policy, "test", func(ctx context.Context) error {
		calls++
		return errors.NewTransport(context.DeadlineExceeded)
	})

	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if calls != DefaultMaxAttempts {
		t.Errorf("calls = %d, want %d", calls, DefaultMaxAttempts)
	}
	if !errors.Is(err, errors.ErrTransport) {
		t.Errorf("err = %v, want transport error", err)
	}
}

func TestExecuteWithRetry_NonRetryableFailsFast(t *testing.T) {
	policy := DefaultRetryPolicy()
	policy.Sleep = noSleep

	calls := 0
	err := ExecuteWithRetry(context.Background(), policy, "test", func(ctx context.Context) error {
		calls++
		return errors.NewProtocol(400, "bad request")
	})

	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (non-retryable must not retry)", calls)
	}
}

func TestExecuteWithRetry_SucceedsAfterTransientFailure(t *testing.T) {
	policy := DefaultRetryPolicy()
	policy.Sleep = noSleep

	calls := 0
	err := ExecuteWithRetry(context.Background(), policy, "test", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.NewProtocol(503, "")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestExecuteWithRetry_SleepsBetweenAttempts(t *testing.T) {
	policy := DefaultRetryPolicy()
	var delays []time.Duration
	policy.Sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}

	ExecuteWithRetry(context.Background(), policy, "test", func(ctx context.Context) error {
		return errors.NewTransport(context.DeadlineExceeded)
	})

	// 3 attempts means 2 waits, with growing jittered delays.
	if len(delays) != DefaultMaxAttempts-1 {
		t.Fatalf("waits = %d, want %d", len(delays), DefaultMaxAttempts-1)
	}
	bounds := []struct{ lo, hi time.Duration }{
		{800 * time.Millisecond, 1200 * time.Millisecond},
		{1600 * time.Millisecond, 2400 * time.Millisecond},
	}
	for i, d := range delays {
		if d < bounds[i].lo || d > bounds[i].hi {
			t.Errorf("delay[%d] = %v, want within [%v, %v]", i, d, bounds[i].lo, bounds[i].hi)
		}
	}
}

func TestRetryPolicy_DelayBounds(t *testing.T) {
	policy := DefaultRetryPolicy()

	// Attempts 1..4 back off within [0.8,1.2] x {1,2,4,8} seconds; the cap
	// holds from attempt 4 onward.
	expected := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 8 * time.Second}
	for attempt := 1; attempt <= 5; attempt++ {
		base := expected[attempt-1]
		lo := time.Duration(float64(base) * 0.8)
		hi := time.Duration(float64(base) * 1.2)
		for i := 0; i < 50; i++ {
			d := policy.Delay(attempt)
			if d < lo || d > hi {
				t.Fatalf("Delay(%d) = %v, want within [%v, %v]", attempt, d, lo, hi)
			}
		}
	}
}

func TestExecuteWithRetry_CancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := DefaultRetryPolicy()
	policy.Sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}

	calls := 0
	err := ExecuteWithRetry(ctx, policy, "test", func(ctx context.Context) error {
		calls++
		return errors.NewTransport(context.DeadlineExceeded)
	})

	if calls != 1 {
		t.Errorf("calls = %d, want 1 (cancel aborts further attempts)", calls)
	}
	if !errors.Is(err, errors.ErrTransport) {
		t.Errorf("err = %v, want the last attempt's error", err)
	}
}
