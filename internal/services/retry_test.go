package services

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, QuotaDelay: time.Millisecond}
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	failures := 2
	attempts, err := Retry(context.Background(), fastPolicy(), func(ctx context.Context) error {
		if failures > 0 {
			failures--
			return Wrap(ErrTransient, "fetch", "download", "flaky", nil)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	calls := 0
	attempts, err := Retry(context.Background(), fastPolicy(), func(ctx context.Context) error {
		calls++
		return Wrap(ErrPermanent, "upload", "publish", "rejected", nil)
	})
	if err == nil {
		t.Fatal("expected an error")
	}
	if calls != 1 || attempts != 1 {
		t.Fatalf("permanent errors must abort immediately: calls=%d attempts=%d", calls, attempts)
	}
}

func TestRetryExhaustsAttempts(t *testing.T) {
	calls := 0
	attempts, err := Retry(context.Background(), fastPolicy(), func(ctx context.Context) error {
		calls++
		return Wrap(ErrTransient, "fetch", "download", "still down", nil)
	})
	if !errors.Is(err, ErrTransient) {
		t.Fatalf("expected the last transient error, got %v", err)
	}
	if calls != 3 || attempts != 3 {
		t.Fatalf("expected 3 attempts, got calls=%d attempts=%d", calls, attempts)
	}
}

func TestRetryHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts, err := Retry(ctx, fastPolicy(), func(ctx context.Context) error {
		t.Fatal("op must not run after cancellation")
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if attempts != 0 {
		t.Fatalf("expected 0 attempts, got %d", attempts)
	}
}

func TestRetryCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Minute, QuotaDelay: time.Minute}

	done := make(chan struct{})
	var attempts int
	var err error
	go func() {
		defer close(done)
		attempts, err = Retry(ctx, policy, func(ctx context.Context) error {
			return Wrap(ErrTransient, "fetch", "download", "flaky", nil)
		})
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("retry did not observe cancellation during backoff")
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt before cancellation, got %d", attempts)
	}
}
