package services

import (
	"context"
	"time"
)

// RetryPolicy bounds repeated collaborator calls. Transient failures wait
// BaseDelay doubling per attempt; quota failures wait the flat QuotaDelay.
// Permanent and parse failures abort immediately.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	QuotaDelay  time.Duration
}

// DefaultRetryPolicy mirrors the ASR client defaults: three attempts with a
// two second base delay.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		QuotaDelay:  30 * time.Second,
	}
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 2 * time.Second
	}
	if p.QuotaDelay <= 0 {
		p.QuotaDelay = p.BaseDelay
	}
	return p
}

// Retry runs op until it succeeds, exhausts the attempt budget, hits a
// non-retryable error, or the context is cancelled. It returns the number of
// attempts made alongside the final error.
func Retry(ctx context.Context, policy RetryPolicy, op func(ctx context.Context) error) (int, error) {
	policy = policy.normalized()

	var lastErr error
	delay := policy.BaseDelay
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return attempt - 1, err
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return attempt, nil
		}
		if !Retryable(lastErr) || attempt == policy.MaxAttempts {
			return attempt, lastErr
		}

		wait := delay
		if Classify(lastErr) == ClassQuota {
			wait = policy.QuotaDelay
		} else {
			delay *= 2
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempt, ctx.Err()
		case <-timer.C:
		}
	}
	return policy.MaxAttempts, lastErr
}
