package resilience

import (
	"context"
	"time"
)

// RetryOptions configures Retry. The zero value is not usable; start from
// DefaultRetryOptions and override as needed.
type RetryOptions struct {
	// MaxAttempts is the number of retries after the initial attempt.
	// The operation runs at most MaxAttempts+1 times.
	MaxAttempts int

	// InitialDelay is the sleep before the first retry.
	InitialDelay time.Duration

	// MaxDelay caps the backoff growth.
	MaxDelay time.Duration

	// BackoffMultiplier scales the delay after each retry.
	BackoffMultiplier float64

	// IsRetryable decides whether a failure is worth retrying.
	// Nil means DefaultRetryable.
	IsRetryable func(error) bool
}

// DefaultRetryOptions mirror the provider-call defaults used across the
// pipeline: three retries starting at one second, doubling, capped at 30s.
func DefaultRetryOptions() RetryOptions {
	return RetryOptions{
		MaxAttempts:       3,
		InitialDelay:      time.Second,
		MaxDelay:          30 * time.Second,
		BackoffMultiplier: 2,
		IsRetryable:       DefaultRetryable,
	}
}

// Retry runs op, retrying with bounded exponential backoff on retryable
// failures. The last error is returned unchanged once attempts are
// exhausted or a non-retryable error occurs. The sleep between attempts
// respects ctx; cancellation returns ctx.Err().
func Retry(ctx context.Context, opts RetryOptions, op func() error) error {
	isRetryable := opts.IsRetryable
	if isRetryable == nil {
		isRetryable = DefaultRetryable
	}

	var lastErr error
	delay := opts.InitialDelay

	for attempt := 0; attempt <= opts.MaxAttempts; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
			delay = time.Duration(float64(delay) * opts.BackoffMultiplier)
			if delay > opts.MaxDelay {
				delay = opts.MaxDelay
			}
		}

		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isRetryable(lastErr) {
			return lastErr
		}
	}

	return lastErr
}

// RetryValue is Retry for operations that produce a value.
func RetryValue[T any](ctx context.Context, opts RetryOptions, op func() (T, error)) (T, error) {
	var result T
	err := Retry(ctx, opts, func() error {
		var opErr error
		result, opErr = op()
		return opErr
	})
	return result, err
}
