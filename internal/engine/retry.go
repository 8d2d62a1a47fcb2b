package engine

import (
	"context"
	"errors"
	"time"

	"certtrail/pkg/platform/sentinel"
)

// retryable reports whether a store read failed for an infrastructure reason.
// Absence and uniqueness answers are never retried.
func retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, sentinel.ErrNotFound) || errors.Is(err, sentinel.ErrConflict) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

// withReadRetry runs fn up to attempts times with doubling backoff. Only read
// paths use it; writes are never retried.
func withReadRetry[T any](ctx context.Context, attempts int, backoff time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if attempts < 1 {
		attempts = 1
	}
	var (
		result T
		err    error
	)
	delay := backoff
	for i := 0; i < attempts; i++ {
		result, err = fn(ctx)
		if !retryable(err) || i == attempts-1 {
			return result, err
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return result, err
		case <-timer.C:
		}
		delay *= 2
	}
	return result, err
}
