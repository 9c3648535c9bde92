// Package retryx isolates the outer retry loop used around whole sync/upload
// attempts. The attempt function stays pure with respect to progress
// reporting: side effects like progress resets belong in the onAttempt hook,
// which runs at the start of every attempt (including the first).
package retryx

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"
)

// AttemptFunc is one full attempt producing a result.
type AttemptFunc[T any] func(ctx context.Context) (T, error)

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as non-retryable: Do returns it immediately without
// consuming further attempts. errors.Is/As still see the original error.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do runs fn up to attempts times with a fixed delay between attempts.
// The first success short-circuits the remaining attempts. Errors wrapped
// with Permanent stop the loop at once; every other error is retried until
// the budget is exhausted, in which case the last error is returned.
// attempts < 1 is treated as a single attempt.
func Do[T any](ctx context.Context, attempts int, delay time.Duration, onAttempt func(attempt int), fn AttemptFunc[T]) (T, error) {
	if attempts < 1 {
		attempts = 1
	}

	var out T
	n := 0

	b := retry.WithMaxRetries(uint64(attempts-1), retry.NewConstant(nonZero(delay)))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		n++
		if onAttempt != nil {
			onAttempt(n)
		}

		v, err := fn(ctx)
		if err != nil {
			var perm *permanentError
			if errors.As(err, &perm) {
				return perm.err
			}
			return retry.RetryableError(err)
		}

		out = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// retry.NewConstant panics on non-positive intervals; tests use zero delays.
func nonZero(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Nanosecond
	}
	return d
}
