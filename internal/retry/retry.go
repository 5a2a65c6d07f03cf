// Package retry runs an operation under a bounded attempt policy.
package retry

import (
	"context"
	"time"

	"github.com/classroll/rollcall/internal/errors"
)

// DefaultMaxAttempts is the number of authentication attempts a teacher gets.
const DefaultMaxAttempts = 3

// Policy bounds how often an operation is attempted.
// The zero value makes a single attempt.
type Policy struct {
	MaxAttempts int
	Backoff     time.Duration // linear: Backoff * attempt between attempts

	// Retryable reports whether err consumes an attempt and allows another.
	// Nil treats every error as retryable.
	Retryable func(err error) bool

	// OnRetry is called before each further attempt.
	OnRetry func(attempt int, err error)
}

// Default returns the authentication policy: three attempts, no backoff.
func Default() Policy {
	return Policy{MaxAttempts: DefaultMaxAttempts}
}

// Do calls fn until it succeeds, returns a non-retryable error, the
// context ends, or MaxAttempts is reached. attempt starts at 1. The
// error of the last attempt is returned with the attempt count attached.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) error {
	maxAttempts := max(p.MaxAttempts, 1)

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return errors.New(err).
				Component("retry").
				Category(errors.CategoryCancellation).
				Context("attempt", attempt).
				Build()
		}

		err := fn(ctx, attempt)
		if err == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return err
		}
		lastErr = err

		if attempt == maxAttempts {
			break
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}
		if err := sleep(ctx, p.Backoff*time.Duration(attempt)); err != nil {
			return errors.New(err).
				Component("retry").
				Category(errors.CategoryCancellation).
				Context("attempt", attempt).
				Build()
		}
	}

	return errors.New(lastErr).
		Component("retry").
		Context("attempts", maxAttempts).
		Build()
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
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
