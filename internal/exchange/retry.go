package exchange

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Mastero4ek/bull-diary-sub002/internal/domain/model"
)

// transientError marks a failure worth retrying: rate limiting, 5xx
// responses, transport-level faults.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// Transient wraps err so RetryPolicy.Do will retry it.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether err was marked retryable.
func IsTransient(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}

// RetryPolicy is an explicit bounded-retry policy passed into adapter
// calls. MaxAttempts counts the first try; Backoff maps the attempt
// number (1-based) to the wait before the next try.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     func(attempt int) time.Duration
}

// DefaultRetryPolicy retries up to 5 attempts with exponential backoff
// starting at base and capped at 8*base.
func DefaultRetryPolicy(base time.Duration) RetryPolicy {
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	return RetryPolicy{
		MaxAttempts: 5,
		Backoff: func(attempt int) time.Duration {
			d := base << (attempt - 1)
			if max := 8 * base; d > max {
				d = max
			}
			return d
		},
	}
}

// Do runs op, retrying transient failures until the budget is exhausted.
// A non-transient error aborts immediately. When the budget runs out the
// last failure is escalated to ErrExchangeUnavailable.
func (p RetryPolicy) Do(ctx context.Context, op func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			wait := time.Duration(0)
			if p.Backoff != nil {
				wait = p.Backoff(attempt - 1)
			}
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		err := op()
		if err == nil {
			return nil
		}
		if !IsTransient(err) {
			return err
		}
		lastErr = err
	}

	return fmt.Errorf("%w: retry budget exhausted after %d attempts: %v",
		model.ErrExchangeUnavailable, attempts, lastErr)
}
