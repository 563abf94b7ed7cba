// Package retry runs operations again after a fixed delay until they
// succeed, fail permanently, or run out of attempts.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultDelay is the wait between attempts when none is configured.
const DefaultDelay = 5 * time.Second

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Policy describes how an operation is retried.
type Policy struct {
	// MaxAttempts caps the number of attempts. Zero means retry forever.
	MaxAttempts int
	// Delay is the wait between attempts.
	Delay time.Duration
	// Sleep waits between attempts. Nil uses a timer that honors the
	// context.
	Sleep SleepFunc
	// OnRetry is called after a failed attempt that will be retried.
	OnRetry func(attempt int, err error)
}

// Forever retries without limit, waiting delay between attempts.
func Forever(delay time.Duration) Policy {
	return Policy{Delay: delay}
}

// ErrExhausted is returned when MaxAttempts is reached.
var ErrExhausted = errors.New("retry attempts exhausted")

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. Do returns the wrapped error
// as-is.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do calls op until it returns nil. The attempt number starts at 1.
func (p Policy) Do(ctx context.Context, op func(attempt int) error) error {
	sleep := p.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := op(attempt)
		if err == nil {
			return nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}

		if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
			return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempt, err)
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}

		if err := sleep(ctx, p.Delay); err != nil {
			return err
		}
	}
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
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

// NoSleep returns immediately. Tests use it to run retry loops without
// waiting.
func NoSleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}
