// Package clock holds the context-aware waits used by polling loops and
// oracle lookups.
package clock

import (
	"context"
	"errors"
	"time"
)

// SleepWithContext pauses for d or until ctx is done. A non-positive d only
// reports whether ctx is already done.
func SleepWithContext(ctx context.Context, d time.Duration) error {
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

// Backoff describes a bounded exponential retry schedule.
type Backoff struct {
	Attempts int
	Initial  time.Duration
	Max      time.Duration
}

// ErrPermanent wraps errors that must not be retried.
var ErrPermanent = errors.New("permanent failure")

// Retry calls fn until it succeeds, returns an error wrapping ErrPermanent,
// the attempts are exhausted or ctx is done. The last error is returned.
func Retry(ctx context.Context, b Backoff, fn func(context.Context) error) error {
	attempts := b.Attempts
	if attempts < 1 {
		attempts = 1
	}
	delay := b.Initial

	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(ctx); err == nil || errors.Is(err, ErrPermanent) {
			return err
		}
		if i == attempts-1 {
			break
		}
		if sleepErr := SleepWithContext(ctx, delay); sleepErr != nil {
			return errors.Join(err, sleepErr)
		}
		delay *= 2
		if b.Max > 0 && delay > b.Max {
			delay = b.Max
		}
	}
	return err
}
