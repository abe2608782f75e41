// Package retry is the one backoff law shared by every remote call in zipsync.
//
// The delay before attempt k+1 is Initial * 2^(k-1): with Initial = 1s the
// waits are 1s, 2s, 4s, ... There is no jitter and no elapsed-time cap; the
// attempt count alone bounds the work.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrExhausted is matched by every *ExhaustedError.
var ErrExhausted = errors.New("retries exhausted")

// maxInterval only guards against overflow for large attempt counts.
const maxInterval = time.Hour

// ExhaustedError is returned when every attempt failed. Last is the error of
// the final attempt, kept verbatim.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempt(s): %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() []error {
	return []error{ErrExhausted, e.Last}
}

// Policy describes how often and how patiently an operation is retried.
type Policy struct {
	// Attempts is the total number of tries, first one included. Values
	// below 1 are treated as 1.
	Attempts int
	// Initial is the wait before the second attempt.
	Initial time.Duration
	// Timer overrides the wall-clock timer. Tests inject one to observe the
	// delay sequence without sleeping.
	Timer backoff.Timer
	// Notify, if set, is called after each failed attempt that will be
	// retried, with the 1-based attempt number and the upcoming wait.
	Notify func(attempt int, err error, wait time.Duration)
}

// FromFactor builds a Policy from a backoff factor expressed in seconds, the
// form used in configuration files.
func FromFactor(attempts int, factor float64) Policy {
	return Policy{
		Attempts: attempts,
		Initial:  time.Duration(factor * float64(time.Second)),
	}
}

// Permanent marks err as not worth retrying. Do returns err itself.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// AfterError is a retryable failure whose source asked for a minimum wait
// before the next attempt, e.g. an HTTP Retry-After header.
type AfterError struct {
	Wait time.Duration
	Err  error
}

func (e *AfterError) Error() string { return e.Err.Error() }

func (e *AfterError) Unwrap() error { return e.Err }

// After marks err as retryable no sooner than wait. The next delay is the
// larger of wait and the regular schedule; the schedule itself is unchanged.
func After(err error, wait time.Duration) error {
	return &AfterError{Wait: wait, Err: err}
}

// hintedBackOff raises the next delay to a pending minimum set by an
// AfterError.
type hintedBackOff struct {
	backoff.BackOff
	floor *time.Duration
}

func (b *hintedBackOff) NextBackOff() time.Duration {
	next := b.BackOff.NextBackOff()
	if next == backoff.Stop {
		return next
	}
	if *b.floor > next {
		next = min(*b.floor, maxInterval)
	}
	*b.floor = 0
	return next
}

func (p Policy) attempts() int {
	if p.Attempts < 1 {
		return 1
	}
	return p.Attempts
}

func (p Policy) backOff(ctx context.Context, floor *time.Duration) backoff.BackOff {
	exp := &backoff.ExponentialBackOff{
		InitialInterval:     p.Initial,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         maxInterval,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	exp.Reset()
	hinted := &hintedBackOff{BackOff: backoff.WithMaxRetries(exp, uint64(p.attempts()-1)), floor: floor}
	return backoff.WithContext(hinted, ctx)
}

// Do runs op until it succeeds, returns a permanent error, the context ends,
// or the attempts run out. On exhaustion the result is an *ExhaustedError.
// An *AfterError from op delays the next attempt by at least its Wait and is
// unwrapped before being reported.
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	var (
		tries     int
		last      error
		permanent bool
		floor     time.Duration
	)

	operation := func() error {
		tries++
		err := op(ctx)
		if err == nil {
			return nil
		}
		var after *AfterError
		if errors.As(err, &after) {
			floor = after.Wait
			err = after.Err
		}
		last = err
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			permanent = true
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		if p.Notify != nil {
			p.Notify(tries, err, wait)
		}
	}

	err := backoff.RetryNotifyWithTimer(operation, p.backOff(ctx, &floor), notify, p.Timer)
	switch {
	case err == nil:
		return nil
	case permanent:
		return err
	case ctx.Err() != nil:
		if last != nil {
			return fmt.Errorf("retry interrupted after %d attempt(s), last error %v: %w", tries, last, ctx.Err())
		}
		return ctx.Err()
	default:
		return &ExhaustedError{Attempts: tries, Last: last}
	}
}
