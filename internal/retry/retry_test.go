package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTimer fires immediately and records every requested wait.
type fakeTimer struct {
	waits []time.Duration
	c     chan time.Time
}

func (f *fakeTimer) Start(d time.Duration) {
	f.waits = append(f.waits, d)
	f.c = make(chan time.Time, 1)
	f.c <- time.Time{}
}

func (f *fakeTimer) Stop() {}

func (f *fakeTimer) C() <-chan time.Time { return f.c }

func TestDoDelaySchedule(t *testing.T) {
	timer := &fakeTimer{}
	p := FromFactor(5, 1.0)
	p.Timer = timer

	calls := 0
	err := Do(context.Background(), p, func(context.Context) error {
		calls++
		return errors.New("connection refused")
	})

	require.Error(t, err)
	assert.Equal(t, 5, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second}, timer.waits)
}

func TestDoSurfacesLastErrorVerbatim(t *testing.T) {
	p := FromFactor(3, 0.5)
	p.Timer = &fakeTimer{}

	calls := 0
	err := Do(context.Background(), p, func(context.Context) error {
		calls++
		if calls == 3 {
			return errors.New("503 service unavailable")
		}
		return errors.New("timeout")
	})

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 3, exhausted.Attempts)
	assert.EqualError(t, exhausted.Last, "503 service unavailable")
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Contains(t, err.Error(), "503 service unavailable")
}

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	timer := &fakeTimer{}
	p := FromFactor(5, 1.0)
	p.Timer = timer

	calls := 0
	err := Do(context.Background(), p, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("flaky")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, timer.waits)
}

func TestDoPermanentStopsImmediately(t *testing.T) {
	timer := &fakeTimer{}
	p := FromFactor(5, 1.0)
	p.Timer = timer
	decode := errors.New("invalid character '<'")

	calls := 0
	err := Do(context.Background(), p, func(context.Context) error {
		calls++
		return Permanent(decode)
	})

	assert.Equal(t, 1, calls)
	assert.Same(t, decode, err)
	assert.Empty(t, timer.waits)
	assert.NotErrorIs(t, err, ErrExhausted)
}

func TestDoSingleAttempt(t *testing.T) {
	for _, attempts := range []int{0, 1} {
		calls := 0
		err := Do(context.Background(), Policy{Attempts: attempts, Timer: &fakeTimer{}}, func(context.Context) error {
			calls++
			return errors.New("nope")
		})
		assert.Equal(t, 1, calls, "attempts=%d", attempts)
		assert.ErrorIs(t, err, ErrExhausted)
	}
}

func TestDoContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{Attempts: 10, Initial: time.Hour}

	calls := 0
	err := Do(ctx, p, func(context.Context) error {
		calls++
		cancel()
		return errors.New("slow upstream")
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
	assert.Contains(t, err.Error(), "slow upstream")
}

func TestDoNotify(t *testing.T) {
	p := FromFactor(3, 1.0)
	p.Timer = &fakeTimer{}

	var attempts []int
	var waits []time.Duration
	p.Notify = func(attempt int, _ error, wait time.Duration) {
		attempts = append(attempts, attempt)
		waits = append(waits, wait)
	}

	_ = Do(context.Background(), p, func(context.Context) error { return errors.New("x") })

	assert.Equal(t, []int{1, 2}, attempts)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, waits)
}

func TestDoHonoursAfterError(t *testing.T) {
	timer := &fakeTimer{}
	p := FromFactor(4, 1.0)
	p.Timer = timer

	quota := errors.New("429 Too Many Requests")
	calls := 0
	err := Do(context.Background(), p, func(context.Context) error {
		calls++
		switch calls {
		case 1:
			return After(quota, 30*time.Second)
		case 2:
			// Shorter than the schedule: the schedule wins.
			return After(quota, time.Millisecond)
		}
		return quota
	})

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Same(t, quota, exhausted.Last)
	assert.Equal(t, []time.Duration{30 * time.Second, 2 * time.Second, 4 * time.Second}, timer.waits)
}
