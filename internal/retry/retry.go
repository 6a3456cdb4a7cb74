package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Timer is the clock used between attempts. Tests substitute one that
// records the requested durations and fires immediately.
type Timer = backoff.Timer

// Notify is called before every wait with the error that triggered it.
type Notify func(err error, wait time.Duration)

// Permanent marks err as not worth retrying; Do returns it unwrapped.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do runs op until it succeeds, returns a Permanent error, the policy is
// exhausted or ctx is done. On exhaustion the last error is returned.
func Do(ctx context.Context, p *Policy, timer Timer, notify Notify, op func(ctx context.Context) error) error {
	return backoff.RetryNotifyWithTimer(
		func() error { return op(ctx) },
		backoff.WithContext(p, ctx),
		backoff.Notify(notify),
		timer,
	)
}

// Sleep waits for d on timer, returning early with ctx.Err() if ctx is done.
func Sleep(ctx context.Context, timer Timer, d time.Duration) error {
	if timer == nil {
		timer = &realTimer{}
	}

	timer.Start(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C():
		return nil
	}
}

type realTimer struct {
	timer *time.Timer
}

func (t *realTimer) C() <-chan time.Time {
	return t.timer.C
}

func (t *realTimer) Start(d time.Duration) {
	if t.timer == nil {
		t.timer = time.NewTimer(d)
	} else {
		t.timer.Reset(d)
	}
}

func (t *realTimer) Stop() {
	if t.timer != nil {
		t.timer.Stop()
	}
}
