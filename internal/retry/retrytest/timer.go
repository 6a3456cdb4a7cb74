// Package retrytest provides a retry.Timer that records waits instead of sleeping.
package retrytest

import (
	"sync"
	"time"
)

// RecordingTimer fires immediately and remembers every duration it was started with.
type RecordingTimer struct {
	mu    sync.Mutex
	waits []time.Duration
	c     chan time.Time
}

func (t *RecordingTimer) Start(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.waits = append(t.waits, d)
	t.c = make(chan time.Time, 1)
	t.c <- time.Now()
}

func (t *RecordingTimer) Stop() {}

func (t *RecordingTimer) C() <-chan time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.c
}

// Waits returns a copy of the recorded durations, in order.
func (t *RecordingTimer) Waits() []time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	return append([]time.Duration(nil), t.waits...)
}
