// Package retry holds the bounded delay schedules used by the download and
// logout loops, and a generic wrapper that drives a single-attempt operation
// through one of them.
package retry

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Kind names the operation a Policy paces.
type Kind string

const (
	KindNetwork   Kind = "network"
	KindLogout    Kind = "logout"
	KindRateLimit Kind = "rate_limit"
)

// MinuteLimitPause is how long the server asks us to back off after a
// per-minute rate limit response.
const MinuteLimitPause = 20 * time.Second

var (
	networkDelays = []time.Duration{
		10 * time.Second,
		20 * time.Second,
		30 * time.Second,
		60 * time.Second,
		90 * time.Second,
		120 * time.Second,
	}

	logoutDelays = []time.Duration{
		5 * time.Second,
		10 * time.Second,
		20 * time.Second,
		30 * time.Second,
		40 * time.Second,
		50 * time.Second,
	}
)

// Policy is a finite delay schedule. It is pure data plus a cursor; it never
// performs I/O. Policy implements backoff.BackOff so it can be handed to the
// backoff retry helpers directly.
type Policy struct {
	Kind   Kind
	Delays []time.Duration
	// MaxAttempts caps the total number of attempts, including the first one.
	// Zero means one attempt per delay plus the initial attempt.
	MaxAttempts int

	attempt int
}

var _ backoff.BackOff = (*Policy)(nil)

// NetworkPolicy paces download retries after connection or timeout errors:
// the first attempt, then one retry after each of 10, 20, 30, 60, 90 and 120 seconds.
func NetworkPolicy() *Policy {
	return &Policy{Kind: KindNetwork, Delays: networkDelays}
}

// LogoutPolicy paces logout retries: six attempts in total, waiting
// 5, 10, 20, 30 and 40 seconds between them.
func LogoutPolicy() *Policy {
	return &Policy{Kind: KindLogout, Delays: logoutDelays, MaxAttempts: len(logoutDelays)}
}

// RateLimitPolicy waits MinuteLimitPause before every retry and never runs out.
func RateLimitPolicy() *Policy {
	return &Policy{Kind: KindRateLimit, Delays: []time.Duration{MinuteLimitPause}, MaxAttempts: -1}
}

// Next reports the delay before the next attempt, or false when the schedule
// is exhausted.
func (p *Policy) Next() (time.Duration, bool) {
	if len(p.Delays) == 0 {
		return 0, false
	}

	if p.MaxAttempts < 0 {
		p.attempt++

		return p.Delays[len(p.Delays)-1], true
	}

	if p.attempt+1 >= p.maxAttempts() || p.attempt >= len(p.Delays) {
		return 0, false
	}

	d := p.Delays[p.attempt]
	p.attempt++

	return d, true
}

// Attempt returns how many retries have been handed out since the last Reset.
func (p *Policy) Attempt() int {
	return p.attempt
}

// Remaining returns the delays not yet handed out.
func (p *Policy) Remaining() []time.Duration {
	if p.MaxAttempts < 0 {
		return p.Delays
	}

	n := p.maxAttempts() - 1
	if n > len(p.Delays) {
		n = len(p.Delays)
	}

	if p.attempt >= n {
		return nil
	}

	return p.Delays[p.attempt:n]
}

// NextBackOff implements backoff.BackOff.
func (p *Policy) NextBackOff() time.Duration {
	d, ok := p.Next()
	if !ok {
		return backoff.Stop
	}

	return d
}

// Reset implements backoff.BackOff.
func (p *Policy) Reset() {
	p.attempt = 0
}

func (p *Policy) maxAttempts() int {
	if p.MaxAttempts > 0 {
		return p.MaxAttempts
	}

	return len(p.Delays) + 1
}
