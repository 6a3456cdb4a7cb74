package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/italolelis/mosdac_downloader/internal/retry/retrytest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(p *Policy) []time.Duration {
	var out []time.Duration

	for {
		d, ok := p.Next()
		if !ok {
			return out
		}

		out = append(out, d)
	}
}

func TestNetworkPolicy_Schedule(t *testing.T) {
	p := NetworkPolicy()

	assert.Equal(t, []time.Duration{
		10 * time.Second, 20 * time.Second, 30 * time.Second,
		60 * time.Second, 90 * time.Second, 120 * time.Second,
	}, p.Remaining())
	assert.Equal(t, p.Remaining(), drain(p))
	assert.Empty(t, p.Remaining())
	assert.Equal(t, backoff.Stop, p.NextBackOff())
}

func TestLogoutPolicy_SixAttempts(t *testing.T) {
	p := LogoutPolicy()

	// five waits separate six attempts
	assert.Equal(t, []time.Duration{
		5 * time.Second, 10 * time.Second, 20 * time.Second, 30 * time.Second, 40 * time.Second,
	}, drain(p))
}

func TestPolicy_Reset(t *testing.T) {
	p := NetworkPolicy()
	drain(p)
	require.Equal(t, 6, p.Attempt())

	p.Reset()

	assert.Equal(t, 0, p.Attempt())
	d, ok := p.Next()
	assert.True(t, ok)
	assert.Equal(t, 10*time.Second, d)
}

func TestRateLimitPolicy_NeverExhausts(t *testing.T) {
	p := RateLimitPolicy()

	for i := 0; i < 50; i++ {
		d, ok := p.Next()
		require.True(t, ok)
		require.Equal(t, MinuteLimitPause, d)
	}
}

func TestEmptyPolicy(t *testing.T) {
	p := &Policy{Kind: KindNetwork}

	_, ok := p.Next()
	assert.False(t, ok)
}

func TestDo_ExhaustsScheduleAndReturnsLastError(t *testing.T) {
	timer := &retrytest.RecordingTimer{}
	calls := 0
	notified := 0

	err := Do(context.Background(), NetworkPolicy(), timer,
		func(error, time.Duration) { notified++ },
		func(context.Context) error {
			calls++

			return errors.New("connection refused")
		})

	require.Error(t, err)
	assert.Equal(t, "connection refused", err.Error())
	assert.Equal(t, 7, calls)
	assert.Equal(t, 6, notified)
	assert.Equal(t, []time.Duration{
		10 * time.Second, 20 * time.Second, 30 * time.Second,
		60 * time.Second, 90 * time.Second, 120 * time.Second,
	}, timer.Waits())
}

func TestDo_PermanentStopsImmediately(t *testing.T) {
	timer := &retrytest.RecordingTimer{}
	cause := errors.New("validation")
	calls := 0

	err := Do(context.Background(), NetworkPolicy(), timer, nil, func(context.Context) error {
		calls++

		return Permanent(cause)
	})

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 1, calls)
	assert.Empty(t, timer.Waits())
}

func TestDo_SucceedsAfterRetries(t *testing.T) {
	timer := &retrytest.RecordingTimer{}
	calls := 0

	err := Do(context.Background(), LogoutPolicy(), timer, nil, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("timeout")
		}

		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{5 * time.Second, 10 * time.Second}, timer.Waits())
}

func TestDo_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Do(ctx, NetworkPolicy(), &retrytest.RecordingTimer{}, nil, func(context.Context) error {
		return errors.New("boom")
	})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestSleep(t *testing.T) {
	timer := &retrytest.RecordingTimer{}

	require.NoError(t, Sleep(context.Background(), timer, MinuteLimitPause))
	assert.Equal(t, []time.Duration{MinuteLimitPause}, timer.Waits())
}
