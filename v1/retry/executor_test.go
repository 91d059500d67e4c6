package retry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("transient")

// recordingTimer fires immediately and remembers every requested delay.
type recordingTimer struct {
	mu     sync.Mutex
	delays []time.Duration
	ch     chan time.Time
}

func newRecordingTimer() *recordingTimer {
	return &recordingTimer{ch: make(chan time.Time, 1)}
}

func (t *recordingTimer) Start(d time.Duration) {
	t.mu.Lock()
	t.delays = append(t.delays, d)
	t.mu.Unlock()
	t.ch <- time.Now()
}

func (t *recordingTimer) Stop() {}

func (t *recordingTimer) C() <-chan time.Time { return t.ch }

func (t *recordingTimer) total() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	var sum time.Duration
	for _, d := range t.delays {
		sum += d
	}
	return sum
}

func TestExecutor_FailsTwiceThenSucceeds(t *testing.T) {
	timer := newRecordingTimer()
	exec := New(Policy{MaxRetries: 5, InitialDelay: time.Second, Multiplier: 2},
		Errors(errTransient),
		WithTimer(func() backoff.Timer { return timer }))

	calls := 0
	err := exec.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errTransient
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, timer.delays)
	assert.Equal(t, 3*time.Second, timer.total())
}

func TestExecutor_NonRetryableReturnsImmediately(t *testing.T) {
	timer := newRecordingTimer()
	exec := New(Policy{MaxRetries: 5, InitialDelay: time.Second, Multiplier: 2},
		Errors(errTransient),
		WithTimer(func() backoff.Timer { return timer }))

	constraint := errors.New("duplicate key")
	calls := 0
	err := exec.Do(context.Background(), func(context.Context) error {
		calls++
		return constraint
	})

	assert.ErrorIs(t, err, constraint)
	assert.Equal(t, 1, calls)
	assert.Empty(t, timer.delays)
}

func TestExecutor_ExhaustsRetries(t *testing.T) {
	timer := newRecordingTimer()
	exec := New(Policy{MaxRetries: 3, InitialDelay: 10 * time.Millisecond, Multiplier: 3},
		Errors(errTransient),
		WithTimer(func() backoff.Timer { return timer }))

	calls := 0
	err := exec.Do(context.Background(), func(context.Context) error {
		calls++
		return errTransient
	})

	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 4, calls)
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 30 * time.Millisecond, 90 * time.Millisecond}, timer.delays)
}

func TestExecutor_NotifyReportsAttempt(t *testing.T) {
	var attempts []int
	exec := New(Policy{MaxRetries: 2, InitialDelay: time.Millisecond, Multiplier: 2},
		Errors(errTransient),
		WithTimer(func() backoff.Timer { return newRecordingTimer() }),
		WithNotify(func(attempt int, _ error, _ time.Duration) { attempts = append(attempts, attempt) }))

	_ = exec.Do(context.Background(), func(context.Context) error { return errTransient })

	assert.Equal(t, []int{1, 2}, attempts)
}

func TestExecutor_CanceledContextStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	exec := New(Policy{MaxRetries: 5, InitialDelay: time.Hour, Multiplier: 2}, Errors(errTransient))
	calls := 0
	err := exec.Do(ctx, func(context.Context) error {
		calls++
		return errTransient
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDoValue(t *testing.T) {
	exec := New(Policy{MaxRetries: 1, InitialDelay: time.Millisecond, Multiplier: 1},
		Errors(errTransient),
		WithTimer(func() backoff.Timer { return newRecordingTimer() }))

	first := true
	v, err := DoValue(context.Background(), exec, func(context.Context) (int, error) {
		if first {
			first = false
			return 0, errTransient
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestPolicy_Delay(t *testing.T) {
	p := Policy{InitialDelay: time.Second, Multiplier: 2}
	assert.Equal(t, time.Duration(0), p.Delay(0))
	assert.Equal(t, time.Second, p.Delay(1))
	assert.Equal(t, 2*time.Second, p.Delay(2))
	assert.Equal(t, 8*time.Second, p.Delay(4))

	flat := Policy{InitialDelay: time.Second}
	assert.Equal(t, time.Second, flat.Delay(3))
}
