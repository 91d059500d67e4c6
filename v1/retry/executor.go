package retry

import (
	"context"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Executor runs operations under a Policy. It is safe for concurrent use.
type Executor struct {
	policy    Policy
	retryable Retryable
	newTimer  func() backoff.Timer
	notify    func(attempt int, err error, next time.Duration)
}

// Option configures an Executor.
type Option func(*Executor)

// WithTimer replaces the timer used between attempts. The factory is called
// once per Do so concurrent calls never share a timer.
func WithTimer(factory func() backoff.Timer) Option {
	return func(e *Executor) { e.newTimer = factory }
}

// WithNotify registers a callback invoked before every sleep.
func WithNotify(fn func(attempt int, err error, next time.Duration)) Option {
	return func(e *Executor) { e.notify = fn }
}

// New builds an Executor. A nil retryable retries nothing.
func New(policy Policy, retryable Retryable, opts ...Option) *Executor {
	if retryable == nil {
		retryable = Never
	}
	e := &Executor{policy: policy, retryable: retryable}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Policy returns the configured policy.
func (e *Executor) Policy() Policy { return e.policy }

// Do runs op until it succeeds, fails with an error outside the allow-list,
// exhausts MaxRetries or ctx is done. The last operation error is returned.
func (e *Executor) Do(ctx context.Context, op func(ctx context.Context) error) error {
	if ctx == nil {
		ctx = context.Background()
	}

	attempt := 0
	operation := func() error {
		attempt++
		err := op(ctx)
		if err == nil {
			return nil
		}
		if !e.retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	var notify backoff.Notify
	if e.notify != nil {
		notify = func(err error, next time.Duration) { e.notify(attempt, err, next) }
	}

	var timer backoff.Timer
	if e.newTimer != nil {
		timer = e.newTimer()
	}

	return backoff.RetryNotifyWithTimer(operation, e.backOff(ctx), notify, timer)
}

// DoValue is Do for operations that produce a value.
func DoValue[T any](ctx context.Context, e *Executor, op func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := e.Do(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

func (e *Executor) backOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = e.policy.InitialDelay
	exp.Multiplier = e.policy.multiplier()
	exp.RandomizationFactor = 0
	exp.MaxInterval = time.Duration(math.MaxInt64)
	exp.MaxElapsedTime = 0
	exp.Reset()

	retries := e.policy.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(retries)), ctx)
}
