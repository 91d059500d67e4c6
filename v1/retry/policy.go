package retry

import (
	"errors"
	"time"
)

// Policy describes a bounded exponential backoff.
//
// Attempt n (1-based) that fails with a retryable error is followed by a sleep of
// InitialDelay * Multiplier^(n-1). At most MaxRetries retries are made, so an
// operation runs at most MaxRetries+1 times.
type Policy struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int `yaml:"max_retries"`

	// InitialDelay is the sleep before the first retry.
	InitialDelay time.Duration `yaml:"initial_delay"`

	// Multiplier scales the delay after every retry. Values below 1 are treated as 1.
	Multiplier float64 `yaml:"multiplier"`

	// RetryTimeouts opts timeout errors into the allow-list.
	RetryTimeouts bool `yaml:"retry_timeouts"`
}

// DefaultPolicy is five retries starting at ten seconds and doubling.
func DefaultPolicy() Policy {
	return Policy{MaxRetries: 5, InitialDelay: 10 * time.Second, Multiplier: 2}
}

// IsZero reports whether no field is set.
func (p Policy) IsZero() bool {
	return p == Policy{}
}

// Delay returns the sleep that follows the given failed attempt (1-based).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	mult := p.multiplier()
	d := float64(p.InitialDelay)
	for i := 1; i < attempt; i++ {
		d *= mult
	}
	return time.Duration(d)
}

func (p Policy) multiplier() float64 {
	if p.Multiplier < 1 {
		return 1
	}
	return p.Multiplier
}

// Retryable decides whether an error is on the allow-list.
type Retryable func(err error) bool

// Errors allow-lists errors matching any target via errors.Is.
func Errors(targets ...error) Retryable {
	return func(err error) bool {
		for _, t := range targets {
			if errors.Is(err, t) {
				return true
			}
		}
		return false
	}
}

// AnyOf combines allow-lists.
func AnyOf(preds ...Retryable) Retryable {
	return func(err error) bool {
		for _, p := range preds {
			if p != nil && p(err) {
				return true
			}
		}
		return false
	}
}

// Never retries nothing.
func Never(error) bool { return false }
