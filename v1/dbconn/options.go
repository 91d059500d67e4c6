package dbconn

import (
	"time"

	"github.com/Aleph-Alpha/etl-manager/v1/failedquery"
	"github.com/Aleph-Alpha/etl-manager/v1/retry"
)

// DefaultLongQueryThreshold is the duration after which a query is logged as slow.
const DefaultLongQueryThreshold = 60 * time.Second

// Options carries the resilience settings shared by every backend client.
// The zero value is usable: backend defaults apply.
type Options struct {
	// Retry is applied uniformly to every network-touching operation.
	// A zero Policy selects the backend default.
	Retry retry.Policy `yaml:"retry"`

	// LongQueryThreshold triggers a warning for slower statements.
	// Default: 60s
	LongQueryThreshold time.Duration `yaml:"long_query_threshold"`

	// FailedQueries receives writes that failed after exhausting retries.
	// Nil disables capture.
	FailedQueries *failedquery.Log `yaml:"-"`

	// Observer receives per-operation metrics. Nil disables reporting.
	Observer Observer `yaml:"-"`
}

// Retrying is implemented by connections whose entry points already run
// under a retry policy and queue their own failed writes. Layers built on
// such a connection must not retry its calls again.
type Retrying interface {
	RetryPolicy() retry.Policy
}

// WithDefaults fills zero fields using the given backend retry policy.
func (o Options) WithDefaults(defaultRetry retry.Policy) Options {
	if o.Retry.IsZero() {
		o.Retry = defaultRetry
	}
	if o.LongQueryThreshold <= 0 {
		o.LongQueryThreshold = DefaultLongQueryThreshold
	}
	return o
}
