// Package retry provides the bounded retry-with-backoff wrapper applied to every
// network-touching database operation.
//
// An Executor pairs a Policy (retry count, initial delay, multiplier) with an
// explicit allow-list of retryable errors. Errors outside the allow-list are
// returned from the first attempt without sleeping.
//
//	exec := retry.New(retry.Policy{MaxRetries: 5, InitialDelay: time.Second, Multiplier: 2},
//		retry.Errors(ErrDeadlock))
//	err := exec.Do(ctx, func(ctx context.Context) error {
//		return client.Ping(ctx)
//	})
//
// Delays carry no jitter, so a failure on attempts 1 and 2 sleeps exactly
// InitialDelay and then 2*InitialDelay.
package retry
