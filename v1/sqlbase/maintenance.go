package sqlbase

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/Aleph-Alpha/etl-manager/v1/dbconn"
	"github.com/Aleph-Alpha/etl-manager/v1/failedquery"
)

var savepointName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ReplayFailedQueries runs one replay pass over the failed-query log.
// Replayed statements are not re-captured on failure; the log itself
// re-queues them with an incremented retry count.
func (c *Client) ReplayFailedQueries(ctx context.Context) failedquery.ReplayStats {
	if c.opts.FailedQueries == nil {
		return failedquery.ReplayStats{}
	}
	stats := c.opts.FailedQueries.Replay(ctx, func(ctx context.Context, query string, params []any) error {
		_, err := c.run(ctx, dbconn.Query{Text: query, Params: params}, false)
		return err
	})
	c.opts.FailedQueries.Cleanup()
	if c.opts.Observer != nil {
		c.opts.Observer.ObserveFailedQueries(c.driver.Name, c.opts.FailedQueries.Len())
	}
	if stats != (failedquery.ReplayStats{}) {
		c.logger.Info("Replayed failed queries", nil, c.fields(map[string]interface{}{
			"succeeded": stats.Succeeded,
			"requeued":  stats.Requeued,
			"dropped":   stats.Dropped,
		}))
	}
	return stats
}

// ReplayLoop calls ReplayFailedQueries every interval until ctx is done.
func (c *Client) ReplayLoop(ctx context.Context, interval time.Duration) {
	if c.opts.FailedQueries == nil || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.ReplayFailedQueries(ctx)
		}
	}
}

// MonitorConnection periodically pings the pool and logs failures until ctx
// is done. database/sql replaces broken sessions on its own, so the monitor
// only reports.
func (c *Client) MonitorConnection(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Stopping MonitorConnection loop", nil, c.fields(nil))
			return
		case <-ticker.C:
			if err := c.HealthCheck(ctx); err != nil {
				c.logger.Error("Database health check failed", err, c.fields(nil))
			}
		}
	}
}

// HealthCheck pings the pool with a five second bound.
func (c *Client) HealthCheck(ctx context.Context) error {
	db := c.DB()
	if db == nil {
		return dbconn.ErrNotConnected
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	start := time.Now()
	err := db.PingContext(ctx)
	c.observe("ping", time.Since(start), err)
	if err != nil {
		return c.classify("ping", fmt.Errorf("database ping failed during health check: %w", err), true)
	}
	return nil
}
