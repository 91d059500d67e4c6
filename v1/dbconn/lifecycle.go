package dbconn

import (
	"context"
	"sync"
	"time"

	"go.uber.org/fx"
)

// Maintenance configures the background loops started with a connection.
type Maintenance struct {
	// HealthInterval is the ping period of the connection monitor.
	// Default: 10s
	HealthInterval time.Duration `yaml:"health_interval"`

	// ReplayInterval is the period of failed-query replay. Zero disables replay.
	ReplayInterval time.Duration `yaml:"replay_interval"`
}

// Monitor is implemented by clients with a periodic health check.
type Monitor interface {
	MonitorConnection(ctx context.Context, interval time.Duration)
}

// Replayer is implemented by clients that can replay failed writes.
type Replayer interface {
	ReplayLoop(ctx context.Context, interval time.Duration)
}

// RegisterLifecycle connects conn when the application starts, runs the
// maintenance loops while it is up, and stops them before disconnecting.
func RegisterLifecycle(lc fx.Lifecycle, conn Connection, m Maintenance) {
	var (
		wg     sync.WaitGroup
		cancel context.CancelFunc
	)
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := conn.Connect(ctx); err != nil {
				return err
			}

			var runCtx context.Context
			runCtx, cancel = context.WithCancel(context.Background())

			if mon, ok := conn.(Monitor); ok {
				wg.Add(1)
				go func() {
					defer wg.Done()
					mon.MonitorConnection(runCtx, m.HealthInterval)
				}()
			}
			if rep, ok := conn.(Replayer); ok {
				wg.Add(1)
				go func() {
					defer wg.Done()
					rep.ReplayLoop(runCtx, m.ReplayInterval)
				}()
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			wg.Wait()
			return conn.Disconnect(ctx)
		},
	})
}
