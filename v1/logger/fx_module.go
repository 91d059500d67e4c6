package logger

import (
	"context"

	"go.uber.org/fx"

	"github.com/Aleph-Alpha/etl-manager/v1/dbconn"
)

// FXModule defines the Fx module for the logger package.
// It provides *Logger built from a logger.Config found in the container,
// exposes it as the dbconn.Logger the database, metrics and tracer modules
// accept, and flushes buffered entries when the application stops.
//
// Usage:
//
//	app := fx.New(
//	    logger.FXModule,
//	    fx.Supply(logger.Config{Level: logger.Info, ServiceName: "etl-manager"}),
//	)
var FXModule = fx.Module("logger",
	fx.Provide(
		fx.Annotate(
			NewLoggerClient,
			fx.As(fx.Self()),
			fx.As(new(dbconn.Logger)),
		),
	),
	fx.Invoke(RegisterLoggerLifecycle),
)

// RegisterLoggerLifecycle syncs the zap logger on stop.
func RegisterLoggerLifecycle(lc fx.Lifecycle, client *Logger) {
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			// Sync on stderr fails with EINVAL on some terminals; there is nothing to flush then.
			_ = client.Zap.Sync()
			return nil
		},
	})
}
