package metrics

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/fx"

	"github.com/Aleph-Alpha/etl-manager/v1/dbconn"
)

// FXModule defines the Fx module for the metrics package.
// It provides *Metrics, the MetricsCollector interface and the
// dbconn.Observer consumed by database.FXModule, and runs the /metrics
// server for the lifetime of the application.
//
// Usage:
//
//	app := fx.New(
//	    logger.FXModule,
//	    metrics.FXModule,
//	    database.FXModule,
//	    fx.Supply(metrics.Config{Address: ":9090", ServiceName: "etl-manager"}),
//	)
var FXModule = fx.Module("metrics",
	fx.Provide(
		NewMetrics,
		ProvideCollector,
		ProvideObserver,
	),
	fx.Invoke(RegisterMetricsLifecycle),
)

// ProvideCollector exposes *Metrics as MetricsCollector.
func ProvideCollector(m *Metrics) MetricsCollector {
	return m
}

// ProvideObserver exposes the database collectors as dbconn.Observer.
func ProvideObserver(m *Metrics) dbconn.Observer {
	return m.Database
}

type MetricsLifecycleParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Metrics   *Metrics
	Logger    dbconn.Logger `optional:"true"`
}

// RegisterMetricsLifecycle starts the HTTP server in the background on start
// and shuts it down gracefully on stop.
func RegisterMetricsLifecycle(params MetricsLifecycleParams) {
	m, log := params.Metrics, params.Logger
	params.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if log != nil {
					log.Info("Starting Prometheus metrics server", nil, map[string]interface{}{
						"address": m.Server.Addr,
					})
				}
				if err := m.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) && log != nil {
					log.Error("Error starting Prometheus metrics server", err, nil)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if log != nil {
				log.Info("Shutting down Prometheus metrics server", nil, nil)
			}
			return m.Server.Shutdown(ctx)
		},
	})
}
