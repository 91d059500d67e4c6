package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics encapsulates the Prometheus registry, the database collectors and
// the HTTP server exposing them.
type Metrics struct {
	// Server defines the HTTP server used to expose the /metrics endpoint.
	Server *http.Server

	// Registry is the Prometheus registry where all metrics are registered.
	// Each service maintains its own isolated registry to prevent metric name collisions.
	Registry *prometheus.Registry

	// Database records query, retry and failed-query measurements and is
	// the dbconn.Observer handed to the database clients.
	Database *DatabaseMetrics

	registerer prometheus.Registerer
}

// NewMetrics sets up a dedicated registry whose metrics all carry the
// constant service label, registers the database collectors, and prepares
// (but does not start) the /metrics server.
//
// Example:
//
//	m := metrics.NewMetrics(metrics.Config{Address: ":9090", ServiceName: "etl-manager"})
//	go m.Server.ListenAndServe()
//
//	conn, err := postgres.NewPostgres(cfg, dbconn.Options{Observer: m.Database}, log)
func NewMetrics(cfg Config) *Metrics {
	registry := prometheus.NewRegistry()

	// Every metric emitted by this service carries service="<cfg.ServiceName>".
	wrapped := prometheus.WrapRegistererWith(
		prometheus.Labels{"service": cfg.ServiceName},
		registry,
	)

	m := &Metrics{
		Registry:   registry,
		registerer: wrapped,
		Database:   NewDatabaseMetrics(wrapped),
	}

	if cfg.EnableDefaultCollectors {
		wrapped.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			collectors.NewBuildInfoCollector(),
		)
	}

	m.Server = &http.Server{
		Addr:    cfg.Address,
		Handler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}
	return m
}
