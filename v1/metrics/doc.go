// Package metrics provides Prometheus-based monitoring for the database
// clients.
//
// # Architecture
//
// This package follows the "accept interfaces, return structs" design pattern:
//   - Metrics struct: owns an isolated registry, the /metrics server and the
//     database collectors
//   - DatabaseMetrics struct: implements dbconn.Observer
//   - MetricsCollector interface: lets other components register their own
//     collectors on the same registry
//
// Core Features:
//   - db_queries_total{backend,operation,status}
//   - db_query_duration_seconds{backend,operation}
//   - db_retries_total{backend}
//   - db_failed_queries{backend}, the failed-query backlog per backend
//   - A constant service label on every metric
//   - Optional Go runtime, process and build info collectors
//
// # Direct Usage (Without FX)
//
//	m := metrics.NewMetrics(metrics.Config{
//		Address:                 ":9090",
//		EnableDefaultCollectors: true,
//		ServiceName:             "etl-manager",
//	})
//	go m.Server.ListenAndServe()
//
//	conn, err := sqlserver.NewSQLServer(cfg, dbconn.Options{Observer: m.Database}, log)
//
// # FX Module Integration
//
// FXModule provides *Metrics, MetricsCollector and dbconn.Observer.
// database.FXModule picks the Observer up automatically:
//
//	app := fx.New(
//		logger.FXModule,
//		metrics.FXModule,
//		database.FXModule,
//		fx.Supply(metrics.Config{Address: ":9090", ServiceName: "etl-manager"}),
//		fx.Provide(func() (database.Config, error) { return database.LoadConfig("db.yaml") }),
//	)
//	app.Run()
//
// # Thread Safety
//
// All methods on Metrics, DatabaseMetrics and the Prometheus collectors are
// safe for concurrent use by multiple goroutines.
package metrics
