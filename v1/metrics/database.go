package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Aleph-Alpha/etl-manager/v1/dbconn"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// DatabaseMetrics implements dbconn.Observer with Prometheus collectors.
type DatabaseMetrics struct {
	queriesTotal  *prometheus.CounterVec
	queryDuration *prometheus.HistogramVec
	retriesTotal  *prometheus.CounterVec
	failedQueries *prometheus.GaugeVec
}

var _ dbconn.Observer = (*DatabaseMetrics)(nil)

// NewDatabaseMetrics creates the database collectors and registers them with r.
func NewDatabaseMetrics(r prometheus.Registerer) *DatabaseMetrics {
	d := &DatabaseMetrics{
		queriesTotal:  createCounterVec("db_queries_total", "Total number of database operations", []string{"backend", "operation", "status"}),
		queryDuration: createHistogramVec("db_query_duration_seconds", "Duration of database operations in seconds", []string{"backend", "operation"}, prometheus.DefBuckets),
		retriesTotal:  createCounterVec("db_retries_total", "Total number of retried database operations", []string{"backend"}),
		failedQueries: createGaugeVec("db_failed_queries", "Failed queries waiting for replay", []string{"backend"}),
	}
	r.MustRegister(d.queriesTotal, d.queryDuration, d.retriesTotal, d.failedQueries)
	return d
}

// ObserveQuery counts one operation and records its duration.
func (d *DatabaseMetrics) ObserveQuery(backend dbconn.Type, operation string, duration time.Duration, err error) {
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	d.queriesTotal.WithLabelValues(string(backend), operation, status).Inc()
	d.queryDuration.WithLabelValues(string(backend), operation).Observe(duration.Seconds())
}

// ObserveRetry counts one retry.
func (d *DatabaseMetrics) ObserveRetry(backend dbconn.Type, _ string) {
	d.retriesTotal.WithLabelValues(string(backend)).Inc()
}

// ObserveFailedQueries sets the number of queued failed queries.
func (d *DatabaseMetrics) ObserveFailedQueries(backend dbconn.Type, pending int) {
	d.failedQueries.WithLabelValues(string(backend)).Set(float64(pending))
}
