package metrics

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/Aleph-Alpha/etl-manager/v1/dbconn"
)

func TestDatabaseMetrics(t *testing.T) {
	d := NewDatabaseMetrics(prometheus.NewRegistry())

	d.ObserveQuery(dbconn.PostgreSQL, "query", 20*time.Millisecond, nil)
	d.ObserveQuery(dbconn.PostgreSQL, "query", 30*time.Millisecond, errors.New("boom"))
	d.ObserveQuery(dbconn.PostgreSQL, "query", 10*time.Millisecond, nil)
	d.ObserveRetry(dbconn.Oracle, "query")
	d.ObserveRetry(dbconn.Oracle, "batch")
	d.ObserveFailedQueries(dbconn.MySQL, 4)
	d.ObserveFailedQueries(dbconn.MySQL, 2)

	assert.Equal(t, 2.0, testutil.ToFloat64(d.queriesTotal.WithLabelValues("postgresql", "query", StatusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(d.queriesTotal.WithLabelValues("postgresql", "query", StatusError)))
	assert.Equal(t, 2.0, testutil.ToFloat64(d.retriesTotal.WithLabelValues("oracle")))
	assert.Equal(t, 2.0, testutil.ToFloat64(d.failedQueries.WithLabelValues("mysql")))
	assert.Equal(t, 1, testutil.CollectAndCount(d.queryDuration))
}

func TestNewMetricsAddsServiceLabel(t *testing.T) {
	m := NewMetrics(Config{Address: ":0", ServiceName: "etl-manager"})
	m.Database.ObserveRetry(dbconn.SQLite, "query")

	expected := `
# HELP db_retries_total Total number of retried database operations
# TYPE db_retries_total counter
db_retries_total{backend="sqlite",service="etl-manager"} 1
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry, strings.NewReader(expected), "db_retries_total"))
}

func TestCreateCounterUsesServiceLabel(t *testing.T) {
	m := NewMetrics(Config{ServiceName: "etl-manager"})
	c := m.CreateCounter("rows_loaded_total", "Rows loaded", []string{"table"})
	c.WithLabelValues("sales").Add(3)

	expected := `
# HELP rows_loaded_total Rows loaded
# TYPE rows_loaded_total counter
rows_loaded_total{service="etl-manager",table="sales"} 3
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry, strings.NewReader(expected), "rows_loaded_total"))
}

func TestFXModuleProvidesObserver(t *testing.T) {
	var (
		observer dbconn.Observer
		m        *Metrics
	)
	app := fxtest.New(t,
		FXModule,
		fx.Supply(Config{Address: "127.0.0.1:0", ServiceName: "etl-manager"}),
		fx.Populate(&observer, &m),
	)
	app.RequireStart()
	assert.Same(t, m.Database, observer)
	app.RequireStop()
}
