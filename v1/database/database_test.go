package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/Aleph-Alpha/etl-manager/v1/dbconn"
	"github.com/Aleph-Alpha/etl-manager/v1/failedquery"
	"github.com/Aleph-Alpha/etl-manager/v1/mongodb"
	"github.com/Aleph-Alpha/etl-manager/v1/mysql"
	"github.com/Aleph-Alpha/etl-manager/v1/oracle"
	"github.com/Aleph-Alpha/etl-manager/v1/postgres"
	"github.com/Aleph-Alpha/etl-manager/v1/sqlite"
	"github.com/Aleph-Alpha/etl-manager/v1/sqlserver"
)

func TestNewDispatchesOnType(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want dbconn.Type
	}{
		{"postgres alias", PostgresConfig(postgres.Config{Connection: postgres.Connection{Host: "h", User: "u", DbName: "d"}}), dbconn.PostgreSQL},
		{"mysql", MySQLConfig(mysql.Config{Connection: mysql.Connection{Host: "h", User: "u", DbName: "d"}}), dbconn.MySQL},
		{"sqlite", SQLiteConfig(sqlite.Config{Path: sqlite.MemoryPath}), dbconn.SQLite},
		{"sqlserver", SQLServerConfig(sqlserver.Config{Host: "h", User: "u", Password: "p", Database: "d"}), dbconn.SQLServer},
		{"oracle", OracleConfig(oracle.Config{Host: "h", User: "u", Password: "p", ServiceName: "ORCL"}), dbconn.Oracle},
		{"mongodb", MongoDBConfig(mongodb.Config{Host: "h", Database: "d"}), dbconn.MongoDB},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, err := New(tt.cfg, dbconn.Options{}, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, conn.Backend())
		})
	}
}

func TestNewRejectsUnknownType(t *testing.T) {
	conn, err := New(Config{Type: "cassandra"}, dbconn.Options{}, nil)
	require.Error(t, err)
	assert.Nil(t, conn)
	assert.True(t, dbconn.IsValidationError(err))
	assert.Contains(t, err.Error(), "unsupported database type: cassandra")
}

func TestNewRequiresSubConfig(t *testing.T) {
	conn, err := New(Config{Type: "mariadb"}, dbconn.Options{}, nil)
	require.Error(t, err)
	assert.Nil(t, conn)
	assert.True(t, dbconn.IsValidationError(err))
}

func TestNewReturnsNilOnInvalidConfig(t *testing.T) {
	conn, err := New(SQLiteConfig(sqlite.Config{}), dbconn.Options{}, nil)
	require.Error(t, err)
	assert.Nil(t, conn)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "database.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
type: postgres
postgres:
  connection:
    host: db.internal
    user: etl
    db_name: warehouse
  connection_details:
    max_conns: 20
    statement_timeout: 45s
options:
  retry:
    max_retries: 3
    initial_delay: 2s
    multiplier: 2
  long_query_threshold: 30s
failed_queries:
  capacity: 10
maintenance:
  health_interval: 15s
`), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Type)
	require.NotNil(t, cfg.Postgres)
	assert.Equal(t, "db.internal", cfg.Postgres.Connection.Host)
	assert.Equal(t, 20, cfg.Postgres.ConnectionDetails.MaxConns)
	assert.Equal(t, 45*time.Second, cfg.Postgres.ConnectionDetails.StatementTimeout)
	assert.Equal(t, 3, cfg.Options.Retry.MaxRetries)
	assert.Equal(t, 2*time.Second, cfg.Options.Retry.InitialDelay)
	assert.Equal(t, 30*time.Second, cfg.Options.LongQueryThreshold)
	assert.Equal(t, 15*time.Second, cfg.Maintenance.HealthInterval)
	require.NotNil(t, cfg.FailedQueries)
	assert.Equal(t, 10, cfg.FailedQueries.Capacity)

	opts := cfg.ClientOptions(nil)
	require.NotNil(t, opts.FailedQueries)
	assert.Equal(t, 0, opts.FailedQueries.Len())
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("type: [unterminated"), 0o600))
	_, err = LoadConfig(path)
	require.Error(t, err)
	assert.True(t, dbconn.IsValidationError(err))
}

func TestClientOptionsKeepsExistingLog(t *testing.T) {
	existing := failedquery.New(failedquery.Config{}, nil)
	cfg := Config{
		Options:       dbconn.Options{FailedQueries: existing},
		FailedQueries: &failedquery.Config{Capacity: 1},
	}
	assert.Same(t, existing, cfg.ClientOptions(nil).FailedQueries)
}

func TestFXModule(t *testing.T) {
	cfg := SQLiteConfig(sqlite.Config{Path: filepath.Join(t.TempDir(), "fx.db")})
	cfg.Maintenance = dbconn.Maintenance{HealthInterval: time.Hour}

	var conn dbconn.Connection
	app := fxtest.New(t,
		FXModule,
		fx.Supply(cfg),
		fx.Populate(&conn),
	)
	app.RequireStart()

	res, err := conn.ExecuteQuery(context.Background(), dbconn.Query{Text: "SELECT 1"})
	require.NoError(t, err)
	assert.True(t, res.IsRowSet)
	assert.Equal(t, dbconn.SQLite, conn.Backend())

	app.RequireStop()
}
