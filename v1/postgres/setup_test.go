package postgres

import (
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aleph-Alpha/etl-manager/v1/dbconn"
)

func validConfig() Config {
	return Config{Connection: Connection{Host: "db.internal", User: "etl", Password: "secret", DbName: "warehouse"}}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"missing host", func(c *Config) { c.Connection.Host = "" }, "host"},
		{"missing user", func(c *Config) { c.Connection.User = "" }, "user"},
		{"missing db", func(c *Config) { c.Connection.DbName = "" }, "db_name"},
		{"bad driver", func(c *Config) { c.Connection.Driver = "odbc" }, "odbc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, dbconn.IsValidationError(err))
			assert.Contains(t, err.Error(), tt.field)
		})
	}
	assert.NoError(t, validConfig().Validate())
}

func TestNewPostgresAppliesDefaults(t *testing.T) {
	pg, err := NewPostgres(validConfig(), dbconn.Options{}, nil)
	require.NoError(t, err)

	cfg := pg.Config()
	assert.Equal(t, DefaultPort, cfg.Connection.Port)
	assert.Equal(t, "disable", cfg.Connection.SSLMode)
	assert.Equal(t, DriverPgx, cfg.Connection.Driver)
	assert.Equal(t, DefaultMinConns, cfg.ConnectionDetails.MinConns)
	assert.Equal(t, DefaultMaxConns, cfg.ConnectionDetails.MaxConns)
	assert.Equal(t, 30*time.Second, cfg.ConnectionDetails.StatementTimeout)
	assert.Equal(t, dbconn.PostgreSQL, pg.Backend())
	assert.Nil(t, pg.DB())
}

func TestBuildDSN(t *testing.T) {
	cfg := validConfig()
	cfg.Connection.Password = "it's a secret"
	cfg = cfg.withDefaults()

	dsn := buildDSN(cfg, "127.0.0.1", 40123)
	assert.Contains(t, dsn, "host=127.0.0.1 port=40123 ")
	assert.Contains(t, dsn, `password='it\'s a secret'`)
	assert.Contains(t, dsn, "connect_timeout=30")
	assert.Contains(t, dsn, "application_name=etl-manager")
	assert.Contains(t, dsn, "statement_timeout=30000")
}

func TestQuoteValueEmpty(t *testing.T) {
	assert.Equal(t, "''", quoteValue(""))
	assert.Equal(t, "plain", quoteValue("plain"))
}

func TestTimeoutStatement(t *testing.T) {
	assert.Equal(t, "SET statement_timeout = 2500", timeoutStatement(2500*time.Millisecond))
	assert.Equal(t, "SET statement_timeout = 1", timeoutStatement(time.Microsecond))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		kind      dbconn.Kind
		retryable bool
	}{
		{"connection failure", &pgconn.PgError{Code: "08006"}, dbconn.KindConnection, true},
		{"query canceled", &pgconn.PgError{Code: "57014"}, dbconn.KindTimeout, false},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, dbconn.KindQuery, true},
		{"serialization", &pq.Error{Code: "40001"}, dbconn.KindQuery, true},
		{"syntax", &pgconn.PgError{Code: "42601", Message: "syntax error"}, dbconn.KindQuery, false},
		{"unique", &pq.Error{Code: "23505"}, dbconn.KindQuery, false},
		{"too many connections", &pq.Error{Code: "53300"}, dbconn.KindConnection, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := Classify("exec", tt.err)
			require.NotNil(t, e)
			assert.Equal(t, tt.kind, e.Kind)
			assert.Equal(t, tt.retryable, e.Retryable)
			assert.Equal(t, dbconn.PostgreSQL, e.Backend)
			assert.ErrorIs(t, e, tt.err)
		})
	}
	assert.Nil(t, Classify("exec", errors.New("unrelated")))
}

func TestTranslateError(t *testing.T) {
	assert.NoError(t, TranslateError(nil))

	err := TranslateError(&pgconn.PgError{Code: "42P01", Message: `relation "missing" does not exist`})
	assert.True(t, dbconn.IsQueryError(err))
	assert.Contains(t, err.Error(), `relation "missing" does not exist`)

	assert.True(t, IsRetryable(&pgconn.PgError{Code: "40P01"}))
	assert.False(t, IsRetryable(&pgconn.PgError{Code: "42601"}))
	assert.True(t, IsDuplicateKey(&pgconn.PgError{Code: "23505"}))
	assert.True(t, IsForeignKeyViolation(&pq.Error{Code: "23503"}))
	assert.False(t, IsDuplicateKey(errors.New("x")))
}
