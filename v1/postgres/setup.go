package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Aleph-Alpha/etl-manager/v1/dbconn"
	"github.com/Aleph-Alpha/etl-manager/v1/retry"
	"github.com/Aleph-Alpha/etl-manager/v1/sqlbase"
)

// Postgres is the PostgreSQL implementation of dbconn.Connection. The
// embedded sqlbase.Client supplies pooling, retries, savepoints and replay;
// this type contributes the DSN, the pool sizing, session timeouts and the
// SQLSTATE classification.
type Postgres struct {
	*sqlbase.Client
	cfg Config
}

// NewPostgres validates cfg and builds an unconnected client.
//
// Returns *Postgres concrete type (following Go best practice: "accept interfaces, return structs").
func NewPostgres(cfg Config, opts dbconn.Options, logger dbconn.Logger) (*Postgres, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	p := &Postgres{cfg: cfg}
	p.Client = sqlbase.New(p.driver(), sqlbase.Endpoint{
		Host: cfg.Connection.Host,
		Port: cfg.Connection.Port,
		SSH:  cfg.SSH,
	}, opts, logger)
	return p, nil
}

// Config returns the effective configuration with defaults applied.
func (p *Postgres) Config() Config { return p.cfg }

func (p *Postgres) driver() sqlbase.Driver {
	return sqlbase.Driver{
		Name:             dbconn.PostgreSQL,
		Placeholder:      dbconn.Dollar,
		Open:             p.open,
		Classify:         Classify,
		StatementTimeout: p.setStatementTimeout,
		Savepoint:        func(name string) string { return "SAVEPOINT " + name },
		RollbackTo:       func(name string) string { return "ROLLBACK TO SAVEPOINT " + name },
		DefaultRetry:     retry.DefaultPolicy(),
		ConnectTimeout:   p.cfg.ConnectionDetails.ConnectTimeout,
	}
}

// open establishes a connection to the PostgreSQL database through GORM and
// configures the pool. The ping is left to the caller.
func (p *Postgres) open(_ context.Context, host string, port int) (*sql.DB, error) {
	driverName := ""
	if p.cfg.Connection.Driver == DriverPq {
		driverName = "postgres"
	}

	database, err := gorm.Open(
		postgres.New(postgres.Config{
			DriverName: driverName,
			DSN:        buildDSN(p.cfg, host, port),
		}),
		&gorm.Config{
			TranslateError:       true,
			DisableAutomaticPing: true,
			Logger:               gormlogger.Default.LogMode(gormlogger.Silent),
		})
	if err != nil {
		return nil, fmt.Errorf("failed to open PostgreSQL database: %w", err)
	}

	databaseInstance, err := database.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get PostgreSQL database instance: %w", err)
	}

	details := p.cfg.ConnectionDetails
	databaseInstance.SetMaxOpenConns(details.MaxConns)
	databaseInstance.SetMaxIdleConns(details.MinConns)
	databaseInstance.SetConnMaxLifetime(details.ConnMaxLifetime)
	return databaseInstance, nil
}

// setStatementTimeout bounds the next statement on conn and returns a reset
// back to the configured session default. A failed reset is reported so the
// session is discarded rather than pooled with the short timeout.
func (p *Postgres) setStatementTimeout(ctx context.Context, conn *sql.Conn, d time.Duration) (func() error, error) {
	if _, err := conn.ExecContext(ctx, timeoutStatement(d)); err != nil {
		return nil, err
	}
	def := p.cfg.ConnectionDetails.StatementTimeout
	return func() error {
		rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, err := conn.ExecContext(rctx, timeoutStatement(def))
		return err
	}, nil
}

func timeoutStatement(d time.Duration) string {
	ms := d.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	return fmt.Sprintf("SET statement_timeout = %d", ms)
}

// buildDSN renders a keyword/value connection string. Both pgx and lib/pq
// pass unknown keywords such as statement_timeout to the server as runtime
// parameters.
func buildDSN(cfg Config, host string, port int) string {
	c, d := cfg.Connection, cfg.ConnectionDetails
	pairs := []string{
		"host=" + quoteValue(host),
		fmt.Sprintf("port=%d", port),
		"user=" + quoteValue(c.User),
		"password=" + quoteValue(c.Password),
		"dbname=" + quoteValue(c.DbName),
		"sslmode=" + quoteValue(c.SSLMode),
		fmt.Sprintf("connect_timeout=%d", int(d.ConnectTimeout.Seconds())),
		"application_name=" + quoteValue(c.ApplicationName),
		fmt.Sprintf("statement_timeout=%d", d.StatementTimeout.Milliseconds()),
	}
	return strings.Join(pairs, " ")
}

func quoteValue(v string) string {
	if v != "" && !strings.ContainsAny(v, " '\\") {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}
