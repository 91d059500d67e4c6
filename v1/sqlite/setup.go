package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Aleph-Alpha/etl-manager/v1/dbconn"
	"github.com/Aleph-Alpha/etl-manager/v1/retry"
	"github.com/Aleph-Alpha/etl-manager/v1/sqlbase"
)

// SQLite is the embedded SQLite implementation of dbconn.Connection, backed
// by the pure-Go modernc.org/sqlite driver.
//
// The pool is capped at one open connection. database/sql then hands the
// single session to one caller at a time, which keeps all writers on one
// physical connection and makes in-memory databases behave as one database.
type SQLite struct {
	*sqlbase.Client
	cfg Config
}

// NewSQLite validates cfg and builds an unconnected client.
func NewSQLite(cfg Config, opts dbconn.Options, logger dbconn.Logger) (*SQLite, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	s := &SQLite{cfg: cfg}
	s.Client = sqlbase.New(sqlbase.Driver{
		Name:        dbconn.SQLite,
		Placeholder: dbconn.Question,
		Open:        s.open,
		Classify:    Classify,
		Savepoint:   func(name string) string { return "SAVEPOINT " + name },
		RollbackTo:  func(name string) string { return "ROLLBACK TO SAVEPOINT " + name },
		DefaultRetry: retry.Policy{
			MaxRetries:   5,
			InitialDelay: 100 * time.Millisecond,
			Multiplier:   2,
		},
		ConnectTimeout: 10 * time.Second,
	}, sqlbase.Endpoint{}, opts, logger)
	return s, nil
}

// Config returns the effective configuration with defaults applied.
func (s *SQLite) Config() Config { return s.cfg }

func (s *SQLite) open(context.Context, string, int) (*sql.DB, error) {
	db, err := sql.Open("sqlite", buildDSN(s.cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	return db, nil
}

// buildDSN renders a file: URI carrying the per-connection pragmas, so a
// replacement session gets the same settings as the first one.
func buildDSN(cfg Config) string {
	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", cfg.BusyTimeout.Milliseconds()))
	fk := 0
	if *cfg.ForeignKeys {
		fk = 1
	}
	q.Add("_pragma", fmt.Sprintf("foreign_keys(%d)", fk))
	return "file:" + cfg.Path + "?" + q.Encode()
}
