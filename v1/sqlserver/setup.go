package sqlserver

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strconv"

	mssql "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"

	"github.com/Aleph-Alpha/etl-manager/v1/dbconn"
	"github.com/Aleph-Alpha/etl-manager/v1/retry"
	"github.com/Aleph-Alpha/etl-manager/v1/sqlbase"
)

// SQLServer is the Microsoft SQL Server implementation of dbconn.Connection.
type SQLServer struct {
	*sqlbase.Client
	cfg Config
}

// NewSQLServer validates cfg, checks that the rendered DSN parses, and
// builds an unconnected client.
func NewSQLServer(cfg Config, opts dbconn.Options, logger dbconn.Logger) (*SQLServer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	if _, err := msdsn.Parse(buildDSN(cfg, cfg.Host, cfg.Port)); err != nil {
		return nil, dbconn.NewValidationError(dbconn.SQLServer, "config", "invalid connection settings", err)
	}

	s := &SQLServer{cfg: cfg}
	s.Client = sqlbase.New(sqlbase.Driver{
		Name:           dbconn.SQLServer,
		Placeholder:    dbconn.AtP,
		Open:           s.open,
		Classify:       Classify,
		Savepoint:      func(name string) string { return "SAVE TRANSACTION " + name },
		RollbackTo:     func(name string) string { return "ROLLBACK TRANSACTION " + name },
		DefaultRetry:   retry.DefaultPolicy(),
		ConnectTimeout: cfg.ConnectTimeout,
	}, sqlbase.Endpoint{
		Host: cfg.Host,
		Port: cfg.Port,
		SSH:  cfg.SSH,
	}, opts, logger)
	return s, nil
}

// Config returns the effective configuration with defaults applied.
func (s *SQLServer) Config() Config { return s.cfg }

func (s *SQLServer) open(_ context.Context, host string, port int) (*sql.DB, error) {
	db, err := sql.Open("sqlserver", buildDSN(s.cfg, host, port))
	if err != nil {
		return nil, fmt.Errorf("failed to open SQL Server database: %w", err)
	}
	db.SetMaxOpenConns(s.cfg.MaxPoolSize)
	db.SetMaxIdleConns(min(s.cfg.MaxPoolSize, 10))
	if s.cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)
	}
	return db, nil
}

// CopyIn bulk-loads rows into table through the TDS bulk copy protocol,
// inside one transaction. It returns the number of rows copied.
func (s *SQLServer) CopyIn(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	db := s.DB()
	if db == nil {
		return 0, dbconn.ErrNotConnected
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, classify("begin", err)
	}
	rollback := func() { _ = tx.Rollback() }

	stmt, err := tx.PrepareContext(ctx, mssql.CopyIn(table, mssql.BulkOptions{}, columns...))
	if err != nil {
		rollback()
		return 0, classify("prepare bulk", err)
	}
	for i := range rows {
		if _, err := stmt.ExecContext(ctx, rows[i]...); err != nil {
			_ = stmt.Close()
			rollback()
			return 0, fmt.Errorf("bulk row %d: %w", i, classify("bulk", err))
		}
	}
	res, err := stmt.ExecContext(ctx)
	if cerr := stmt.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		rollback()
		return 0, classify("bulk finalize", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		rollback()
		return 0, classify("bulk finalize", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, classify("commit", err)
	}
	return n, nil
}

// buildDSN renders a sqlserver:// URL.
func buildDSN(cfg Config, host string, port int) string {
	u := &url.URL{
		Scheme: "sqlserver",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   net.JoinHostPort(host, strconv.Itoa(port)),
	}
	if cfg.Instance != "" {
		u.Path = "/" + cfg.Instance
	}

	q := url.Values{}
	q.Set("database", cfg.Database)
	q.Set("app name", cfg.AppName)
	q.Set("connection timeout", strconv.Itoa(int(cfg.ConnectTimeout.Seconds())))
	if cfg.Encrypt != "" {
		q.Set("encrypt", cfg.Encrypt)
	}
	if cfg.TrustServerCertificate {
		q.Set("TrustServerCertificate", "true")
	}
	u.RawQuery = q.Encode()
	return u.String()
}
