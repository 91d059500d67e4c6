package sqlbase

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Aleph-Alpha/etl-manager/v1/dbconn"
	"github.com/Aleph-Alpha/etl-manager/v1/retry"
	"github.com/Aleph-Alpha/etl-manager/v1/sshtunnel"
)

const tracerName = "github.com/Aleph-Alpha/etl-manager/v1/sqlbase"

// Client implements dbconn.Connection on top of database/sql. Every operation
// checks a session out of the pool, uses it, and returns it; sessions that
// failed with a connection-class error are discarded instead of recycled.
type Client struct {
	driver   Driver
	endpoint Endpoint
	opts     dbconn.Options
	logger   dbconn.Logger
	exec     *retry.Executor
	tracer   trace.Tracer

	mu     sync.RWMutex
	db     *sql.DB
	tunnel *sshtunnel.Manager
}

// New builds a client. Nothing is opened until Connect.
func New(d Driver, endpoint Endpoint, opts dbconn.Options, logger dbconn.Logger) *Client {
	opts = opts.WithDefaults(d.DefaultRetry)
	if logger == nil {
		logger = nopLogger{}
	}
	c := &Client{
		driver:   d,
		endpoint: endpoint,
		opts:     opts,
		logger:   logger,
		tracer:   otel.Tracer(tracerName),
	}
	c.exec = retry.New(opts.Retry,
		func(err error) bool { return dbconn.IsTransient(err, opts.Retry.RetryTimeouts) },
		retry.WithNotify(c.onRetry),
	)
	return c
}

// Backend implements dbconn.Connection.
func (c *Client) Backend() dbconn.Type { return c.driver.Name }

// Options returns the effective resilience settings.
func (c *Client) Options() dbconn.Options { return c.opts }

// RetryPolicy implements dbconn.Retrying.
func (c *Client) RetryPolicy() retry.Policy { return c.opts.Retry }

// DB returns the live pool, or nil when disconnected.
func (c *Client) DB() *sql.DB {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.db
}

// Connect starts the tunnel when configured, opens the pool against the
// resulting address and verifies it with a ping.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db != nil {
		return nil
	}

	host, port := c.endpoint.Host, c.endpoint.Port
	var tunnel *sshtunnel.Manager
	if c.endpoint.SSH != nil {
		tunnel = sshtunnel.NewManager(*c.endpoint.SSH, host, port, c.logger)
		localPort, err := tunnel.Start(ctx, sshtunnel.DefaultMaxRetries, sshtunnel.DefaultInitialBackoff)
		if err != nil {
			return dbconn.NewConnectionError(c.driver.Name, "connect", "ssh tunnel failed", err)
		}
		host, port = "127.0.0.1", localPort
	}

	db, err := retry.DoValue(ctx, c.exec, func(ctx context.Context) (*sql.DB, error) {
		return c.open(ctx, host, port)
	})
	if err != nil {
		if tunnel != nil {
			_ = tunnel.Close()
		}
		c.logger.Error("Failed to connect to database", err, c.fields(nil))
		return err
	}

	c.db = db
	c.tunnel = tunnel
	c.logger.Info("Successfully connected to database", nil, c.fields(map[string]interface{}{"tunneled": tunnel != nil}))
	return nil
}

func (c *Client) open(ctx context.Context, host string, port int) (*sql.DB, error) {
	db, err := c.driver.Open(ctx, host, port)
	if err != nil {
		return nil, c.classify("connect", err, true)
	}

	pingCtx := ctx
	if c.driver.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, c.driver.ConnectTimeout)
		defer cancel()
	}
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, c.classify("connect", err, true)
	}
	return db, nil
}

// Disconnect closes the pool and then the tunnel. It is a no-op when not connected.
func (c *Client) Disconnect(context.Context) error {
	c.mu.Lock()
	db, tunnel := c.db, c.tunnel
	c.db, c.tunnel = nil, nil
	c.mu.Unlock()

	if db == nil {
		return nil
	}

	var errs []error
	if err := db.Close(); err != nil {
		errs = append(errs, dbconn.NewConnectionError(c.driver.Name, "disconnect", "", err))
	}
	if tunnel != nil {
		if err := tunnel.Close(); err != nil {
			errs = append(errs, dbconn.NewConnectionError(c.driver.Name, "disconnect", "ssh tunnel", err))
		}
	}
	c.logger.Info("Database connection closed", nil, c.fields(nil))
	return errors.Join(errs...)
}

// ExecuteQuery implements dbconn.Connection.
func (c *Client) ExecuteQuery(ctx context.Context, q dbconn.Query) (dbconn.Result, error) {
	return c.run(ctx, q, true)
}

func (c *Client) run(ctx context.Context, q dbconn.Query, capture bool) (dbconn.Result, error) {
	ctx, span := c.startSpan(ctx, "ExecuteQuery", q.Text)
	defer span.End()

	start := time.Now()
	res, err := retry.DoValue(ctx, c.exec, func(ctx context.Context) (dbconn.Result, error) {
		return c.executeOnce(ctx, q)
	})
	c.observe("execute", time.Since(start), err)

	if err != nil {
		recordSpanError(span, err)
		c.logger.Error("Query execution failed", err, c.fields(map[string]interface{}{
			"query":  q.Text,
			"params": q.Params,
		}))
		if capture && !c.driver.isRead(q.Text) {
			c.captureFailed(q.Text, q.Params, err)
		}
		return dbconn.Result{}, err
	}
	return res, nil
}

func (c *Client) executeOnce(ctx context.Context, q dbconn.Query) (res dbconn.Result, err error) {
	db := c.DB()
	if db == nil {
		return res, dbconn.ErrNotConnected
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		return res, c.classify("checkout", err, true)
	}
	var resetErr error
	defer func() { c.release(conn, errors.Join(err, resetErr)) }()

	if q.Timeout > 0 {
		if c.driver.StatementTimeout != nil {
			reset, terr := c.driver.StatementTimeout(ctx, conn, q.Timeout)
			if terr != nil {
				return res, c.classify("set timeout", terr, false)
			}
			defer func() {
				if rerr := reset(); rerr != nil {
					// the session still carries q.Timeout
					resetErr = dbconn.NewConnectionError(c.driver.Name, "reset timeout", "", rerr)
					c.logger.Warn("Could not restore statement timeout, discarding session", rerr, c.fields(nil))
				}
			}()
		} else {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, q.Timeout)
			defer cancel()
		}
	}

	text := dbconn.TranslatePlaceholders(q.Text, c.driver.Placeholder)
	start := time.Now()
	defer func() { c.checkLongQuery(q, time.Since(start)) }()

	if c.driver.isRead(q.Text) {
		rows, qerr := conn.QueryContext(ctx, text, q.Params...)
		if qerr != nil {
			return res, c.classify("query", qerr, false)
		}
		defer rows.Close()

		cols, data, serr := scanRows(rows, c.driver.isDateColumn)
		if serr != nil {
			return res, c.classify("scan", serr, false)
		}
		res = dbconn.Result{IsRowSet: true, Columns: cols, Rows: data}
		if q.FetchAsRecords {
			res.Records = dbconn.RecordsFromRows(cols, data)
		}
		return res, nil
	}

	out, eerr := conn.ExecContext(ctx, text, q.Params...)
	if eerr != nil {
		return res, c.classify("exec", eerr, false)
	}
	n, aerr := out.RowsAffected()
	if aerr != nil {
		// some drivers cannot report a count for DDL
		n = 0
	}
	return dbconn.Result{RowsAffected: n}, nil
}

// release returns conn to the pool, discarding it when err, or any error
// joined into it, says the session is broken.
func (c *Client) release(conn *sql.Conn, err error) {
	if err != nil && dbconn.IsConnectionError(err) {
		_ = conn.Raw(func(any) error { return driver.ErrBadConn })
	}
	_ = conn.Close()
}

func (c *Client) checkLongQuery(q dbconn.Query, elapsed time.Duration) {
	if elapsed <= c.opts.LongQueryThreshold {
		return
	}
	c.logger.Warn("Long running query detected", nil, c.fields(map[string]interface{}{
		"query":        q.Text,
		"duration_ms":  elapsed.Milliseconds(),
		"threshold_ms": c.opts.LongQueryThreshold.Milliseconds(),
	}))
}

func (c *Client) captureFailed(query string, params []any, err error) {
	if c.opts.FailedQueries == nil || !dbconn.IsTransient(err, true) {
		return
	}
	if ferr := c.opts.FailedQueries.Add(query, params); ferr != nil {
		c.logger.Error("Could not queue failed query", ferr, c.fields(map[string]interface{}{"query": query}))
	}
	if c.opts.Observer != nil {
		c.opts.Observer.ObserveFailedQueries(c.driver.Name, c.opts.FailedQueries.Len())
	}
}

// classify converts any error into a *dbconn.Error. connecting marks
// unrecognised errors as connection failures rather than query failures.
func (c *Client) classify(op string, err error, connecting bool) error {
	if err == nil {
		return nil
	}
	var already *dbconn.Error
	if errors.As(err, &already) {
		return already
	}
	if c.driver.Classify != nil {
		if e := c.driver.Classify(op, err); e != nil {
			return e
		}
	}
	if e := dbconn.ClassifyCommon(c.driver.Name, op, err); e != nil {
		return e
	}
	if connecting || errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return dbconn.NewConnectionError(c.driver.Name, op, "", err)
	}
	return dbconn.NewQueryError(c.driver.Name, op, "", err)
}

func (c *Client) onRetry(attempt int, err error, next time.Duration) {
	c.logger.Warn("Retrying database operation", err, c.fields(map[string]interface{}{
		"attempt": attempt,
		"backoff": next.String(),
	}))
	if c.opts.Observer != nil {
		c.opts.Observer.ObserveRetry(c.driver.Name, "execute")
	}
}

func (c *Client) observe(op string, d time.Duration, err error) {
	if c.opts.Observer != nil {
		c.opts.Observer.ObserveQuery(c.driver.Name, op, d, err)
	}
}

func (c *Client) startSpan(ctx context.Context, name, statement string) (context.Context, trace.Span) {
	return c.tracer.Start(ctx, "sqlbase."+name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", string(c.driver.Name)),
			attribute.String("db.statement", statement),
		))
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func (c *Client) fields(extra map[string]interface{}) map[string]interface{} {
	f := map[string]interface{}{"backend": string(c.driver.Name)}
	for k, v := range extra {
		f[k] = v
	}
	return f
}

type nopLogger struct{}

func (nopLogger) Info(string, error, ...map[string]interface{})  {}
func (nopLogger) Debug(string, error, ...map[string]interface{}) {}
func (nopLogger) Warn(string, error, ...map[string]interface{})  {}
func (nopLogger) Error(string, error, ...map[string]interface{}) {}
