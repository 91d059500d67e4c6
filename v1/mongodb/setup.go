package mongodb

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"strconv"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Aleph-Alpha/etl-manager/v1/dbconn"
	"github.com/Aleph-Alpha/etl-manager/v1/retry"
	"github.com/Aleph-Alpha/etl-manager/v1/sshtunnel"
)

const tracerName = "github.com/Aleph-Alpha/etl-manager/v1/mongodb"

// MongoDB is the MongoDB implementation of dbconn.Connection. Statements are
// structured Operations instead of SQL text; the driver pools connections
// natively.
type MongoDB struct {
	cfg    Config
	opts   dbconn.Options
	logger dbconn.Logger
	exec   *retry.Executor
	tracer trace.Tracer

	mu     sync.RWMutex
	client *mongo.Client
	tunnel *sshtunnel.Manager
}

// NewMongoDB validates cfg and builds an unconnected client.
func NewMongoDB(cfg Config, opts dbconn.Options, logger dbconn.Logger) (*MongoDB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()
	opts = opts.WithDefaults(retry.DefaultPolicy())
	if logger == nil {
		logger = nopLogger{}
	}

	m := &MongoDB{
		cfg:    cfg,
		opts:   opts,
		logger: logger,
		tracer: otel.Tracer(tracerName),
	}
	m.exec = retry.New(opts.Retry,
		func(err error) bool { return dbconn.IsTransient(err, opts.Retry.RetryTimeouts) },
		retry.WithNotify(m.onRetry),
	)
	return m, nil
}

// Backend implements dbconn.Connection.
func (m *MongoDB) Backend() dbconn.Type { return dbconn.MongoDB }

// RetryPolicy implements dbconn.Retrying.
func (m *MongoDB) RetryPolicy() retry.Policy { return m.opts.Retry }

// Config returns the effective configuration with defaults applied.
func (m *MongoDB) Config() Config { return m.cfg }

// Client returns the live driver client, or nil when disconnected.
func (m *MongoDB) Client() *mongo.Client {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.client
}

// Connect starts the tunnel when configured, builds the driver client and
// pings the primary.
func (m *MongoDB) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client != nil {
		return nil
	}

	host, port := m.cfg.Host, m.cfg.Port
	var tunnel *sshtunnel.Manager
	if m.cfg.SSH != nil {
		tunnel = sshtunnel.NewManager(*m.cfg.SSH, host, port, m.logger)
		localPort, err := tunnel.Start(ctx, sshtunnel.DefaultMaxRetries, sshtunnel.DefaultInitialBackoff)
		if err != nil {
			return dbconn.NewConnectionError(dbconn.MongoDB, "connect", "ssh tunnel failed", err)
		}
		host, port = "127.0.0.1", localPort
	}

	client, err := retry.DoValue(ctx, m.exec, func(ctx context.Context) (*mongo.Client, error) {
		return m.open(ctx, host, port, tunnel != nil)
	})
	if err != nil {
		if tunnel != nil {
			_ = tunnel.Close()
		}
		m.logger.Error("Failed to connect to MongoDB", err, m.fields(nil))
		return err
	}

	m.client = client
	m.tunnel = tunnel
	m.logger.Info("Successfully connected to MongoDB", nil, m.fields(map[string]interface{}{"tunneled": tunnel != nil}))
	return nil
}

func (m *MongoDB) open(ctx context.Context, host string, port int, direct bool) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, clientOptions(m.cfg, host, port, direct))
	if err != nil {
		return nil, dbconn.NewConnectionError(dbconn.MongoDB, "connect", "", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, m.cfg.ConnectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, dbconn.NewConnectionError(dbconn.MongoDB, "connect", "", err)
	}
	return client, nil
}

// clientOptions builds the driver options. A tunneled client connects
// directly, since replica-set discovery would hand out addresses that are
// only reachable behind the bastion.
func clientOptions(cfg Config, host string, port int, direct bool) *options.ClientOptions {
	opts := options.Client().
		SetHosts([]string{net.JoinHostPort(host, strconv.Itoa(port))}).
		SetMaxPoolSize(cfg.MaxPoolSize).
		SetMinPoolSize(cfg.MinPoolSize).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetServerSelectionTimeout(cfg.ConnectTimeout).
		SetAppName("etl-manager")
	if cfg.User != "" {
		opts.SetAuth(options.Credential{
			Username:   cfg.User,
			Password:   cfg.Password,
			AuthSource: cfg.AuthSource,
		})
	}
	if direct {
		opts.SetDirect(true)
	}
	if cfg.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	return opts
}

// Disconnect closes the client and then the tunnel. It is a no-op when not connected.
func (m *MongoDB) Disconnect(ctx context.Context) error {
	m.mu.Lock()
	client, tunnel := m.client, m.tunnel
	m.client, m.tunnel = nil, nil
	m.mu.Unlock()

	if client == nil {
		return nil
	}

	var errs []error
	if err := client.Disconnect(ctx); err != nil {
		errs = append(errs, dbconn.NewConnectionError(dbconn.MongoDB, "disconnect", "", err))
	}
	if tunnel != nil {
		if err := tunnel.Close(); err != nil {
			errs = append(errs, dbconn.NewConnectionError(dbconn.MongoDB, "disconnect", "ssh tunnel", err))
		}
	}
	m.logger.Info("MongoDB connection closed", nil, m.fields(nil))
	return errors.Join(errs...)
}

// ExecuteQuery runs the Operation carried in q.Operation. q.Text is ignored.
func (m *MongoDB) ExecuteQuery(ctx context.Context, q dbconn.Query) (dbconn.Result, error) {
	op, ok := asOperation(q.Operation)
	if !ok {
		return dbconn.Result{}, errUnsupportedOperation
	}

	ctx, span := m.startSpan(ctx, op.name(), op.collection())
	defer span.End()

	start := time.Now()
	res, err := retry.DoValue(ctx, m.exec, func(ctx context.Context) (dbconn.Result, error) {
		client := m.Client()
		if client == nil {
			return dbconn.Result{}, dbconn.ErrNotConnected
		}
		if q.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, q.Timeout)
			defer cancel()
		}
		return m.run(ctx, m.database(client), op)
	})
	elapsed := time.Since(start)
	m.observe(op.name(), elapsed, err)
	m.checkLongQuery(op, elapsed)

	if err != nil {
		recordSpanError(span, err)
		m.logger.Error("MongoDB operation failed", err, m.fields(map[string]interface{}{
			"operation":  op.name(),
			"collection": m.collectionName(op.collection()),
		}))
		return dbconn.Result{}, err
	}
	return res, nil
}

func (m *MongoDB) run(ctx context.Context, db *mongo.Database, op Operation) (dbconn.Result, error) {
	coll := db.Collection(m.collectionName(op.collection()))

	switch o := op.(type) {
	case Find:
		fo := options.Find()
		if o.Projection != nil {
			fo.SetProjection(o.Projection)
		}
		if o.Sort != nil {
			fo.SetSort(o.Sort)
		}
		if o.Limit > 0 {
			fo.SetLimit(o.Limit)
		}
		cur, err := coll.Find(ctx, filterOrAll(o.Filter), fo)
		if err != nil {
			return dbconn.Result{}, classify("find", err)
		}
		return collect(ctx, cur)

	case Aggregate:
		pipeline := o.Pipeline
		if pipeline == nil {
			pipeline = mongo.Pipeline{}
		}
		cur, err := coll.Aggregate(ctx, pipeline)
		if err != nil {
			return dbconn.Result{}, classify("aggregate", err)
		}
		return collect(ctx, cur)

	case Insert:
		if len(o.Documents) == 0 {
			return dbconn.Result{}, nil
		}
		out, err := coll.InsertMany(ctx, o.Documents)
		if err != nil {
			return dbconn.Result{}, classify("insert", err)
		}
		return dbconn.Result{RowsAffected: int64(len(out.InsertedIDs))}, nil

	case Update:
		uo := options.Update().SetUpsert(o.Upsert)
		out, err := coll.UpdateMany(ctx, filterOrAll(o.Filter), o.Update, uo)
		if err != nil {
			return dbconn.Result{}, classify("update", err)
		}
		return dbconn.Result{RowsAffected: out.ModifiedCount + out.UpsertedCount}, nil

	case Delete:
		out, err := coll.DeleteMany(ctx, filterOrAll(o.Filter))
		if err != nil {
			return dbconn.Result{}, classify("delete", err)
		}
		return dbconn.Result{RowsAffected: out.DeletedCount}, nil
	}
	return dbconn.Result{}, errUnsupportedOperation
}

func collect(ctx context.Context, cur *mongo.Cursor) (dbconn.Result, error) {
	var docs []bson.D
	if err := cur.All(ctx, &docs); err != nil {
		return dbconn.Result{}, classify("cursor", err)
	}
	cols, rows := documentsToRows(docs)
	return dbconn.Result{
		IsRowSet: true,
		Columns:  cols,
		Rows:     rows,
		Records:  dbconn.RecordsFromRows(cols, rows),
	}, nil
}

// ExecuteBatchQuery inserts documents in chunks. statement names the
// collection, or is empty for the configured one; every row of values must
// hold exactly one document.
func (m *MongoDB) ExecuteBatchQuery(ctx context.Context, statement string, values [][]any, batchSize int) error {
	docs := make([]any, 0, len(values))
	for i, row := range values {
		if len(row) != 1 {
			return dbconn.NewValidationError(dbconn.MongoDB, "batch",
				"row "+strconv.Itoa(i)+" must hold exactly one document", nil)
		}
		docs = append(docs, row[0])
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	for lo := 0; lo < len(docs); lo += batchSize {
		hi := min(lo+batchSize, len(docs))
		if _, err := m.ExecuteQuery(ctx, dbconn.Query{
			Operation: Insert{Collection: statement, Documents: docs[lo:hi]},
		}); err != nil {
			return err
		}
	}
	return nil
}

// ExecuteTransaction runs each statement's Operation, carried in
// Params[0], inside one multi-document transaction. Transactions need a
// replica set or sharded cluster.
func (m *MongoDB) ExecuteTransaction(ctx context.Context, statements []dbconn.Statement) error {
	ops := make([]Operation, 0, len(statements))
	for _, st := range statements {
		if len(st.Params) == 0 {
			return errUnsupportedOperation
		}
		op, ok := asOperation(st.Params[0])
		if !ok {
			return errUnsupportedOperation
		}
		ops = append(ops, op)
	}

	client := m.Client()
	if client == nil {
		return dbconn.ErrNotConnected
	}

	ctx, span := m.startSpan(ctx, "transaction", "")
	defer span.End()

	session, err := client.StartSession()
	if err != nil {
		return classify("transaction", err)
	}
	defer session.EndSession(context.Background())

	db := m.database(client)
	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		for _, op := range ops {
			if _, err := m.run(sc, db, op); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		err = classify("transaction", err)
		recordSpanError(span, err)
		m.logger.Error("MongoDB transaction failed", err, m.fields(nil))
		return err
	}
	return nil
}

// HealthCheck pings the primary with a five second bound.
func (m *MongoDB) HealthCheck(ctx context.Context) error {
	client := m.Client()
	if client == nil {
		return dbconn.ErrNotConnected
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	start := time.Now()
	err := client.Ping(ctx, readpref.Primary())
	m.observe("ping", time.Since(start), err)
	if err != nil {
		return dbconn.NewConnectionError(dbconn.MongoDB, "ping", "", err)
	}
	return nil
}

// MonitorConnection pings the server every interval until ctx is done. The
// driver reconnects on its own, so failures are only logged.
func (m *MongoDB) MonitorConnection(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.HealthCheck(ctx); err != nil {
				m.logger.Error("MongoDB health check failed", err, m.fields(nil))
			}
		}
	}
}

func (m *MongoDB) database(client *mongo.Client) *mongo.Database {
	return client.Database(m.cfg.Database)
}

func (m *MongoDB) collectionName(name string) string {
	if name != "" {
		return name
	}
	return m.cfg.Collection
}

func (m *MongoDB) checkLongQuery(op Operation, elapsed time.Duration) {
	if elapsed <= m.opts.LongQueryThreshold {
		return
	}
	m.logger.Warn("Long running query detected", nil, m.fields(map[string]interface{}{
		"operation":    op.name(),
		"collection":   m.collectionName(op.collection()),
		"duration_ms":  elapsed.Milliseconds(),
		"threshold_ms": m.opts.LongQueryThreshold.Milliseconds(),
	}))
}

func (m *MongoDB) onRetry(attempt int, err error, next time.Duration) {
	m.logger.Warn("Retrying database operation", err, m.fields(map[string]interface{}{
		"attempt": attempt,
		"backoff": next.String(),
	}))
	if m.opts.Observer != nil {
		m.opts.Observer.ObserveRetry(dbconn.MongoDB, "execute")
	}
}

func (m *MongoDB) observe(op string, d time.Duration, err error) {
	if m.opts.Observer != nil {
		m.opts.Observer.ObserveQuery(dbconn.MongoDB, op, d, err)
	}
}

func (m *MongoDB) startSpan(ctx context.Context, op, collection string) (context.Context, trace.Span) {
	return m.tracer.Start(ctx, "mongodb."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "mongodb"),
			attribute.String("db.operation", op),
			attribute.String("db.mongodb.collection", m.collectionName(collection)),
		))
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func (m *MongoDB) fields(extra map[string]interface{}) map[string]interface{} {
	f := map[string]interface{}{"backend": string(dbconn.MongoDB), "database": m.cfg.Database}
	for k, v := range extra {
		f[k] = v
	}
	return f
}

func filterOrAll(filter any) any {
	if filter == nil {
		return bson.D{}
	}
	return filter
}

type nopLogger struct{}

func (nopLogger) Info(string, error, ...map[string]interface{})  {}
func (nopLogger) Debug(string, error, ...map[string]interface{}) {}
func (nopLogger) Warn(string, error, ...map[string]interface{})  {}
func (nopLogger) Error(string, error, ...map[string]interface{}) {}
