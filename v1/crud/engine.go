package crud

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/Aleph-Alpha/etl-manager/v1/dbconn"
	"github.com/Aleph-Alpha/etl-manager/v1/retry"
)

// DefaultBatchSize is the number of rows Create commits per chunk.
const DefaultBatchSize = 1000

// DefaultPolicy is the engine-level retry around every catalog and data
// operation: five retries starting at five seconds and doubling. It only
// applies to connections that do not retry on their own.
func DefaultPolicy() retry.Policy {
	return retry.Policy{MaxRetries: 5, InitialDelay: 5 * time.Second, Multiplier: 2}
}

// Engine performs table-level CRUD on any relational dbconn.Connection.
// It holds no state besides its configuration and is safe for concurrent
// use when the connection is.
type Engine struct {
	conn      dbconn.Connection
	dialect   Dialect
	custom    *Dialect
	logger    dbconn.Logger
	retryer   *retry.Executor
	policy    retry.Policy
	retryOpts []retry.Option
	progress  func(done, total int)
	batchSize int
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger for progress and failure messages.
func WithLogger(l dbconn.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithRetry replaces DefaultPolicy.
func WithRetry(p retry.Policy) Option {
	return func(e *Engine) { e.policy = p }
}

// WithRetryOptions passes options, such as a fake timer, to the retry executor.
func WithRetryOptions(opts ...retry.Option) Option {
	return func(e *Engine) { e.retryOpts = append(e.retryOpts, opts...) }
}

// WithProgress registers a callback invoked after every committed chunk of
// Create with the rows written so far and the total.
func WithProgress(fn func(done, total int)) Option {
	return func(e *Engine) { e.progress = fn }
}

// WithDialect overrides the dialect picked from the connection's backend.
func WithDialect(d Dialect) Option {
	return func(e *Engine) { e.custom = &d }
}

// WithBatchSize sets the rows per committed chunk of Create.
func WithBatchSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// New builds an Engine over conn. Document-store connections are rejected
// because they have no SQL dialect.
func New(conn dbconn.Connection, opts ...Option) (*Engine, error) {
	if conn == nil {
		return nil, dbconn.NewValidationError("", "crud", "connection is required", nil)
	}
	e := &Engine{
		conn:      conn,
		logger:    nopLogger{},
		policy:    DefaultPolicy(),
		batchSize: DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.custom != nil {
		e.dialect = *e.custom
	} else {
		d, err := DialectFor(conn.Backend())
		if err != nil {
			return nil, err
		}
		e.dialect = d
	}

	policy := e.policy
	if rc, ok := conn.(dbconn.Retrying); ok {
		// the connection retries and queues failed writes itself
		policy = retry.Policy{}
		e.logger.Debug("Connection retries internally, engine retry disabled", nil, map[string]interface{}{
			"backend":     string(e.dialect.Backend),
			"max_retries": rc.RetryPolicy().MaxRetries,
		})
	}
	e.retryer = retry.New(policy, transient, append(e.retryOpts, retry.WithNotify(e.onRetry))...)
	return e, nil
}

// transient allow-lists retryable connection errors and timeouts. Query and
// validation errors surface on the first attempt.
func transient(err error) bool {
	return dbconn.IsTransient(err, true)
}

func (e *Engine) onRetry(attempt int, err error, next time.Duration) {
	e.logger.Warn("Retrying CRUD operation", err, map[string]interface{}{
		"backend":  string(e.dialect.Backend),
		"attempt":  attempt,
		"retry_in": next.String(),
	})
}

// RetryPolicy reports the policy the engine applies itself. It is the zero
// Policy over a dbconn.Retrying connection.
func (e *Engine) RetryPolicy() retry.Policy { return e.retryer.Policy() }

// Dialect returns the dialect in use.
func (e *Engine) Dialect() Dialect { return e.dialect }

// InferColumnTypes derives column definitions from sample values using the
// engine's dialect.
func (e *Engine) InferColumnTypes(values [][]any, columns []string, primaryKey string) []ColumnDef {
	return e.dialect.InferColumnTypes(values, columns, primaryKey)
}

// Columns lists a table's columns in declaration order. The id column is
// left out unless showID is set. An absent table yields no columns.
func (e *Engine) Columns(ctx context.Context, table string, showID bool) ([]string, error) {
	if err := ValidateIdentifier(table); err != nil {
		return nil, err
	}
	return retry.DoValue(ctx, e.retryer, func(ctx context.Context) ([]string, error) {
		return e.columns(ctx, table, showID)
	})
}

func (e *Engine) columns(ctx context.Context, table string, showID bool) ([]string, error) {
	schema, name := splitQualified(table)
	text, params := e.dialect.ColumnsQuery(schema, name)
	res, err := e.conn.ExecuteQuery(ctx, dbconn.Query{Text: text, Params: params})
	if err != nil {
		return nil, err
	}
	cols := make([]string, 0, len(res.Rows))
	for _, row := range res.Rows {
		if len(row) == 0 {
			continue
		}
		col := toString(row[0])
		if !showID && strings.EqualFold(col, "id") {
			continue
		}
		cols = append(cols, col)
	}
	return cols, nil
}

// TableExists reports whether the catalog knows the table.
func (e *Engine) TableExists(ctx context.Context, table string) (bool, error) {
	if err := ValidateIdentifier(table); err != nil {
		return false, err
	}
	return retry.DoValue(ctx, e.retryer, func(ctx context.Context) (bool, error) {
		return e.tableExists(ctx, table)
	})
}

func (e *Engine) tableExists(ctx context.Context, table string) (bool, error) {
	schema, name := splitQualified(table)
	text, params := e.dialect.ExistsQuery(schema, name)
	res, err := e.conn.ExecuteQuery(ctx, dbconn.Query{Text: text, Params: params})
	if err != nil {
		return false, err
	}
	if len(res.Rows) == 0 || len(res.Rows[0]) == 0 {
		return false, nil
	}
	n, err := toInt64(res.Rows[0][0])
	if err != nil {
		return false, dbconn.NewQueryError(e.dialect.Backend, "table exists", "unexpected count value", err)
	}
	return n > 0, nil
}

// CreateTableIfNotExists creates table with column types inferred from
// values. Nothing is issued when the table already exists.
func (e *Engine) CreateTableIfNotExists(ctx context.Context, table string, columns []string, values [][]any, primaryKey string) error {
	if err := e.validateTarget(table, columns); err != nil {
		return err
	}
	if primaryKey != "" {
		if err := e.dialect.ValidateColumn(primaryKey); err != nil {
			return err
		}
	}
	return e.retryer.Do(ctx, func(ctx context.Context) error {
		return e.createTableIfNotExists(ctx, table, columns, values, primaryKey)
	})
}

func (e *Engine) createTableIfNotExists(ctx context.Context, table string, columns []string, values [][]any, primaryKey string) error {
	exists, err := e.tableExists(ctx, table)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	defs := e.dialect.InferColumnTypes(values, columns, primaryKey)
	parts := make([]string, len(defs))
	for i, d := range defs {
		parts[i] = e.dialect.QuoteColumn(d.Name) + " " + d.Type
	}
	ddl := fmt.Sprintf("CREATE TABLE %s (%s)", table, strings.Join(parts, ", "))
	if _, err := e.conn.ExecuteQuery(ctx, dbconn.Query{Text: ddl}); err != nil {
		e.logger.Error("Failed to create table", err, map[string]interface{}{"table": table})
		return err
	}
	e.logger.Info("Created table", nil, map[string]interface{}{"table": table, "columns": len(defs)})
	return nil
}

// Create inserts values into table, creating the table first when needed.
// Empty columns default to the table's introspected columns. Every row must
// match the column count; nothing is written otherwise. Rows are committed
// in chunks, and the progress callback runs after each one.
func (e *Engine) Create(ctx context.Context, table string, values [][]any, columns []string, primaryKey string) (bool, error) {
	if err := ValidateIdentifier(table); err != nil {
		return false, err
	}
	if len(columns) == 0 {
		cols, err := e.Columns(ctx, table, false)
		if err != nil {
			return false, err
		}
		if len(cols) == 0 {
			return false, dbconn.NewValidationError(e.dialect.Backend, "create",
				fmt.Sprintf("no columns given and table %s has none", table), nil)
		}
		columns = cols
	}
	if err := e.validateTarget(table, columns); err != nil {
		return false, err
	}
	for i, row := range values {
		if len(row) != len(columns) {
			return false, dbconn.NewValidationError(e.dialect.Backend, "create",
				fmt.Sprintf("row %d has %d values, expected %d", i, len(row), len(columns)), nil)
		}
	}

	if err := e.CreateTableIfNotExists(ctx, table, columns, values, primaryKey); err != nil {
		return false, err
	}
	if len(values) == 0 {
		return true, nil
	}

	statement := e.insertStatement(table, columns)
	total := len(values)
	for start := 0; start < total; start += e.batchSize {
		end := min(start+e.batchSize, total)
		chunk := values[start:end]
		err := e.retryer.Do(ctx, func(ctx context.Context) error {
			return e.conn.ExecuteBatchQuery(ctx, statement, chunk, len(chunk))
		})
		if err != nil {
			e.logger.Error("Insert failed", err, map[string]interface{}{
				"table":    table,
				"inserted": start,
				"total":    total,
			})
			return false, err
		}
		if e.progress != nil {
			e.progress(end, total)
		}
		e.logger.Debug("Inserted "+humanize.Comma(int64(end))+" of "+humanize.Comma(int64(total))+" rows", nil,
			map[string]interface{}{"table": table})
	}
	e.logger.Info("Inserted rows", nil, map[string]interface{}{"table": table, "rows": humanize.Comma(int64(total))})
	return true, nil
}

func (e *Engine) insertStatement(table string, columns []string) string {
	quoted := make([]string, len(columns))
	marks := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = e.dialect.QuoteColumn(c)
		marks[i] = "?"
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(quoted, ", "), strings.Join(marks, ", "))
}

// ReadOptions narrows a Read.
type ReadOptions struct {
	// Columns to select. Empty selects the introspected columns.
	Columns []string

	// Where is a SQL condition using ? markers bound to Params.
	Where  string
	Params []any

	// ShowID keeps the id column when Columns is empty.
	ShowID bool

	// Limit caps the row count. Zero is unlimited.
	Limit int

	// OrderBy is a comma separated list of columns with optional ASC/DESC.
	OrderBy string
}

// Read selects rows from table as date-normalized records. An absent or
// empty table yields an empty slice.
func (e *Engine) Read(ctx context.Context, table string, opts ReadOptions) ([]dbconn.Record, error) {
	if err := ValidateIdentifier(table); err != nil {
		return nil, err
	}
	for _, c := range opts.Columns {
		if err := e.dialect.ValidateColumn(c); err != nil {
			return nil, err
		}
	}
	if opts.OrderBy != "" {
		if err := validateOrderBy(opts.OrderBy); err != nil {
			return nil, err
		}
	}
	if opts.Limit < 0 {
		return nil, dbconn.NewValidationError(e.dialect.Backend, "read", "limit must not be negative", nil)
	}

	return retry.DoValue(ctx, e.retryer, func(ctx context.Context) ([]dbconn.Record, error) {
		columns := opts.Columns
		if len(columns) == 0 {
			cols, err := e.columns(ctx, table, opts.ShowID)
			if err != nil {
				return nil, err
			}
			if len(cols) == 0 {
				return []dbconn.Record{}, nil
			}
			columns = cols
		}

		quoted := make([]string, len(columns))
		for i, c := range columns {
			quoted[i] = e.dialect.QuoteColumn(c)
		}
		var b strings.Builder
		fmt.Fprintf(&b, "SELECT %s FROM %s", strings.Join(quoted, ", "), table)
		if opts.Where != "" {
			b.WriteString(" WHERE " + opts.Where)
		}
		b.WriteString(e.dialect.Paginate(opts.OrderBy, quoted[0], opts.Limit))

		res, err := e.conn.ExecuteQuery(ctx, dbconn.Query{Text: b.String(), Params: opts.Params, FetchAsRecords: true})
		if err != nil {
			return nil, err
		}
		return recordsOf(res), nil
	})
}

// Update sets the given columns on rows matching where. An empty where is
// rejected so a whole table is never rewritten by accident.
func (e *Engine) Update(ctx context.Context, table string, updates map[string]any, where string, params []any) (bool, error) {
	if err := ValidateIdentifier(table); err != nil {
		return false, err
	}
	if len(updates) == 0 {
		return false, dbconn.NewValidationError(e.dialect.Backend, "update", "no columns to update", nil)
	}
	if strings.TrimSpace(where) == "" {
		return false, dbconn.NewValidationError(e.dialect.Backend, "update", "a where clause is required", nil)
	}

	cols := make([]string, 0, len(updates))
	for c := range updates {
		if err := e.dialect.ValidateColumn(c); err != nil {
			return false, err
		}
		cols = append(cols, c)
	}
	sort.Strings(cols)

	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols)+len(params))
	for i, c := range cols {
		sets[i] = e.dialect.QuoteColumn(c) + " = ?"
		args = append(args, updates[c])
	}
	args = append(args, params...)
	text := fmt.Sprintf("UPDATE %s SET %s WHERE %s", table, strings.Join(sets, ", "), where)

	err := e.retryer.Do(ctx, func(ctx context.Context) error {
		_, err := e.conn.ExecuteQuery(ctx, dbconn.Query{Text: text, Params: args})
		return err
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// Delete removes rows matching where. With safeDelete an empty where is
// rejected before any SQL runs. On SQL Server an absent table is reported
// as false without error.
func (e *Engine) Delete(ctx context.Context, table, where string, params []any, safeDelete bool) (bool, error) {
	if err := ValidateIdentifier(table); err != nil {
		return false, err
	}
	where = strings.TrimSpace(where)
	if safeDelete && where == "" {
		return false, dbconn.NewValidationError(e.dialect.Backend, "delete",
			"safe delete requires a where clause", nil)
	}

	if e.dialect.Backend == dbconn.SQLServer {
		exists, err := e.TableExists(ctx, table)
		if err != nil {
			return false, err
		}
		if !exists {
			e.logger.Warn("Table does not exist, nothing deleted", nil, map[string]interface{}{"table": table})
			return false, nil
		}
	}

	text := "DELETE FROM " + table
	if where != "" {
		text += " WHERE " + where
	}
	err := e.retryer.Do(ctx, func(ctx context.Context) error {
		_, err := e.conn.ExecuteQuery(ctx, dbconn.Query{Text: text, Params: params})
		return err
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// ExecuteRawQuery runs caller SQL. Read-like statements return their rows
// as records; anything else returns nil.
func (e *Engine) ExecuteRawQuery(ctx context.Context, query string, params []any) ([]dbconn.Record, error) {
	if strings.TrimSpace(query) == "" {
		return nil, dbconn.NewValidationError(e.dialect.Backend, "raw query", "query is empty", nil)
	}
	return retry.DoValue(ctx, e.retryer, func(ctx context.Context) ([]dbconn.Record, error) {
		res, err := e.conn.ExecuteQuery(ctx, dbconn.Query{Text: query, Params: params, FetchAsRecords: true})
		if err != nil {
			return nil, err
		}
		if !res.IsRowSet {
			return nil, nil
		}
		return recordsOf(res), nil
	})
}

func (e *Engine) validateTarget(table string, columns []string) error {
	if err := ValidateIdentifier(table); err != nil {
		return err
	}
	if len(columns) == 0 {
		return dbconn.NewValidationError(e.dialect.Backend, "create", "at least one column is required", nil)
	}
	for _, c := range columns {
		if err := e.dialect.ValidateColumn(c); err != nil {
			return err
		}
	}
	return nil
}

func recordsOf(res dbconn.Result) []dbconn.Record {
	if res.Records != nil {
		return res.Records
	}
	out := dbconn.RecordsFromRows(res.Columns, res.Rows)
	if out == nil {
		return []dbconn.Record{}
	}
	return out
}

func toString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	}
	return fmt.Sprint(v)
}

// toInt64 reads a catalog count, which drivers return as integers, floats,
// decimal strings or number types with a String method.
func toInt64(v any) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case uint64:
		return int64(x), nil
	case float64:
		return int64(x), nil
	case []byte:
		return parseCount(string(x))
	case string:
		return parseCount(x)
	case fmt.Stringer:
		return parseCount(x.String())
	}
	return 0, fmt.Errorf("cannot convert %T to a count", v)
}

func parseCount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return int64(f), nil
}

type nopLogger struct{}

func (nopLogger) Info(string, error, ...map[string]interface{})  {}
func (nopLogger) Debug(string, error, ...map[string]interface{}) {}
func (nopLogger) Warn(string, error, ...map[string]interface{})  {}
func (nopLogger) Error(string, error, ...map[string]interface{}) {}
