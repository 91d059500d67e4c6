package dbconn

import (
	"context"
	"time"
)

// Connection is the capability set every backend client implements. The CRUD
// engine and all other callers work only in terms of this interface.
//
// Connect establishes pooling (and tunneling, when configured). Calling it
// twice without an intervening Disconnect is not supported.
// Disconnect releases every pooled resource and is a no-op when not connected.
//
//go:generate mockgen -source=connection.go -destination=mock_connection.go -package=dbconn
type Connection interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error

	// ExecuteQuery runs one statement. For read-like statements the Result
	// carries the row set, otherwise the affected-row count.
	ExecuteQuery(ctx context.Context, q Query) (Result, error)

	// ExecuteBatchQuery runs statement once per row of values, committing in
	// chunks of batchSize rows. A batchSize <= 0 uses the client default.
	ExecuteBatchQuery(ctx context.Context, statement string, values [][]any, batchSize int) error

	// ExecuteTransaction runs the statements in order inside one transaction
	// and rolls back if any of them fails.
	ExecuteTransaction(ctx context.Context, statements []Statement) error

	// Backend reports which engine the client talks to.
	Backend() Type
}

// Query is a single logical unit of work.
type Query struct {
	// Text is the statement using the canonical placeholder markers (? or %s).
	Text string

	// Operation carries a structured operation for document-store backends.
	// Relational clients ignore it.
	Operation any

	// Params are bound positionally to the markers in Text.
	Params []any

	// FetchAsRecords asks for named-field Records in addition to positional rows.
	FetchAsRecords bool

	// Timeout bounds this statement only. Zero means the client default.
	Timeout time.Duration
}

// Statement is one entry of a transaction or replay.
type Statement struct {
	Query  string
	Params []any
}

// Result holds exactly one of a row set or an affected-row count,
// selected by IsRowSet.
type Result struct {
	IsRowSet     bool
	Columns      []string
	Rows         [][]any
	Records      []Record
	RowsAffected int64
}

// Observer receives per-operation measurements. The metrics package provides
// a Prometheus implementation; a nil Observer disables reporting.
type Observer interface {
	ObserveQuery(backend Type, operation string, duration time.Duration, err error)
	ObserveRetry(backend Type, operation string)
	ObserveFailedQueries(backend Type, pending int)
}

// Logger is the logging surface the clients need. *logger.Logger satisfies it.
type Logger interface {
	Info(msg string, err error, fields ...map[string]interface{})
	Debug(msg string, err error, fields ...map[string]interface{})
	Warn(msg string, err error, fields ...map[string]interface{})
	Error(msg string, err error, fields ...map[string]interface{})
}
