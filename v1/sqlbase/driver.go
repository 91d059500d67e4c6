package sqlbase

import (
	"context"
	"database/sql"
	"time"

	"github.com/Aleph-Alpha/etl-manager/v1/dbconn"
	"github.com/Aleph-Alpha/etl-manager/v1/retry"
	"github.com/Aleph-Alpha/etl-manager/v1/sshtunnel"
)

const DefaultBatchSize = 1000

// Driver captures everything that differs between relational backends.
// Backend packages fill one in and hand it to New.
type Driver struct {
	Name        dbconn.Type
	Placeholder dbconn.Style

	// Open builds the pool against host:port. The host and port may differ
	// from the configured ones when a tunnel is active. Open must not ping.
	Open func(ctx context.Context, host string, port int) (*sql.DB, error)

	// Classify maps a backend-native error into the taxonomy. It returns nil
	// for errors it does not recognise.
	Classify func(op string, err error) *dbconn.Error

	// StatementTimeout applies a per-call timeout on the checked-out session
	// and returns a function restoring the default. A reset error discards
	// the session. Nil means the timeout is enforced with a context deadline.
	StatementTimeout func(ctx context.Context, conn *sql.Conn, d time.Duration) (reset func() error, err error)

	// DateColumn reports whether a column of the given driver type name holds
	// dates without a time of day. Nil uses dbconn.IsDateType.
	DateColumn func(databaseType string) bool

	// Savepoint and RollbackTo render savepoint statements. Nil disables savepoints.
	Savepoint  func(name string) string
	RollbackTo func(name string) string

	// IsRead overrides dbconn.IsReadQuery.
	IsRead func(query string) bool

	// DefaultRetry is used when Options.Retry is zero.
	DefaultRetry retry.Policy

	// BatchSize is the default chunk size of ExecuteBatchQuery.
	BatchSize int

	// ConnectTimeout bounds the initial ping.
	ConnectTimeout time.Duration
}

// Endpoint is the network target of a client.
type Endpoint struct {
	Host string
	Port int
	SSH  *sshtunnel.Config
}

func (d Driver) isRead(query string) bool {
	if d.IsRead != nil {
		return d.IsRead(query)
	}
	return dbconn.IsReadQuery(query)
}

func (d Driver) isDateColumn(databaseType string) bool {
	if d.DateColumn != nil {
		return d.DateColumn(databaseType)
	}
	return dbconn.IsDateType(databaseType)
}

func (d Driver) batchSize(n int) int {
	if n > 0 {
		return n
	}
	if d.BatchSize > 0 {
		return d.BatchSize
	}
	return DefaultBatchSize
}
