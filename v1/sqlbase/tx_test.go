package sqlbase

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aleph-Alpha/etl-manager/v1/dbconn"
	"github.com/Aleph-Alpha/etl-manager/v1/retry"
)

// commitFailDriver accepts every statement and loses the connection on commit.
type commitFailDriver struct{ commits atomic.Int32 }

func (d *commitFailDriver) Open(string) (driver.Conn, error) { return &commitFailConn{d: d}, nil }

type commitFailConn struct{ d *commitFailDriver }

func (c *commitFailConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("prepare not supported")
}
func (c *commitFailConn) Close() error              { return nil }
func (c *commitFailConn) Begin() (driver.Tx, error) { return commitFailTx{c.d}, nil }
func (c *commitFailConn) ExecContext(context.Context, string, []driver.NamedValue) (driver.Result, error) {
	return driver.RowsAffected(1), nil
}

type commitFailTx struct{ d *commitFailDriver }

func (t commitFailTx) Commit() error {
	t.d.commits.Add(1)
	return driver.ErrBadConn
}

func (t commitFailTx) Rollback() error { return nil }

var (
	commitFail     = &commitFailDriver{}
	registerCommit sync.Once
)

func TestCommitFailureIsNotRetried(t *testing.T) {
	registerCommit.Do(func() { sql.Register("commitfail", commitFail) })
	before := commitFail.commits.Load()

	c := New(Driver{
		Name:        dbconn.SQLServer,
		Placeholder: dbconn.Question,
		Open: func(context.Context, string, int) (*sql.DB, error) {
			return sql.Open("commitfail", "")
		},
	}, Endpoint{}, dbconn.Options{Retry: retry.Policy{MaxRetries: 3, InitialDelay: time.Millisecond}}, nil)
	ctx := context.Background()
	require.NoError(t, c.Connect(ctx))
	t.Cleanup(func() { _ = c.Disconnect(context.Background()) })

	err := c.ExecuteTransaction(ctx, []dbconn.Statement{{Query: "UPDATE accounts SET balance = balance - 1"}})
	require.Error(t, err)
	assert.True(t, dbconn.IsConnectionError(err))
	assert.False(t, dbconn.IsTransient(err, true))
	assert.Equal(t, int32(1), commitFail.commits.Load()-before)
}
