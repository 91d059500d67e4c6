package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/Aleph-Alpha/etl-manager/v1/dbconn"
)

func newConnected(t *testing.T, path string) *SQLite {
	t.Helper()
	s, err := NewSQLite(Config{Path: path}, dbconn.Options{}, nil)
	require.NoError(t, err)
	require.NoError(t, s.Connect(context.Background()))
	t.Cleanup(func() { _ = s.Disconnect(context.Background()) })
	return s
}

func TestValidate(t *testing.T) {
	_, err := NewSQLite(Config{}, dbconn.Options{}, nil)
	require.Error(t, err)
	assert.True(t, dbconn.IsValidationError(err))
}

func TestBuildDSN(t *testing.T) {
	dsn := buildDSN(Config{Path: "/tmp/x.db"}.withDefaults())
	assert.Equal(t, "file:/tmp/x.db?_pragma=busy_timeout%285000%29&_pragma=foreign_keys%281%29", dsn)
}

func TestInMemoryDatabaseIsShared(t *testing.T) {
	ctx := context.Background()
	s := newConnected(t, MemoryPath)

	_, err := s.ExecuteQuery(ctx, dbconn.Query{Text: "CREATE TABLE t (id INTEGER PRIMARY KEY, name TEXT)"})
	require.NoError(t, err)
	_, err = s.ExecuteQuery(ctx, dbconn.Query{Text: "INSERT INTO t (name) VALUES (?)", Params: []any{"x"}})
	require.NoError(t, err)

	res, err := s.ExecuteQuery(ctx, dbconn.Query{Text: "SELECT name FROM t", FetchAsRecords: true})
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	name, _ := res.Records[0].Get("name")
	assert.Equal(t, "x", name)
}

func TestForeignKeysEnforced(t *testing.T) {
	ctx := context.Background()
	s := newConnected(t, filepath.Join(t.TempDir(), "fk.db"))

	require.NoError(t, s.ExecuteTransaction(ctx, []dbconn.Statement{
		{Query: "CREATE TABLE parent (id INTEGER PRIMARY KEY)"},
		{Query: "CREATE TABLE child (id INTEGER PRIMARY KEY, parent_id INTEGER REFERENCES parent(id))"},
	}))

	_, err := s.ExecuteQuery(ctx, dbconn.Query{Text: "INSERT INTO child (parent_id) VALUES (?)", Params: []any{42}})
	require.Error(t, err)
	assert.True(t, dbconn.IsQueryError(err))
}

func TestClassifyLockedText(t *testing.T) {
	e := Classify("exec", assert.AnError)
	assert.Nil(t, e)

	e = Classify("exec", lockedErr{})
	require.NotNil(t, e)
	assert.True(t, e.Retryable)
	assert.True(t, IsRetryable(lockedErr{}))
}

type lockedErr struct{}

func (lockedErr) Error() string { return "database is locked (5) (SQLITE_BUSY)" }

func TestFXModule(t *testing.T) {
	var conn dbconn.Connection
	app := fxtest.New(t,
		FXModule,
		fx.Provide(func() Config { return Config{Path: filepath.Join(t.TempDir(), "fx.db")} }),
		fx.Populate(&conn),
	)
	app.RequireStart()

	require.NotNil(t, conn)
	assert.Equal(t, dbconn.SQLite, conn.Backend())
	res, err := conn.ExecuteQuery(context.Background(), dbconn.Query{Text: "SELECT 1"})
	require.NoError(t, err)
	assert.True(t, res.IsRowSet)

	app.RequireStop()
}
