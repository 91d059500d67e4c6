package mysql

import (
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aleph-Alpha/etl-manager/v1/dbconn"
)

func TestValidate(t *testing.T) {
	err := Config{Connection: Connection{Host: "h", User: "u"}}.Validate()
	require.Error(t, err)
	assert.True(t, dbconn.IsValidationError(err))
	assert.Contains(t, err.Error(), "db_name")
}

func TestBuildDSN(t *testing.T) {
	cfg := Config{
		Connection: Connection{Host: "db", User: "etl", Password: "p@ss:word", DbName: "shop"},
		ConnectionDetails: ConnectionDetails{
			ReadTimeout: 15 * time.Second,
		},
	}.withDefaults()

	dsn := buildDSN(cfg, "127.0.0.1", 33060)

	parsed, err := mysqldriver.ParseDSN(dsn)
	require.NoError(t, err)
	assert.Equal(t, "etl", parsed.User)
	assert.Equal(t, "p@ss:word", parsed.Passwd)
	assert.Equal(t, "127.0.0.1:33060", parsed.Addr)
	assert.Equal(t, "shop", parsed.DBName)
	assert.True(t, parsed.ParseTime)
	assert.Equal(t, 30*time.Second, parsed.Timeout)
	assert.Equal(t, 15*time.Second, parsed.ReadTimeout)
	assert.Contains(t, dsn, "charset=utf8mb4")
}

func TestDefaults(t *testing.T) {
	m, err := NewMySQL(Config{Connection: Connection{Host: "h", User: "u", DbName: "d"}}, dbconn.Options{}, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultPort, m.Config().Connection.Port)
	assert.Equal(t, DefaultPoolSize, m.Config().ConnectionDetails.PoolSize)
	assert.Equal(t, dbconn.MySQL, m.Backend())
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		kind      dbconn.Kind
		retryable bool
	}{
		{"deadlock", &mysqldriver.MySQLError{Number: 1213, Message: "Deadlock found"}, dbconn.KindQuery, true},
		{"lock wait", &mysqldriver.MySQLError{Number: 1205}, dbconn.KindQuery, true},
		{"gone away", &mysqldriver.MySQLError{Number: 2006}, dbconn.KindConnection, true},
		{"access denied", &mysqldriver.MySQLError{Number: 1045}, dbconn.KindConnection, false},
		{"duplicate", &mysqldriver.MySQLError{Number: 1062}, dbconn.KindQuery, false},
		{"syntax", &mysqldriver.MySQLError{Number: 1064}, dbconn.KindQuery, false},
		{"interrupted", &mysqldriver.MySQLError{Number: 3024}, dbconn.KindTimeout, false},
		{"invalid conn", mysqldriver.ErrInvalidConn, dbconn.KindConnection, true},
		{"bad conn", driver.ErrBadConn, dbconn.KindConnection, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := Classify("exec", tt.err)
			require.NotNil(t, e)
			assert.Equal(t, tt.kind, e.Kind)
			assert.Equal(t, tt.retryable, e.Retryable)
		})
	}
	assert.Nil(t, Classify("exec", errors.New("other")))
}

func TestErrorHelpers(t *testing.T) {
	assert.True(t, IsDuplicateKey(&mysqldriver.MySQLError{Number: 1062}))
	assert.True(t, IsForeignKeyViolation(&mysqldriver.MySQLError{Number: 1452}))
	assert.True(t, IsRetryable(&mysqldriver.MySQLError{Number: 1213}))
	assert.False(t, IsRetryable(&mysqldriver.MySQLError{Number: 1064}))
	assert.NoError(t, TranslateError(nil))
}
