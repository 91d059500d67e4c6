package oracle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Aleph-Alpha/etl-manager/v1/dbconn"
	"github.com/Aleph-Alpha/etl-manager/v1/logger"
)

func TestValidate(t *testing.T) {
	base := Config{Host: "ora", User: "etl", Password: "pw"}

	err := base.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "service_name or sid")

	both := base
	both.ServiceName, both.SID = "ORCLPDB1", "ORCL"
	assert.True(t, dbconn.IsValidationError(both.Validate()))

	ok := base
	ok.SID = "ORCL"
	assert.NoError(t, ok.Validate())
}

func TestConnectString(t *testing.T) {
	cfg := Config{Host: "ora", User: "etl", ServiceName: "ORCLPDB1"}.withDefaults()
	assert.Equal(t, "10.0.0.1:1521/ORCLPDB1", connectString(cfg, "10.0.0.1", 1521))

	cfg = Config{Host: "ora", User: "etl", SID: "ORCL"}.withDefaults()
	assert.Equal(t,
		"(DESCRIPTION=(ADDRESS=(PROTOCOL=TCP)(HOST=127.0.0.1)(PORT=41521))(CONNECT_DATA=(SID=ORCL)))",
		connectString(cfg, "127.0.0.1", 41521))
}

func TestConnectionParamsCarryPool(t *testing.T) {
	cfg := Config{Host: "ora", User: "etl", Password: "s3cret", ServiceName: "XE"}.withDefaults()
	p := connectionParams(cfg, "ora", 1521)

	assert.Equal(t, "etl", p.Username)
	assert.Equal(t, "ora:1521/XE", p.ConnectString)
	assert.Equal(t, DefaultMinSessions, p.MinSessions)
	assert.Equal(t, DefaultMaxSessions, p.MaxSessions)
	assert.Equal(t, DefaultIncrement, p.SessionIncrement)
	assert.Equal(t, DefaultWaitTimeout, p.WaitTimeout)
	assert.Equal(t, DefaultMaxLifetime, p.MaxLifeTime)

	rendered := buildDSN(cfg, "ora", 1521)
	assert.Contains(t, rendered, "poolMinSessions=2")
	assert.NotContains(t, rendered, "s3cret")
}

func TestIsRead(t *testing.T) {
	assert.True(t, isRead("SELECT * FROM dual"))
	assert.False(t, isRead("BEGIN dbms_stats.gather_table_stats('ETL', 'T'); END;"))
	assert.False(t, isRead("declare x number; begin null; end;"))
	assert.False(t, isRead("INSERT INTO t VALUES (:1)"))
}

func TestNewOracle(t *testing.T) {
	o, err := NewOracle(Config{Host: "ora", User: "etl", ServiceName: "XE"}, dbconn.Options{}, nil)
	require.NoError(t, err)
	assert.Equal(t, dbconn.Oracle, o.Backend())
	assert.Nil(t, o.DB())
}

func TestOpenLogsTargetWithoutPassword(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	o, err := NewOracle(Config{Host: "ora", User: "etl", Password: "s3cret", ServiceName: "XE"},
		dbconn.Options{}, logger.NewFromZap(zap.New(core)))
	require.NoError(t, err)

	o.logTarget("127.0.0.1", 40022)

	entries := logs.FilterMessage("Opening Oracle session pool").All()
	require.Len(t, entries, 1)
	target, ok := entries[0].ContextMap()["dsn"].(string)
	require.True(t, ok)
	assert.Contains(t, target, "127.0.0.1:40022/XE")
	assert.NotContains(t, target, "s3cret")
}
