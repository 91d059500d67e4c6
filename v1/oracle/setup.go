package oracle

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/godror/godror"
	"github.com/godror/godror/dsn"

	"github.com/Aleph-Alpha/etl-manager/v1/dbconn"
	"github.com/Aleph-Alpha/etl-manager/v1/retry"
	"github.com/Aleph-Alpha/etl-manager/v1/sqlbase"
)

// Oracle is the Oracle Database implementation of dbconn.Connection, built
// on godror and its OCI session pool.
type Oracle struct {
	*sqlbase.Client
	cfg    Config
	logger dbconn.Logger
}

// NewOracle validates cfg and builds an unconnected client.
func NewOracle(cfg Config, opts dbconn.Options, logger dbconn.Logger) (*Oracle, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	o := &Oracle{cfg: cfg, logger: logger}
	o.Client = sqlbase.New(sqlbase.Driver{
		Name:           dbconn.Oracle,
		Placeholder:    dbconn.Colon,
		Open:           o.open,
		Classify:       Classify,
		Savepoint:      func(name string) string { return "SAVEPOINT " + name },
		RollbackTo:     func(name string) string { return "ROLLBACK TO SAVEPOINT " + name },
		IsRead:         isRead,
		// Oracle DATE carries a time of day
		DateColumn:     func(string) bool { return false },
		DefaultRetry:   retry.DefaultPolicy(),
		ConnectTimeout: cfg.Pool.WaitTimeout + cfg.Pool.SessionTimeout,
	}, sqlbase.Endpoint{
		Host: cfg.Host,
		Port: cfg.Port,
		SSH:  cfg.SSH,
	}, opts, logger)
	return o, nil
}

// Config returns the effective configuration with defaults applied.
func (o *Oracle) Config() Config { return o.cfg }

// ExecuteQuery applies the configured CallTimeout to queries without their own.
func (o *Oracle) ExecuteQuery(ctx context.Context, q dbconn.Query) (dbconn.Result, error) {
	if q.Timeout == 0 {
		q.Timeout = o.cfg.CallTimeout
	}
	return o.Client.ExecuteQuery(ctx, q)
}

func (o *Oracle) open(_ context.Context, host string, port int) (*sql.DB, error) {
	o.logTarget(host, port)
	params := connectionParams(o.cfg, host, port)
	db := sql.OpenDB(godror.NewConnector(params))
	db.SetMaxOpenConns(o.cfg.Pool.MaxSessions)
	db.SetMaxIdleConns(o.cfg.Pool.MinSessions)
	return db, nil
}

func connectionParams(cfg Config, host string, port int) dsn.ConnectionParams {
	var p dsn.ConnectionParams
	p.Username = cfg.User
	p.Password = dsn.NewPassword(cfg.Password)
	p.ConnectString = connectString(cfg, host, port)
	p.Timezone = time.UTC

	p.MinSessions = cfg.Pool.MinSessions
	p.MaxSessions = cfg.Pool.MaxSessions
	p.SessionIncrement = cfg.Pool.Increment
	p.WaitTimeout = cfg.Pool.WaitTimeout
	p.MaxLifeTime = cfg.Pool.MaxLifetime
	p.SessionTimeout = cfg.Pool.SessionTimeout
	return p
}

// connectString renders host:port/service for service names and a full
// descriptor for SIDs, which the easy-connect syntax cannot express.
func connectString(cfg Config, host string, port int) string {
	if cfg.ServiceName != "" {
		return fmt.Sprintf("%s:%d/%s", host, port, cfg.ServiceName)
	}
	return fmt.Sprintf("(DESCRIPTION=(ADDRESS=(PROTOCOL=TCP)(HOST=%s)(PORT=%d))(CONNECT_DATA=(SID=%s)))",
		host, port, cfg.SID)
}

// buildDSN renders the logfmt DSN godror accepts, without the password.
func buildDSN(cfg Config, host string, port int) string {
	return connectionParams(cfg, host, port).String()
}

func (o *Oracle) logTarget(host string, port int) {
	if o.logger == nil {
		return
	}
	o.logger.Debug("Opening Oracle session pool", nil, map[string]interface{}{
		"backend": string(dbconn.Oracle),
		"dsn":     buildDSN(o.cfg, host, port),
	})
}

// isRead treats anonymous PL/SQL blocks as writes.
func isRead(query string) bool {
	switch strings.ToUpper(dbconn.LeadingKeyword(query)) {
	case "BEGIN", "DECLARE", "CALL":
		return false
	}
	return dbconn.IsReadQuery(query)
}
