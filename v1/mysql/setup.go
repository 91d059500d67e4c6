package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strconv"

	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Aleph-Alpha/etl-manager/v1/dbconn"
	"github.com/Aleph-Alpha/etl-manager/v1/retry"
	"github.com/Aleph-Alpha/etl-manager/v1/sqlbase"
)

// MySQL is the MySQL/MariaDB implementation of dbconn.Connection.
type MySQL struct {
	*sqlbase.Client
	cfg Config
}

// NewMySQL validates cfg and builds an unconnected client.
func NewMySQL(cfg Config, opts dbconn.Options, logger dbconn.Logger) (*MySQL, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	m := &MySQL{cfg: cfg}
	m.Client = sqlbase.New(sqlbase.Driver{
		Name:           dbconn.MySQL,
		Placeholder:    dbconn.Question,
		Open:           m.open,
		Classify:       Classify,
		Savepoint:      func(name string) string { return "SAVEPOINT " + name },
		RollbackTo:     func(name string) string { return "ROLLBACK TO SAVEPOINT " + name },
		DefaultRetry:   retry.DefaultPolicy(),
		ConnectTimeout: cfg.ConnectionDetails.ConnectTimeout,
	}, sqlbase.Endpoint{
		Host: cfg.Connection.Host,
		Port: cfg.Connection.Port,
		SSH:  cfg.SSH,
	}, opts, logger)
	return m, nil
}

// Config returns the effective configuration with defaults applied.
func (m *MySQL) Config() Config { return m.cfg }

// open builds the DSN, opens it with GORM and configures the pool.
func (m *MySQL) open(_ context.Context, host string, port int) (*sql.DB, error) {
	database, err := gorm.Open(
		mysql.New(mysql.Config{DSN: buildDSN(m.cfg, host, port)}),
		&gorm.Config{
			TranslateError:       true,
			DisableAutomaticPing: true,
			Logger:               gormlogger.Default.LogMode(gormlogger.Silent),
		})
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	databaseInstance, err := database.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get MySQL database instance: %w", err)
	}

	details := m.cfg.ConnectionDetails
	databaseInstance.SetMaxOpenConns(details.PoolSize)
	databaseInstance.SetMaxIdleConns(details.PoolSize)
	databaseInstance.SetConnMaxLifetime(details.ConnMaxLifetime)
	return databaseInstance, nil
}

// buildDSN renders username:password@tcp(host:port)/dbname?params through
// the driver's own formatter so credentials are escaped correctly.
func buildDSN(cfg Config, host string, port int) string {
	c, d := cfg.Connection, cfg.ConnectionDetails

	dc := mysqldriver.NewConfig()
	dc.User = c.User
	dc.Passwd = c.Password
	dc.Net = "tcp"
	dc.Addr = net.JoinHostPort(host, strconv.Itoa(port))
	dc.DBName = c.DbName
	dc.ParseTime = true
	dc.Timeout = d.ConnectTimeout
	dc.ReadTimeout = d.ReadTimeout
	dc.WriteTimeout = d.WriteTimeout
	dc.TLSConfig = c.TLS
	dc.Params = map[string]string{"charset": c.Charset}
	return dc.FormatDSN()
}
