package postgres

import (
	"time"

	"github.com/Aleph-Alpha/etl-manager/v1/dbconn"
	"github.com/Aleph-Alpha/etl-manager/v1/sshtunnel"
)

// Driver names accepted in Connection.Driver.
const (
	DriverPgx = "pgx"
	DriverPq  = "pq"
)

// Pool and session defaults applied when the corresponding field is zero.
const (
	DefaultPort             = 5432
	DefaultSSLMode          = "disable"
	DefaultApplicationName  = "etl-manager"
	DefaultMinConns         = 2
	DefaultMaxConns         = 10
	DefaultConnectTimeout   = 30 * time.Second
	DefaultStatementTimeout = 30 * time.Second
	DefaultConnMaxLifetime  = time.Hour
)

// Config defines the top-level configuration structure for the Postgres client.
type Config struct {
	Connection        Connection        `yaml:"connection"`
	ConnectionDetails ConnectionDetails `yaml:"connection_details"`

	// SSH routes the connection through a bastion when set.
	SSH *sshtunnel.Config `yaml:"ssh"`
}

// Connection holds the network and credential settings.
type Connection struct {
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	User            string `yaml:"user"`
	Password        string `yaml:"password"`
	DbName          string `yaml:"db_name"`
	SSLMode         string `yaml:"ssl_mode"`
	ApplicationName string `yaml:"application_name"`

	// Driver selects the database/sql driver: "pgx" (default) or "pq".
	Driver string `yaml:"driver"`
}

// ConnectionDetails holds pool and session tuning.
type ConnectionDetails struct {
	MinConns         int           `yaml:"min_conns"`
	MaxConns         int           `yaml:"max_conns"`
	ConnMaxLifetime  time.Duration `yaml:"conn_max_lifetime"`
	ConnectTimeout   time.Duration `yaml:"connect_timeout"`
	StatementTimeout time.Duration `yaml:"statement_timeout"`
}

// Validate reports the first missing required field.
func (c Config) Validate() error {
	switch {
	case c.Connection.Host == "":
		return missing("host")
	case c.Connection.User == "":
		return missing("user")
	case c.Connection.DbName == "":
		return missing("db_name")
	}
	switch c.Connection.Driver {
	case "", DriverPgx, DriverPq:
	default:
		return dbconn.NewValidationError(dbconn.PostgreSQL, "config", "unknown driver: "+c.Connection.Driver, nil)
	}
	if c.SSH != nil {
		if err := c.SSH.Validate(); err != nil {
			return dbconn.NewValidationError(dbconn.PostgreSQL, "config", err.Error(), err)
		}
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.Connection.Port == 0 {
		c.Connection.Port = DefaultPort
	}
	if c.Connection.SSLMode == "" {
		c.Connection.SSLMode = DefaultSSLMode
	}
	if c.Connection.ApplicationName == "" {
		c.Connection.ApplicationName = DefaultApplicationName
	}
	if c.Connection.Driver == "" {
		c.Connection.Driver = DriverPgx
	}
	d := &c.ConnectionDetails
	if d.MinConns == 0 {
		d.MinConns = DefaultMinConns
	}
	if d.MaxConns == 0 {
		d.MaxConns = DefaultMaxConns
	}
	if d.ConnMaxLifetime == 0 {
		d.ConnMaxLifetime = DefaultConnMaxLifetime
	}
	if d.ConnectTimeout == 0 {
		d.ConnectTimeout = DefaultConnectTimeout
	}
	if d.StatementTimeout == 0 {
		d.StatementTimeout = DefaultStatementTimeout
	}
	return c
}

func missing(field string) error {
	return dbconn.NewValidationError(dbconn.PostgreSQL, "config", "missing required field: "+field, nil)
}
