package sqlserver

import (
	"time"

	"github.com/Aleph-Alpha/etl-manager/v1/dbconn"
	"github.com/Aleph-Alpha/etl-manager/v1/sshtunnel"
)

const (
	DefaultPort           = 1433
	DefaultMaxPoolSize    = 100
	DefaultConnectTimeout = 30 * time.Second
	DefaultAppName        = "etl-manager"
)

// Config defines the configuration of the SQL Server client.
type Config struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`

	// Instance names a SQL Server instance on Host.
	Instance string `yaml:"instance"`

	// Encrypt is passed as the encrypt parameter ("true", "false", "disable").
	Encrypt                string `yaml:"encrypt"`
	TrustServerCertificate bool   `yaml:"trust_server_certificate"`

	MaxPoolSize     int           `yaml:"max_pool_size"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
	AppName         string        `yaml:"app_name"`

	SSH *sshtunnel.Config `yaml:"ssh"`
}

// Validate reports the first missing required field.
func (c Config) Validate() error {
	switch {
	case c.Host == "":
		return missing("host")
	case c.User == "":
		return missing("user")
	case c.Database == "":
		return missing("database")
	}
	if c.SSH != nil {
		if err := c.SSH.Validate(); err != nil {
			return dbconn.NewValidationError(dbconn.SQLServer, "config", err.Error(), err)
		}
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.MaxPoolSize <= 0 {
		c.MaxPoolSize = DefaultMaxPoolSize
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.AppName == "" {
		c.AppName = DefaultAppName
	}
	return c
}

func missing(field string) error {
	return dbconn.NewValidationError(dbconn.SQLServer, "config", "missing required field: "+field, nil)
}
