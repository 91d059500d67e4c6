package mysql

import (
	"time"

	"github.com/Aleph-Alpha/etl-manager/v1/dbconn"
	"github.com/Aleph-Alpha/etl-manager/v1/sshtunnel"
)

const (
	DefaultPort            = 3306
	DefaultCharset         = "utf8mb4"
	DefaultPoolSize        = 10
	DefaultConnectTimeout  = 30 * time.Second
	DefaultConnMaxLifetime = time.Hour
)

// Config defines the configuration of the MySQL/MariaDB client.
type Config struct {
	Connection        Connection        `yaml:"connection"`
	ConnectionDetails ConnectionDetails `yaml:"connection_details"`
	SSH               *sshtunnel.Config `yaml:"ssh"`
}

// Connection holds the network and credential settings.
type Connection struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DbName   string `yaml:"db_name"`
	Charset  string `yaml:"charset"`

	// TLS is passed through as the driver's tls parameter
	// ("true", "skip-verify", "preferred" or a registered config name).
	TLS string `yaml:"tls"`
}

// ConnectionDetails holds pool sizing and socket timeouts.
type ConnectionDetails struct {
	PoolSize        int           `yaml:"pool_size"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
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
	if c.SSH != nil {
		if err := c.SSH.Validate(); err != nil {
			return dbconn.NewValidationError(dbconn.MySQL, "config", err.Error(), err)
		}
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.Connection.Port == 0 {
		c.Connection.Port = DefaultPort
	}
	if c.Connection.Charset == "" {
		c.Connection.Charset = DefaultCharset
	}
	if c.ConnectionDetails.PoolSize <= 0 {
		c.ConnectionDetails.PoolSize = DefaultPoolSize
	}
	if c.ConnectionDetails.ConnectTimeout <= 0 {
		c.ConnectionDetails.ConnectTimeout = DefaultConnectTimeout
	}
	if c.ConnectionDetails.ConnMaxLifetime <= 0 {
		c.ConnectionDetails.ConnMaxLifetime = DefaultConnMaxLifetime
	}
	return c
}

func missing(field string) error {
	return dbconn.NewValidationError(dbconn.MySQL, "config", "missing required field: "+field, nil)
}
