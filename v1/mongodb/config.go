package mongodb

import (
	"time"

	"github.com/Aleph-Alpha/etl-manager/v1/dbconn"
	"github.com/Aleph-Alpha/etl-manager/v1/sshtunnel"
)

const (
	DefaultPort           = 27017
	DefaultAuthSource     = "admin"
	DefaultMaxPoolSize    = 100
	DefaultConnectTimeout = 30 * time.Second
	DefaultBatchSize      = 1000
)

// Config defines the configuration of the MongoDB client.
type Config struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`

	// Collection is used by operations that do not name one.
	Collection string `yaml:"collection"`

	AuthSource     string        `yaml:"auth_source"`
	MaxPoolSize    uint64        `yaml:"max_pool_size"`
	MinPoolSize    uint64        `yaml:"min_pool_size"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	TLS            bool          `yaml:"tls"`

	SSH *sshtunnel.Config `yaml:"ssh"`
}

// Validate reports the first missing required field.
func (c Config) Validate() error {
	switch {
	case c.Host == "":
		return missing("host")
	case c.Database == "":
		return missing("database")
	case c.User == "" && c.Password != "":
		return missing("user")
	}
	if c.SSH != nil {
		if err := c.SSH.Validate(); err != nil {
			return dbconn.NewValidationError(dbconn.MongoDB, "config", err.Error(), err)
		}
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.AuthSource == "" {
		c.AuthSource = DefaultAuthSource
	}
	if c.MaxPoolSize == 0 {
		c.MaxPoolSize = DefaultMaxPoolSize
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	return c
}

func missing(field string) error {
	return dbconn.NewValidationError(dbconn.MongoDB, "config", "missing required field: "+field, nil)
}
