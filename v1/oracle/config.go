package oracle

import (
	"time"

	"github.com/Aleph-Alpha/etl-manager/v1/dbconn"
	"github.com/Aleph-Alpha/etl-manager/v1/sshtunnel"
)

const (
	DefaultPort           = 1521
	DefaultMinSessions    = 2
	DefaultMaxSessions    = 10
	DefaultIncrement      = 1
	DefaultWaitTimeout    = 10 * time.Second
	DefaultMaxLifetime    = 8 * time.Hour
	DefaultSessionTimeout = 30 * time.Second
)

// Config defines the configuration of the Oracle client. Exactly one of
// ServiceName and SID must be set.
type Config struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	User        string `yaml:"user"`
	Password    string `yaml:"password"`
	ServiceName string `yaml:"service_name"`
	SID         string `yaml:"sid"`

	Pool PoolConfig `yaml:"pool"`

	// CallTimeout is the default per-call bound. Zero leaves calls unbounded
	// unless the query carries its own timeout.
	CallTimeout time.Duration `yaml:"call_timeout"`

	SSH *sshtunnel.Config `yaml:"ssh"`
}

// PoolConfig maps onto the OCI session pool.
type PoolConfig struct {
	MinSessions    int           `yaml:"min_sessions"`
	MaxSessions    int           `yaml:"max_sessions"`
	Increment      int           `yaml:"increment"`
	WaitTimeout    time.Duration `yaml:"wait_timeout"`
	MaxLifetime    time.Duration `yaml:"max_lifetime"`
	SessionTimeout time.Duration `yaml:"session_timeout"`
}

// Validate reports the first missing required field.
func (c Config) Validate() error {
	switch {
	case c.Host == "":
		return missing("host")
	case c.User == "":
		return missing("user")
	case c.ServiceName == "" && c.SID == "":
		return missing("service_name or sid")
	case c.ServiceName != "" && c.SID != "":
		return dbconn.NewValidationError(dbconn.Oracle, "config", "service_name and sid are mutually exclusive", nil)
	}
	if c.SSH != nil {
		if err := c.SSH.Validate(); err != nil {
			return dbconn.NewValidationError(dbconn.Oracle, "config", err.Error(), err)
		}
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	p := &c.Pool
	if p.MinSessions <= 0 {
		p.MinSessions = DefaultMinSessions
	}
	if p.MaxSessions <= 0 {
		p.MaxSessions = DefaultMaxSessions
	}
	if p.Increment <= 0 {
		p.Increment = DefaultIncrement
	}
	if p.WaitTimeout <= 0 {
		p.WaitTimeout = DefaultWaitTimeout
	}
	if p.MaxLifetime <= 0 {
		p.MaxLifetime = DefaultMaxLifetime
	}
	if p.SessionTimeout <= 0 {
		p.SessionTimeout = DefaultSessionTimeout
	}
	return c
}

func missing(field string) error {
	return dbconn.NewValidationError(dbconn.Oracle, "config", "missing required field: "+field, nil)
}
