package sqlite

import (
	"time"

	"github.com/Aleph-Alpha/etl-manager/v1/dbconn"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

const DefaultBusyTimeout = 5 * time.Second

// Config defines the configuration of the SQLite client.
type Config struct {
	// Path is the database file, or MemoryPath.
	Path string `yaml:"path"`

	// BusyTimeout is how long SQLite waits on a locked database before
	// failing with SQLITE_BUSY. Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`

	// ForeignKeys enables constraint enforcement. Nil means enabled.
	ForeignKeys *bool `yaml:"foreign_keys"`
}

// Validate reports a missing path.
func (c Config) Validate() error {
	if c.Path == "" {
		return dbconn.NewValidationError(dbconn.SQLite, "config", "missing required field: path", nil)
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.BusyTimeout <= 0 {
		c.BusyTimeout = DefaultBusyTimeout
	}
	if c.ForeignKeys == nil {
		on := true
		c.ForeignKeys = &on
	}
	return c
}
