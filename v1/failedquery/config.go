package failedquery

import "time"

// Config bounds the failed query queue.
type Config struct {
	// Capacity is the maximum number of in-memory entries.
	// Default: 1000
	Capacity int `yaml:"capacity"`

	// MaxRetries is the replay cap. Entries that reached it are dropped on the next pass.
	// Default: 3
	MaxRetries int `yaml:"max_retries"`

	// EvictRetries is the retry count at which Cleanup evicts an entry.
	// Default: 5
	EvictRetries int `yaml:"evict_retries"`

	// Retention is the maximum entry age kept by Cleanup.
	// Default: 30 days
	Retention time.Duration `yaml:"retention"`

	// FallbackPath receives one JSON line per entry that does not fit in memory.
	// Empty disables the fallback.
	FallbackPath string `yaml:"fallback_path"`
}

func (c Config) withDefaults() Config {
	if c.Capacity <= 0 {
		c.Capacity = 1000
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.EvictRetries <= 0 {
		c.EvictRetries = 5
	}
	if c.Retention <= 0 {
		c.Retention = 30 * 24 * time.Hour
	}
	return c
}
