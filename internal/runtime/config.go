package runtime

import (
	"fmt"
	"time"
)

const defaultSessionRetention = "24h"

// Config controls the composed domain services.
type Config struct {
	Memory    MemoryConfig    `yaml:"memory"`
	Licensing LicensingConfig `yaml:"licensing"`
	Sweeps    SweepConfig     `yaml:"sweeps"`
	Sessions  SessionConfig   `yaml:"sessions"`
}

// MemoryConfig sets the lifecycle policy for the memory service.
type MemoryConfig struct {
	// MaxRecordsPerTenant caps each tenant's record count. 0 means no cap.
	MaxRecordsPerTenant int `yaml:"max_records_per_tenant"`

	// EvictShortTermFirst prefers short_term records when evicting at
	// equal rank.
	EvictShortTermFirst bool `yaml:"evict_short_term_first"`
}

// LicensingConfig controls quota enforcement.
type LicensingConfig struct {
	// Enforce requires every tenant to hold a valid license before it can
	// store memories. Defaults to true.
	Enforce *bool `yaml:"enforce"`
}

// SweepConfig overrides the cron expressions of the background jobs.
// Empty fields keep each job's built-in default.
type SweepConfig struct {
	Capacity string `yaml:"capacity"`
	License  string `yaml:"license"`
	Sessions string `yaml:"sessions"`
}

// SessionConfig controls closed-session retention.
type SessionConfig struct {
	// Retention is a Go duration string. Closed sessions untouched for
	// longer than this are pruned.
	Retention string `yaml:"retention"`
}

func (c *Config) defaults() {
	if c.Licensing.Enforce == nil {
		enforce := true
		c.Licensing.Enforce = &enforce
	}
	if c.Sessions.Retention == "" {
		c.Sessions.Retention = defaultSessionRetention
	}
}

func (c *Config) validate() error {
	if c.Memory.MaxRecordsPerTenant < 0 {
		return fmt.Errorf("runtime: max_records_per_tenant must not be negative")
	}
	if _, err := time.ParseDuration(c.Sessions.Retention); err != nil {
		return fmt.Errorf("runtime: invalid session retention %q: %w", c.Sessions.Retention, err)
	}
	return nil
}

func (c *Config) retention() time.Duration {
	d, err := time.ParseDuration(c.Sessions.Retention)
	if err != nil {
		// validate() runs before any caller of retention().
		panic(err)
	}
	return d
}
