package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	EnvPipelineMaxWorkers    = "REMIT_PIPELINE_MAX_WORKERS"
	EnvPipelineDefaultLimit  = "REMIT_PIPELINE_DEFAULT_LIMIT"
	EnvPipelineMaxAttempts   = "REMIT_PIPELINE_MAX_ATTEMPTS"
	EnvPipelineRetryInterval = "REMIT_PIPELINE_RETRY_INTERVAL"
)

// PipelineConfig holds batch processing and extraction retry parameters.
type PipelineConfig struct {
	MaxWorkers    int    `toml:"max_workers"`
	DefaultLimit  int    `toml:"default_limit"`
	MaxAttempts   int    `toml:"max_attempts"`
	RetryInterval string `toml:"retry_interval"`
}

// RetryIntervalDuration returns RetryInterval as a time.Duration.
func (c *PipelineConfig) RetryIntervalDuration() time.Duration {
	d, _ := time.ParseDuration(c.RetryInterval)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *PipelineConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *PipelineConfig) Merge(overlay *PipelineConfig) {
	if overlay.MaxWorkers != 0 {
		c.MaxWorkers = overlay.MaxWorkers
	}
	if overlay.DefaultLimit != 0 {
		c.DefaultLimit = overlay.DefaultLimit
	}
	if overlay.MaxAttempts != 0 {
		c.MaxAttempts = overlay.MaxAttempts
	}
	if overlay.RetryInterval != "" {
		c.RetryInterval = overlay.RetryInterval
	}
}

func (c *PipelineConfig) loadDefaults() {
	if c.MaxWorkers == 0 {
		c.MaxWorkers = 4
	}
	if c.DefaultLimit == 0 {
		c.DefaultLimit = 20
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 3
	}
	if c.RetryInterval == "" {
		c.RetryInterval = "2s"
	}
}

func (c *PipelineConfig) loadEnv() {
	if v := os.Getenv(EnvPipelineMaxWorkers); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxWorkers = n
		}
	}
	if v := os.Getenv(EnvPipelineDefaultLimit); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.DefaultLimit = n
		}
	}
	if v := os.Getenv(EnvPipelineMaxAttempts); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxAttempts = n
		}
	}
	if v := os.Getenv(EnvPipelineRetryInterval); v != "" {
		c.RetryInterval = v
	}
}

func (c *PipelineConfig) validate() error {
	if c.MaxWorkers < 1 {
		return fmt.Errorf("max_workers must be at least 1")
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be at least 1")
	}
	if _, err := time.ParseDuration(c.RetryInterval); err != nil {
		return fmt.Errorf("invalid retry_interval: %w", err)
	}
	return nil
}
