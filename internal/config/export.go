package config

import (
	"fmt"
	"os"
	"time"
)

const (
	EnvExportEndpoint = "REMIT_EXPORT_ENDPOINT"
	EnvExportTimeout  = "REMIT_EXPORT_TIMEOUT"
)

// ExportConfig holds accounting target settings. An empty Endpoint keeps
// exports local: batch ids are generated in-process and nothing leaves
// the service.
type ExportConfig struct {
	Endpoint string `toml:"endpoint"`
	Timeout  string `toml:"timeout"`
}

// TimeoutDuration returns Timeout as a time.Duration.
func (c *ExportConfig) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *ExportConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *ExportConfig) Merge(overlay *ExportConfig) {
	if overlay.Endpoint != "" {
		c.Endpoint = overlay.Endpoint
	}
	if overlay.Timeout != "" {
		c.Timeout = overlay.Timeout
	}
}

func (c *ExportConfig) loadDefaults() {
	if c.Timeout == "" {
		c.Timeout = "30s"
	}
}

func (c *ExportConfig) loadEnv() {
	if v := os.Getenv(EnvExportEndpoint); v != "" {
		c.Endpoint = v
	}
	if v := os.Getenv(EnvExportTimeout); v != "" {
		c.Timeout = v
	}
}

func (c *ExportConfig) validate() error {
	if _, err := time.ParseDuration(c.Timeout); err != nil {
		return fmt.Errorf("invalid timeout: %w", err)
	}
	return nil
}
