package config

import (
	"fmt"
	"os"
	"time"
)

const (
	EnvCurrencyHome        = "REMIT_CURRENCY_HOME"
	EnvCurrencyProviderURL = "REMIT_CURRENCY_PROVIDER_URL"
	EnvCurrencyTimeout     = "REMIT_CURRENCY_TIMEOUT"
	EnvCurrencyCacheTTL    = "REMIT_CURRENCY_CACHE_TTL"
)

// CurrencyConfig holds home currency and exchange rate provider settings.
// An empty ProviderURL disables external rate lookups; foreign-currency
// invoices then carry a missing-rate warning instead of a conversion.
type CurrencyConfig struct {
	Home        string `toml:"home"`
	ProviderURL string `toml:"provider_url"`
	Timeout     string `toml:"timeout"`
	CacheTTL    string `toml:"cache_ttl"`
}

// TimeoutDuration returns Timeout as a time.Duration.
func (c *CurrencyConfig) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	return d
}

// CacheTTLDuration returns CacheTTL as a time.Duration.
func (c *CurrencyConfig) CacheTTLDuration() time.Duration {
	d, _ := time.ParseDuration(c.CacheTTL)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *CurrencyConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *CurrencyConfig) Merge(overlay *CurrencyConfig) {
	if overlay.Home != "" {
		c.Home = overlay.Home
	}
	if overlay.ProviderURL != "" {
		c.ProviderURL = overlay.ProviderURL
	}
	if overlay.Timeout != "" {
		c.Timeout = overlay.Timeout
	}
	if overlay.CacheTTL != "" {
		c.CacheTTL = overlay.CacheTTL
	}
}

func (c *CurrencyConfig) loadDefaults() {
	if c.Home == "" {
		c.Home = "JPY"
	}
	if c.Timeout == "" {
		c.Timeout = "10s"
	}
	if c.CacheTTL == "" {
		c.CacheTTL = "1h"
	}
}

func (c *CurrencyConfig) loadEnv() {
	if v := os.Getenv(EnvCurrencyHome); v != "" {
		c.Home = v
	}
	if v := os.Getenv(EnvCurrencyProviderURL); v != "" {
		c.ProviderURL = v
	}
	if v := os.Getenv(EnvCurrencyTimeout); v != "" {
		c.Timeout = v
	}
	if v := os.Getenv(EnvCurrencyCacheTTL); v != "" {
		c.CacheTTL = v
	}
}

func (c *CurrencyConfig) validate() error {
	if len(c.Home) != 3 {
		return fmt.Errorf("home must be a three-letter currency code")
	}
	if _, err := time.ParseDuration(c.Timeout); err != nil {
		return fmt.Errorf("invalid timeout: %w", err)
	}
	if _, err := time.ParseDuration(c.CacheTTL); err != nil {
		return fmt.Errorf("invalid cache_ttl: %w", err)
	}
	return nil
}
