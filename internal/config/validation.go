package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/shopspring/decimal"
)

const (
	EnvValidationWeightRequired   = "REMIT_VALIDATION_WEIGHT_REQUIRED"
	EnvValidationWeightImportant  = "REMIT_VALIDATION_WEIGHT_IMPORTANT"
	EnvValidationWeightOptional   = "REMIT_VALIDATION_WEIGHT_OPTIONAL"
	EnvValidationLineSumTolerance = "REMIT_VALIDATION_LINE_SUM_TOLERANCE"
)

// ValidationConfig holds completeness weights and numeric tolerances for
// the validation engine.
type ValidationConfig struct {
	WeightRequired   int    `toml:"weight_required"`
	WeightImportant  int    `toml:"weight_important"`
	WeightOptional   int    `toml:"weight_optional"`
	LineSumTolerance string `toml:"line_sum_tolerance"`
}

// LineSumToleranceDecimal returns LineSumTolerance as a decimal.
func (c *ValidationConfig) LineSumToleranceDecimal() decimal.Decimal {
	d, _ := decimal.NewFromString(c.LineSumTolerance)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *ValidationConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *ValidationConfig) Merge(overlay *ValidationConfig) {
	if overlay.WeightRequired != 0 {
		c.WeightRequired = overlay.WeightRequired
	}
	if overlay.WeightImportant != 0 {
		c.WeightImportant = overlay.WeightImportant
	}
	if overlay.WeightOptional != 0 {
		c.WeightOptional = overlay.WeightOptional
	}
	if overlay.LineSumTolerance != "" {
		c.LineSumTolerance = overlay.LineSumTolerance
	}
}

func (c *ValidationConfig) loadDefaults() {
	if c.WeightRequired == 0 {
		c.WeightRequired = 3
	}
	if c.WeightImportant == 0 {
		c.WeightImportant = 2
	}
	if c.WeightOptional == 0 {
		c.WeightOptional = 1
	}
	if c.LineSumTolerance == "" {
		c.LineSumTolerance = "1"
	}
}

func (c *ValidationConfig) loadEnv() {
	if v := os.Getenv(EnvValidationWeightRequired); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.WeightRequired = n
		}
	}
	if v := os.Getenv(EnvValidationWeightImportant); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.WeightImportant = n
		}
	}
	if v := os.Getenv(EnvValidationWeightOptional); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.WeightOptional = n
		}
	}
	if v := os.Getenv(EnvValidationLineSumTolerance); v != "" {
		c.LineSumTolerance = v
	}
}

func (c *ValidationConfig) validate() error {
	if c.WeightRequired < 0 || c.WeightImportant < 0 || c.WeightOptional < 0 {
		return fmt.Errorf("weights must not be negative")
	}
	if _, err := decimal.NewFromString(c.LineSumTolerance); err != nil {
		return fmt.Errorf("invalid line_sum_tolerance: %w", err)
	}
	return nil
}
