package api

import (
	"github.com/JaimeStill/remit/internal/config"
	"github.com/JaimeStill/remit/internal/currency"
	"github.com/JaimeStill/remit/internal/exporting"
	"github.com/JaimeStill/remit/internal/extraction"
	"github.com/JaimeStill/remit/internal/intakes"
	"github.com/JaimeStill/remit/internal/invoices"
	"github.com/JaimeStill/remit/internal/pipeline"
	"github.com/JaimeStill/remit/internal/sandbox"
	"github.com/JaimeStill/remit/internal/validation"
)

// Domain holds all domain systems that comprise the API.
type Domain struct {
	Intakes   intakes.System
	Invoices  invoices.System
	Pipeline  pipeline.System
	Exporting exporting.System
	Sandbox   sandbox.System
}

// NewDomain creates all domain systems from the API runtime.
func NewDomain(cfg *config.Config, runtime *Runtime) *Domain {
	intakeSystem := intakes.New(
		runtime.Database.Connection(),
		runtime.Storage,
		runtime.Logger,
		runtime.Pagination,
	)

	invoiceSystem := invoices.New(
		runtime.Database.Connection(),
		runtime.Logger,
		runtime.Pagination,
	)

	extractionSystem := extraction.New(
		runtime.Agent,
		intakeSystem,
		runtime.Logger,
		extraction.Options{
			MaxAttempts:      uint64(cfg.Pipeline.MaxAttempts),
			RetryInterval:    cfg.Pipeline.RetryIntervalDuration(),
			FallbackCurrency: cfg.Currency.Home,
		},
	)

	validationEngine := validation.New(runtime.Logger, validation.Options{
		Weights: validation.Weights{
			Required:  cfg.Validation.WeightRequired,
			Important: cfg.Validation.WeightImportant,
			Optional:  cfg.Validation.WeightOptional,
		},
		LineSumTolerance: cfg.Validation.LineSumToleranceDecimal(),
	})

	var provider currency.RateProvider = currency.StaticProvider{}
	if cfg.Currency.ProviderURL != "" {
		provider = currency.NewHTTPProvider(cfg.Currency.ProviderURL, cfg.Currency.TimeoutDuration())
	}

	normalizer := currency.NewNormalizer(
		cfg.Currency.Home,
		provider,
		runtime.Logger,
		cfg.Currency.CacheTTLDuration(),
	)

	pipelineSystem := pipeline.New(
		&pipeline.Runtime{
			Invoices:   invoiceSystem,
			Extraction: extractionSystem,
			Validation: validationEngine,
			Currency:   normalizer,
			Logger:     runtime.Logger,
		},
		pipeline.Options{
			MaxWorkers:   cfg.Pipeline.MaxWorkers,
			DefaultLimit: cfg.Pipeline.DefaultLimit,
		},
	)

	var connector exporting.Connector = exporting.LocalConnector{}
	if cfg.Export.Endpoint != "" {
		connector = exporting.NewLedgerConnector(cfg.Export.Endpoint, cfg.Export.TimeoutDuration())
	}

	exportingSystem := exporting.New(invoiceSystem, connector, runtime.Logger)

	sandboxSystem := sandbox.New(
		runtime.Database.Connection(),
		runtime.Logger,
		runtime.Pagination,
	)

	return &Domain{
		Intakes:   intakeSystem,
		Invoices:  invoiceSystem,
		Pipeline:  pipelineSystem,
		Exporting: exportingSystem,
		Sandbox:   sandboxSystem,
	}
}
