// Package validation implements the rule-driven quality gate applied to
// extracted invoices. Rules produce errors (blocking) or warnings
// (advisory); an invoice is valid when no rule produced an error. The
// engine also scores completeness as a weighted fraction of filled fields.
package validation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JaimeStill/remit/internal/invoices"
)

// Severity classifies a rule outcome. Errors block validity; warnings are
// carried on the invoice for reviewers but never block.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Weights control how much each field class contributes to the
// completeness score.
type Weights struct {
	Required  int `toml:"required"`
	Important int `toml:"important"`
	Optional  int `toml:"optional"`
}

// Options tunes the validation engine.
type Options struct {
	Weights Weights
	// LineSumTolerance is the largest absolute difference between the
	// sum of line amounts and the invoice total that passes silently.
	LineSumTolerance decimal.Decimal
}

// DuplicateChecker locates other invoices sharing the issuer, invoice
// number, and total triple. Satisfied by invoices.System.
type DuplicateChecker interface {
	CountDuplicates(ctx context.Context, key invoices.DuplicateKey, exclude uuid.UUID) (int, error)
}

// Engine evaluates the rule table against an invoice.
type Engine struct {
	opts   Options
	logger *slog.Logger
}

// New creates a validation engine with the given options.
func New(logger *slog.Logger, opts Options) *Engine {
	if opts.Weights.Required == 0 {
		opts.Weights.Required = 3
	}
	if opts.Weights.Important == 0 {
		opts.Weights.Important = 2
	}
	if opts.Weights.Optional == 0 {
		opts.Weights.Optional = 1
	}
	if opts.LineSumTolerance.IsZero() {
		opts.LineSumTolerance = decimal.NewFromInt(1)
	}

	return &Engine{
		opts:   opts,
		logger: logger.With("system", "validation"),
	}
}

// Validate runs every rule against the invoice and returns the command to
// persist. The duplicate check is best-effort: a lookup failure is logged
// and skipped rather than failing the whole validation.
func (e *Engine) Validate(
	ctx context.Context,
	inv *invoices.Invoice,
	items []invoices.LineItem,
	dup DuplicateChecker,
) *invoices.ValidationCommand {
	subj := subject{invoice: inv, items: items}

	cmd := &invoices.ValidationCommand{
		Errors:   []string{},
		Warnings: []string{},
	}

	for _, r := range rules {
		message := r.check(subj)
		if message == "" {
			continue
		}

		switch r.severity {
		case SeverityError:
			cmd.Errors = append(cmd.Errors, message)
		case SeverityWarning:
			cmd.Warnings = append(cmd.Warnings, message)
		}
	}

	if warning := lineSumMismatch(subj, e.opts.LineSumTolerance); warning != "" {
		cmd.Warnings = append(cmd.Warnings, warning)
	}

	if warning := e.checkDuplicate(ctx, inv, dup); warning != "" {
		cmd.Warnings = append(cmd.Warnings, warning)
	}

	cmd.IsValid = len(cmd.Errors) == 0
	cmd.CompletenessScore = e.completeness(subj)

	e.logger.Info("invoice validated",
		"id", inv.ID,
		"valid", cmd.IsValid,
		"errors", len(cmd.Errors),
		"warnings", len(cmd.Warnings),
		"completeness", cmd.CompletenessScore.String(),
	)
	return cmd
}

func (e *Engine) checkDuplicate(ctx context.Context, inv *invoices.Invoice, dup DuplicateChecker) string {
	if dup == nil || inv.IssuerName == nil || inv.InvoiceNumber == nil || !inv.TotalInclusiveTax.Valid {
		return ""
	}

	key := invoices.DuplicateKey{
		Issuer:        *inv.IssuerName,
		InvoiceNumber: *inv.InvoiceNumber,
		Total:         inv.TotalInclusiveTax.Decimal,
	}

	count, err := dup.CountDuplicates(ctx, key, inv.ID)
	if err != nil {
		e.logger.Warn("duplicate check failed", "id", inv.ID, "error", err)
		return ""
	}

	if count > 0 {
		return fmt.Sprintf(
			"possible duplicate: %d other invoice(s) share issuer, number, and total",
			count,
		)
	}
	return ""
}

// completeness scores the invoice as the weighted fraction of filled
// fields, expressed as a percentage rounded to one decimal place.
func (e *Engine) completeness(s subject) decimal.Decimal {
	var filled, total int

	for _, f := range completenessFields {
		weight := e.weightFor(f.class)
		total += weight
		if f.filled(s) {
			filled += weight
		}
	}

	if total == 0 {
		return decimal.Zero
	}

	return decimal.NewFromInt(int64(filled)).
		Div(decimal.NewFromInt(int64(total))).
		Mul(decimal.NewFromInt(100)).
		Round(1)
}

func (e *Engine) weightFor(c fieldClass) int {
	switch c {
	case classRequired:
		return e.opts.Weights.Required
	case classImportant:
		return e.opts.Weights.Important
	default:
		return e.opts.Weights.Optional
	}
}
