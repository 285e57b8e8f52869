// Package pipeline drives invoices through the processing stages with a
// bounded worker pool. Each invoice runs an independent state graph, so
// one failure never takes down the batch, and overlapping batch requests
// are de-conflicted with an in-process claim set.
package pipeline

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/JaimeStill/remit/internal/currency"
	"github.com/JaimeStill/remit/internal/extraction"
	"github.com/JaimeStill/remit/internal/invoices"
	"github.com/JaimeStill/remit/internal/validation"
)

// Runtime bundles the dependencies that pipeline stages require.
// It is constructed by higher-level composition code from Infrastructure
// and Domain systems.
type Runtime struct {
	Invoices   invoices.System
	Extraction extraction.System
	Validation *validation.Engine
	Currency   *currency.Normalizer
	Logger     *slog.Logger
}

// Options tunes batch execution.
type Options struct {
	// MaxWorkers bounds concurrent invoice processing within a batch.
	MaxWorkers int
	// DefaultLimit caps how many pending invoices a batch without an
	// explicit invoice list picks up.
	DefaultLimit int
}

// ProcessCommand selects the invoices for a batch. When InvoiceIDs is
// empty, pending invoices are picked up oldest first, capped by Limit.
type ProcessCommand struct {
	InvoiceIDs []uuid.UUID `json:"invoice_ids"`
	Limit      int         `json:"limit"`
}

// ItemResult reports one invoice's outcome within a batch.
type ItemResult struct {
	InvoiceID uuid.UUID       `json:"invoice_id"`
	Status    invoices.Status `json:"status,omitempty"`
	Skipped   bool            `json:"skipped,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// BatchResult reports the outcome of a whole processing batch.
type BatchResult struct {
	Requested int          `json:"requested"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Skipped   int          `json:"skipped"`
	Items     []ItemResult `json:"items"`
}

// System defines the public contract for pipeline operations.
type System interface {
	Handler() *Handler
	Process(ctx context.Context, cmd ProcessCommand) (*BatchResult, error)
}

type runner struct {
	rt     *Runtime
	opts   Options
	claims *claims
	logger *slog.Logger
}

// New creates a pipeline runner implementing the System interface.
func New(rt *Runtime, opts Options) System {
	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = 4
	}
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = 20
	}

	logger := rt.Logger.With("system", "pipeline")
	rt.Logger = logger

	return &runner{
		rt:     rt,
		opts:   opts,
		claims: newClaims(),
		logger: logger,
	}
}

func (r *runner) Handler() *Handler {
	return NewHandler(r, r.logger)
}

func (r *runner) Process(ctx context.Context, cmd ProcessCommand) (*BatchResult, error) {
	targets, err := r.resolveTargets(ctx, cmd)
	if err != nil {
		return nil, err
	}

	result := &BatchResult{
		Requested: len(targets),
		Items:     make([]ItemResult, 0, len(targets)),
	}

	var mu sync.Mutex
	record := func(item ItemResult) {
		mu.Lock()
		defer mu.Unlock()

		switch {
		case item.Skipped:
			result.Skipped++
		case item.Error != "" || item.Status == invoices.StatusFailed:
			result.Failed++
		default:
			result.Succeeded++
		}
		result.Items = append(result.Items, item)
	}

	g := new(errgroup.Group)
	g.SetLimit(r.opts.MaxWorkers)

	for _, target := range targets {
		// Cancellation stops new invoices from starting; invoices already
		// running complete on an uncancelled context so no model call is
		// aborted mid-flight.
		if ctx.Err() != nil {
			record(ItemResult{InvoiceID: target.invoiceID, Skipped: true, Error: ctx.Err().Error()})
			continue
		}

		g.Go(func() error {
			if !r.claims.Acquire(target.invoiceID) {
				record(ItemResult{InvoiceID: target.invoiceID, Skipped: true, Error: "already processing"})
				return nil
			}
			defer r.claims.Release(target.invoiceID)

			status, err := execute(context.WithoutCancel(ctx), r.rt, target.invoiceID, target.intakeID)
			if err != nil {
				r.logger.Error("invoice processing failed",
					"invoice_id", target.invoiceID,
					"error", err,
				)
				record(ItemResult{InvoiceID: target.invoiceID, Error: err.Error()})
				return nil
			}

			record(ItemResult{InvoiceID: target.invoiceID, Status: status})
			return nil
		})
	}

	g.Wait()

	r.logger.Info("batch complete",
		"requested", result.Requested,
		"succeeded", result.Succeeded,
		"failed", result.Failed,
		"skipped", result.Skipped,
	)
	return result, nil
}

type target struct {
	invoiceID uuid.UUID
	intakeID  uuid.UUID
}

func (r *runner) resolveTargets(ctx context.Context, cmd ProcessCommand) ([]target, error) {
	if len(cmd.InvoiceIDs) > 0 {
		targets := make([]target, 0, len(cmd.InvoiceIDs))
		for _, id := range cmd.InvoiceIDs {
			inv, err := r.rt.Invoices.Find(ctx, id)
			if err != nil {
				return nil, err
			}
			targets = append(targets, target{invoiceID: inv.ID, intakeID: inv.IntakeID})
		}
		return targets, nil
	}

	limit := cmd.Limit
	if limit <= 0 {
		limit = r.opts.DefaultLimit
	}

	pending, err := r.rt.Invoices.FindPending(ctx, limit)
	if err != nil {
		return nil, err
	}

	targets := make([]target, 0, len(pending))
	for _, inv := range pending {
		targets = append(targets, target{invoiceID: inv.ID, intakeID: inv.IntakeID})
	}
	return targets, nil
}
