package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	gaoconfig "github.com/JaimeStill/go-agents-orchestration/pkg/config"
	"github.com/JaimeStill/go-agents-orchestration/pkg/state"

	"github.com/JaimeStill/remit/internal/extraction"
	"github.com/JaimeStill/remit/internal/invoices"
)

// State bag keys for the per-invoice processing graph.
const (
	KeyInvoiceID       = "invoice_id"
	KeyIntakeID        = "intake_id"
	KeyExtracted       = "extracted"
	KeyCurrencyWarning = "currency_warning"
	KeyFinalStatus     = "final_status"
)

// execute runs one invoice through the processing graph:
// extract → normalize → validate → finalize, with a direct extract →
// finalize path when extraction fails and the invoice is marked failed.
func execute(ctx context.Context, rt *Runtime, invoiceID, intakeID uuid.UUID) (invoices.Status, error) {
	graph, err := buildGraph(rt)
	if err != nil {
		return "", fmt.Errorf("build graph: %w", err)
	}

	initial := state.New(nil)
	initial = initial.Set(KeyInvoiceID, invoiceID)
	initial = initial.Set(KeyIntakeID, intakeID)

	final, err := graph.Execute(ctx, initial)
	if err != nil {
		return "", fmt.Errorf("execute graph: %w", err)
	}

	statusVal, ok := final.Get(KeyFinalStatus)
	if !ok {
		return "", fmt.Errorf("missing %s in final state", KeyFinalStatus)
	}

	status, ok := statusVal.(invoices.Status)
	if !ok {
		return "", fmt.Errorf("%s is not a status", KeyFinalStatus)
	}

	return status, nil
}

func buildGraph(rt *Runtime) (state.StateGraph, error) {
	cfg := gaoconfig.DefaultGraphConfig("remit-process")
	cfg.Observer = "noop"

	graph, err := state.NewGraph(cfg)
	if err != nil {
		return nil, err
	}

	if err := graph.AddNode("extract", extractNode(rt)); err != nil {
		return nil, err
	}

	if err := graph.AddNode("normalize", normalizeNode(rt)); err != nil {
		return nil, err
	}

	if err := graph.AddNode("validate", validateNode(rt)); err != nil {
		return nil, err
	}

	if err := graph.AddNode("finalize", finalizeNode(rt)); err != nil {
		return nil, err
	}

	if err := graph.AddEdge("extract", "normalize", extractionSucceeded); err != nil {
		return nil, err
	}

	if err := graph.AddEdge("extract", "finalize", state.Not(extractionSucceeded)); err != nil {
		return nil, err
	}

	if err := graph.AddEdge("normalize", "validate", nil); err != nil {
		return nil, err
	}

	if err := graph.AddEdge("validate", "finalize", nil); err != nil {
		return nil, err
	}

	if err := graph.SetEntryPoint("extract"); err != nil {
		return nil, err
	}

	if err := graph.SetExitPoint("finalize"); err != nil {
		return nil, err
	}

	return graph, nil
}

func extractionSucceeded(s state.State) bool {
	val, ok := s.Get(KeyExtracted)
	if !ok {
		return false
	}
	extracted, ok := val.(bool)
	return ok && extracted
}

// extractNode marks the invoice processing, runs model extraction, and
// persists either the extracted fields or the failure. Extraction failure
// is a graph-level success: the invoice lands in failed and the batch
// moves on.
func extractNode(rt *Runtime) state.StateNode {
	return state.NewFunctionNode(func(ctx context.Context, s state.State) (state.State, error) {
		invoiceID, intakeID, err := extractIDs(s)
		if err != nil {
			return s, fmt.Errorf("extract: %w", err)
		}

		if _, err := rt.Invoices.MarkProcessing(ctx, invoiceID); err != nil {
			return s, fmt.Errorf("extract: %w", err)
		}

		cmd, err := rt.Extraction.Extract(ctx, intakeID)
		if err != nil {
			var failed *extraction.FailedError
			if errors.As(err, &failed) {
				var raw *string
				if failed.Raw != "" {
					raw = &failed.Raw
				}
				if _, markErr := rt.Invoices.MarkFailed(ctx, invoiceID, failed.Err.Error(), raw); markErr != nil {
					return s, fmt.Errorf("extract: mark failed: %w", markErr)
				}
				s = s.Set(KeyExtracted, false)
				return s, nil
			}
			return s, fmt.Errorf("extract: %w", err)
		}

		if _, err := rt.Invoices.StoreExtraction(ctx, invoiceID, *cmd); err != nil {
			return s, fmt.Errorf("extract: store: %w", err)
		}

		s = s.Set(KeyExtracted, true)
		return s, nil
	})
}

// normalizeNode derives the home-currency amount. A missing rate stores
// nothing and forwards a warning for the validation stage to record.
func normalizeNode(rt *Runtime) state.StateNode {
	return state.NewFunctionNode(func(ctx context.Context, s state.State) (state.State, error) {
		invoiceID, _, err := extractIDs(s)
		if err != nil {
			return s, fmt.Errorf("normalize: %w", err)
		}

		inv, err := rt.Invoices.Find(ctx, invoiceID)
		if err != nil {
			return s, fmt.Errorf("normalize: %w", err)
		}

		conversion := rt.Currency.Normalize(ctx, inv)

		if conversion.Command != nil {
			if _, err := rt.Invoices.StoreCurrency(ctx, invoiceID, *conversion.Command); err != nil {
				return s, fmt.Errorf("normalize: store: %w", err)
			}
		}

		if conversion.Warning != "" {
			s = s.Set(KeyCurrencyWarning, conversion.Warning)
		}

		return s, nil
	})
}

// validateNode runs the rule engine and persists the outcome, folding in
// any warning raised during currency normalization.
func validateNode(rt *Runtime) state.StateNode {
	return state.NewFunctionNode(func(ctx context.Context, s state.State) (state.State, error) {
		invoiceID, _, err := extractIDs(s)
		if err != nil {
			return s, fmt.Errorf("validate: %w", err)
		}

		inv, err := rt.Invoices.Find(ctx, invoiceID)
		if err != nil {
			return s, fmt.Errorf("validate: %w", err)
		}

		items, err := rt.Invoices.LineItems(ctx, invoiceID)
		if err != nil {
			return s, fmt.Errorf("validate: %w", err)
		}

		cmd := rt.Validation.Validate(ctx, inv, items, rt.Invoices)

		if warningVal, ok := s.Get(KeyCurrencyWarning); ok {
			if warning, ok := warningVal.(string); ok && warning != "" {
				cmd.Warnings = append(cmd.Warnings, warning)
			}
		}

		if _, err := rt.Invoices.StoreValidation(ctx, invoiceID, *cmd); err != nil {
			return s, fmt.Errorf("validate: store: %w", err)
		}

		return s, nil
	})
}

// finalizeNode records the invoice's terminal status for the batch report.
func finalizeNode(rt *Runtime) state.StateNode {
	return state.NewFunctionNode(func(ctx context.Context, s state.State) (state.State, error) {
		invoiceID, _, err := extractIDs(s)
		if err != nil {
			return s, fmt.Errorf("finalize: %w", err)
		}

		inv, err := rt.Invoices.Find(ctx, invoiceID)
		if err != nil {
			return s, fmt.Errorf("finalize: %w", err)
		}

		rt.Logger.InfoContext(ctx, "invoice processed",
			"invoice_id", invoiceID,
			"status", inv.Status,
		)

		s = s.Set(KeyFinalStatus, inv.Status)
		return s, nil
	})
}

func extractIDs(s state.State) (uuid.UUID, uuid.UUID, error) {
	invoiceVal, ok := s.Get(KeyInvoiceID)
	if !ok {
		return uuid.Nil, uuid.Nil, fmt.Errorf("missing %s in state", KeyInvoiceID)
	}

	invoiceID, ok := invoiceVal.(uuid.UUID)
	if !ok {
		return uuid.Nil, uuid.Nil, fmt.Errorf("%s is not uuid.UUID", KeyInvoiceID)
	}

	intakeVal, ok := s.Get(KeyIntakeID)
	if !ok {
		return uuid.Nil, uuid.Nil, fmt.Errorf("missing %s in state", KeyIntakeID)
	}

	intakeID, ok := intakeVal.(uuid.UUID)
	if !ok {
		return uuid.Nil, uuid.Nil, fmt.Errorf("%s is not uuid.UUID", KeyIntakeID)
	}

	return invoiceID, intakeID, nil
}
