// Package exporting hands approved invoices to the downstream accounting
// target and records the export batch on each invoice. The wire format of
// the target is abstracted behind the Connector interface; the engine only
// tracks the batch correlation id the connector returns.
package exporting

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/JaimeStill/remit/internal/invoices"
)

// Connector submits a batch of approved invoices to an accounting target
// and returns the correlation id assigned to the batch.
type Connector interface {
	SubmitBatch(ctx context.Context, batch []invoices.Invoice) (string, error)
}

// System defines the public contract for export operations.
type System interface {
	Handler() *Handler
	Export(ctx context.Context, cmd invoices.ExportCommand) (*invoices.ExportResult, error)
}

type exporter struct {
	invoices  invoices.System
	connector Connector
	logger    *slog.Logger
}

// New creates an exporter implementing the System interface.
func New(invoiceSys invoices.System, connector Connector, logger *slog.Logger) System {
	return &exporter{
		invoices:  invoiceSys,
		connector: connector,
		logger:    logger.With("system", "exporting"),
	}
}

func (e *exporter) Handler() *Handler {
	return NewHandler(e, e.logger)
}

// Export submits the requested invoices to the accounting target and marks
// them exported under the returned batch id. Every invoice must be in
// approved or exported status; a single conflict aborts the whole batch
// before anything is submitted. Already-exported invoices are never
// re-submitted downstream: a replay returns the recorded batch id.
func (e *exporter) Export(ctx context.Context, cmd invoices.ExportCommand) (*invoices.ExportResult, error) {
	if len(cmd.InvoiceIDs) == 0 {
		return nil, invoices.ErrEmptyBatch
	}

	pending := make([]invoices.Invoice, 0, len(cmd.InvoiceIDs))
	replayed := make([]invoices.Invoice, 0)
	for _, id := range cmd.InvoiceIDs {
		inv, err := e.invoices.Find(ctx, id)
		if err != nil {
			return nil, err
		}

		switch inv.Status {
		case invoices.StatusApproved:
			pending = append(pending, *inv)
		case invoices.StatusExported:
			replayed = append(replayed, *inv)
		default:
			return nil, fmt.Errorf("%w: %s is %s, not approved",
				invoices.ErrStateConflict, inv.ID, inv.Status)
		}
	}

	ids := make([]uuid.UUID, 0, len(cmd.InvoiceIDs))
	for _, inv := range replayed {
		ids = append(ids, inv.ID)
	}

	// Pure replay: nothing to submit, answer with the recorded batch id.
	if len(pending) == 0 {
		batchID := ""
		if replayed[0].ExportBatchID != nil {
			batchID = *replayed[0].ExportBatchID
		}

		e.logger.Info("export replay", "batch_id", batchID, "count", len(ids))
		return &invoices.ExportResult{BatchID: batchID, Invoices: ids}, nil
	}

	batchID, err := e.connector.SubmitBatch(ctx, pending)
	if err != nil {
		return nil, fmt.Errorf("submit export batch: %w", err)
	}

	pendingIDs := make([]uuid.UUID, len(pending))
	for i, inv := range pending {
		pendingIDs[i] = inv.ID
	}

	exported, err := e.invoices.MarkExported(ctx, pendingIDs, batchID)
	if err != nil {
		return nil, err
	}

	for _, inv := range exported {
		ids = append(ids, inv.ID)
	}

	e.logger.Info("export batch submitted", "batch_id", batchID, "count", len(exported))
	return &invoices.ExportResult{BatchID: batchID, Invoices: ids}, nil
}
