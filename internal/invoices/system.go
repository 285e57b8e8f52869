package invoices

import (
	"context"

	"github.com/google/uuid"

	"github.com/JaimeStill/remit/pkg/pagination"
)

// System defines the public contract for invoice domain operations.
// Lifecycle mutations (MarkProcessing through MarkExported) enforce the
// status transition table and return ErrStateConflict on illegal moves.
type System interface {
	Handler() *Handler

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Invoice], error)

	Find(ctx context.Context, id uuid.UUID) (*Invoice, error)
	FindByIntake(ctx context.Context, intakeID uuid.UUID) (*Invoice, error)
	LineItems(ctx context.Context, invoiceID uuid.UUID) ([]LineItem, error)
	FindPending(ctx context.Context, limit int) ([]Invoice, error)

	MarkProcessing(ctx context.Context, id uuid.UUID) (*Invoice, error)
	StoreExtraction(ctx context.Context, id uuid.UUID, cmd ExtractionCommand) (*Invoice, error)
	MarkFailed(ctx context.Context, id uuid.UUID, reason string, raw *string) (*Invoice, error)
	StoreValidation(ctx context.Context, id uuid.UUID, cmd ValidationCommand) (*Invoice, error)
	StoreCurrency(ctx context.Context, id uuid.UUID, cmd CurrencyCommand) (*Invoice, error)

	Approve(ctx context.Context, id uuid.UUID, cmd DecisionCommand) (*Invoice, error)
	Reject(ctx context.Context, id uuid.UUID, cmd DecisionCommand) (*Invoice, error)
	MarkExported(ctx context.Context, ids []uuid.UUID, batchID string) ([]Invoice, error)

	CountDuplicates(ctx context.Context, key DuplicateKey, exclude uuid.UUID) (int, error)
}
