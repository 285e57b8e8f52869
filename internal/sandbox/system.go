package sandbox

import (
	"context"

	"github.com/google/uuid"

	"github.com/JaimeStill/remit/pkg/pagination"
)

// System defines the public contract for sandbox domain operations.
type System interface {
	Handler() *Handler

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Experiment], error)

	Find(ctx context.Context, id uuid.UUID) (*Experiment, error)
	LineItems(ctx context.Context, experimentID uuid.UUID) ([]ExperimentLineItem, error)
	Create(ctx context.Context, cmd CreateCommand) (*Experiment, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
