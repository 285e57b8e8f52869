package intakes

import (
	"context"

	"github.com/google/uuid"

	"github.com/JaimeStill/remit/pkg/pagination"
)

// System defines the public contract for intake domain operations.
type System interface {
	Handler(maxUploadSize int64) *Handler

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Intake], error)

	Find(ctx context.Context, id uuid.UUID) (*Intake, error)
	Submit(ctx context.Context, cmd SubmitCommand) (*SubmitResult, error)
	Download(ctx context.Context, id uuid.UUID) ([]byte, string, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
