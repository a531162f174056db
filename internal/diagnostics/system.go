package diagnostics

import (
	"context"

	"github.com/google/uuid"

	"github.com/statecraft-labs/gavel/pkg/pagination"
)

// System defines the public contract for the diagnostic journal.
type System interface {
	Handler() *Handler

	// Record durably appends every entry in the record before returning.
	// Callers must not report an error to their own callers until Record
	// has succeeded.
	Record(ctx context.Context, rec Record) error

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Diagnostic], error)

	ListByWorkflow(
		ctx context.Context,
		workflowID uuid.UUID,
		page pagination.PageRequest,
	) (*pagination.PageResult[Diagnostic], error)
}
