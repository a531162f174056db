// Package workflows orchestrates governed legislative workflows: it owns the
// durable store, serializes every read-validate-write under a per-workflow
// lock, consults the capability table, and journals every rejection before an
// error is allowed to reach a caller.
package workflows

import (
	"context"
	"io"

	"github.com/google/uuid"

	"github.com/statecraft-labs/gavel/internal/diagnostics"
	"github.com/statecraft-labs/gavel/internal/spine"
	"github.com/statecraft-labs/gavel/pkg/pagination"
)

// System defines the public contract for workflow orchestration. It is the
// only component that mutates workflow state.
type System interface {
	Handler(maxPayloadSize int64) *Handler

	Create(ctx context.Context, cmd CreateCommand) (*spine.Workflow, error)
	Find(ctx context.Context, id uuid.UUID) (*spine.Workflow, error)

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Summary], error)

	// Status, CanAdvance, Explain, and History are read-only: they never
	// mutate state and readiness is computed fresh on every call.
	Status(ctx context.Context, id uuid.UUID) (*StatusReport, error)
	CanAdvance(ctx context.Context, id uuid.UUID) (*Readiness, error)
	Explain(ctx context.Context, id uuid.UUID) (*Explanation, error)
	History(ctx context.Context, id uuid.UUID) ([]spine.HistoryEntry, error)

	Advance(ctx context.Context, cmd AdvanceCommand) (*AdvanceResult, error)

	SubmitArtifact(ctx context.Context, cmd SubmitCommand) (*spine.Artifact, error)
	DownloadPayload(ctx context.Context, id uuid.UUID, name string) (io.ReadCloser, error)

	Approve(ctx context.Context, cmd GateCommand) (*GateResult, error)
	Reject(ctx context.Context, cmd GateCommand) (*GateResult, error)

	Pause(ctx context.Context, cmd ControlCommand) (*spine.Workflow, error)
	Resume(ctx context.Context, cmd ControlCommand) (*spine.Workflow, error)
	Recover(ctx context.Context, cmd ControlCommand) (*spine.Workflow, error)

	Diagnostics(
		ctx context.Context,
		id uuid.UUID,
		page pagination.PageRequest,
	) (*pagination.PageResult[diagnostics.Diagnostic], error)
}
