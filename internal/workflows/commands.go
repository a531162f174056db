package workflows

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/statecraft-labs/gavel/internal/spine"
)

// Caller identifies who is performing a governed operation. The role is
// consulted against the capability table exactly once per operation.
type Caller struct {
	Actor string
	Role  spine.Role
}

// CreateCommand starts a new workflow. InitialStage is optional and defaults
// to the catalog entry stage.
type CreateCommand struct {
	InitialStage string `json:"initial_stage,omitempty"`
	Caller       `json:"-"`
}

// SubmitCommand registers an artifact on a workflow.
type SubmitCommand struct {
	WorkflowID     uuid.UUID       `json:"-"`
	Name           string          `json:"name"`
	Payload        json.RawMessage `json:"payload"`
	RequiresReview bool            `json:"requires_review"`
	ReviewGateID   string          `json:"review_gate_id,omitempty"`
	DependsOn      []string        `json:"depends_on,omitempty"`
	Caller         `json:"-"`
}

// AdvanceCommand attempts a stage transition with external confirmation.
type AdvanceCommand struct {
	WorkflowID   uuid.UUID           `json:"-"`
	TargetStage  string              `json:"target_stage"`
	Confirmation *spine.Confirmation `json:"external_confirmation,omitempty"`
	Caller       `json:"-"`
}

// GateCommand records reviewer decisions at one gate. For approvals an empty
// ArtifactNames means every pending artifact; rejections must name their
// targets and carry a reason. The handler builds it from the per-endpoint
// request bodies, which carry approved_by and rejected_by on the wire.
type GateCommand struct {
	WorkflowID    uuid.UUID
	GateID        string
	DecidedBy     string
	ArtifactNames []string
	Reason        string
	Caller
}

// ControlCommand drives pause, resume, and recover operations.
type ControlCommand struct {
	WorkflowID uuid.UUID `json:"-"`
	Reason     string    `json:"reason,omitempty"`
	Caller     `json:"-"`
}

// Readiness answers "could this workflow advance right now" assuming the
// external confirmation would be supplied. Computed fresh on every call,
// never cached or stored.
type Readiness struct {
	CanAdvance     bool          `json:"can_advance"`
	CurrentStage   spine.Stage   `json:"current_stage"`
	NextStage      *spine.Stage  `json:"next_stage,omitempty"`
	BlockingIssues []spine.Issue `json:"blocking_issues"`
}

// StatusReport is the full operational snapshot of one workflow.
type StatusReport struct {
	ID                 uuid.UUID                `json:"id"`
	CurrentStage       spine.Stage              `json:"current_stage"`
	OrchestratorStatus spine.OrchestratorStatus `json:"orchestrator_status"`
	Revision           int64                    `json:"revision"`
	Artifacts          []*spine.Artifact        `json:"artifacts"`
	PendingGates       []spine.GateID           `json:"pending_gates"`
	Readiness          Readiness                `json:"readiness"`
	UpdatedAt          time.Time                `json:"updated_at"`
}

// Explanation is a human-readable account of why a workflow can or cannot
// advance, with concrete next steps.
type Explanation struct {
	Status          string   `json:"status"`
	Summary         string   `json:"summary"`
	BlockingReasons []string `json:"blocking_reasons"`
	NextSteps       []string `json:"next_steps"`
}

// Explanation statuses.
const (
	ExplainReady    = "ready"
	ExplainBlocked  = "blocked"
	ExplainTerminal = "terminal"
)

// AdvanceResult reports a successful stage transition.
type AdvanceResult struct {
	WorkflowID         uuid.UUID                `json:"workflow_id"`
	PreviousStage      spine.Stage              `json:"previous_stage"`
	NewStage           spine.Stage              `json:"new_stage"`
	OrchestratorStatus spine.OrchestratorStatus `json:"orchestrator_status"`
}

// GateResult reports the artifacts affected by a gate decision.
type GateResult struct {
	GateID            spine.GateID `json:"gate_id"`
	ApprovedArtifacts []string     `json:"approved_artifacts,omitempty"`
	RejectedArtifacts []string     `json:"rejected_artifacts,omitempty"`
}

// Summary is one row of the workflow list, with fresh readiness.
type Summary struct {
	ID                 uuid.UUID                `json:"id"`
	CurrentStage       spine.Stage              `json:"current_stage"`
	OrchestratorStatus spine.OrchestratorStatus `json:"orchestrator_status"`
	Revision           int64                    `json:"revision"`
	CanAdvance         bool                     `json:"can_advance"`
	CreatedAt          time.Time                `json:"created_at"`
	UpdatedAt          time.Time                `json:"updated_at"`
}
