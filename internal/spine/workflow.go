package spine

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

// OrchestratorStatus is the operational mode of one workflow, independent of
// its current stage.
type OrchestratorStatus string

// Orchestrator statuses. PAUSED and ERROR block all mutation; ERROR clears
// only through an explicit recovery operation.
const (
	StatusIdle   OrchestratorStatus = "IDLE"
	StatusActive OrchestratorStatus = "ACTIVE"
	StatusPaused OrchestratorStatus = "PAUSED"
	StatusError  OrchestratorStatus = "ERROR"
)

// Confirmation is caller-supplied proof that the real-world legislative event
// required for a transition has occurred. It is recorded in stage history,
// never stored as its own entity.
type Confirmation struct {
	EventType       string `json:"event_type"`
	ConfirmedBy     string `json:"confirmed_by"`
	SourceReference string `json:"source_reference,omitempty"`
}

// HistoryEntry records one stage entry. Confirmation is nil only for the
// entry stage a workflow was created at.
type HistoryEntry struct {
	Stage        Stage         `json:"stage"`
	EnteredAt    time.Time     `json:"entered_at"`
	Confirmation *Confirmation `json:"confirmation,omitempty"`
}

// Workflow is one governed process instance: its position on the spine, its
// operational status, its append-only stage history, and the artifacts and
// gate records accumulated so far.
type Workflow struct {
	ID           uuid.UUID              `json:"id"`
	CurrentStage Stage                  `json:"current_stage"`
	Status       OrchestratorStatus     `json:"orchestrator_status"`
	History      []HistoryEntry         `json:"stage_history"`
	Artifacts    map[string]*Artifact   `json:"artifacts"`
	Gates        map[GateID]*GateRecord `json:"gates"`
	Revision     int64                  `json:"revision"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

// NewWorkflow creates a workflow at the given entry stage with an empty
// artifact and gate ledger.
func NewWorkflow(id uuid.UUID, entry Stage, now time.Time) *Workflow {
	return &Workflow{
		ID:           id,
		CurrentStage: entry,
		Status:       StatusIdle,
		History: []HistoryEntry{
			{Stage: entry, EnteredAt: now},
		},
		Artifacts: make(map[string]*Artifact),
		Gates:     make(map[GateID]*GateRecord),
		Revision:  1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Artifact looks up an artifact by name.
func (w *Workflow) Artifact(name string) (*Artifact, bool) {
	a, ok := w.Artifacts[name]
	return a, ok
}

// GateRecord looks up the record for a gate, returning false if nothing has
// ever been submitted to it on this workflow.
func (w *Workflow) GateRecord(id GateID) (*GateRecord, bool) {
	g, ok := w.Gates[id]
	return g, ok
}

// gate returns the record for a gate, creating it lazily. Mutation paths only.
func (w *Workflow) gate(id GateID) *GateRecord {
	if g, ok := w.Gates[id]; ok {
		return g
	}
	g := &GateRecord{GateID: id}
	w.Gates[id] = g
	return g
}

// PendingGates returns the gates that currently hold pending artifacts,
// in catalog order.
func (w *Workflow) PendingGates() []GateID {
	var pending []GateID
	for _, id := range gateOrder {
		if g, ok := w.Gates[id]; ok && len(g.Pending) > 0 {
			pending = append(pending, id)
		}
	}
	return pending
}

// SortedArtifacts returns the workflow's artifacts ordered by name, for
// deterministic API responses.
func (w *Workflow) SortedArtifacts() []*Artifact {
	names := make([]string, 0, len(w.Artifacts))
	for name := range w.Artifacts {
		names = append(names, name)
	}
	slices.Sort(names)

	arts := make([]*Artifact, len(names))
	for i, name := range names {
		arts[i] = w.Artifacts[name]
	}
	return arts
}

// AcceptsMutation reports whether the workflow's operational status permits
// state changes. PAUSED requires an explicit resume; ERROR requires an
// explicit recovery.
func (w *Workflow) AcceptsMutation() error {
	switch w.Status {
	case StatusPaused:
		return fmt.Errorf("%w: resume before mutating", ErrWorkflowPaused)
	case StatusError:
		return fmt.Errorf("%w: recover before mutating", ErrWorkflowErrored)
	default:
		return nil
	}
}

// Advance appends a history entry and moves the workflow to the target stage.
// Callers must have validated the transition first; Advance itself performs
// no checks. Reaching the terminal stage returns the orchestrator to IDLE.
func (w *Workflow) Advance(target Stage, conf *Confirmation, now time.Time) {
	w.History = append(w.History, HistoryEntry{
		Stage:        target,
		EnteredAt:    now,
		Confirmation: conf,
	})
	w.CurrentStage = target

	if target.Terminal() {
		w.Status = StatusIdle
	} else {
		w.Status = StatusActive
	}
	w.UpdatedAt = now
}

// markActive flags governed work as in progress. Terminal workflows stay IDLE.
func (w *Workflow) markActive(now time.Time) {
	if !w.CurrentStage.Terminal() {
		w.Status = StatusActive
	}
	w.UpdatedAt = now
}
