package spine

import (
	"slices"
	"time"
)

// GateRecord tracks one review gate's state on one workflow. An artifact name
// appears in at most one of the three sets at any time; names never submitted
// to the gate appear in none.
type GateRecord struct {
	GateID   GateID   `json:"gate_id"`
	Pending  []string `json:"pending_artifacts"`
	Approved []string `json:"approved_artifacts"`
	Rejected []string `json:"rejected_artifacts"`

	// Decisions is the append-only audit trail of reviewer actions.
	Decisions []GateDecision `json:"decisions,omitempty"`
}

// GateDecision records a single approve or reject action on one artifact.
type GateDecision struct {
	Artifact  string         `json:"artifact"`
	Outcome   ApprovalStatus `json:"outcome"`
	DecidedBy string         `json:"decided_by"`
	Reason    string         `json:"reason,omitempty"`
	DecidedAt time.Time      `json:"decided_at"`
}

// HasPending reports whether the gate still holds unreviewed artifacts.
// A gate with zero pending items is clear; no explicit close is required.
func (g *GateRecord) HasPending() bool {
	return len(g.Pending) > 0
}

// IsPending reports whether the named artifact is awaiting review in this gate.
func (g *GateRecord) IsPending(name string) bool {
	return slices.Contains(g.Pending, name)
}

// enroll adds an artifact to the pending set, clearing any prior rejected
// membership so a resubmitted artifact re-enters the queue fresh.
func (g *GateRecord) enroll(name string) {
	g.Rejected = remove(g.Rejected, name)
	if !slices.Contains(g.Pending, name) {
		g.Pending = append(g.Pending, name)
	}
}

// approve moves an artifact from pending to approved.
func (g *GateRecord) approve(name string) {
	g.Pending = remove(g.Pending, name)
	if !slices.Contains(g.Approved, name) {
		g.Approved = append(g.Approved, name)
	}
}

// reject moves an artifact from pending to rejected.
func (g *GateRecord) reject(name string) {
	g.Pending = remove(g.Pending, name)
	if !slices.Contains(g.Rejected, name) {
		g.Rejected = append(g.Rejected, name)
	}
}

func remove(names []string, name string) []string {
	return slices.DeleteFunc(names, func(n string) bool {
		return n == name
	})
}
