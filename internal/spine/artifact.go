package spine

import (
	"encoding/json"
	"time"
)

// ApprovalStatus tracks an artifact's position in the review lifecycle.
type ApprovalStatus string

// Approval statuses. NONE means the artifact never required review.
const (
	ApprovalNone     ApprovalStatus = "NONE"
	ApprovalPending  ApprovalStatus = "PENDING"
	ApprovalApproved ApprovalStatus = "APPROVED"
	ApprovalRejected ApprovalStatus = "REJECTED"
)

// Artifact is one piece of evidence attached to a workflow. The payload is
// opaque to the core: it is archived and echoed, never inspected. An artifact
// is immutable once APPROVED; resubmission after REJECTED supersedes the
// rejected version rather than overwriting it.
type Artifact struct {
	Name           string          `json:"name"`
	Payload        json.RawMessage `json:"payload"`
	RequiresReview bool            `json:"requires_review"`
	ReviewGateID   GateID          `json:"review_gate_id,omitempty"`
	ApprovalStatus ApprovalStatus  `json:"approval_status"`
	DependsOn      []string        `json:"depends_on,omitempty"`
	Version        int             `json:"version"`
	StorageKey     string          `json:"storage_key,omitempty"`
	SubmittedAt    time.Time       `json:"submitted_at"`

	// Rejection identity, set by the gate manager and preserved on the
	// superseded record when a fresh version is submitted.
	RejectedBy     string     `json:"rejected_by,omitempty"`
	RejectedReason string     `json:"rejected_reason,omitempty"`
	RejectedAt     *time.Time `json:"rejected_at,omitempty"`

	// Superseded holds every prior rejected version, oldest first.
	Superseded []ArtifactRevision `json:"superseded,omitempty"`
}

// ArtifactRevision is an archived rejected version of an artifact.
type ArtifactRevision struct {
	Version        int             `json:"version"`
	Payload        json.RawMessage `json:"payload"`
	StorageKey     string          `json:"storage_key,omitempty"`
	SubmittedAt    time.Time       `json:"submitted_at"`
	RejectedBy     string          `json:"rejected_by"`
	RejectedReason string          `json:"rejected_reason"`
	RejectedAt     time.Time       `json:"rejected_at"`
}

// revision captures the artifact's current version as an archived record.
func (a *Artifact) revision() ArtifactRevision {
	rev := ArtifactRevision{
		Version:        a.Version,
		Payload:        a.Payload,
		StorageKey:     a.StorageKey,
		SubmittedAt:    a.SubmittedAt,
		RejectedBy:     a.RejectedBy,
		RejectedReason: a.RejectedReason,
	}
	if a.RejectedAt != nil {
		rev.RejectedAt = *a.RejectedAt
	}
	return rev
}
