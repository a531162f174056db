package spine

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for governance operations. The orchestration layer maps
// these onto the error taxonomy (NOT_FOUND / CONFLICT / VALIDATION_FAILED)
// before anything reaches a caller.
var (
	ErrUnknownStage      = errors.New("unknown stage")
	ErrUnknownGate       = errors.New("unknown review gate")
	ErrInvalidSubmission = errors.New("invalid artifact submission")
	ErrArtifactConflict  = errors.New("artifact already submitted")
	ErrNotPending        = errors.New("artifact is not pending in gate")
	ErrNoPending         = errors.New("gate has no pending artifacts")
	ErrInvalidDecision   = errors.New("invalid gate decision")
	ErrWorkflowPaused    = errors.New("workflow is paused")
	ErrWorkflowErrored   = errors.New("workflow is in error status")
	ErrCapabilityDenied  = errors.New("operation not permitted for role")
)

// DependencyError reports every dependency that blocks an artifact
// submission, one issue per missing or unapproved dependency.
type DependencyError struct {
	Artifact string
	Issues   []Issue
}

func (e *DependencyError) Error() string {
	msgs := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		msgs[i] = issue.Message
	}
	return fmt.Sprintf("artifact %s has unsatisfied dependencies: %s",
		e.Artifact, strings.Join(msgs, "; "))
}
