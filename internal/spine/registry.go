package spine

import (
	"encoding/json"
	"fmt"
	"time"
)

// Submission carries the data needed to register a new artifact on a workflow.
type Submission struct {
	Name           string
	Payload        json.RawMessage
	RequiresReview bool
	ReviewGateID   GateID
	DependsOn      []string
}

// SubmitArtifact registers an artifact on the workflow.
//
// Every name in DependsOn must already exist and be APPROVED; failures are
// reported together as a DependencyError, one issue per dependency. A name
// already held as PENDING or APPROVED cannot be resubmitted (ErrArtifactConflict)
// so governed evidence is never silently overwritten. Resubmitting after a
// rejection archives the rejected version and registers a fresh one, which
// re-enters its gate's pending queue. Submission alone never advances a stage.
//
// A requirement the catalog binds to a review gate must be submitted for
// review at that gate. Accepting it unreviewed would leave the workflow
// unable to advance: the transition check demands approval, but nothing
// would be pending for a reviewer to approve.
func SubmitArtifact(w *Workflow, sub Submission, now time.Time) (*Artifact, error) {
	if err := validateSubmission(sub); err != nil {
		return nil, err
	}

	if issues := dependencyIssues(w, sub); len(issues) > 0 {
		return nil, &DependencyError{Artifact: sub.Name, Issues: issues}
	}

	version := 1
	var superseded []ArtifactRevision

	if prior, ok := w.Artifact(sub.Name); ok {
		if prior.ApprovalStatus != ApprovalRejected {
			return nil, fmt.Errorf(
				"%w: artifact %s has status %s",
				ErrArtifactConflict, sub.Name, prior.ApprovalStatus,
			)
		}
		version = prior.Version + 1
		superseded = append(prior.Superseded, prior.revision())
	}

	art := &Artifact{
		Name:           sub.Name,
		Payload:        sub.Payload,
		RequiresReview: sub.RequiresReview,
		ReviewGateID:   sub.ReviewGateID,
		ApprovalStatus: ApprovalNone,
		DependsOn:      sub.DependsOn,
		Version:        version,
		SubmittedAt:    now,
		Superseded:     superseded,
	}

	if sub.RequiresReview {
		art.ApprovalStatus = ApprovalPending
		w.gate(sub.ReviewGateID).enroll(sub.Name)
	}

	w.Artifacts[sub.Name] = art
	w.markActive(now)

	return art, nil
}

func validateSubmission(sub Submission) error {
	if sub.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidSubmission)
	}

	if gate, ok := GateFor(sub.Name); ok {
		if !sub.RequiresReview {
			return fmt.Errorf(
				"%w: %s is gated by %s and must be submitted for review",
				ErrInvalidSubmission, sub.Name, gate,
			)
		}
		if sub.ReviewGateID != gate {
			return fmt.Errorf(
				"%w: %s must be reviewed at gate %s, not %q",
				ErrInvalidSubmission, sub.Name, gate, sub.ReviewGateID,
			)
		}
	}

	if sub.RequiresReview {
		if _, err := ParseGateID(string(sub.ReviewGateID)); err != nil {
			return fmt.Errorf(
				"%w: review gate %q is not in the gate catalog",
				ErrUnknownGate, sub.ReviewGateID,
			)
		}
	} else if sub.ReviewGateID != "" {
		return fmt.Errorf(
			"%w: review_gate_id set but requires_review is false",
			ErrInvalidSubmission,
		)
	}

	return nil
}

func dependencyIssues(w *Workflow, sub Submission) []Issue {
	var issues []Issue

	for _, dep := range sub.DependsOn {
		art, ok := w.Artifact(dep)
		if !ok {
			issues = append(issues, Issue{
				Code:    IssueUnsatisfiedDependency,
				Message: fmt.Sprintf("dependency %s does not exist", dep),
			})
			continue
		}

		if art.RequiresReview && art.ApprovalStatus != ApprovalApproved {
			issues = append(issues, Issue{
				Code: IssueUnsatisfiedDependency,
				Message: fmt.Sprintf(
					"dependency %s is not approved (status %s)",
					dep, art.ApprovalStatus,
				),
			})
		}
	}

	return issues
}
