package spine

import (
	"fmt"
	"slices"
	"strings"
)

// IssueCode classifies one blocking issue reported by the transition validator.
type IssueCode string

// Issue codes.
const (
	IssueInvalidTransition     IssueCode = "INVALID_TRANSITION"
	IssueTerminalStage         IssueCode = "TERMINAL_STAGE"
	IssueMissingArtifact       IssueCode = "MISSING_ARTIFACT"
	IssueUnapprovedArtifact    IssueCode = "UNAPPROVED_ARTIFACT"
	IssueGatePending           IssueCode = "GATE_PENDING"
	IssueMissingConfirmation   IssueCode = "MISSING_CONFIRMATION"
	IssueConfirmationMismatch  IssueCode = "CONFIRMATION_MISMATCH"
	IssueOrchestratorError     IssueCode = "ORCHESTRATOR_ERROR"
	IssueUnsatisfiedDependency IssueCode = "UNSATISFIED_DEPENDENCY"
)

// Issue is one specific, named reason a transition or submission is illegal.
type Issue struct {
	Code    IssueCode `json:"code"`
	Message string    `json:"message"`
}

// ValidationResult carries the validator's verdict. When Allowed is false,
// Issues holds every blocking reason. Checks are never short-circuited, so
// a caller sees the complete list in one round trip.
type ValidationResult struct {
	Allowed bool    `json:"allowed"`
	Issues  []Issue `json:"issues,omitempty"`
}

// AssumedConfirmation returns a confirmation bearing the event type the
// transition out of the given stage requires. Read-only readiness checks
// (status, can-advance, explain) validate against it so that "everything
// except the confirmation itself" reads as ready; an actual advance must
// supply the real confirmation.
func AssumedConfirmation(from Stage) *Confirmation {
	t, ok := TransitionFrom(from)
	if !ok {
		return nil
	}
	return &Confirmation{EventType: t.EventType}
}

// ValidateTransition checks whether the workflow may advance to the target
// stage given the supplied external confirmation. It is a pure function: it
// never mutates the workflow and is safe to call arbitrarily often.
//
// All rules are evaluated and every failure is reported:
//  1. target must be the single statically defined successor of the current stage
//  2. the current stage must not be terminal
//  3. every required artifact for the current stage must exist and, when
//     review is required, be APPROVED
//  4. every gate referenced by a required artifact must hold no pending items
//  5. the confirmation's event type must match the transition's required type
//  6. the orchestrator must not be in ERROR status
func ValidateTransition(w *Workflow, target Stage, conf *Confirmation) ValidationResult {
	var issues []Issue

	transition, ok := TransitionFrom(w.CurrentStage)
	if !ok {
		issues = append(issues, Issue{
			Code: IssueTerminalStage,
			Message: fmt.Sprintf(
				"stage %s is terminal: no further transitions are possible",
				w.CurrentStage,
			),
		})
	} else if target != transition.To {
		issues = append(issues, Issue{
			Code: IssueInvalidTransition,
			Message: fmt.Sprintf(
				"invalid transition %s -> %s: the only legal next stage is %s",
				w.CurrentStage, target, transition.To,
			),
		})
	}

	issues = append(issues, artifactIssues(w)...)
	issues = append(issues, gateIssues(w)...)

	if ok {
		issues = append(issues, confirmationIssues(transition, conf)...)
	}

	if w.Status == StatusError {
		issues = append(issues, Issue{
			Code:    IssueOrchestratorError,
			Message: "workflow is in ERROR status: recover before advancing",
		})
	}

	return ValidationResult{
		Allowed: len(issues) == 0,
		Issues:  issues,
	}
}

func artifactIssues(w *Workflow) []Issue {
	var issues []Issue

	for _, req := range RequiredArtifacts(w.CurrentStage) {
		art, ok := w.Artifact(req.Name)
		if !ok {
			issues = append(issues, Issue{
				Code:    IssueMissingArtifact,
				Message: fmt.Sprintf("missing artifact %s", req.Name),
			})
			continue
		}

		// Catalog-gated requirements need approval even if the submission
		// skipped review; self-declared reviewed artifacts need it too.
		if (req.Gate != "" || art.RequiresReview) && art.ApprovalStatus != ApprovalApproved {
			issues = append(issues, Issue{
				Code: IssueUnapprovedArtifact,
				Message: fmt.Sprintf(
					"artifact %s is not approved (status %s)",
					art.Name, art.ApprovalStatus,
				),
			})
		}
	}

	return issues
}

func gateIssues(w *Workflow) []Issue {
	var issues []Issue

	for _, gateID := range requiredGates(w) {
		record, ok := w.GateRecord(gateID)
		if !ok || !record.HasPending() {
			continue
		}

		pending := slices.Clone(record.Pending)
		slices.Sort(pending)

		issues = append(issues, Issue{
			Code: IssueGatePending,
			Message: fmt.Sprintf(
				"gate %s has pending artifacts: %s",
				gateID, strings.Join(pending, ", "),
			),
		})
	}

	return issues
}

// requiredGates collects, in catalog order, every gate referenced by a
// required artifact of the current stage, from the artifact record when one
// exists, otherwise from the catalog binding.
func requiredGates(w *Workflow) []GateID {
	referenced := make(map[GateID]bool)

	for _, req := range RequiredArtifacts(w.CurrentStage) {
		gateID := req.Gate
		if art, ok := w.Artifact(req.Name); ok && art.RequiresReview {
			gateID = art.ReviewGateID
		}
		if gateID != "" {
			referenced[gateID] = true
		}
	}

	var gates []GateID
	for _, id := range gateOrder {
		if referenced[id] {
			gates = append(gates, id)
		}
	}
	return gates
}

func confirmationIssues(transition Transition, conf *Confirmation) []Issue {
	if conf == nil || conf.EventType == "" {
		return []Issue{{
			Code: IssueMissingConfirmation,
			Message: fmt.Sprintf(
				"external confirmation required: transition to %s requires event type %s",
				transition.To, transition.EventType,
			),
		}}
	}

	if conf.EventType != transition.EventType {
		return []Issue{{
			Code: IssueConfirmationMismatch,
			Message: fmt.Sprintf(
				"external confirmation event type %q does not match required event type %q",
				conf.EventType, transition.EventType,
			),
		}}
	}

	return nil
}
