package workflows

import (
	"fmt"

	"github.com/statecraft-labs/gavel/internal/spine"
)

// explain renders the workflow's readiness as a human-readable account with
// concrete next steps. Like readiness, it is a pure function of the snapshot.
func explain(w *spine.Workflow) *Explanation {
	if w.CurrentStage.Terminal() {
		return &Explanation{
			Status: ExplainTerminal,
			Summary: fmt.Sprintf(
				"workflow has reached the terminal stage %s; no further transitions are possible",
				w.CurrentStage,
			),
			BlockingReasons: []string{},
			NextSteps:       []string{},
		}
	}

	r := readiness(w)
	next := *r.NextStage
	transition, _ := spine.TransitionFrom(w.CurrentStage)

	if r.CanAdvance {
		return &Explanation{
			Status: ExplainReady,
			Summary: fmt.Sprintf(
				"all requirements for stage %s are satisfied; the workflow may advance to %s",
				w.CurrentStage, next,
			),
			BlockingReasons: []string{},
			NextSteps: []string{
				advanceStep(next, transition.EventType),
			},
		}
	}

	reasons := make([]string, len(r.BlockingIssues))
	for i, issue := range r.BlockingIssues {
		reasons[i] = issue.Message
	}

	return &Explanation{
		Status: ExplainBlocked,
		Summary: fmt.Sprintf(
			"workflow cannot advance from %s to %s: %d issue(s) block the transition",
			w.CurrentStage, next, len(r.BlockingIssues),
		),
		BlockingReasons: reasons,
		NextSteps:       nextSteps(w, next, transition.EventType),
	}
}

// nextSteps derives the concrete actions that would unblock the transition,
// in the order a campaign team would take them.
func nextSteps(w *spine.Workflow, next spine.Stage, eventType string) []string {
	var steps []string
	gates := make(map[spine.GateID]bool)

	for _, req := range spine.RequiredArtifacts(w.CurrentStage) {
		art, ok := w.Artifact(req.Name)
		if !ok {
			steps = append(steps, fmt.Sprintf("submit artifact %s", req.Name))
			continue
		}

		if !art.RequiresReview {
			if req.Gate != "" && art.ApprovalStatus != spine.ApprovalApproved {
				steps = append(steps, fmt.Sprintf(
					"resubmit artifact %s for review at gate %s", req.Name, req.Gate,
				))
			}
			continue
		}

		switch art.ApprovalStatus {
		case spine.ApprovalPending:
			if !gates[art.ReviewGateID] {
				gates[art.ReviewGateID] = true
				steps = append(steps, fmt.Sprintf("obtain a decision at gate %s", art.ReviewGateID))
			}
		case spine.ApprovalRejected:
			steps = append(steps, fmt.Sprintf(
				"resubmit artifact %s after addressing the rejection", art.Name,
			))
		}
	}

	if w.Status == spine.StatusError {
		steps = append(steps, "recover the workflow from ERROR status")
	}

	steps = append(steps, advanceStep(next, eventType))
	return steps
}

func advanceStep(next spine.Stage, eventType string) string {
	return fmt.Sprintf(
		"advance to %s with an external confirmation of event type %s",
		next, eventType,
	)
}
