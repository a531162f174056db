package spine

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestSubmitArtifact(t *testing.T) {
	w := testWorkflow(StagePre)

	art := mustSubmit(t, w, Submission{
		Name:    "signal_scan",
		Payload: json.RawMessage(`{"signals":3}`),
	})

	if art.Version != 1 {
		t.Errorf("version = %d, want 1", art.Version)
	}
	if art.ApprovalStatus != ApprovalNone {
		t.Errorf("approval status = %s, want NONE", art.ApprovalStatus)
	}
	if w.Status != StatusActive {
		t.Errorf("workflow status = %s, want ACTIVE after submission", w.Status)
	}
	if _, ok := w.Artifact("signal_scan"); !ok {
		t.Error("artifact not registered on workflow")
	}
}

func TestSubmitArtifactEnrollsGate(t *testing.T) {
	w := testWorkflow(StagePre)

	art := mustSubmit(t, w, Submission{
		Name:           "concept_memo",
		Payload:        json.RawMessage(`{}`),
		RequiresReview: true,
		ReviewGateID:   GateConcept,
	})

	if art.ApprovalStatus != ApprovalPending {
		t.Errorf("approval status = %s, want PENDING", art.ApprovalStatus)
	}

	record, ok := w.GateRecord(GateConcept)
	if !ok {
		t.Fatal("gate record not created")
	}
	if !record.IsPending("concept_memo") {
		t.Errorf("expected concept_memo pending in %s, got %v", GateConcept, record.Pending)
	}
	if got := w.PendingGates(); len(got) != 1 || got[0] != GateConcept {
		t.Errorf("PendingGates() = %v, want [HR_PRE]", got)
	}
}

func TestSubmitArtifactValidation(t *testing.T) {
	tests := []struct {
		name string
		sub  Submission
		want error
	}{
		{
			"empty name",
			Submission{Payload: json.RawMessage(`{}`)},
			ErrInvalidSubmission,
		},
		{
			"review with unknown gate",
			Submission{Name: "x", RequiresReview: true, ReviewGateID: "HR_BUDGET"},
			ErrUnknownGate,
		},
		{
			"review with no gate",
			Submission{Name: "x", RequiresReview: true},
			ErrUnknownGate,
		},
		{
			"gate without review",
			Submission{Name: "x", ReviewGateID: GateConcept},
			ErrInvalidSubmission,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := testWorkflow(StagePre)
			if _, err := SubmitArtifact(w, tt.sub, testClock); !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
			if len(w.Artifacts) != 0 {
				t.Error("rejected submission must not register an artifact")
			}
		})
	}
}

func TestSubmitArtifactConflict(t *testing.T) {
	tests := []struct {
		name string
		sub  Submission
	}{
		{
			"pending blocks resubmission",
			Submission{
				Name:           "concept_memo",
				Payload:        json.RawMessage(`{"v":1}`),
				RequiresReview: true,
				ReviewGateID:   GateConcept,
			},
		},
		{
			"ungated blocks resubmission",
			Submission{
				Name:    "signal_scan",
				Payload: json.RawMessage(`{"v":1}`),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := testWorkflow(StagePre)
			mustSubmit(t, w, tt.sub)

			retry := tt.sub
			retry.Payload = json.RawMessage(`{"v":2}`)
			_, err := SubmitArtifact(w, retry, testClock)
			if !errors.Is(err, ErrArtifactConflict) {
				t.Fatalf("error = %v, want ErrArtifactConflict", err)
			}

			art, _ := w.Artifact(tt.sub.Name)
			if string(art.Payload) != `{"v":1}` {
				t.Error("conflicting submission overwrote the original payload")
			}
		})
	}
}

func TestSubmitArtifactFutureStageGateEnforced(t *testing.T) {
	// draft_language is a COMM_EVT requirement gated by HR_LANG. Submitting
	// it early, while the workflow is still at PRE_EVT, must still enroll it
	// for review; otherwise the workflow arrives at COMM_EVT holding an
	// artifact no reviewer can clear.
	w := testWorkflow(StagePre)

	_, err := SubmitArtifact(w, Submission{
		Name:    "draft_language",
		Payload: json.RawMessage(`{}`),
	}, testClock)
	if !errors.Is(err, ErrInvalidSubmission) {
		t.Fatalf("error = %v, want ErrInvalidSubmission", err)
	}

	mustSubmit(t, w, Submission{
		Name:           "draft_language",
		Payload:        json.RawMessage(`{}`),
		RequiresReview: true,
		ReviewGateID:   GateLanguage,
	})
	record, _ := w.GateRecord(GateLanguage)
	if !record.IsPending("draft_language") {
		t.Error("early submission should enroll in its cataloged gate")
	}
}

func TestSubmitArtifactCatalogGateEnforced(t *testing.T) {
	// concept_memo is bound to HR_PRE by the catalog. A submission that skips
	// review, or that names a different gate, is rejected outright: accepting
	// it would strand the workflow with an artifact no reviewer can approve.
	tests := []struct {
		name string
		sub  Submission
	}{
		{
			"gated requirement without review",
			Submission{Name: "concept_memo", Payload: json.RawMessage(`{}`)},
		},
		{
			"gated requirement at the wrong gate",
			Submission{
				Name:           "concept_memo",
				Payload:        json.RawMessage(`{}`),
				RequiresReview: true,
				ReviewGateID:   GateRelease,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := testWorkflow(StagePre)
			if _, err := SubmitArtifact(w, tt.sub, testClock); !errors.Is(err, ErrInvalidSubmission) {
				t.Fatalf("error = %v, want ErrInvalidSubmission", err)
			}
			if len(w.Artifacts) != 0 {
				t.Error("rejected submission must not register an artifact")
			}

			// The rejection leaves no residue: the compliant submission
			// enrolls in HR_PRE and the gate can clear it.
			mustSubmit(t, w, Submission{
				Name:           "concept_memo",
				Payload:        json.RawMessage(`{}`),
				RequiresReview: true,
				ReviewGateID:   GateConcept,
			})
			mustApproveAll(t, w, GateConcept)

			art, _ := w.Artifact("concept_memo")
			if art.ApprovalStatus != ApprovalApproved {
				t.Errorf("approval status = %s, want APPROVED", art.ApprovalStatus)
			}
		})
	}
}

func TestSubmitArtifactApprovedIsImmutable(t *testing.T) {
	w := testWorkflow(StagePre)
	mustSubmit(t, w, Submission{
		Name:           "concept_memo",
		Payload:        json.RawMessage(`{}`),
		RequiresReview: true,
		ReviewGateID:   GateConcept,
	})
	mustApproveAll(t, w, GateConcept)

	_, err := SubmitArtifact(w, Submission{
		Name:           "concept_memo",
		RequiresReview: true,
		ReviewGateID:   GateConcept,
	}, testClock)
	if !errors.Is(err, ErrArtifactConflict) {
		t.Errorf("error = %v, want ErrArtifactConflict", err)
	}
}

func TestSubmitArtifactSupersedesRejected(t *testing.T) {
	w := testWorkflow(StageCommittee)
	mustSubmit(t, w, Submission{
		Name:           "draft_language",
		Payload:        json.RawMessage(`{"v":1}`),
		RequiresReview: true,
		ReviewGateID:   GateLanguage,
	})
	if _, err := RejectArtifacts(w, GateLanguage, "reviewer-1",
		[]string{"draft_language"}, "section 4 conflicts with existing statute", testClock); err != nil {
		t.Fatalf("reject failed: %v", err)
	}

	later := testClock.Add(2 * time.Hour)
	art, err := SubmitArtifact(w, Submission{
		Name:           "draft_language",
		Payload:        json.RawMessage(`{"v":2}`),
		RequiresReview: true,
		ReviewGateID:   GateLanguage,
	}, later)
	if err != nil {
		t.Fatalf("resubmission failed: %v", err)
	}

	if art.Version != 2 {
		t.Errorf("version = %d, want 2", art.Version)
	}
	if art.ApprovalStatus != ApprovalPending {
		t.Errorf("approval status = %s, want PENDING", art.ApprovalStatus)
	}
	if len(art.Superseded) != 1 {
		t.Fatalf("superseded count = %d, want 1", len(art.Superseded))
	}

	prior := art.Superseded[0]
	if prior.Version != 1 || string(prior.Payload) != `{"v":1}` {
		t.Errorf("unexpected superseded revision %+v", prior)
	}
	if prior.RejectedBy != "reviewer-1" || prior.RejectedReason == "" {
		t.Errorf("rejection identity not preserved on superseded revision: %+v", prior)
	}

	record, _ := w.GateRecord(GateLanguage)
	if !record.IsPending("draft_language") {
		t.Error("resubmitted artifact should re-enter the pending queue")
	}
	for _, name := range record.Rejected {
		if name == "draft_language" {
			t.Error("resubmitted artifact still in the rejected set")
		}
	}
}

func TestSubmitArtifactDependencies(t *testing.T) {
	w := testWorkflow(StagePre)
	mustSubmit(t, w, Submission{Name: "signal_scan", Payload: json.RawMessage(`{}`)})
	mustSubmit(t, w, Submission{
		Name:           "concept_memo",
		Payload:        json.RawMessage(`{}`),
		RequiresReview: true,
		ReviewGateID:   GateConcept,
	})

	_, err := SubmitArtifact(w, Submission{
		Name:      "stakeholder_map",
		Payload:   json.RawMessage(`{}`),
		DependsOn: []string{"signal_scan", "concept_memo", "ghost_artifact"},
	}, testClock)

	var depErr *DependencyError
	if !errors.As(err, &depErr) {
		t.Fatalf("error = %v, want DependencyError", err)
	}
	if depErr.Artifact != "stakeholder_map" {
		t.Errorf("error artifact = %s, want stakeholder_map", depErr.Artifact)
	}

	// signal_scan never required review and satisfies the dependency; the
	// pending concept_memo and the missing name each produce one issue.
	if len(depErr.Issues) != 2 {
		t.Fatalf("got %d issues %v, want 2", len(depErr.Issues), depErr.Issues)
	}
	for _, issue := range depErr.Issues {
		if issue.Code != IssueUnsatisfiedDependency {
			t.Errorf("issue code = %s, want UNSATISFIED_DEPENDENCY", issue.Code)
		}
	}

	if _, ok := w.Artifact("stakeholder_map"); ok {
		t.Error("blocked submission must not register an artifact")
	}
}

func TestSubmitArtifactApprovedDependency(t *testing.T) {
	w := testWorkflow(StagePre)
	mustSubmit(t, w, Submission{
		Name:           "concept_memo",
		Payload:        json.RawMessage(`{}`),
		RequiresReview: true,
		ReviewGateID:   GateConcept,
	})
	mustApproveAll(t, w, GateConcept)

	if _, err := SubmitArtifact(w, Submission{
		Name:      "stakeholder_map",
		Payload:   json.RawMessage(`{}`),
		DependsOn: []string{"concept_memo"},
	}, testClock); err != nil {
		t.Fatalf("approved dependency should satisfy submission: %v", err)
	}
}

func TestSortedArtifacts(t *testing.T) {
	w := testWorkflow(StageIntroduction)
	for _, name := range []string{"whitepaper", "framing_brief", "opposition_assessment"} {
		mustSubmit(t, w, Submission{Name: name, Payload: json.RawMessage(`{}`)})
	}

	arts := w.SortedArtifacts()
	want := []string{"framing_brief", "opposition_assessment", "whitepaper"}
	for i, art := range arts {
		if art.Name != want[i] {
			t.Errorf("artifact %d = %s, want %s", i, art.Name, want[i])
		}
	}
}
