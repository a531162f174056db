package spine

import (
	"encoding/json"
	"errors"
	"slices"
	"testing"
)

func submitToGate(t *testing.T, w *Workflow, gate GateID, names ...string) {
	t.Helper()
	for _, name := range names {
		mustSubmit(t, w, Submission{
			Name:           name,
			Payload:        json.RawMessage(`{}`),
			RequiresReview: true,
			ReviewGateID:   gate,
		})
	}
}

func TestApproveNamedArtifact(t *testing.T) {
	w := testWorkflow(StageCommittee)
	submitToGate(t, w, GateLanguage, "draft_language", "amendment_strategy")

	approved, err := ApproveArtifacts(w, GateLanguage, "reviewer-1",
		[]string{"draft_language"}, testClock)
	if err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if !slices.Equal(approved, []string{"draft_language"}) {
		t.Errorf("approved = %v, want [draft_language]", approved)
	}

	art, _ := w.Artifact("draft_language")
	if art.ApprovalStatus != ApprovalApproved {
		t.Errorf("approval status = %s, want APPROVED", art.ApprovalStatus)
	}

	record, _ := w.GateRecord(GateLanguage)
	if !record.IsPending("amendment_strategy") {
		t.Error("unnamed artifact should remain pending")
	}
	if !slices.Contains(record.Approved, "draft_language") {
		t.Errorf("approved set = %v, missing draft_language", record.Approved)
	}
}

func TestApproveAllPendingSorted(t *testing.T) {
	w := testWorkflow(StageFloor)
	submitToGate(t, w, GateMessaging, "media_narrative", "floor_messaging")

	approved, err := ApproveArtifacts(w, GateMessaging, "reviewer-2", nil, testClock)
	if err != nil {
		t.Fatalf("approve all failed: %v", err)
	}
	if !slices.Equal(approved, []string{"floor_messaging", "media_narrative"}) {
		t.Errorf("approved = %v, want sorted names", approved)
	}

	record, _ := w.GateRecord(GateMessaging)
	if record.HasPending() {
		t.Errorf("gate still pending %v after blanket approval", record.Pending)
	}
}

func TestApproveValidation(t *testing.T) {
	tests := []struct {
		name  string
		gate  GateID
		by    string
		names []string
		want  error
	}{
		{"unknown gate", "HR_BUDGET", "reviewer-1", nil, ErrUnknownGate},
		{"missing reviewer", GateConcept, "", nil, ErrInvalidDecision},
		{"empty gate", GateConcept, "reviewer-1", nil, ErrNoPending},
		{"not pending", GateConcept, "reviewer-1", []string{"whitepaper"}, ErrNotPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := testWorkflow(StagePre)
			if _, err := ApproveArtifacts(w, tt.gate, tt.by, tt.names, testClock); !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestApproveBadNameMutatesNothing(t *testing.T) {
	w := testWorkflow(StageCommittee)
	submitToGate(t, w, GateLanguage, "draft_language", "amendment_strategy")

	_, err := ApproveArtifacts(w, GateLanguage, "reviewer-1",
		[]string{"draft_language", "floor_messaging"}, testClock)
	if !errors.Is(err, ErrNotPending) {
		t.Fatalf("error = %v, want ErrNotPending", err)
	}

	// The valid name in the batch must not have been approved.
	art, _ := w.Artifact("draft_language")
	if art.ApprovalStatus != ApprovalPending {
		t.Errorf("approval status = %s, want PENDING after failed batch", art.ApprovalStatus)
	}
	record, _ := w.GateRecord(GateLanguage)
	if len(record.Pending) != 2 {
		t.Errorf("pending = %v, want both artifacts untouched", record.Pending)
	}
	if len(record.Decisions) != 0 {
		t.Errorf("decisions = %v, want empty audit trail", record.Decisions)
	}
}

func TestReapprovalRejected(t *testing.T) {
	w := testWorkflow(StagePre)
	submitToGate(t, w, GateConcept, "concept_memo")
	mustApproveAll(t, w, GateConcept)

	if _, err := ApproveArtifacts(w, GateConcept, "reviewer-1",
		[]string{"concept_memo"}, testClock); !errors.Is(err, ErrNotPending) {
		t.Errorf("re-approval error = %v, want ErrNotPending", err)
	}
}

func TestRejectArtifacts(t *testing.T) {
	w := testWorkflow(StageFinal)
	submitToGate(t, w, GateRelease, "release_package")

	rejected, err := RejectArtifacts(w, GateRelease, "reviewer-3",
		[]string{"release_package"}, "embargo date is wrong", testClock)
	if err != nil {
		t.Fatalf("reject failed: %v", err)
	}
	if !slices.Equal(rejected, []string{"release_package"}) {
		t.Errorf("rejected = %v, want [release_package]", rejected)
	}

	art, _ := w.Artifact("release_package")
	if art.ApprovalStatus != ApprovalRejected {
		t.Errorf("approval status = %s, want REJECTED", art.ApprovalStatus)
	}
	if art.RejectedBy != "reviewer-3" || art.RejectedReason != "embargo date is wrong" {
		t.Errorf("rejection identity not recorded: %+v", art)
	}
	if art.RejectedAt == nil || !art.RejectedAt.Equal(testClock) {
		t.Errorf("rejected_at = %v, want %v", art.RejectedAt, testClock)
	}

	record, _ := w.GateRecord(GateRelease)
	if record.HasPending() {
		t.Error("rejected artifact still pending")
	}
	if !slices.Contains(record.Rejected, "release_package") {
		t.Errorf("rejected set = %v, missing release_package", record.Rejected)
	}
}

func TestRejectValidation(t *testing.T) {
	w := testWorkflow(StagePre)
	submitToGate(t, w, GateConcept, "concept_memo")

	if _, err := RejectArtifacts(w, GateConcept, "reviewer-1",
		nil, "a reason", testClock); !errors.Is(err, ErrInvalidDecision) {
		t.Errorf("nameless rejection error = %v, want ErrInvalidDecision", err)
	}

	if _, err := RejectArtifacts(w, GateConcept, "reviewer-1",
		[]string{"concept_memo"}, "", testClock); !errors.Is(err, ErrInvalidDecision) {
		t.Errorf("reasonless rejection error = %v, want ErrInvalidDecision", err)
	}

	art, _ := w.Artifact("concept_memo")
	if art.ApprovalStatus != ApprovalPending {
		t.Errorf("approval status = %s, want PENDING after failed rejections", art.ApprovalStatus)
	}
}

func TestGateDecisionAuditTrail(t *testing.T) {
	w := testWorkflow(StageCommittee)
	submitToGate(t, w, GateLanguage, "draft_language", "amendment_strategy")

	if _, err := RejectArtifacts(w, GateLanguage, "reviewer-1",
		[]string{"draft_language"}, "needs a severability clause", testClock); err != nil {
		t.Fatal(err)
	}
	if _, err := ApproveArtifacts(w, GateLanguage, "reviewer-2",
		[]string{"amendment_strategy"}, testClock); err != nil {
		t.Fatal(err)
	}

	record, _ := w.GateRecord(GateLanguage)
	if len(record.Decisions) != 2 {
		t.Fatalf("decisions = %d, want 2", len(record.Decisions))
	}

	first := record.Decisions[0]
	if first.Artifact != "draft_language" || first.Outcome != ApprovalRejected ||
		first.DecidedBy != "reviewer-1" || first.Reason == "" {
		t.Errorf("unexpected first decision %+v", first)
	}

	second := record.Decisions[1]
	if second.Artifact != "amendment_strategy" || second.Outcome != ApprovalApproved ||
		second.DecidedBy != "reviewer-2" || second.Reason != "" {
		t.Errorf("unexpected second decision %+v", second)
	}
}

func TestGateSetsStayDisjoint(t *testing.T) {
	w := testWorkflow(StageCommittee)
	submitToGate(t, w, GateLanguage, "draft_language")

	if _, err := RejectArtifacts(w, GateLanguage, "reviewer-1",
		[]string{"draft_language"}, "wrong committee", testClock); err != nil {
		t.Fatal(err)
	}
	submitToGate(t, w, GateLanguage, "draft_language")
	mustApproveAll(t, w, GateLanguage)

	record, _ := w.GateRecord(GateLanguage)
	sets := map[string][]string{
		"pending":  record.Pending,
		"approved": record.Approved,
		"rejected": record.Rejected,
	}
	seen := make(map[string]string)
	for set, names := range sets {
		for _, name := range names {
			if prior, ok := seen[name]; ok {
				t.Errorf("%s appears in both %s and %s", name, prior, set)
			}
			seen[name] = set
		}
	}
	if seen["draft_language"] != "approved" {
		t.Errorf("draft_language ended in %q, want approved", seen["draft_language"])
	}
}
