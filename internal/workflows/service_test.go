package workflows

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/statecraft-labs/gavel/internal/diagnostics"
	"github.com/statecraft-labs/gavel/internal/spine"
	"github.com/statecraft-labs/gavel/pkg/lifecycle"
	"github.com/statecraft-labs/gavel/pkg/pagination"
)

var testPagination = pagination.Config{DefaultPageSize: 20, MaxPageSize: 100}

// memStore is an in-memory Store. Rows are held marshaled so Get always
// returns a fresh copy and aborted mutations can never leak into the store.
type memStore struct {
	mu   sync.Mutex
	rows map[uuid.UUID][]byte

	insertErr error
	getErr    error
	updateErr error

	statusSets []spine.OrchestratorStatus
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[uuid.UUID][]byte)}
}

func (s *memStore) put(w *spine.Workflow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, _ := json.Marshal(w)
	s.rows[w.ID] = doc
}

func (s *memStore) Insert(_ context.Context, w *spine.Workflow) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.put(w)
	return nil
}

func (s *memStore) Get(_ context.Context, id uuid.UUID) (*spine.Workflow, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}

	s.mu.Lock()
	doc, ok := s.rows[id]
	s.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}

	var w spine.Workflow
	if err := json.Unmarshal(doc, &w); err != nil {
		return nil, err
	}
	return &w, nil
}

func (s *memStore) Update(_ context.Context, w *spine.Workflow) error {
	if s.updateErr != nil {
		return s.updateErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.rows[w.ID]
	if !ok {
		return ErrNotFound
	}
	var stored spine.Workflow
	if err := json.Unmarshal(doc, &stored); err != nil {
		return err
	}
	if stored.Revision != w.Revision {
		return ErrRevisionConflict
	}

	w.Revision++
	updated, _ := json.Marshal(w)
	s.rows[w.ID] = updated
	return nil
}

func (s *memStore) SetStatus(
	_ context.Context,
	id uuid.UUID,
	status spine.OrchestratorStatus,
	_ time.Time,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.statusSets = append(s.statusSets, status)

	doc, ok := s.rows[id]
	if !ok {
		return ErrNotFound
	}
	var w spine.Workflow
	if err := json.Unmarshal(doc, &w); err != nil {
		return err
	}
	w.Status = status
	w.Revision++
	updated, _ := json.Marshal(&w)
	s.rows[id] = updated
	return nil
}

func (s *memStore) List(
	_ context.Context,
	_ pagination.PageRequest,
	_ Filters,
) ([]*spine.Workflow, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var items []*spine.Workflow
	for _, doc := range s.rows {
		var w spine.Workflow
		if err := json.Unmarshal(doc, &w); err != nil {
			return nil, 0, err
		}
		items = append(items, &w)
	}
	return items, len(items), nil
}

// memJournal captures diagnostic records in memory.
type memJournal struct {
	mu      sync.Mutex
	records []diagnostics.Record
	failErr error
}

func (j *memJournal) Handler() *diagnostics.Handler { return nil }

func (j *memJournal) Record(_ context.Context, rec diagnostics.Record) error {
	if j.failErr != nil {
		return j.failErr
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.records = append(j.records, rec)
	return nil
}

func (j *memJournal) List(
	_ context.Context,
	page pagination.PageRequest,
	_ diagnostics.Filters,
) (*pagination.PageResult[diagnostics.Diagnostic], error) {
	result := pagination.NewPageResult([]diagnostics.Diagnostic{}, 0, 1, page.PageSize)
	return &result, nil
}

func (j *memJournal) ListByWorkflow(
	ctx context.Context,
	_ uuid.UUID,
	page pagination.PageRequest,
) (*pagination.PageResult[diagnostics.Diagnostic], error) {
	return j.List(ctx, page, diagnostics.Filters{})
}

func (j *memJournal) all() []diagnostics.Record {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]diagnostics.Record(nil), j.records...)
}

// memArchive is an in-memory blob archive.
type memArchive struct {
	mu        sync.Mutex
	blobs     map[string][]byte
	deleted   []string
	uploadErr error
}

func newMemArchive() *memArchive {
	return &memArchive{blobs: make(map[string][]byte)}
}

func (a *memArchive) Start(*lifecycle.Coordinator) error { return nil }

func (a *memArchive) Upload(_ context.Context, key string, reader io.Reader, _ string) error {
	if a.uploadErr != nil {
		return a.uploadErr
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.blobs[key] = data
	return nil
}

func (a *memArchive) Download(_ context.Context, key string) (io.ReadCloser, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	data, ok := a.blobs[key]
	if !ok {
		return nil, errors.New("blob not found")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (a *memArchive) Delete(_ context.Context, key string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.blobs, key)
	a.deleted = append(a.deleted, key)
	return nil
}

func (a *memArchive) Exists(_ context.Context, key string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.blobs[key]
	return ok, nil
}

type fixture struct {
	svc     *Service
	store   *memStore
	journal *memJournal
	archive *memArchive
}

func newFixture() *fixture {
	store := newMemStore()
	journal := &memJournal{}
	archive := newMemArchive()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return &fixture{
		svc:     NewService(store, journal, archive, logger, testPagination),
		store:   store,
		journal: journal,
		archive: archive,
	}
}

func director() Caller { return Caller{Actor: "director-1", Role: spine.RoleDirector} }
func reviewer() Caller { return Caller{Actor: "reviewer-1", Role: spine.RoleReviewer} }
func analyst() Caller  { return Caller{Actor: "analyst-1", Role: spine.RoleAnalyst} }

// seed persists a workflow at the given stage and returns it.
func (f *fixture) seed(t *testing.T, stage spine.Stage) *spine.Workflow {
	t.Helper()
	w := spine.NewWorkflow(uuid.New(), stage, time.Now().UTC())
	f.store.put(w)
	return w
}

// seedReady persists a workflow with every current-stage requirement satisfied.
func (f *fixture) seedReady(t *testing.T, stage spine.Stage) *spine.Workflow {
	t.Helper()
	w := spine.NewWorkflow(uuid.New(), stage, time.Now().UTC())

	gates := make(map[spine.GateID]bool)
	for _, req := range spine.RequiredArtifacts(stage) {
		sub := spine.Submission{Name: req.Name, Payload: json.RawMessage(`{}`)}
		if req.Gate != "" {
			sub.RequiresReview = true
			sub.ReviewGateID = req.Gate
			gates[req.Gate] = true
		}
		if _, err := spine.SubmitArtifact(w, sub, time.Now().UTC()); err != nil {
			t.Fatalf("seed submit %s: %v", req.Name, err)
		}
	}
	for gate := range gates {
		if _, err := spine.ApproveArtifacts(w, gate, "reviewer-1", nil, time.Now().UTC()); err != nil {
			t.Fatalf("seed approve %s: %v", gate, err)
		}
	}

	f.store.put(w)
	return w
}

func governance(t *testing.T, err error) *GovernanceError {
	t.Helper()
	var gerr *GovernanceError
	if !errors.As(err, &gerr) {
		t.Fatalf("error = %v, want *GovernanceError", err)
	}
	return gerr
}

func TestServiceCreate(t *testing.T) {
	f := newFixture()

	w, err := f.svc.Create(context.Background(), CreateCommand{Caller: analyst()})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if w.CurrentStage != spine.EntryStage {
		t.Errorf("stage = %s, want entry stage", w.CurrentStage)
	}
	if w.Status != spine.StatusIdle {
		t.Errorf("status = %s, want IDLE", w.Status)
	}
	if _, err := f.store.Get(context.Background(), w.ID); err != nil {
		t.Errorf("workflow not persisted: %v", err)
	}
	if len(f.journal.all()) != 0 {
		t.Error("successful create should not journal")
	}
}

func TestServiceCreateAtStage(t *testing.T) {
	f := newFixture()

	w, err := f.svc.Create(context.Background(), CreateCommand{
		InitialStage: "COMM_EVT",
		Caller:       analyst(),
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if w.CurrentStage != spine.StageCommittee {
		t.Errorf("stage = %s, want COMM_EVT", w.CurrentStage)
	}
}

func TestServiceCreateUnknownStage(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Create(context.Background(), CreateCommand{
		InitialStage: "LOBBY_EVT",
		Caller:       analyst(),
	})
	gerr := governance(t, err)
	if gerr.Code != CodeValidationFailed {
		t.Errorf("code = %s, want VALIDATION_FAILED", gerr.Code)
	}

	records := f.journal.all()
	if len(records) != 1 {
		t.Fatalf("journal records = %d, want 1", len(records))
	}
	if records[0].CorrelationID != gerr.CorrelationID {
		t.Error("journal correlation id does not match the returned error")
	}
}

func TestServiceCreateCapabilityDenied(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Create(context.Background(), CreateCommand{
		Caller: Caller{Actor: "visitor", Role: "observer"},
	})
	gerr := governance(t, err)
	if gerr.Code != CodeCapabilityDenied {
		t.Errorf("code = %s, want CAPABILITY_DENIED", gerr.Code)
	}
}

func TestServiceAdvance(t *testing.T) {
	f := newFixture()
	w := f.seedReady(t, spine.StagePre)

	result, err := f.svc.Advance(context.Background(), AdvanceCommand{
		WorkflowID:  w.ID,
		TargetStage: "INTRO_EVT",
		Confirmation: &spine.Confirmation{
			EventType:   "bill_introduced",
			ConfirmedBy: "director-1",
		},
		Caller: director(),
	})
	if err != nil {
		t.Fatalf("advance failed: %v", err)
	}

	if result.PreviousStage != spine.StagePre || result.NewStage != spine.StageIntroduction {
		t.Errorf("result = %+v, want PRE_EVT -> INTRO_EVT", result)
	}
	if result.OrchestratorStatus != spine.StatusActive {
		t.Errorf("status = %s, want ACTIVE", result.OrchestratorStatus)
	}

	stored, err := f.store.Get(context.Background(), w.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.CurrentStage != spine.StageIntroduction {
		t.Errorf("stored stage = %s, want INTRO_EVT", stored.CurrentStage)
	}
	if stored.Revision != w.Revision+1 {
		t.Errorf("stored revision = %d, want %d", stored.Revision, w.Revision+1)
	}
	if len(stored.History) != 2 || stored.History[1].Confirmation == nil {
		t.Errorf("confirmation not recorded in history: %+v", stored.History)
	}
}

func TestServiceAdvanceBlockedJournalsEveryIssue(t *testing.T) {
	f := newFixture()
	w := f.seed(t, spine.StagePre)

	_, err := f.svc.Advance(context.Background(), AdvanceCommand{
		WorkflowID:  w.ID,
		TargetStage: "INTRO_EVT",
		Caller:      director(),
	})
	gerr := governance(t, err)
	if gerr.Code != CodeValidationFailed {
		t.Errorf("code = %s, want VALIDATION_FAILED", gerr.Code)
	}
	if !errors.Is(err, ErrTransitionBlocked) {
		t.Error("expected ErrTransitionBlocked in the chain")
	}

	// Three missing artifacts plus the missing confirmation.
	if len(gerr.Issues) != 4 {
		t.Fatalf("blocking issues = %d, want 4: %v", len(gerr.Issues), gerr.Issues)
	}

	records := f.journal.all()
	if len(records) != 1 {
		t.Fatalf("journal records = %d, want 1", len(records))
	}
	rec := records[0]
	if rec.CorrelationID != gerr.CorrelationID {
		t.Error("journal correlation id does not match the returned error")
	}
	if len(rec.Entries) != len(gerr.Issues) {
		t.Errorf("journal entries = %d, want one per issue (%d)", len(rec.Entries), len(gerr.Issues))
	}
	if rec.WorkflowID == nil || *rec.WorkflowID != w.ID {
		t.Error("journal record not attributed to the workflow")
	}

	// Blocked advance leaves the stored state untouched.
	stored, _ := f.store.Get(context.Background(), w.ID)
	if stored.CurrentStage != spine.StagePre || stored.Revision != w.Revision {
		t.Errorf("stored state changed: stage %s revision %d", stored.CurrentStage, stored.Revision)
	}
}

func TestServiceAdvanceNotFound(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Advance(context.Background(), AdvanceCommand{
		WorkflowID:  uuid.New(),
		TargetStage: "INTRO_EVT",
		Caller:      director(),
	})
	gerr := governance(t, err)
	if gerr.Code != CodeNotFound {
		t.Errorf("code = %s, want NOT_FOUND", gerr.Code)
	}
}

func TestServiceAdvanceRequiresDirector(t *testing.T) {
	f := newFixture()
	w := f.seedReady(t, spine.StagePre)

	_, err := f.svc.Advance(context.Background(), AdvanceCommand{
		WorkflowID:  w.ID,
		TargetStage: "INTRO_EVT",
		Caller:      reviewer(),
	})
	gerr := governance(t, err)
	if gerr.Code != CodeCapabilityDenied {
		t.Errorf("code = %s, want CAPABILITY_DENIED", gerr.Code)
	}
}

func TestServiceAdvanceInternalFaultMarksError(t *testing.T) {
	f := newFixture()
	w := f.seedReady(t, spine.StagePre)
	f.store.updateErr = errors.New("connection reset")

	_, err := f.svc.Advance(context.Background(), AdvanceCommand{
		WorkflowID:   w.ID,
		TargetStage:  "INTRO_EVT",
		Confirmation: &spine.Confirmation{EventType: "bill_introduced"},
		Caller:       director(),
	})
	gerr := governance(t, err)
	if gerr.Code != CodeInternal {
		t.Fatalf("code = %s, want INTERNAL_ERROR", gerr.Code)
	}

	if len(f.store.statusSets) != 1 || f.store.statusSets[0] != spine.StatusError {
		t.Errorf("status escalation = %v, want one ERROR set", f.store.statusSets)
	}
	if len(f.journal.all()) != 1 {
		t.Error("internal fault must be journaled")
	}
}

func TestServiceSubmitArtifact(t *testing.T) {
	f := newFixture()
	w := f.seed(t, spine.StagePre)

	art, err := f.svc.SubmitArtifact(context.Background(), SubmitCommand{
		WorkflowID:     w.ID,
		Name:           "concept_memo",
		Payload:        json.RawMessage(`{"thesis":"expand transit funding"}`),
		RequiresReview: true,
		ReviewGateID:   "HR_PRE",
		Caller:         analyst(),
	})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	if art.ApprovalStatus != spine.ApprovalPending {
		t.Errorf("approval status = %s, want PENDING", art.ApprovalStatus)
	}
	wantKey := payloadKey(w.ID, "concept_memo", 1)
	if art.StorageKey != wantKey {
		t.Errorf("storage key = %s, want %s", art.StorageKey, wantKey)
	}
	if data, ok := f.archive.blobs[wantKey]; !ok || !strings.Contains(string(data), "transit") {
		t.Error("payload not archived")
	}

	stored, _ := f.store.Get(context.Background(), w.ID)
	if stored.Status != spine.StatusActive {
		t.Errorf("stored status = %s, want ACTIVE", stored.Status)
	}
	if got, ok := stored.Artifact("concept_memo"); !ok || got.StorageKey != wantKey {
		t.Error("artifact with storage key not persisted")
	}
}

func TestServiceSubmitArtifactPersistFailureCleansBlob(t *testing.T) {
	f := newFixture()
	w := f.seed(t, spine.StagePre)
	f.store.updateErr = errors.New("connection reset")

	_, err := f.svc.SubmitArtifact(context.Background(), SubmitCommand{
		WorkflowID: w.ID,
		Name:       "signal_scan",
		Payload:    json.RawMessage(`{}`),
		Caller:     analyst(),
	})
	if governance(t, err).Code != CodeInternal {
		t.Error("expected INTERNAL_ERROR")
	}

	key := payloadKey(w.ID, "signal_scan", 1)
	if len(f.archive.deleted) != 1 || f.archive.deleted[0] != key {
		t.Errorf("deleted blobs = %v, want compensating delete of %s", f.archive.deleted, key)
	}
}

func TestServiceSubmitArtifactDependencyIssuesJournaled(t *testing.T) {
	f := newFixture()
	w := f.seed(t, spine.StagePre)

	_, err := f.svc.SubmitArtifact(context.Background(), SubmitCommand{
		WorkflowID: w.ID,
		Name:       "stakeholder_map",
		Payload:    json.RawMessage(`{}`),
		DependsOn:  []string{"signal_scan", "concept_memo"},
		Caller:     analyst(),
	})
	gerr := governance(t, err)
	if gerr.Code != CodeValidationFailed {
		t.Errorf("code = %s, want VALIDATION_FAILED", gerr.Code)
	}
	if len(gerr.Issues) != 2 {
		t.Fatalf("issues = %d, want one per missing dependency", len(gerr.Issues))
	}

	records := f.journal.all()
	if len(records) != 1 || len(records[0].Entries) != 2 {
		t.Errorf("journal = %+v, want one record with two entries", records)
	}
}

func TestServiceSubmitArtifactPaused(t *testing.T) {
	f := newFixture()
	w := f.seed(t, spine.StagePre)
	w.Status = spine.StatusPaused
	f.store.put(w)

	_, err := f.svc.SubmitArtifact(context.Background(), SubmitCommand{
		WorkflowID: w.ID,
		Name:       "signal_scan",
		Caller:     analyst(),
	})
	gerr := governance(t, err)
	if gerr.Code != CodeConflict {
		t.Errorf("code = %s, want CONFLICT", gerr.Code)
	}
	if len(f.journal.all()) != 1 {
		t.Error("paused rejection must be journaled")
	}
}

func TestServiceDownloadPayload(t *testing.T) {
	f := newFixture()
	w := f.seed(t, spine.StagePre)

	if _, err := f.svc.SubmitArtifact(context.Background(), SubmitCommand{
		WorkflowID: w.ID,
		Name:       "signal_scan",
		Payload:    json.RawMessage(`{"signals":7}`),
		Caller:     analyst(),
	}); err != nil {
		t.Fatal(err)
	}

	reader, err := f.svc.DownloadPayload(context.Background(), w.ID, "signal_scan")
	if err != nil {
		t.Fatalf("download failed: %v", err)
	}
	defer reader.Close()

	data, _ := io.ReadAll(reader)
	if string(data) != `{"signals":7}` {
		t.Errorf("payload = %s", data)
	}

	_, err = f.svc.DownloadPayload(context.Background(), w.ID, "ghost")
	if governance(t, err).Code != CodeNotFound {
		t.Error("expected NOT_FOUND for unknown artifact")
	}
}

func TestServiceDownloadPayloadInlineFallback(t *testing.T) {
	// An artifact persisted without a storage key serves its inline payload.
	f := newFixture()
	w := f.seed(t, spine.StagePre)
	if _, err := spine.SubmitArtifact(w, spine.Submission{
		Name:    "signal_scan",
		Payload: json.RawMessage(`{"inline":true}`),
	}, time.Now().UTC()); err != nil {
		t.Fatal(err)
	}
	f.store.put(w)

	reader, err := f.svc.DownloadPayload(context.Background(), w.ID, "signal_scan")
	if err != nil {
		t.Fatalf("download failed: %v", err)
	}
	defer reader.Close()

	data, _ := io.ReadAll(reader)
	if string(data) != `{"inline":true}` {
		t.Errorf("payload = %s", data)
	}
}

func TestServiceApproveAndReject(t *testing.T) {
	f := newFixture()
	w := f.seed(t, spine.StageCommittee)

	for _, name := range []string{"draft_language", "amendment_strategy"} {
		if _, err := f.svc.SubmitArtifact(context.Background(), SubmitCommand{
			WorkflowID:     w.ID,
			Name:           name,
			Payload:        json.RawMessage(`{}`),
			RequiresReview: true,
			ReviewGateID:   "HR_LANG",
			Caller:         analyst(),
		}); err != nil {
			t.Fatal(err)
		}
	}

	rejected, err := f.svc.Reject(context.Background(), GateCommand{
		WorkflowID:    w.ID,
		GateID:        "HR_LANG",
		DecidedBy:     "reviewer-1",
		ArtifactNames: []string{"draft_language"},
		Reason:        "preemption clause too broad",
		Caller:        reviewer(),
	})
	if err != nil {
		t.Fatalf("reject failed: %v", err)
	}
	if len(rejected.RejectedArtifacts) != 1 {
		t.Errorf("rejected = %v", rejected.RejectedArtifacts)
	}

	approved, err := f.svc.Approve(context.Background(), GateCommand{
		WorkflowID: w.ID,
		GateID:     "HR_LANG",
		DecidedBy:  "reviewer-1",
		Caller:     reviewer(),
	})
	if err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if len(approved.ApprovedArtifacts) != 1 || approved.ApprovedArtifacts[0] != "amendment_strategy" {
		t.Errorf("approved = %v, want [amendment_strategy]", approved.ApprovedArtifacts)
	}

	stored, _ := f.store.Get(context.Background(), w.ID)
	record, _ := stored.GateRecord("HR_LANG")
	if len(record.Decisions) != 2 {
		t.Errorf("persisted decisions = %d, want 2", len(record.Decisions))
	}
}

func TestServiceApproveRequiresReviewer(t *testing.T) {
	f := newFixture()
	w := f.seed(t, spine.StagePre)

	_, err := f.svc.Approve(context.Background(), GateCommand{
		WorkflowID: w.ID,
		GateID:     "HR_PRE",
		DecidedBy:  "analyst-1",
		Caller:     analyst(),
	})
	if governance(t, err).Code != CodeCapabilityDenied {
		t.Error("expected CAPABILITY_DENIED for analyst gate decision")
	}
}

func TestServiceApproveUnknownGate(t *testing.T) {
	f := newFixture()
	w := f.seed(t, spine.StagePre)

	_, err := f.svc.Approve(context.Background(), GateCommand{
		WorkflowID: w.ID,
		GateID:     "HR_BUDGET",
		DecidedBy:  "reviewer-1",
		Caller:     reviewer(),
	})
	if governance(t, err).Code != CodeValidationFailed {
		t.Error("expected VALIDATION_FAILED for uncataloged gate")
	}
}

func TestServicePauseResume(t *testing.T) {
	f := newFixture()
	w := f.seed(t, spine.StagePre)
	ctx := context.Background()

	paused, err := f.svc.Pause(ctx, ControlCommand{
		WorkflowID: w.ID,
		Reason:     "session recess",
		Caller:     director(),
	})
	if err != nil {
		t.Fatalf("pause failed: %v", err)
	}
	if paused.Status != spine.StatusPaused {
		t.Errorf("status = %s, want PAUSED", paused.Status)
	}

	// Pausing again is a no-op, not an error.
	if _, err := f.svc.Pause(ctx, ControlCommand{WorkflowID: w.ID, Caller: director()}); err != nil {
		t.Fatalf("repeat pause failed: %v", err)
	}

	resumed, err := f.svc.Resume(ctx, ControlCommand{WorkflowID: w.ID, Caller: director()})
	if err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	if resumed.Status != spine.StatusActive {
		t.Errorf("status = %s, want ACTIVE", resumed.Status)
	}

	_, err = f.svc.Resume(ctx, ControlCommand{WorkflowID: w.ID, Caller: director()})
	if governance(t, err).Code != CodeConflict {
		t.Error("resuming an unpaused workflow should be CONFLICT")
	}
}

func TestServiceRecover(t *testing.T) {
	f := newFixture()
	w := f.seed(t, spine.StagePre)
	ctx := context.Background()

	_, err := f.svc.Recover(ctx, ControlCommand{WorkflowID: w.ID, Caller: director()})
	if governance(t, err).Code != CodeConflict {
		t.Fatal("recovering a healthy workflow should be CONFLICT")
	}

	w.Status = spine.StatusError
	f.store.put(w)

	recovered, err := f.svc.Recover(ctx, ControlCommand{
		WorkflowID: w.ID,
		Reason:     "database restored",
		Caller:     director(),
	})
	if err != nil {
		t.Fatalf("recover failed: %v", err)
	}
	if recovered.Status != spine.StatusIdle {
		t.Errorf("status = %s, want IDLE", recovered.Status)
	}

	records := f.journal.all()
	var found bool
	for _, rec := range records {
		for _, entry := range rec.Entries {
			if entry.Code == "RECOVERED" {
				found = true
			}
		}
	}
	if !found {
		t.Error("recovery must leave a RECOVERED journal entry")
	}
}

func TestServicePauseErroredRejected(t *testing.T) {
	f := newFixture()
	w := f.seed(t, spine.StagePre)
	w.Status = spine.StatusError
	f.store.put(w)

	_, err := f.svc.Pause(context.Background(), ControlCommand{WorkflowID: w.ID, Caller: director()})
	if governance(t, err).Code != CodeConflict {
		t.Error("pausing an errored workflow should be CONFLICT")
	}
}

func TestServiceStatus(t *testing.T) {
	f := newFixture()
	w := f.seedReady(t, spine.StageFloor)

	report, err := f.svc.Status(context.Background(), w.ID)
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}

	if report.CurrentStage != spine.StageFloor {
		t.Errorf("stage = %s, want FLOOR_EVT", report.CurrentStage)
	}
	if !report.Readiness.CanAdvance {
		t.Errorf("expected ready, issues %v", report.Readiness.BlockingIssues)
	}
	if report.Readiness.NextStage == nil || *report.Readiness.NextStage != spine.StageFinal {
		t.Errorf("next stage = %v, want FINAL_EVT", report.Readiness.NextStage)
	}
	if len(report.Artifacts) != 2 {
		t.Errorf("artifacts = %d, want 2", len(report.Artifacts))
	}
	if len(report.PendingGates) != 0 {
		t.Errorf("pending gates = %v, want none", report.PendingGates)
	}
}

func TestServiceCanAdvanceBlocked(t *testing.T) {
	f := newFixture()
	w := f.seed(t, spine.StagePre)

	r, err := f.svc.CanAdvance(context.Background(), w.ID)
	if err != nil {
		t.Fatalf("can-advance failed: %v", err)
	}
	if r.CanAdvance {
		t.Error("fresh workflow should not be ready")
	}
	// Readiness assumes the confirmation, so only the artifacts block.
	if len(r.BlockingIssues) != 3 {
		t.Errorf("issues = %v, want the three missing artifacts", r.BlockingIssues)
	}
	for _, issue := range r.BlockingIssues {
		if issue.Code != spine.IssueMissingArtifact {
			t.Errorf("issue code = %s, want MISSING_ARTIFACT", issue.Code)
		}
	}
}

func TestServiceCanAdvanceTerminal(t *testing.T) {
	f := newFixture()
	w := f.seed(t, spine.StageImplemented)

	r, err := f.svc.CanAdvance(context.Background(), w.ID)
	if err != nil {
		t.Fatal(err)
	}
	if r.CanAdvance || r.NextStage != nil {
		t.Errorf("terminal readiness = %+v, want blocked with no next stage", r)
	}
	if len(r.BlockingIssues) == 0 || r.BlockingIssues[0].Code != spine.IssueTerminalStage {
		t.Errorf("issues = %v, want TERMINAL_STAGE", r.BlockingIssues)
	}
}

func TestServiceExplain(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	blocked := f.seed(t, spine.StagePre)
	exp, err := f.svc.Explain(ctx, blocked.ID)
	if err != nil {
		t.Fatal(err)
	}
	if exp.Status != ExplainBlocked {
		t.Errorf("status = %s, want blocked", exp.Status)
	}
	if len(exp.BlockingReasons) != 3 {
		t.Errorf("reasons = %v, want 3", exp.BlockingReasons)
	}
	// Three submissions plus the advance instruction.
	if len(exp.NextSteps) != 4 {
		t.Errorf("next steps = %v, want 4", exp.NextSteps)
	}

	ready := f.seedReady(t, spine.StagePre)
	exp, err = f.svc.Explain(ctx, ready.ID)
	if err != nil {
		t.Fatal(err)
	}
	if exp.Status != ExplainReady {
		t.Errorf("status = %s, want ready", exp.Status)
	}
	if len(exp.NextSteps) != 1 || !strings.Contains(exp.NextSteps[0], "bill_introduced") {
		t.Errorf("next steps = %v, want the advance instruction", exp.NextSteps)
	}

	terminal := f.seed(t, spine.StageImplemented)
	exp, err = f.svc.Explain(ctx, terminal.ID)
	if err != nil {
		t.Fatal(err)
	}
	if exp.Status != ExplainTerminal {
		t.Errorf("status = %s, want terminal", exp.Status)
	}
}

func TestServiceHistory(t *testing.T) {
	f := newFixture()
	w := f.seedReady(t, spine.StagePre)

	if _, err := f.svc.Advance(context.Background(), AdvanceCommand{
		WorkflowID:   w.ID,
		TargetStage:  "INTRO_EVT",
		Confirmation: &spine.Confirmation{EventType: "bill_introduced", ConfirmedBy: "director-1"},
		Caller:       director(),
	}); err != nil {
		t.Fatal(err)
	}

	history, err := f.svc.History(context.Background(), w.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 2 {
		t.Fatalf("history = %d entries, want 2", len(history))
	}
	if history[0].Confirmation != nil {
		t.Error("entry-stage history record should carry no confirmation")
	}
	if history[1].Confirmation == nil || history[1].Confirmation.EventType != "bill_introduced" {
		t.Errorf("advance history record = %+v", history[1])
	}
}

func TestServiceList(t *testing.T) {
	f := newFixture()
	f.seed(t, spine.StagePre)
	ready := f.seedReady(t, spine.StageFloor)

	result, err := f.svc.List(context.Background(), pagination.PageRequest{}, Filters{})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}

	if result.Total != 2 || len(result.Data) != 2 {
		t.Fatalf("total = %d, data = %d, want 2", result.Total, len(result.Data))
	}

	for _, row := range result.Data {
		want := row.ID == ready.ID
		if row.CanAdvance != want {
			t.Errorf("workflow %s can_advance = %t, want %t", row.ID, row.CanAdvance, want)
		}
	}
}

func TestServiceJournalFailureStillReturnsError(t *testing.T) {
	f := newFixture()
	f.journal.failErr = errors.New("journal table unavailable")

	_, err := f.svc.Create(context.Background(), CreateCommand{
		InitialStage: "LOBBY_EVT",
		Caller:       analyst(),
	})
	if governance(t, err).Code != CodeValidationFailed {
		t.Error("journal failure must not mask the original rejection")
	}
}
