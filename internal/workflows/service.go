package workflows

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/statecraft-labs/gavel/internal/diagnostics"
	"github.com/statecraft-labs/gavel/internal/spine"
	"github.com/statecraft-labs/gavel/pkg/pagination"
	"github.com/statecraft-labs/gavel/pkg/storage"
)

// listReadinessConcurrency bounds the per-row readiness fan-out on list calls.
const listReadinessConcurrency = 8

// Service orchestrates governed workflows. It is the sole mutator of the
// store: every mutation runs authorize, lock, load, validate, mutate, persist
// in that order, and every failure is journaled before the error returns.
type Service struct {
	store      Store
	journal    diagnostics.System
	archive    storage.System
	logger     *slog.Logger
	pagination pagination.Config
	locks      workflowLocks
}

// NewService creates the orchestration service implementing System.
func NewService(
	store Store,
	journal diagnostics.System,
	archive storage.System,
	logger *slog.Logger,
	pagination pagination.Config,
) *Service {
	return &Service{
		store:      store,
		journal:    journal,
		archive:    archive,
		logger:     logger.With("system", "workflows"),
		pagination: pagination,
	}
}

// Handler returns the HTTP handler bound to this service.
func (s *Service) Handler(maxPayloadSize int64) *Handler {
	return NewHandler(s, s.logger, s.pagination, maxPayloadSize)
}

// Create starts a new workflow at the entry stage, or at an explicitly named
// catalog stage.
func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*spine.Workflow, error) {
	correlation := uuid.New()

	if err := spine.Authorize(spine.OpCreate, cmd.Role); err != nil {
		return nil, s.fail(ctx, correlation, nil, "create", err, nil)
	}

	entry := spine.EntryStage
	if cmd.InitialStage != "" {
		stage, err := spine.ParseStage(cmd.InitialStage)
		if err != nil {
			return nil, s.fail(ctx, correlation, nil, "create", err, nil)
		}
		entry = stage
	}

	w := spine.NewWorkflow(uuid.New(), entry, time.Now().UTC())

	if err := s.store.Insert(ctx, w); err != nil {
		return nil, s.fail(ctx, correlation, &w.ID, "create", err, nil)
	}

	s.logger.Info("workflow created", "id", w.ID, "stage", w.CurrentStage, "actor", cmd.Actor)
	return w, nil
}

// Find returns the full workflow document.
func (s *Service) Find(ctx context.Context, id uuid.UUID) (*spine.Workflow, error) {
	w, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, s.fail(ctx, uuid.New(), &id, "find", err, nil)
	}
	return w, nil
}

// List returns a page of workflow summaries with fresh per-row readiness.
func (s *Service) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Summary], error) {
	page.Normalize(s.pagination)

	items, total, err := s.store.List(ctx, page, filters)
	if err != nil {
		return nil, s.fail(ctx, uuid.New(), nil, "list", err, nil)
	}

	summaries := make([]Summary, len(items))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(listReadinessConcurrency)
	for i, w := range items {
		g.Go(func() error {
			summaries[i] = Summary{
				ID:                 w.ID,
				CurrentStage:       w.CurrentStage,
				OrchestratorStatus: w.Status,
				Revision:           w.Revision,
				CanAdvance:         readiness(w).CanAdvance,
				CreatedAt:          w.CreatedAt,
				UpdatedAt:          w.UpdatedAt,
			}
			return nil
		})
	}
	_ = g.Wait()

	result := pagination.NewPageResult(summaries, total, page.Page, page.PageSize)
	return &result, nil
}

// Status returns the operational snapshot for one workflow.
func (s *Service) Status(ctx context.Context, id uuid.UUID) (*StatusReport, error) {
	w, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, s.fail(ctx, uuid.New(), &id, "status", err, nil)
	}

	return &StatusReport{
		ID:                 w.ID,
		CurrentStage:       w.CurrentStage,
		OrchestratorStatus: w.Status,
		Revision:           w.Revision,
		Artifacts:          w.SortedArtifacts(),
		PendingGates:       w.PendingGates(),
		Readiness:          readiness(w),
		UpdatedAt:          w.UpdatedAt,
	}, nil
}

// CanAdvance reports whether the workflow could advance right now, with the
// complete list of blocking issues when it cannot.
func (s *Service) CanAdvance(ctx context.Context, id uuid.UUID) (*Readiness, error) {
	w, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, s.fail(ctx, uuid.New(), &id, "can_advance", err, nil)
	}

	r := readiness(w)
	return &r, nil
}

// Explain returns the human-readable readiness account.
func (s *Service) Explain(ctx context.Context, id uuid.UUID) (*Explanation, error) {
	w, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, s.fail(ctx, uuid.New(), &id, "explain", err, nil)
	}
	return explain(w), nil
}

// History returns the workflow's append-only stage history.
func (s *Service) History(ctx context.Context, id uuid.UUID) ([]spine.HistoryEntry, error) {
	w, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, s.fail(ctx, uuid.New(), &id, "history", err, nil)
	}
	return w.History, nil
}

// Advance attempts a stage transition. Validation reports every blocking
// issue together; a blocked or failed advance leaves the stored state
// untouched.
func (s *Service) Advance(ctx context.Context, cmd AdvanceCommand) (*AdvanceResult, error) {
	correlation := uuid.New()
	id := cmd.WorkflowID

	if err := spine.Authorize(spine.OpAdvance, cmd.Role); err != nil {
		return nil, s.fail(ctx, correlation, &id, "advance", err, nil)
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	w, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, s.fail(ctx, correlation, &id, "advance", err, nil)
	}

	if err := w.AcceptsMutation(); err != nil {
		return nil, s.fail(ctx, correlation, &id, "advance", err, nil)
	}

	target, err := spine.ParseStage(cmd.TargetStage)
	if err != nil {
		return nil, s.fail(ctx, correlation, &id, "advance", err, nil)
	}

	if result := spine.ValidateTransition(w, target, cmd.Confirmation); !result.Allowed {
		err := fmt.Errorf(
			"%w: %s -> %s rejected with %d issue(s)",
			ErrTransitionBlocked, w.CurrentStage, target, len(result.Issues),
		)
		return nil, s.fail(ctx, correlation, &id, "advance", err, result.Issues)
	}

	previous := w.CurrentStage
	w.Advance(target, cmd.Confirmation, time.Now().UTC())

	if err := s.store.Update(ctx, w); err != nil {
		return nil, s.fail(ctx, correlation, &id, "advance", err, nil)
	}

	s.logger.Info(
		"workflow advanced",
		"id", id,
		"from", previous,
		"to", w.CurrentStage,
		"actor", cmd.Actor,
	)

	return &AdvanceResult{
		WorkflowID:         id,
		PreviousStage:      previous,
		NewStage:           w.CurrentStage,
		OrchestratorStatus: w.Status,
	}, nil
}

// SubmitArtifact registers an artifact and archives its payload. The blob is
// written before the aggregate; a failed persist deletes the orphaned blob.
func (s *Service) SubmitArtifact(ctx context.Context, cmd SubmitCommand) (*spine.Artifact, error) {
	correlation := uuid.New()
	id := cmd.WorkflowID

	if err := spine.Authorize(spine.OpSubmitArtifact, cmd.Role); err != nil {
		return nil, s.fail(ctx, correlation, &id, "submit_artifact", err, nil)
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	w, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, s.fail(ctx, correlation, &id, "submit_artifact", err, nil)
	}

	if err := w.AcceptsMutation(); err != nil {
		return nil, s.fail(ctx, correlation, &id, "submit_artifact", err, nil)
	}

	now := time.Now().UTC()
	art, err := spine.SubmitArtifact(w, spine.Submission{
		Name:           cmd.Name,
		Payload:        cmd.Payload,
		RequiresReview: cmd.RequiresReview,
		ReviewGateID:   spine.GateID(cmd.ReviewGateID),
		DependsOn:      cmd.DependsOn,
	}, now)
	if err != nil {
		var depErr *spine.DependencyError
		var issues []spine.Issue
		if errors.As(err, &depErr) {
			issues = depErr.Issues
		}
		return nil, s.fail(ctx, correlation, &id, "submit_artifact", err, issues)
	}

	if len(art.Payload) > 0 {
		key := payloadKey(id, art.Name, art.Version)
		if err := s.archive.Upload(ctx, key, bytes.NewReader(art.Payload), "application/json"); err != nil {
			return nil, s.fail(ctx, correlation, &id, "submit_artifact",
				fmt.Errorf("archive payload: %w", err), nil)
		}
		art.StorageKey = key
	}

	if err := s.store.Update(ctx, w); err != nil {
		if art.StorageKey != "" {
			if delErr := s.archive.Delete(ctx, art.StorageKey); delErr != nil {
				s.logger.Warn("compensating blob delete failed", "key", art.StorageKey, "error", delErr)
			}
		}
		return nil, s.fail(ctx, correlation, &id, "submit_artifact", err, nil)
	}

	s.logger.Info(
		"artifact submitted",
		"workflow", id,
		"artifact", art.Name,
		"version", art.Version,
		"requires_review", art.RequiresReview,
		"actor", cmd.Actor,
	)
	return art, nil
}

// DownloadPayload streams an artifact's archived payload.
func (s *Service) DownloadPayload(ctx context.Context, id uuid.UUID, name string) (io.ReadCloser, error) {
	correlation := uuid.New()

	w, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, s.fail(ctx, correlation, &id, "download_payload", err, nil)
	}

	art, ok := w.Artifact(name)
	if !ok {
		err := fmt.Errorf("%w: %s", ErrArtifactNotFound, name)
		return nil, s.fail(ctx, correlation, &id, "download_payload", err, nil)
	}

	if art.StorageKey == "" {
		return io.NopCloser(bytes.NewReader(art.Payload)), nil
	}

	reader, err := s.archive.Download(ctx, art.StorageKey)
	if err != nil {
		return nil, s.fail(ctx, correlation, &id, "download_payload",
			fmt.Errorf("download payload: %w", err), nil)
	}
	return reader, nil
}

// Approve records approval decisions at a gate. An empty artifact list
// approves everything pending.
func (s *Service) Approve(ctx context.Context, cmd GateCommand) (*GateResult, error) {
	return s.decide(ctx, spine.OpApproveGate, cmd)
}

// Reject records rejection decisions at a gate. Targets must be named and a
// reason is required.
func (s *Service) Reject(ctx context.Context, cmd GateCommand) (*GateResult, error) {
	return s.decide(ctx, spine.OpRejectGate, cmd)
}

func (s *Service) decide(ctx context.Context, op spine.Operation, cmd GateCommand) (*GateResult, error) {
	correlation := uuid.New()
	id := cmd.WorkflowID

	if err := spine.Authorize(op, cmd.Role); err != nil {
		return nil, s.fail(ctx, correlation, &id, string(op), err, nil)
	}

	gateID, err := spine.ParseGateID(cmd.GateID)
	if err != nil {
		return nil, s.fail(ctx, correlation, &id, string(op), err, nil)
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	w, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, s.fail(ctx, correlation, &id, string(op), err, nil)
	}

	if err := w.AcceptsMutation(); err != nil {
		return nil, s.fail(ctx, correlation, &id, string(op), err, nil)
	}

	now := time.Now().UTC()
	result := &GateResult{GateID: gateID}

	switch op {
	case spine.OpApproveGate:
		result.ApprovedArtifacts, err = spine.ApproveArtifacts(w, gateID, cmd.DecidedBy, cmd.ArtifactNames, now)
	default:
		result.RejectedArtifacts, err = spine.RejectArtifacts(w, gateID, cmd.DecidedBy, cmd.ArtifactNames, cmd.Reason, now)
	}
	if err != nil {
		return nil, s.fail(ctx, correlation, &id, string(op), err, nil)
	}

	if err := s.store.Update(ctx, w); err != nil {
		return nil, s.fail(ctx, correlation, &id, string(op), err, nil)
	}

	s.logger.Info(
		"gate decision recorded",
		"workflow", id,
		"gate", gateID,
		"operation", op,
		"decided_by", cmd.DecidedBy,
	)
	return result, nil
}

// Pause suspends all mutation on a workflow. Pausing an already paused
// workflow is a no-op; an errored workflow must be recovered first.
func (s *Service) Pause(ctx context.Context, cmd ControlCommand) (*spine.Workflow, error) {
	correlation := uuid.New()
	id := cmd.WorkflowID

	if err := spine.Authorize(spine.OpPause, cmd.Role); err != nil {
		return nil, s.fail(ctx, correlation, &id, "pause", err, nil)
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	w, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, s.fail(ctx, correlation, &id, "pause", err, nil)
	}

	if w.Status == spine.StatusPaused {
		return w, nil
	}
	if w.Status == spine.StatusError {
		err := fmt.Errorf("%w: recover before pausing", spine.ErrWorkflowErrored)
		return nil, s.fail(ctx, correlation, &id, "pause", err, nil)
	}

	w.Status = spine.StatusPaused
	w.UpdatedAt = time.Now().UTC()

	if err := s.store.Update(ctx, w); err != nil {
		return nil, s.fail(ctx, correlation, &id, "pause", err, nil)
	}

	s.logger.Info("workflow paused", "id", id, "actor", cmd.Actor, "reason", cmd.Reason)
	return w, nil
}

// Resume lifts a pause. Only a PAUSED workflow may be resumed.
func (s *Service) Resume(ctx context.Context, cmd ControlCommand) (*spine.Workflow, error) {
	correlation := uuid.New()
	id := cmd.WorkflowID

	if err := spine.Authorize(spine.OpResume, cmd.Role); err != nil {
		return nil, s.fail(ctx, correlation, &id, "resume", err, nil)
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	w, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, s.fail(ctx, correlation, &id, "resume", err, nil)
	}

	if w.Status != spine.StatusPaused {
		err := fmt.Errorf("%w: status is %s", ErrNotPaused, w.Status)
		return nil, s.fail(ctx, correlation, &id, "resume", err, nil)
	}

	if w.CurrentStage.Terminal() {
		w.Status = spine.StatusIdle
	} else {
		w.Status = spine.StatusActive
	}
	w.UpdatedAt = time.Now().UTC()

	if err := s.store.Update(ctx, w); err != nil {
		return nil, s.fail(ctx, correlation, &id, "resume", err, nil)
	}

	s.logger.Info("workflow resumed", "id", id, "actor", cmd.Actor)
	return w, nil
}

// Recover clears ERROR status back to IDLE. The recovery itself is journaled
// so the error episode has a durable closing entry.
func (s *Service) Recover(ctx context.Context, cmd ControlCommand) (*spine.Workflow, error) {
	correlation := uuid.New()
	id := cmd.WorkflowID

	if err := spine.Authorize(spine.OpRecover, cmd.Role); err != nil {
		return nil, s.fail(ctx, correlation, &id, "recover", err, nil)
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	w, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, s.fail(ctx, correlation, &id, "recover", err, nil)
	}

	if w.Status != spine.StatusError {
		err := fmt.Errorf("%w: status is %s", ErrNotErrored, w.Status)
		return nil, s.fail(ctx, correlation, &id, "recover", err, nil)
	}

	w.Status = spine.StatusIdle
	w.UpdatedAt = time.Now().UTC()

	if err := s.store.Update(ctx, w); err != nil {
		return nil, s.fail(ctx, correlation, &id, "recover", err, nil)
	}

	rec := diagnostics.Record{
		CorrelationID: correlation,
		WorkflowID:    &id,
		Entries: []diagnostics.Entry{{
			Code: "RECOVERED",
			Context: map[string]any{
				"operation": "recover",
				"actor":     cmd.Actor,
				"reason":    cmd.Reason,
			},
		}},
	}
	if err := s.journal.Record(ctx, rec); err != nil {
		s.logger.Error("recovery journaling failed", "id", id, "error", err)
	}

	s.logger.Info("workflow recovered", "id", id, "actor", cmd.Actor)
	return w, nil
}

// Diagnostics returns the journal entries for one workflow.
func (s *Service) Diagnostics(
	ctx context.Context,
	id uuid.UUID,
	page pagination.PageRequest,
) (*pagination.PageResult[diagnostics.Diagnostic], error) {
	return s.journal.ListByWorkflow(ctx, id, page)
}

// readiness computes advance readiness as a pure function of the workflow
// snapshot. The confirmation is assumed present: readiness answers "is
// everything except the external event in place".
func readiness(w *spine.Workflow) Readiness {
	r := Readiness{CurrentStage: w.CurrentStage}

	next, ok := w.CurrentStage.Successor()
	if !ok {
		result := spine.ValidateTransition(w, w.CurrentStage, nil)
		r.BlockingIssues = result.Issues
		return r
	}

	result := spine.ValidateTransition(w, next, spine.AssumedConfirmation(w.CurrentStage))
	r.CanAdvance = result.Allowed
	r.NextStage = &next
	r.BlockingIssues = result.Issues
	return r
}

// fail journals every blocking issue under one correlation id, escalates
// internal faults to ERROR status, and wraps the cause as a GovernanceError.
// The journal write completes before the error is returned; if journaling
// itself fails, that failure is logged loudly rather than swallowed.
func (s *Service) fail(
	ctx context.Context,
	correlation uuid.UUID,
	workflowID *uuid.UUID,
	operation string,
	cause error,
	issues []spine.Issue,
) error {
	code := classify(cause)

	entries := make([]diagnostics.Entry, 0, max(len(issues), 1))
	for _, issue := range issues {
		entries = append(entries, diagnostics.Entry{
			Code: string(issue.Code),
			Context: map[string]any{
				"operation": operation,
				"message":   issue.Message,
			},
		})
	}
	if len(entries) == 0 {
		entries = append(entries, diagnostics.Entry{
			Code: string(code),
			Context: map[string]any{
				"operation": operation,
				"error":     cause.Error(),
			},
		})
	}

	rec := diagnostics.Record{
		CorrelationID: correlation,
		WorkflowID:    workflowID,
		Entries:       entries,
	}
	if err := s.journal.Record(ctx, rec); err != nil {
		s.logger.Error(
			"diagnostic journaling failed",
			"correlation_id", correlation,
			"operation", operation,
			"journal_error", err,
			"original_error", cause,
		)
	}

	if code == CodeInternal && workflowID != nil {
		now := time.Now().UTC()
		if err := s.store.SetStatus(ctx, *workflowID, spine.StatusError, now); err != nil {
			s.logger.Error("failed to mark workflow errored", "id", *workflowID, "error", err)
		}
	}

	s.logger.Error(
		"operation rejected",
		"operation", operation,
		"code", code,
		"correlation_id", correlation,
		"error", cause,
	)

	return &GovernanceError{
		Code:          code,
		Message:       cause.Error(),
		Issues:        issues,
		CorrelationID: correlation,
		cause:         cause,
	}
}

func payloadKey(id uuid.UUID, name string, version int) string {
	return fmt.Sprintf("workflows/%s/artifacts/%s/v%d.json", id, name, version)
}
