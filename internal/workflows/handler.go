package workflows

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/statecraft-labs/gavel/internal/spine"
	"github.com/statecraft-labs/gavel/pkg/handlers"
	"github.com/statecraft-labs/gavel/pkg/middleware"
	"github.com/statecraft-labs/gavel/pkg/pagination"
	"github.com/statecraft-labs/gavel/pkg/routes"
)

var (
	errInvalidID   = errors.New("invalid workflow id")
	errInvalidBody = errors.New("invalid request body")
)

// Handler provides HTTP endpoints for workflow operations.
type Handler struct {
	sys            System
	logger         *slog.Logger
	pagination     pagination.Config
	maxPayloadSize int64
}

// NewHandler creates a Handler with the given system, logger, pagination
// config, and artifact payload size limit.
func NewHandler(
	sys System,
	logger *slog.Logger,
	pagination pagination.Config,
	maxPayloadSize int64,
) *Handler {
	return &Handler{
		sys:            sys,
		logger:         logger.With("handler", "workflows"),
		pagination:     pagination,
		maxPayloadSize: maxPayloadSize,
	}
}

// Routes returns the route group definition for workflow endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/workflows",
		Routes: []routes.Route{
			{Method: "POST", Pattern: "", Handler: h.Create},
			{Method: "GET", Pattern: "", Handler: h.List},
			{Method: "GET", Pattern: "/{id}", Handler: h.Find},
			{Method: "GET", Pattern: "/{id}/status", Handler: h.Status},
			{Method: "GET", Pattern: "/{id}/can-advance", Handler: h.CanAdvance},
			{Method: "GET", Pattern: "/{id}/explain", Handler: h.Explain},
			{Method: "GET", Pattern: "/{id}/history", Handler: h.History},
			{Method: "POST", Pattern: "/{id}/advance", Handler: h.Advance},
			{Method: "POST", Pattern: "/{id}/artifacts", Handler: h.SubmitArtifact},
			{Method: "GET", Pattern: "/{id}/artifacts", Handler: h.Artifacts},
			{Method: "GET", Pattern: "/{id}/artifacts/{name}/payload", Handler: h.Payload},
			{Method: "GET", Pattern: "/{id}/gates", Handler: h.Gates},
			{Method: "POST", Pattern: "/{id}/gates/{gate}/approve", Handler: h.Approve},
			{Method: "POST", Pattern: "/{id}/gates/{gate}/reject", Handler: h.Reject},
			{Method: "POST", Pattern: "/{id}/pause", Handler: h.Pause},
			{Method: "POST", Pattern: "/{id}/resume", Handler: h.Resume},
			{Method: "POST", Pattern: "/{id}/recover", Handler: h.Recover},
			{Method: "GET", Pattern: "/{id}/diagnostics", Handler: h.Diagnostics},
		},
	}
}

// Create starts a new workflow.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var cmd CreateCommand
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
			handlers.RespondError(w, h.logger, http.StatusBadRequest, errInvalidBody)
			return
		}
	}
	cmd.Caller = caller(r)

	workflow, err := h.sys.Create(r.Context(), cmd)
	if err != nil {
		h.respondFailure(w, err)
		return
	}

	handlers.RespondJSON(w, http.StatusCreated, workflow)
}

// List returns a paginated workflow list with optional stage/status filters.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page := pagination.PageRequestFromQuery(r.URL.Query(), h.pagination)

	filters, err := FiltersFromQuery(r.URL.Query())
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	result, err := h.sys.List(r.Context(), page, filters)
	if err != nil {
		h.respondFailure(w, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// Find returns the full workflow document.
func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	id, ok := h.workflowID(w, r)
	if !ok {
		return
	}

	workflow, err := h.sys.Find(r.Context(), id)
	if err != nil {
		h.respondFailure(w, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, workflow)
}

// Status returns the operational snapshot with fresh readiness.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	id, ok := h.workflowID(w, r)
	if !ok {
		return
	}

	report, err := h.sys.Status(r.Context(), id)
	if err != nil {
		h.respondFailure(w, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, report)
}

// CanAdvance returns advance readiness with the complete blocking issue list.
func (h *Handler) CanAdvance(w http.ResponseWriter, r *http.Request) {
	id, ok := h.workflowID(w, r)
	if !ok {
		return
	}

	readiness, err := h.sys.CanAdvance(r.Context(), id)
	if err != nil {
		h.respondFailure(w, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, readiness)
}

// Explain returns the human-readable readiness account.
func (h *Handler) Explain(w http.ResponseWriter, r *http.Request) {
	id, ok := h.workflowID(w, r)
	if !ok {
		return
	}

	explanation, err := h.sys.Explain(r.Context(), id)
	if err != nil {
		h.respondFailure(w, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, explanation)
}

// History returns the append-only stage history.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	id, ok := h.workflowID(w, r)
	if !ok {
		return
	}

	history, err := h.sys.History(r.Context(), id)
	if err != nil {
		h.respondFailure(w, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, history)
}

// Advance attempts a stage transition.
func (h *Handler) Advance(w http.ResponseWriter, r *http.Request) {
	id, ok := h.workflowID(w, r)
	if !ok {
		return
	}

	var cmd AdvanceCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, errInvalidBody)
		return
	}
	cmd.WorkflowID = id
	cmd.Caller = caller(r)

	result, err := h.sys.Advance(r.Context(), cmd)
	if err != nil {
		h.respondFailure(w, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// SubmitArtifact registers an artifact on the workflow.
func (h *Handler) SubmitArtifact(w http.ResponseWriter, r *http.Request) {
	id, ok := h.workflowID(w, r)
	if !ok {
		return
	}

	var cmd SubmitCommand
	body := http.MaxBytesReader(w, r.Body, h.maxPayloadSize)
	if err := json.NewDecoder(body).Decode(&cmd); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			handlers.RespondError(w, h.logger, http.StatusRequestEntityTooLarge, err)
			return
		}
		handlers.RespondError(w, h.logger, http.StatusBadRequest, errInvalidBody)
		return
	}
	cmd.WorkflowID = id
	cmd.Caller = caller(r)

	artifact, err := h.sys.SubmitArtifact(r.Context(), cmd)
	if err != nil {
		h.respondFailure(w, err)
		return
	}

	handlers.RespondJSON(w, http.StatusCreated, artifact)
}

// Artifacts returns the workflow's artifact records in name order.
func (h *Handler) Artifacts(w http.ResponseWriter, r *http.Request) {
	id, ok := h.workflowID(w, r)
	if !ok {
		return
	}

	workflow, err := h.sys.Find(r.Context(), id)
	if err != nil {
		h.respondFailure(w, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, workflow.SortedArtifacts())
}

// Payload streams an artifact's archived payload.
func (h *Handler) Payload(w http.ResponseWriter, r *http.Request) {
	id, ok := h.workflowID(w, r)
	if !ok {
		return
	}

	reader, err := h.sys.DownloadPayload(r.Context(), id, r.PathValue("name"))
	if err != nil {
		h.respondFailure(w, err)
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, reader); err != nil {
		h.logger.Error("payload stream interrupted", "workflow", id, "error", err)
	}
}

// Gates returns the workflow's gate records in catalog order.
func (h *Handler) Gates(w http.ResponseWriter, r *http.Request) {
	id, ok := h.workflowID(w, r)
	if !ok {
		return
	}

	workflow, err := h.sys.Find(r.Context(), id)
	if err != nil {
		h.respondFailure(w, err)
		return
	}

	gates := make([]*spine.GateRecord, 0, len(workflow.Gates))
	for _, gateID := range spine.Gates() {
		if record, ok := workflow.GateRecord(gateID); ok {
			gates = append(gates, record)
		}
	}

	handlers.RespondJSON(w, http.StatusOK, gates)
}

// gateApproval and gateRejection are the wire bodies for gate decisions.
type gateApproval struct {
	ApprovedBy    string   `json:"approved_by"`
	ArtifactNames []string `json:"artifact_names,omitempty"`
}

type gateRejection struct {
	RejectedBy    string   `json:"rejected_by"`
	ArtifactNames []string `json:"artifact_names"`
	Reason        string   `json:"reason"`
}

// Approve records approval decisions at a gate.
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	var req gateApproval
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, errInvalidBody)
		return
	}

	h.decide(w, r, GateCommand{
		DecidedBy:     req.ApprovedBy,
		ArtifactNames: req.ArtifactNames,
	}, h.sys.Approve)
}

// Reject records rejection decisions at a gate.
func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	var req gateRejection
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, errInvalidBody)
		return
	}

	h.decide(w, r, GateCommand{
		DecidedBy:     req.RejectedBy,
		ArtifactNames: req.ArtifactNames,
		Reason:        req.Reason,
	}, h.sys.Reject)
}

func (h *Handler) decide(
	w http.ResponseWriter,
	r *http.Request,
	cmd GateCommand,
	op func(ctx context.Context, cmd GateCommand) (*GateResult, error),
) {
	id, ok := h.workflowID(w, r)
	if !ok {
		return
	}
	cmd.WorkflowID = id
	cmd.GateID = r.PathValue("gate")
	cmd.Caller = caller(r)

	result, err := op(r.Context(), cmd)
	if err != nil {
		h.respondFailure(w, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// Pause suspends mutation on the workflow.
func (h *Handler) Pause(w http.ResponseWriter, r *http.Request) {
	h.control(w, r, h.sys.Pause)
}

// Resume lifts a pause.
func (h *Handler) Resume(w http.ResponseWriter, r *http.Request) {
	h.control(w, r, h.sys.Resume)
}

// Recover clears ERROR status.
func (h *Handler) Recover(w http.ResponseWriter, r *http.Request) {
	h.control(w, r, h.sys.Recover)
}

func (h *Handler) control(
	w http.ResponseWriter,
	r *http.Request,
	op func(ctx context.Context, cmd ControlCommand) (*spine.Workflow, error),
) {
	id, ok := h.workflowID(w, r)
	if !ok {
		return
	}

	var cmd ControlCommand
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
			handlers.RespondError(w, h.logger, http.StatusBadRequest, errInvalidBody)
			return
		}
	}
	cmd.WorkflowID = id
	cmd.Caller = caller(r)

	workflow, err := op(r.Context(), cmd)
	if err != nil {
		h.respondFailure(w, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, workflow)
}

// Diagnostics returns the journal entries recorded for one workflow.
func (h *Handler) Diagnostics(w http.ResponseWriter, r *http.Request) {
	id, ok := h.workflowID(w, r)
	if !ok {
		return
	}

	page := pagination.PageRequestFromQuery(r.URL.Query(), h.pagination)

	result, err := h.sys.Diagnostics(r.Context(), id, page)
	if err != nil {
		h.respondFailure(w, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

func (h *Handler) workflowID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, errInvalidID)
		return uuid.Nil, false
	}
	return id, true
}

// respondFailure writes the governed error envelope: error code, message,
// blocking issues, and the correlation id resolving to the journal.
func (h *Handler) respondFailure(w http.ResponseWriter, err error) {
	var gerr *GovernanceError
	if errors.As(err, &gerr) {
		h.logger.Error(
			"request failed",
			"code", gerr.Code,
			"correlation_id", gerr.CorrelationID,
			"error", gerr.Message,
		)
		handlers.RespondJSON(w, MapHTTPStatus(gerr), gerr)
		return
	}

	handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
}

func caller(r *http.Request) Caller {
	id, _ := middleware.CallerFrom(r.Context())
	return Caller{
		Actor: id.Subject,
		Role:  spine.Role(id.Role),
	}
}
