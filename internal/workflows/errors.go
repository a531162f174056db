package workflows

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/statecraft-labs/gavel/internal/spine"
)

// Domain errors for orchestration operations.
var (
	ErrNotFound          = errors.New("workflow not found")
	ErrArtifactNotFound  = errors.New("artifact not found")
	ErrRevisionConflict  = errors.New("workflow was modified concurrently")
	ErrTransitionBlocked = errors.New("transition blocked")
	ErrNotPaused         = errors.New("workflow is not paused")
	ErrNotErrored        = errors.New("workflow is not in error status")
)

// ErrorCode is the stable machine-readable classification carried on every
// governed failure.
type ErrorCode string

// Error codes.
const (
	CodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	CodeNotFound         ErrorCode = "NOT_FOUND"
	CodeConflict         ErrorCode = "CONFLICT"
	CodeCapabilityDenied ErrorCode = "CAPABILITY_DENIED"
	CodeInternal         ErrorCode = "INTERNAL_ERROR"
)

// GovernanceError is the error shape every failed operation returns. The
// correlation id resolves to durable diagnostic rows that were written before
// this error was allowed to propagate.
type GovernanceError struct {
	Code          ErrorCode     `json:"error_code"`
	Message       string        `json:"message"`
	Issues        []spine.Issue `json:"blocking_issues,omitempty"`
	CorrelationID uuid.UUID     `json:"correlation_id"`

	cause error
}

func (e *GovernanceError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *GovernanceError) Unwrap() error {
	return e.cause
}

// classify maps an underlying failure to its error code. Anything not
// recognized as a governed rejection is an internal fault.
func classify(err error) ErrorCode {
	var depErr *spine.DependencyError
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrArtifactNotFound):
		return CodeNotFound
	case errors.Is(err, spine.ErrCapabilityDenied):
		return CodeCapabilityDenied
	case errors.Is(err, spine.ErrArtifactConflict),
		errors.Is(err, spine.ErrNotPending),
		errors.Is(err, spine.ErrNoPending),
		errors.Is(err, spine.ErrWorkflowPaused),
		errors.Is(err, spine.ErrWorkflowErrored),
		errors.Is(err, ErrRevisionConflict),
		errors.Is(err, ErrNotPaused),
		errors.Is(err, ErrNotErrored):
		return CodeConflict
	case errors.Is(err, spine.ErrUnknownStage),
		errors.Is(err, spine.ErrUnknownGate),
		errors.Is(err, spine.ErrInvalidSubmission),
		errors.Is(err, spine.ErrInvalidDecision),
		errors.Is(err, ErrTransitionBlocked),
		errors.As(err, &depErr):
		return CodeValidationFailed
	default:
		return CodeInternal
	}
}

// MapHTTPStatus maps orchestration errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	var gerr *GovernanceError
	if !errors.As(err, &gerr) {
		return http.StatusInternalServerError
	}

	switch gerr.Code {
	case CodeValidationFailed:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeCapabilityDenied:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
