// Package diagnostics implements the append-only audit journal for Gavel.
// Every rejected operation and every unexpected fault produces durable
// diagnostic rows keyed by a correlation identifier. No component may
// report an error to a caller without a matching record existing first.
package diagnostics

import (
	"time"

	"github.com/google/uuid"
)

// Diagnostic is one immutable audit record. Records are never updated or
// deleted by the core; they outlive the workflows they describe. WorkflowID
// is nil for process-wide entries with no workflow context.
type Diagnostic struct {
	ID            uuid.UUID      `json:"id"`
	CorrelationID uuid.UUID      `json:"correlation_id"`
	WorkflowID    *uuid.UUID     `json:"workflow_id,omitempty"`
	Code          string         `json:"code"`
	Context       map[string]any `json:"context"`
	RecordedAt    time.Time      `json:"recorded_at"`
}

// Entry is the caller-supplied portion of a diagnostic: a machine-readable
// code plus free-form context key/values.
type Entry struct {
	Code    string
	Context map[string]any
}

// Record groups one or more entries under a single correlation identifier.
// A validation failure with several blocking issues records one entry per
// issue, all sharing the correlation id the caller received.
type Record struct {
	CorrelationID uuid.UUID
	WorkflowID    *uuid.UUID
	Entries       []Entry
}
