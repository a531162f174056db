package workflows

import (
	"encoding/json"
	"net/url"

	"github.com/statecraft-labs/gavel/internal/spine"
	"github.com/statecraft-labs/gavel/pkg/query"
	"github.com/statecraft-labs/gavel/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "workflows", "w").
	Project("id", "ID").
	Project("current_stage", "CurrentStage").
	Project("orchestrator_status", "OrchestratorStatus").
	Project("revision", "Revision").
	Project("document", "Document").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt")

var defaultSort = query.SortField{
	Field:      "CreatedAt",
	Descending: true,
}

// Filters contains optional criteria for workflow list queries.
type Filters struct {
	Stage  *spine.Stage              `json:"stage,omitempty"`
	Status *spine.OrchestratorStatus `json:"status,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("CurrentStage", f.Stage).
		WhereEquals("OrchestratorStatus", f.Status)
}

// FiltersFromQuery extracts filter values from URL query parameters,
// validating stage names against the catalog.
func FiltersFromQuery(values url.Values) (Filters, error) {
	var f Filters

	if v := values.Get("stage"); v != "" {
		stage, err := spine.ParseStage(v)
		if err != nil {
			return f, err
		}
		f.Stage = &stage
	}

	if v := values.Get("status"); v != "" {
		status := spine.OrchestratorStatus(v)
		f.Status = &status
	}

	return f, nil
}

// scanWorkflow hydrates a workflow from its JSONB document. The indexed
// columns exist for filtering; the document is the source of truth.
func scanWorkflow(s repository.Scanner) (*spine.Workflow, error) {
	var (
		w        spine.Workflow
		document []byte
	)

	err := s.Scan(
		&w.ID,
		&w.CurrentStage,
		&w.Status,
		&w.Revision,
		&document,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(document, &w); err != nil {
		return nil, err
	}

	return &w, nil
}
