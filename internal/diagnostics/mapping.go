package diagnostics

import (
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/statecraft-labs/gavel/pkg/query"
	"github.com/statecraft-labs/gavel/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "diagnostics", "d").
	Project("id", "ID").
	Project("correlation_id", "CorrelationID").
	Project("workflow_id", "WorkflowID").
	Project("code", "Code").
	Project("context", "Context").
	Project("recorded_at", "RecordedAt")

var defaultSort = query.SortField{
	Field:      "RecordedAt",
	Descending: true,
}

// Filters contains optional criteria for journal queries. Nil and empty
// fields are ignored. From and To bound RecordedAt inclusively; Codes
// narrows to any of the named issue codes.
type Filters struct {
	WorkflowID    *uuid.UUID `json:"workflow_id,omitempty"`
	CorrelationID *uuid.UUID `json:"correlation_id,omitempty"`
	Codes         []string   `json:"codes,omitempty"`
	From          *time.Time `json:"from,omitempty"`
	To            *time.Time `json:"to,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	codes := make([]any, len(f.Codes))
	for i, code := range f.Codes {
		codes[i] = code
	}

	return b.
		WhereEquals("WorkflowID", f.WorkflowID).
		WhereEquals("CorrelationID", f.CorrelationID).
		WhereIn("Code", codes).
		WhereGte("RecordedAt", f.From).
		WhereLte("RecordedAt", f.To)
}

// FiltersFromQuery extracts filter values from URL query parameters.
// Timestamps use RFC 3339; repeated or comma-separated code parameters
// accumulate. Invalid values are reported, never ignored.
func FiltersFromQuery(values url.Values) (Filters, error) {
	var f Filters

	if v := values.Get("workflow_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return f, ErrInvalidFilter
		}
		f.WorkflowID = &id
	}

	if v := values.Get("correlation_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return f, ErrInvalidFilter
		}
		f.CorrelationID = &id
	}

	for _, v := range values["code"] {
		for _, code := range strings.Split(v, ",") {
			if code = strings.TrimSpace(code); code != "" {
				f.Codes = append(f.Codes, code)
			}
		}
	}

	if v := values.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, ErrInvalidFilter
		}
		f.From = &t
	}

	if v := values.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, ErrInvalidFilter
		}
		f.To = &t
	}

	return f, nil
}

func scanDiagnostic(s repository.Scanner) (Diagnostic, error) {
	var (
		d          Diagnostic
		contextRaw []byte
	)

	err := s.Scan(
		&d.ID,
		&d.CorrelationID,
		&d.WorkflowID,
		&d.Code,
		&contextRaw,
		&d.RecordedAt,
	)
	if err != nil {
		return d, err
	}

	if len(contextRaw) > 0 {
		if err := json.Unmarshal(contextRaw, &d.Context); err != nil {
			return d, err
		}
	}

	return d, nil
}
