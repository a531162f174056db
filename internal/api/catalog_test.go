package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/statecraft-labs/gavel/internal/spine"
	"github.com/statecraft-labs/gavel/pkg/routes"
)

func serveCatalog(t *testing.T, target string) *httptest.ResponseRecorder {
	t.Helper()
	mux := http.NewServeMux()
	routes.Register(mux, newCatalogHandler().routes())

	req := httptest.NewRequest("GET", target, nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestCatalogStages(t *testing.T) {
	rec := serveCatalog(t, "/catalog/stages")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var entries []stageEntry
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != len(spine.Stages()) {
		t.Fatalf("entries = %d, want %d", len(entries), len(spine.Stages()))
	}

	first := entries[0]
	if first.Stage != spine.StagePre || first.Order != 0 {
		t.Errorf("first entry = %+v, want PRE_EVT at order 0", first)
	}
	if first.ConfirmationEvent != "bill_introduced" {
		t.Errorf("confirmation_event = %s, want bill_introduced", first.ConfirmationEvent)
	}
	if first.AdvanceRole != spine.RoleDirector {
		t.Errorf("advance_role = %s, want director", first.AdvanceRole)
	}

	last := entries[len(entries)-1]
	if !last.Terminal || last.Successor != nil || last.AdvanceRole != "" {
		t.Errorf("terminal entry = %+v, want no successor and no advance role", last)
	}
}

func TestCatalogGates(t *testing.T) {
	rec := serveCatalog(t, "/catalog/gates")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var entries []gateEntry
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != len(spine.Gates()) {
		t.Fatalf("entries = %d, want %d", len(entries), len(spine.Gates()))
	}

	for _, entry := range entries {
		if entry.DecisionRole != spine.RoleReviewer {
			t.Errorf("gate %s decision_role = %s, want reviewer", entry.ID, entry.DecisionRole)
		}
	}

	bindings := make(map[spine.GateID][]gateBinding)
	for _, entry := range entries {
		bindings[entry.ID] = entry.BoundArtifacts
	}
	language := bindings[spine.GateLanguage]
	if len(language) != 2 || language[0].Artifact != "draft_language" {
		t.Errorf("HR_LANG bindings = %v, want draft_language and amendment_strategy", language)
	}
}
