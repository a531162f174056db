package api

import (
	"net/http"

	"github.com/statecraft-labs/gavel/internal/spine"
	"github.com/statecraft-labs/gavel/pkg/handlers"
	"github.com/statecraft-labs/gavel/pkg/routes"
)

// catalogHandler exposes the static stage and gate catalogs so collaborators
// can discover requirements without hardcoding them.
type catalogHandler struct{}

func newCatalogHandler() *catalogHandler {
	return &catalogHandler{}
}

func (h *catalogHandler) routes() routes.Group {
	return routes.Group{
		Prefix: "/catalog",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "/stages", Handler: h.stages},
			{Method: "GET", Pattern: "/gates", Handler: h.gates},
		},
	}
}

type stageEntry struct {
	Stage             spine.Stage   `json:"stage"`
	Order             int           `json:"order"`
	Terminal          bool          `json:"terminal"`
	Successor         *spine.Stage  `json:"successor,omitempty"`
	ConfirmationEvent string        `json:"confirmation_event,omitempty"`
	AdvanceRole       spine.Role    `json:"advance_role,omitempty"`
	RequiredArtifacts []requirement `json:"required_artifacts"`
}

type requirement struct {
	Name string       `json:"name"`
	Gate spine.GateID `json:"gate,omitempty"`
}

type gateEntry struct {
	ID             spine.GateID  `json:"id"`
	DecisionRole   spine.Role    `json:"decision_role"`
	BoundArtifacts []gateBinding `json:"bound_artifacts"`
}

type gateBinding struct {
	Stage    spine.Stage `json:"stage"`
	Artifact string      `json:"artifact"`
}

func (h *catalogHandler) stages(w http.ResponseWriter, r *http.Request) {
	stages := spine.Stages()
	entries := make([]stageEntry, len(stages))

	for i, stage := range stages {
		entry := stageEntry{
			Stage:             stage,
			Order:             stage.Index(),
			Terminal:          stage.Terminal(),
			RequiredArtifacts: []requirement{},
		}

		if transition, ok := spine.TransitionFrom(stage); ok {
			entry.Successor = &transition.To
			entry.ConfirmationEvent = transition.EventType
			if role, ok := spine.RequiredRole(spine.OpAdvance); ok {
				entry.AdvanceRole = role
			}
		}

		for _, req := range spine.RequiredArtifacts(stage) {
			entry.RequiredArtifacts = append(entry.RequiredArtifacts, requirement{
				Name: req.Name,
				Gate: req.Gate,
			})
		}

		entries[i] = entry
	}

	handlers.RespondJSON(w, http.StatusOK, entries)
}

func (h *catalogHandler) gates(w http.ResponseWriter, r *http.Request) {
	entries := make([]gateEntry, 0, len(spine.Gates()))

	decisionRole, _ := spine.RequiredRole(spine.OpApproveGate)

	for _, gateID := range spine.Gates() {
		entry := gateEntry{
			ID:             gateID,
			DecisionRole:   decisionRole,
			BoundArtifacts: []gateBinding{},
		}

		for _, stage := range spine.Stages() {
			for _, req := range spine.RequiredArtifacts(stage) {
				if req.Gate == gateID {
					entry.BoundArtifacts = append(entry.BoundArtifacts, gateBinding{
						Stage:    stage,
						Artifact: req.Name,
					})
				}
			}
		}

		entries = append(entries, entry)
	}

	handlers.RespondJSON(w, http.StatusOK, entries)
}
