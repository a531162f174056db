package diagnostics

import (
	"log/slog"
	"net/http"

	"github.com/statecraft-labs/gavel/pkg/handlers"
	"github.com/statecraft-labs/gavel/pkg/pagination"
	"github.com/statecraft-labs/gavel/pkg/routes"
)

// Handler provides HTTP endpoints for the diagnostic journal.
type Handler struct {
	sys        System
	logger     *slog.Logger
	pagination pagination.Config
}

// NewHandler creates a Handler with the given system, logger, and pagination config.
func NewHandler(sys System, logger *slog.Logger, pagination pagination.Config) *Handler {
	return &Handler{
		sys:        sys,
		logger:     logger.With("handler", "diagnostics"),
		pagination: pagination,
	}
}

// Routes returns the route group definition for journal endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/diagnostics",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.List},
		},
	}
}

// List returns a paginated journal slice filtered by query parameters.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page := pagination.PageRequestFromQuery(r.URL.Query(), h.pagination)

	filters, err := FiltersFromQuery(r.URL.Query())
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	result, err := h.sys.List(r.Context(), page, filters)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}
