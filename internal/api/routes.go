package api

import (
	"net/http"

	"github.com/statecraft-labs/gavel/internal/config"
	"github.com/statecraft-labs/gavel/pkg/routes"
)

func registerRoutes(
	mux *http.ServeMux,
	domain *Domain,
	cfg *config.Config,
) error {
	spec, err := openapiRoutes(cfg)
	if err != nil {
		return err
	}

	routes.Register(
		mux,
		domain.Workflows.Handler(cfg.API.MaxPayloadSizeBytes()).Routes(),
		domain.Diagnostics.Handler().Routes(),
		newCatalogHandler().routes(),
		spec,
	)
	return nil
}
