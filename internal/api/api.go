// Package api assembles the API module with all domain systems and route registration.
package api

import (
	"net/http"

	"github.com/statecraft-labs/gavel/internal/config"
	"github.com/statecraft-labs/gavel/internal/infrastructure"
	"github.com/statecraft-labs/gavel/pkg/middleware"
	"github.com/statecraft-labs/gavel/pkg/module"
)

// NewModule creates the API module with all domain handlers and middleware.
func NewModule(cfg *config.Config, infra *infrastructure.Infrastructure) (*module.Module, error) {
	runtime := NewRuntime(cfg, infra)
	domain := NewDomain(runtime)

	mux := http.NewServeMux()
	if err := registerRoutes(mux, domain, cfg); err != nil {
		return nil, err
	}

	m := module.New(cfg.API.BasePath, mux)
	m.Use(middleware.CORS(&cfg.API.CORS))
	m.Use(middleware.Auth(&cfg.API.Auth, runtime.Logger))
	m.Use(middleware.Logger(runtime.Logger))

	return m, nil
}
