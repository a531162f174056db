package api

import (
	"github.com/statecraft-labs/gavel/internal/diagnostics"
	"github.com/statecraft-labs/gavel/internal/workflows"
)

// Domain holds all domain systems that comprise the API.
type Domain struct {
	Workflows   workflows.System
	Diagnostics diagnostics.System
}

// NewDomain creates all domain systems from the API runtime.
func NewDomain(runtime *Runtime) *Domain {
	journal := diagnostics.New(
		runtime.Database.Connection(),
		runtime.Logger,
		runtime.Pagination,
	)

	store := workflows.NewStore(
		runtime.Database.Connection(),
		runtime.Pagination,
	)

	workflowSystem := workflows.NewService(
		store,
		journal,
		runtime.Storage,
		runtime.Logger,
		runtime.Pagination,
	)

	return &Domain{
		Workflows:   workflowSystem,
		Diagnostics: journal,
	}
}
