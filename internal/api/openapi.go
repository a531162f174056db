package api

import (
	"fmt"

	"github.com/statecraft-labs/gavel/internal/config"
	"github.com/statecraft-labs/gavel/internal/spine"
	"github.com/statecraft-labs/gavel/pkg/openapi"
	"github.com/statecraft-labs/gavel/pkg/routes"
)

// openapiRoutes serves the generated OpenAPI document. The spec is built and
// serialized once at startup; the catalog it describes is static.
func openapiRoutes(cfg *config.Config) (routes.Group, error) {
	spec := buildSpec(cfg)

	data, err := openapi.MarshalJSON(spec)
	if err != nil {
		return routes.Group{}, fmt.Errorf("marshal openapi spec: %w", err)
	}

	return routes.Group{
		Prefix: "/openapi.json",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: openapi.ServeSpec(data)},
		},
	}, nil
}

func buildSpec(cfg *config.Config) *openapi.Spec {
	spec := openapi.NewSpec(cfg.API.OpenAPI.Title, cfg.Version)
	spec.SetDescription(cfg.API.OpenAPI.Description)
	spec.AddServer(cfg.API.BasePath)

	spec.Components.AddSchemas(map[string]*openapi.Schema{
		"Workflow": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"id":                  {Type: "string", Format: "uuid"},
				"current_stage":       stageSchema(),
				"orchestrator_status": statusSchema(),
				"stage_history":       {Type: "array", Items: openapi.SchemaRef("HistoryEntry")},
				"artifacts":           {Type: "object", Description: "Artifact records keyed by name"},
				"gates":               {Type: "object", Description: "Gate records keyed by gate id"},
				"revision":            {Type: "integer", Description: "Optimistic concurrency revision"},
				"created_at":          {Type: "string", Format: "date-time"},
				"updated_at":          {Type: "string", Format: "date-time"},
			},
		},
		"HistoryEntry": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"stage":        stageSchema(),
				"entered_at":   {Type: "string", Format: "date-time"},
				"confirmation": openapi.SchemaRef("Confirmation"),
			},
		},
		"Confirmation": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"event_type":       {Type: "string", Description: "Real-world legislative event", Example: "bill_introduced"},
				"confirmed_by":     {Type: "string"},
				"source_reference": {Type: "string"},
			},
			Required: []string{"event_type", "confirmed_by"},
		},
		"CreateWorkflow": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"initial_stage": stageSchema(),
			},
		},
		"AdvanceWorkflow": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"target_stage":          stageSchema(),
				"external_confirmation": openapi.SchemaRef("Confirmation"),
			},
			Required: []string{"target_stage"},
		},
		"SubmitArtifact": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"name":            {Type: "string", Example: "draft_language"},
				"payload":         {Type: "object", Description: "Opaque artifact payload"},
				"requires_review": {Type: "boolean"},
				"review_gate_id":  gateSchema(),
				"depends_on":      {Type: "array", Items: &openapi.Schema{Type: "string"}},
			},
			Required: []string{"name"},
		},
		"GateApproval": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"approved_by":    {Type: "string"},
				"artifact_names": {Type: "array", Items: &openapi.Schema{Type: "string"}, Description: "Empty approves every pending artifact"},
			},
			Required: []string{"approved_by"},
		},
		"GateRejection": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"rejected_by":    {Type: "string"},
				"artifact_names": {Type: "array", Items: &openapi.Schema{Type: "string"}},
				"reason":         {Type: "string"},
			},
			Required: []string{"rejected_by", "artifact_names", "reason"},
		},
		"ControlAction": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"reason": {Type: "string"},
			},
		},
		"Readiness": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"can_advance":     {Type: "boolean"},
				"current_stage":   stageSchema(),
				"next_stage":      stageSchema(),
				"blocking_issues": {Type: "array", Items: openapi.SchemaRef("Issue")},
			},
		},
	})

	idParam := openapi.PathParam("id", "Workflow ID")

	spec.Paths["/workflows"] = &openapi.PathItem{
		Post: &openapi.Operation{
			Summary:     "Create a workflow",
			Tags:        []string{"workflows"},
			RequestBody: openapi.RequestBodyJSON("CreateWorkflow", false),
			Responses: map[int]*openapi.Response{
				201: openapi.ResponseJSON("Workflow created", "Workflow"),
				400: openapi.ResponseRef("BadRequest"),
				403: openapi.ResponseRef("Forbidden"),
			},
		},
		Get: &openapi.Operation{
			Summary: "List workflows",
			Tags:    []string{"workflows"},
			Parameters: []*openapi.Parameter{
				openapi.QueryParam("page", "integer", "Page number", false),
				openapi.QueryParam("page_size", "integer", "Results per page", false),
				openapi.QueryParam("stage", "string", "Filter by current stage", false),
				openapi.QueryParam("status", "string", "Filter by orchestrator status", false),
			},
			Responses: map[int]*openapi.Response{
				200: {Description: "Paginated workflow summaries"},
				400: openapi.ResponseRef("BadRequest"),
			},
		},
	}

	spec.Paths["/workflows/{id}"] = &openapi.PathItem{
		Get: &openapi.Operation{
			Summary:    "Get a workflow document",
			Tags:       []string{"workflows"},
			Parameters: []*openapi.Parameter{idParam},
			Responses: map[int]*openapi.Response{
				200: openapi.ResponseJSON("Workflow", "Workflow"),
				404: openapi.ResponseRef("NotFound"),
			},
		},
	}

	for path, summary := range map[string]string{
		"/workflows/{id}/status":      "Operational snapshot with fresh readiness",
		"/workflows/{id}/can-advance": "Advance readiness with all blocking issues",
		"/workflows/{id}/explain":     "Human-readable readiness account",
		"/workflows/{id}/history":     "Append-only stage history",
		"/workflows/{id}/artifacts":   "Artifact records in name order",
		"/workflows/{id}/gates":       "Gate records in catalog order",
		"/workflows/{id}/diagnostics": "Diagnostic journal entries for the workflow",
	} {
		spec.Paths[path] = &openapi.PathItem{
			Get: &openapi.Operation{
				Summary:    summary,
				Tags:       []string{"workflows"},
				Parameters: []*openapi.Parameter{idParam},
				Responses: map[int]*openapi.Response{
					200: {Description: "OK"},
					404: openapi.ResponseRef("NotFound"),
				},
			},
		}
	}

	spec.Paths["/workflows/{id}/advance"] = &openapi.PathItem{
		Post: &openapi.Operation{
			Summary:     "Advance to the next stage",
			Description: "Requires an external confirmation of the transition's event type. Every blocking issue is reported together.",
			Tags:        []string{"workflows"},
			Parameters:  []*openapi.Parameter{idParam},
			RequestBody: openapi.RequestBodyJSON("AdvanceWorkflow", true),
			Responses: map[int]*openapi.Response{
				200: {Description: "Stage transition recorded"},
				400: openapi.ResponseRef("BadRequest"),
				403: openapi.ResponseRef("Forbidden"),
				404: openapi.ResponseRef("NotFound"),
				409: openapi.ResponseRef("Conflict"),
			},
		},
	}

	spec.Paths["/workflows/{id}/artifacts"].Post = &openapi.Operation{
		Summary:     "Submit an artifact",
		Tags:        []string{"artifacts"},
		Parameters:  []*openapi.Parameter{idParam},
		RequestBody: openapi.RequestBodyJSON("SubmitArtifact", true),
		Responses: map[int]*openapi.Response{
			201: {Description: "Artifact registered"},
			400: openapi.ResponseRef("BadRequest"),
			404: openapi.ResponseRef("NotFound"),
			409: openapi.ResponseRef("Conflict"),
			413: {Description: "Payload exceeds the configured size limit"},
		},
	}

	spec.Paths["/workflows/{id}/artifacts/{name}/payload"] = &openapi.PathItem{
		Get: &openapi.Operation{
			Summary: "Download an artifact payload",
			Tags:    []string{"artifacts"},
			Parameters: []*openapi.Parameter{
				idParam,
				{Name: "name", In: "path", Required: true, Description: "Artifact name", Schema: &openapi.Schema{Type: "string"}},
			},
			Responses: map[int]*openapi.Response{
				200: {Description: "Archived payload stream"},
				404: openapi.ResponseRef("NotFound"),
			},
		},
	}

	gateParam := &openapi.Parameter{
		Name: "gate", In: "path", Required: true,
		Description: "Review gate ID", Schema: gateSchema(),
	}
	decisionBodies := map[string]string{"approve": "GateApproval", "reject": "GateRejection"}
	for _, action := range []string{"approve", "reject"} {
		spec.Paths["/workflows/{id}/gates/{gate}/"+action] = &openapi.PathItem{
			Post: &openapi.Operation{
				Summary:     "Record " + action + " decisions at a gate",
				Tags:        []string{"gates"},
				Parameters:  []*openapi.Parameter{idParam, gateParam},
				RequestBody: openapi.RequestBodyJSON(decisionBodies[action], true),
				Responses: map[int]*openapi.Response{
					200: {Description: "Decision recorded"},
					400: openapi.ResponseRef("BadRequest"),
					403: openapi.ResponseRef("Forbidden"),
					404: openapi.ResponseRef("NotFound"),
					409: openapi.ResponseRef("Conflict"),
				},
			},
		}
	}

	for _, action := range []string{"pause", "resume", "recover"} {
		spec.Paths["/workflows/{id}/"+action] = &openapi.PathItem{
			Post: &openapi.Operation{
				Summary:     "Workflow " + action,
				Tags:        []string{"controls"},
				Parameters:  []*openapi.Parameter{idParam},
				RequestBody: openapi.RequestBodyJSON("ControlAction", false),
				Responses: map[int]*openapi.Response{
					200: openapi.ResponseJSON("Updated workflow", "Workflow"),
					403: openapi.ResponseRef("Forbidden"),
					404: openapi.ResponseRef("NotFound"),
					409: openapi.ResponseRef("Conflict"),
				},
			},
		}
	}

	spec.Paths["/diagnostics"] = &openapi.PathItem{
		Get: &openapi.Operation{
			Summary: "Query the diagnostic journal",
			Tags:    []string{"diagnostics"},
			Parameters: []*openapi.Parameter{
				openapi.QueryParam("workflow_id", "string", "Filter by workflow", false),
				openapi.QueryParam("correlation_id", "string", "Filter by correlation id", false),
				openapi.QueryParam("code", "string", "Filter by diagnostic code; repeatable or comma-separated", false),
				openapi.QueryParam("from", "string", "RFC 3339 lower bound on recorded_at", false),
				openapi.QueryParam("to", "string", "RFC 3339 upper bound on recorded_at", false),
			},
			Responses: map[int]*openapi.Response{
				200: {Description: "Paginated diagnostic rows"},
				400: openapi.ResponseRef("BadRequest"),
			},
		},
	}

	spec.Paths["/catalog/stages"] = &openapi.PathItem{
		Get: &openapi.Operation{
			Summary: "Stage catalog with requirements and confirmation events",
			Tags:    []string{"catalog"},
			Responses: map[int]*openapi.Response{
				200: {Description: "Stage catalog"},
			},
		},
	}
	spec.Paths["/catalog/gates"] = &openapi.PathItem{
		Get: &openapi.Operation{
			Summary: "Review gate catalog with bound artifacts",
			Tags:    []string{"catalog"},
			Responses: map[int]*openapi.Response{
				200: {Description: "Gate catalog"},
			},
		},
	}

	return spec
}

func stageSchema() *openapi.Schema {
	stages := spine.Stages()
	values := make([]any, len(stages))
	for i, s := range stages {
		values[i] = string(s)
	}
	return &openapi.Schema{Type: "string", Enum: values}
}

func statusSchema() *openapi.Schema {
	return &openapi.Schema{
		Type: "string",
		Enum: []any{"IDLE", "ACTIVE", "PAUSED", "ERROR"},
	}
}

func gateSchema() *openapi.Schema {
	gates := spine.Gates()
	values := make([]any, len(gates))
	for i, g := range gates {
		values[i] = string(g)
	}
	return &openapi.Schema{Type: "string", Enum: values}
}
