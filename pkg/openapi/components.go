package openapi

import "maps"

// NewComponents creates Components with shared schemas and error responses.
func NewComponents() *Components {
	governed := &MediaType{Schema: SchemaRef("GovernanceError")}

	return &Components{
		Schemas: map[string]*Schema{
			"PageRequest": {
				Type: "object",
				Properties: map[string]*Schema{
					"page":      {Type: "integer", Description: "Page number (1-indexed)", Example: 1},
					"page_size": {Type: "integer", Description: "Results per page", Example: 20},
					"search":    {Type: "string", Description: "Search query"},
					"sort":      {Type: "string", Description: "Comma-separated sort fields. Prefix with - for descending. Example: name,-created_at"},
				},
			},
			"Issue": {
				Type: "object",
				Properties: map[string]*Schema{
					"code":    {Type: "string", Description: "Machine-readable issue code", Example: "MISSING_ARTIFACT"},
					"message": {Type: "string", Description: "Specific, human-readable reason"},
				},
				Required: []string{"code", "message"},
			},
			"GovernanceError": {
				Type: "object",
				Properties: map[string]*Schema{
					"error_code":      {Type: "string", Description: "Error taxonomy code", Enum: []any{"VALIDATION_FAILED", "NOT_FOUND", "CONFLICT", "CAPABILITY_DENIED", "INTERNAL_ERROR"}},
					"message":         {Type: "string", Description: "Error message"},
					"blocking_issues": {Type: "array", Items: SchemaRef("Issue"), Description: "Every issue blocking the operation"},
					"correlation_id":  {Type: "string", Format: "uuid", Description: "Resolves to diagnostic journal entries"},
				},
				Required: []string{"error_code", "message", "correlation_id"},
			},
		},
		Responses: map[string]*Response{
			"BadRequest": {
				Description: "Validation failed",
				Content:     map[string]*MediaType{"application/json": governed},
			},
			"NotFound": {
				Description: "Workflow or artifact not found",
				Content:     map[string]*MediaType{"application/json": governed},
			},
			"Conflict": {
				Description: "State conflict (duplicate artifact, paused or errored workflow, stale revision)",
				Content:     map[string]*MediaType{"application/json": governed},
			},
			"Forbidden": {
				Description: "Caller role lacks the required capability",
				Content:     map[string]*MediaType{"application/json": governed},
			},
		},
	}
}

// AddSchemas merges the given schemas into the components.
func (c *Components) AddSchemas(schemas map[string]*Schema) {
	maps.Copy(c.Schemas, schemas)
}

// AddResponses merges the given responses into the components.
func (c *Components) AddResponses(responses map[string]*Response) {
	maps.Copy(c.Responses, responses)
}
