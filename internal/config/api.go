package config

import (
	"fmt"
	"os"

	"github.com/statecraft-labs/gavel/pkg/formatting"
	"github.com/statecraft-labs/gavel/pkg/middleware"
	"github.com/statecraft-labs/gavel/pkg/openapi"
	"github.com/statecraft-labs/gavel/pkg/pagination"
)

var corsEnv = &middleware.CORSEnv{
	Enabled:          "GAVEL_CORS_ENABLED",
	Origins:          "GAVEL_CORS_ORIGINS",
	AllowedMethods:   "GAVEL_CORS_ALLOWED_METHODS",
	AllowedHeaders:   "GAVEL_CORS_ALLOWED_HEADERS",
	AllowCredentials: "GAVEL_CORS_ALLOW_CREDENTIALS",
	MaxAge:           "GAVEL_CORS_MAX_AGE",
}

var authEnv = &middleware.AuthEnv{
	Enabled:   "GAVEL_AUTH_ENABLED",
	Issuer:    "GAVEL_AUTH_ISSUER",
	ClientID:  "GAVEL_AUTH_CLIENT_ID",
	RoleClaim: "GAVEL_AUTH_ROLE_CLAIM",
}

var paginationEnv = &pagination.ConfigEnv{
	DefaultPageSize: "GAVEL_PAGINATION_DEFAULT_PAGE_SIZE",
	MaxPageSize:     "GAVEL_PAGINATION_MAX_PAGE_SIZE",
}

var openapiEnv = &openapi.ConfigEnv{
	Title:       "GAVEL_OPENAPI_TITLE",
	Description: "GAVEL_OPENAPI_DESCRIPTION",
}

// APIConfig holds API routing, CORS, auth, and pagination settings.
type APIConfig struct {
	BasePath       string                `toml:"base_path"`
	MaxPayloadSize string                `toml:"max_payload_size"`
	CORS           middleware.CORSConfig `toml:"cors"`
	Auth           middleware.AuthConfig `toml:"auth"`
	Pagination     pagination.Config     `toml:"pagination"`
	OpenAPI        openapi.Config        `toml:"openapi"`
}

// MaxPayloadSizeBytes returns the artifact payload size limit in bytes.
func (c *APIConfig) MaxPayloadSizeBytes() int64 {
	size, err := formatting.ParseBytes(c.MaxPayloadSize)
	if err != nil {
		return 4 * 1024 * 1024 // 4MB fallback
	}
	return size
}

// Finalize applies defaults, environment variable overrides, and validation
// for the API config and its nested CORS, auth, and pagination configs.
func (c *APIConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.CORS.Finalize(corsEnv); err != nil {
		return fmt.Errorf("cors: %w", err)
	}
	if err := c.Auth.Finalize(authEnv); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	if err := c.Pagination.Finalize(paginationEnv); err != nil {
		return fmt.Errorf("pagination: %w", err)
	}
	if err := c.OpenAPI.Finalize(openapiEnv); err != nil {
		return fmt.Errorf("openapi: %w", err)
	}
	return nil
}

// Merge overwrites non-zero fields from overlay across nested configs.
func (c *APIConfig) Merge(overlay *APIConfig) {
	if overlay.BasePath != "" {
		c.BasePath = overlay.BasePath
	}
	if overlay.MaxPayloadSize != "" {
		c.MaxPayloadSize = overlay.MaxPayloadSize
	}

	c.CORS.Merge(&overlay.CORS)
	c.Auth.Merge(&overlay.Auth)
	c.Pagination.Merge(&overlay.Pagination)
	c.OpenAPI.Merge(&overlay.OpenAPI)
}

func (c *APIConfig) loadDefaults() {
	if c.BasePath == "" {
		c.BasePath = "/api"
	}
	if c.MaxPayloadSize == "" {
		c.MaxPayloadSize = "4MB"
	}
}

func (c *APIConfig) loadEnv() {
	if v := os.Getenv("GAVEL_API_BASE_PATH"); v != "" {
		c.BasePath = v
	}
	if v := os.Getenv("GAVEL_API_MAX_PAYLOAD_SIZE"); v != "" {
		c.MaxPayloadSize = v
	}
}
