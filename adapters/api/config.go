package api

import (
	"fmt"
	"time"

	"quotebias/domain/quotes"
	"quotebias/internal/preprocess"
)

// SourceConfig holds configuration for a REST endpoint serving survey rows
type SourceConfig struct {
	// Connection settings
	BaseURL     string            `json:"base_url"`
	Headers     map[string]string `json:"headers,omitempty"`
	QueryParams map[string]string `json:"query_params,omitempty"`

	// Authentication
	AuthMethod string `json:"auth_method"` // "none", "bearer", "api_key"
	AuthToken  string `json:"auth_token,omitempty"`

	// Data extraction
	DataPath string `json:"data_path"` // gjson path of the record array (e.g., "data.items")

	// Pagination
	PaginationType string        `json:"pagination_type"` // "none", "offset", "cursor", "page"
	PageSize       int           `json:"page_size"`
	MaxPages       int           `json:"max_pages"`
	Timeout        time.Duration `json:"timeout"`

	Covariates []string           `json:"covariates"`
	Preprocess preprocess.Options `json:"preprocess"`
}

// DefaultSourceConfig returns defaults for an unpaginated bearer-less endpoint
func DefaultSourceConfig(url string) SourceConfig {
	return SourceConfig{
		BaseURL:        url,
		AuthMethod:     "none",
		PaginationType: "none",
		PageSize:       500,
		MaxPages:       100,
		Timeout:        30 * time.Second,
		Covariates:     quotes.DefaultCovariates(),
		Preprocess:     preprocess.DefaultOptions(),
	}
}

// Validate checks if the configuration is valid
func (c *SourceConfig) Validate() error {
	if c.BaseURL == "" {
		return &ValidationError{Field: "BaseURL", Message: "cannot be empty"}
	}
	if c.Timeout <= 0 {
		return &ValidationError{Field: "Timeout", Message: "must be positive"}
	}
	switch c.PaginationType {
	case "", "none", "cursor":
	case "offset", "page":
		if c.PageSize <= 0 {
			return &ValidationError{Field: "PageSize", Message: "must be positive"}
		}
	default:
		return &ValidationError{Field: "PaginationType", Message: fmt.Sprintf("unknown type %q", c.PaginationType)}
	}
	switch c.AuthMethod {
	case "", "none":
	case "bearer", "api_key":
		if c.AuthToken == "" {
			return &ValidationError{Field: "AuthToken", Message: "required for " + c.AuthMethod}
		}
	default:
		return &ValidationError{Field: "AuthMethod", Message: fmt.Sprintf("unknown method %q", c.AuthMethod)}
	}
	return nil
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}
