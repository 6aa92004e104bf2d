package models

import (
	"github.com/anime-shed/kyc-console-go/internal/capability"
	"github.com/anime-shed/kyc-console-go/internal/quota"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}

// LoginRequest installs a bearer token issued by the sign-in provider
type LoginRequest struct {
	Token          string `json:"token" binding:"required"`
	OrganizationID string `json:"organization_id,omitempty"`
}

// LogoutRequest optionally names the session generation being closed, so a
// stale logout cannot clear a newer login
type LogoutRequest struct {
	Generation *uint64 `json:"generation,omitempty"`
}

// OrganizationRequest switches the active organization
type OrganizationRequest struct {
	OrganizationID string `json:"organization_id" binding:"required"`
}

// SessionResponse describes the current credential context without the token
type SessionResponse struct {
	Authenticated  bool   `json:"authenticated"`
	Subject        string `json:"subject,omitempty"`
	OrganizationID string `json:"organization_id,omitempty"`
	BaseURL        string `json:"base_url"`
	Generation     uint64 `json:"generation"`
}

// CountriesResponse lists the regions the console knows about
type CountriesResponse struct {
	Countries []string `json:"countries"`
}

// CapabilitiesResponse is the feature catalog of one region
type CapabilitiesResponse struct {
	capability.Selection
	Groups capability.Groups `json:"groups"`
}

// QuotaResponse is the last quota snapshot
type QuotaResponse struct {
	Quota     quota.Snapshot `json:"quota"`
	FetchedAt string         `json:"fetched_at,omitempty"`
}

// AnalyzeSourcesRequest names playground inputs by location instead of upload.
// Sources are keyed by form field (picture, source_image, target_image, video).
type AnalyzeSourcesRequest struct {
	Sources      map[string]string `json:"sources" binding:"required"`
	ExpectedText string            `json:"expected_text,omitempty"`
}
