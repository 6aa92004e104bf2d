// Package admin wraps the console management endpoints: credentials,
// webhooks, audit logs, organizations and roles.
package admin

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/anime-shed/kyc-console-go/internal/apiclient"
	"github.com/anime-shed/kyc-console-go/internal/authz"
	apperrors "github.com/anime-shed/kyc-console-go/internal/errors"
)

// Console paths.
const (
	PathAPIKeys       = "/console/api-keys"
	PathOAuthClients  = "/console/oauth-clients"
	PathWebhooks      = "/console/webhooks"
	PathAuditLogs     = "/console/audit-logs"
	PathOrganizations = "/console/organizations"
	PathRoles         = "/console/roles"
	PathMe            = "/console/me"
)

// Client is the generic backend surface admin calls go through.
type Client interface {
	Get(ctx context.Context, path string, query url.Values) apiclient.Result
	PostJSON(ctx context.Context, path string, body any) apiclient.Result
	Delete(ctx context.Context, path string) apiclient.Result
}

type APIKey struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Prefix     string     `json:"prefix,omitempty"`
	Scopes     []string   `json:"scopes,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	// Key is only present in the create response.
	Key string `json:"key,omitempty"`
}

type OAuthClient struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	ClientID     string    `json:"client_id"`
	RedirectURIs []string  `json:"redirect_uris,omitempty"`
	Scopes       []string  `json:"scopes,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	// ClientSecret is only present in the create response.
	ClientSecret string `json:"client_secret,omitempty"`
}

type Webhook struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	URL       string    `json:"url"`
	Events    []string  `json:"events,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	// SigningSecret is only present in the create response.
	SigningSecret string `json:"signing_secret,omitempty"`
}

type AuditEntry struct {
	ID        string    `json:"id"`
	Actor     string    `json:"actor"`
	Action    string    `json:"action"`
	Target    string    `json:"target,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type AuditPage struct {
	Items []AuditEntry `json:"items"`
	Total int          `json:"total"`
	Page  int          `json:"page"`
	Limit int          `json:"limit"`
}

type Organization struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Plan string `json:"plan,omitempty"`
}

// CreateAPIKeyInput is the body of POST /console/api-keys.
type CreateAPIKeyInput struct {
	Name   string   `json:"name"`
	Scopes []string `json:"scopes,omitempty"`
}

// CreateOAuthClientInput is the body of POST /console/oauth-clients.
type CreateOAuthClientInput struct {
	Name         string   `json:"name"`
	RedirectURIs []string `json:"redirect_uris,omitempty"`
	Scopes       []string `json:"scopes,omitempty"`
}

// CreateWebhookInput is the body of POST /console/webhooks.
type CreateWebhookInput struct {
	Name   string   `json:"name,omitempty"`
	URL    string   `json:"url"`
	Events []string `json:"events,omitempty"`
}

// Service performs admin operations. Permission gating happens in transport.
type Service struct {
	client Client
}

var _ authz.PrincipalSource = (*Service)(nil)

func NewService(client Client) *Service {
	return &Service{client: client}
}

func (s *Service) ListAPIKeys(ctx context.Context) ([]APIKey, error) {
	return decode[[]APIKey](s.client.Get(ctx, PathAPIKeys, nil))
}

func (s *Service) CreateAPIKey(ctx context.Context, in CreateAPIKeyInput) (APIKey, error) {
	if strings.TrimSpace(in.Name) == "" {
		return APIKey{}, apperrors.NewValidationError("name is required", nil)
	}
	return decode[APIKey](s.client.PostJSON(ctx, PathAPIKeys, in))
}

func (s *Service) RevokeAPIKey(ctx context.Context, id string) error {
	return s.remove(ctx, PathAPIKeys, id)
}

func (s *Service) ListOAuthClients(ctx context.Context) ([]OAuthClient, error) {
	return decode[[]OAuthClient](s.client.Get(ctx, PathOAuthClients, nil))
}

func (s *Service) CreateOAuthClient(ctx context.Context, in CreateOAuthClientInput) (OAuthClient, error) {
	if strings.TrimSpace(in.Name) == "" {
		return OAuthClient{}, apperrors.NewValidationError("name is required", nil)
	}
	for _, u := range in.RedirectURIs {
		if parsed, err := url.Parse(u); err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return OAuthClient{}, apperrors.NewValidationError(fmt.Sprintf("invalid redirect URI %q", u), err)
		}
	}
	return decode[OAuthClient](s.client.PostJSON(ctx, PathOAuthClients, in))
}

func (s *Service) DeleteOAuthClient(ctx context.Context, id string) error {
	return s.remove(ctx, PathOAuthClients, id)
}

func (s *Service) ListWebhooks(ctx context.Context) ([]Webhook, error) {
	return decode[[]Webhook](s.client.Get(ctx, PathWebhooks, nil))
}

func (s *Service) CreateWebhook(ctx context.Context, in CreateWebhookInput) (Webhook, error) {
	u, err := url.Parse(in.URL)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return Webhook{}, apperrors.NewValidationError("url must be an http(s) URL", err)
	}
	return decode[Webhook](s.client.PostJSON(ctx, PathWebhooks, in))
}

func (s *Service) DeleteWebhook(ctx context.Context, id string) error {
	return s.remove(ctx, PathWebhooks, id)
}

// AuditLogs returns one page, newest first. Page starts at 1.
func (s *Service) AuditLogs(ctx context.Context, page, limit int) (AuditPage, error) {
	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out AuditPage
	if err := s.client.Get(ctx, PathAuditLogs, q).Decode(&out); err != nil {
		return AuditPage{}, err
	}
	if out.Items == nil {
		out.Items = []AuditEntry{}
	}
	return out, nil
}

func (s *Service) Organizations(ctx context.Context) ([]Organization, error) {
	return decode[[]Organization](s.client.Get(ctx, PathOrganizations, nil))
}

func (s *Service) Roles(ctx context.Context) ([]authz.RoleDefinition, error) {
	return decode[[]authz.RoleDefinition](s.client.Get(ctx, PathRoles, nil))
}

// Principal returns the signed-in user. It makes Service an authz.PrincipalSource.
func (s *Service) Principal(ctx context.Context) (authz.Principal, error) {
	return decode[authz.Principal](s.client.Get(ctx, PathMe, nil))
}

func (s *Service) remove(ctx context.Context, collection, id string) error {
	if strings.TrimSpace(id) == "" {
		return apperrors.NewValidationError("id is required", nil)
	}
	return s.client.Delete(ctx, collection+"/"+url.PathEscape(id)).Err()
}

func decode[T any](res apiclient.Result) (T, error) {
	var out T
	err := res.Decode(&out)
	return out, err
}
