package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anime-shed/kyc-console-go/internal/apiclient"
	apperrors "github.com/anime-shed/kyc-console-go/internal/errors"
	"github.com/anime-shed/kyc-console-go/internal/provider"
	"github.com/anime-shed/kyc-console-go/internal/session"
)

func TestService_APIKeyLifecycle(t *testing.T) {
	svc := NewService(provider.NewFake())
	ctx := context.Background()

	created, err := svc.CreateAPIKey(ctx, CreateAPIKeyInput{Name: "ci", Scopes: []string{"ocr"}})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.NotEmpty(t, created.Key, "secret is shown once at creation")
	assert.Equal(t, created.Key[:8], created.Prefix)

	keys, err := svc.ListAPIKeys(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Empty(t, keys[0].Key, "list never returns the secret")
	assert.False(t, keys[0].CreatedAt.IsZero())

	require.NoError(t, svc.RevokeAPIKey(ctx, created.ID))
	keys, err = svc.ListAPIKeys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)

	err = svc.RevokeAPIKey(ctx, created.ID)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeHTTP), "second revoke is a 404: %v", err)
}

func TestService_Validation(t *testing.T) {
	fake := provider.NewFake()
	svc := NewService(fake)
	ctx := context.Background()

	_, err := svc.CreateAPIKey(ctx, CreateAPIKeyInput{Name: "  "})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

	_, err = svc.CreateWebhook(ctx, CreateWebhookInput{URL: "ftp://example.com/hook"})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

	_, err = svc.CreateOAuthClient(ctx, CreateOAuthClientInput{Name: "app", RedirectURIs: []string{"not a uri"}})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

	assert.True(t, apperrors.IsType(svc.DeleteWebhook(ctx, ""), apperrors.ErrorTypeValidation))

	assert.Equal(t, 0, fake.Calls(PathAPIKeys)+fake.Calls(PathWebhooks)+fake.Calls(PathOAuthClients))
}

func TestService_WebhooksOAuthAndAudit(t *testing.T) {
	svc := NewService(provider.NewFake())
	ctx := context.Background()

	hook, err := svc.CreateWebhook(ctx, CreateWebhookInput{URL: "https://example.com/hook", Events: []string{"analysis.completed"}})
	require.NoError(t, err)
	assert.Contains(t, hook.SigningSecret, "whsec_")

	client, err := svc.CreateOAuthClient(ctx, CreateOAuthClientInput{Name: "app", RedirectURIs: []string{"https://app.example.com/cb"}})
	require.NoError(t, err)
	assert.NotEmpty(t, client.ClientID)
	assert.NotEmpty(t, client.ClientSecret)

	require.NoError(t, svc.DeleteWebhook(ctx, hook.ID))

	page, err := svc.AuditLogs(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "webhooks.delete", page.Items[0].Action, "newest first")

	page, err = svc.AuditLogs(ctx, 9, 2)
	require.NoError(t, err)
	assert.NotNil(t, page.Items)
	assert.Empty(t, page.Items)
}

func TestService_OrganizationsRolesAndMe(t *testing.T) {
	svc := NewService(provider.NewFake())
	ctx := context.Background()

	orgs, err := svc.Organizations(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, orgs)

	roles, err := svc.Roles(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, roles)
	assert.True(t, roles[0].IsSystem)

	me, err := svc.Principal(ctx)
	require.NoError(t, err)
	assert.True(t, me.Can("webhook.write"))
}

func TestService_RemoteSendsQueryAndHeaders(t *testing.T) {
	var gotQuery, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code": 0,
			"data": map[string]any{"items": []any{}, "total": 0, "page": 2, "limit": 5},
		})
	}))
	defer srv.Close()

	creds, err := session.New(srv.URL)
	require.NoError(t, err)
	require.NoError(t, creds.SetToken("tok"))
	svc := NewService(provider.NewRemote(apiclient.New(creds)))

	page, err := svc.AuditLogs(context.Background(), 2, 5)
	require.NoError(t, err)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, "limit=5&page=2", gotQuery)
	assert.Equal(t, "Bearer tok", gotAuth)
}
