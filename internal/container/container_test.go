package container

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anime-shed/kyc-console-go/internal/config"
	"github.com/anime-shed/kyc-console-go/internal/provider"
	"github.com/anime-shed/kyc-console-go/internal/session"
)

func testConfig(baseURL string) *config.Config {
	return &config.Config{
		Host:               "127.0.0.1",
		Port:               "8080",
		APIBaseURL:         baseURL,
		RequestTimeout:     5 * time.Second,
		UploadMaxBytes:     1 << 20,
		SearchFetchWorkers: 2,
	}
}

func newRemoteContainer(t *testing.T, baseURL string) *Container {
	t.Helper()
	c, err := NewContainer(testConfig(baseURL), WithSessionStore(&session.MemoryStore{}))
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestContainer_UnauthorizedClearsCurrentSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	c := newRemoteContainer(t, server.URL)
	creds := c.Credentials()
	require.NoError(t, creds.SetToken("tok"))
	require.NoError(t, creds.SetOrganizationID("org-1"))

	res := c.Provider().Get(context.Background(), provider.PathMe, nil)

	assert.Equal(t, http.StatusUnauthorized, res.Status)
	assert.Empty(t, creds.Token())
	assert.Empty(t, creds.Snapshot().OrganizationID)
}

func TestContainer_StaleUnauthorizedKeepsNewerLogin(t *testing.T) {
	received := make(chan string, 1)
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received <- r.Header.Get(session.HeaderAuthorization)
		<-release
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	c := newRemoteContainer(t, server.URL)
	creds := c.Credentials()
	require.NoError(t, creds.SetToken("old-token"))

	done := make(chan int, 1)
	go func() {
		done <- c.Provider().Get(context.Background(), provider.PathMe, nil).Status
	}()

	assert.Equal(t, "Bearer old-token", <-received)
	require.NoError(t, creds.ClearToken())
	require.NoError(t, creds.SetToken("new-token"))
	require.NoError(t, creds.SetOrganizationID("org-2"))
	close(release)

	assert.Equal(t, http.StatusUnauthorized, <-done)
	assert.Equal(t, "new-token", creds.Token())
	assert.Equal(t, "org-2", creds.Snapshot().OrganizationID)
}

func TestContainer_ExportsFetchPoolMetrics(t *testing.T) {
	c := newRemoteContainer(t, "http://127.0.0.1:1")

	families, err := c.registry.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["kyc_console_pool_jobs_submitted_total"])
	assert.True(t, names["kyc_console_pool_active_workers"])
	assert.True(t, names["go_goroutines"])
}
