package provider

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/anime-shed/kyc-console-go/internal/authz"

	"github.com/google/uuid"
)

// Admin collections served by the fake, keyed by their path under /console.
const (
	collectionAPIKeys      = "api-keys"
	collectionOAuthClients = "oauth-clients"
	collectionWebhooks     = "webhooks"
)

type fakeAdmin struct {
	mu          sync.Mutex
	now         func() time.Time
	collections map[string][]map[string]any
	audit       []map[string]any
	roles       *authz.RoleRegistry
}

func newFakeAdmin(now func() time.Time) *fakeAdmin {
	return &fakeAdmin{
		now: now,
		collections: map[string][]map[string]any{
			collectionAPIKeys:      {},
			collectionOAuthClients: {},
			collectionWebhooks:     {},
		},
		roles: authz.NewRoleRegistry(),
	}
}

// splitConsolePath turns "/console/api-keys/abc" into ("api-keys", "abc").
func splitConsolePath(path string) (string, string, bool) {
	rest, ok := strings.CutPrefix(path, "/console/")
	if !ok {
		return "", "", false
	}
	collection, id, _ := strings.Cut(strings.Trim(rest, "/"), "/")
	return collection, id, true
}

func (a *fakeAdmin) get(path string, query url.Values) (any, int, string) {
	collection, id, ok := splitConsolePath(path)
	if !ok || id != "" {
		return nil, http.StatusNotFound, "not found"
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	switch collection {
	case "organizations":
		return []map[string]any{{"id": "org-demo", "name": "Demo Organization", "plan": "trial"}}, http.StatusOK, ""
	case "roles":
		return a.roles.List(), http.StatusOK, ""
	case "audit-logs":
		return a.auditPage(query), http.StatusOK, ""
	}
	items, ok := a.collections[collection]
	if !ok {
		return nil, http.StatusNotFound, "not found"
	}
	out := make([]map[string]any, 0, len(items))
	for _, it := range items {
		out = append(out, cloneItem(it))
	}
	return out, http.StatusOK, ""
}

func (a *fakeAdmin) create(path string, payload map[string]any, actor string) (any, int, string) {
	collection, id, ok := splitConsolePath(path)
	if !ok || id != "" {
		return nil, http.StatusNotFound, "not found"
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	items, ok := a.collections[collection]
	if !ok {
		return nil, http.StatusNotFound, "not found"
	}
	if name, _ := payload["name"].(string); strings.TrimSpace(name) == "" && collection != collectionWebhooks {
		return nil, http.StatusBadRequest, "name is required"
	}
	if collection == collectionWebhooks {
		if u, _ := payload["url"].(string); !strings.HasPrefix(u, "https://") && !strings.HasPrefix(u, "http://") {
			return nil, http.StatusBadRequest, "url must be an http(s) URL"
		}
	}

	item := make(map[string]any, len(payload)+3)
	for k, v := range payload {
		item[k] = v
	}
	item["id"] = uuid.NewString()
	item["created_at"] = a.now().UTC().Format(time.RFC3339)

	created := make(map[string]any, len(item)+1)
	for k, v := range item {
		created[k] = v
	}
	switch collection {
	case collectionAPIKeys:
		secret := "kyc_" + randomHex(16)
		item["prefix"] = secret[:8]
		created["prefix"] = secret[:8]
		created["key"] = secret
	case collectionOAuthClients:
		item["client_id"] = "client_" + randomHex(8)
		created["client_id"] = item["client_id"]
		created["client_secret"] = randomHex(24)
	case collectionWebhooks:
		created["signing_secret"] = "whsec_" + randomHex(16)
	}
	a.collections[collection] = append(items, item)
	a.record(actor, collection+".create", item["id"])
	return created, http.StatusCreated, ""
}

func (a *fakeAdmin) remove(path, actor string) (int, string) {
	collection, id, ok := splitConsolePath(path)
	if !ok || id == "" {
		return http.StatusNotFound, "not found"
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	items, ok := a.collections[collection]
	if !ok {
		return http.StatusNotFound, "not found"
	}
	for i, it := range items {
		if it["id"] == id {
			a.collections[collection] = append(items[:i:i], items[i+1:]...)
			a.record(actor, collection+".delete", id)
			return http.StatusOK, ""
		}
	}
	return http.StatusNotFound, collection + " entry not found"
}

func (a *fakeAdmin) record(actor, action string, target any) {
	a.audit = append(a.audit, map[string]any{
		"id":         uuid.NewString(),
		"actor":      actor,
		"action":     action,
		"target":     target,
		"created_at": a.now().UTC().Format(time.RFC3339),
	})
}

// auditPage returns newest first; page starts at 1.
func (a *fakeAdmin) auditPage(query url.Values) map[string]any {
	page := positiveInt(query.Get("page"), 1)
	limit := positiveInt(query.Get("limit"), 20)

	entries := make([]map[string]any, len(a.audit))
	copy(entries, a.audit)
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}

	start := (page - 1) * limit
	if start > len(entries) {
		start = len(entries)
	}
	end := start + limit
	if end > len(entries) {
		end = len(entries)
	}
	return map[string]any{
		"items": entries[start:end],
		"total": len(entries),
		"page":  page,
		"limit": limit,
	}
}

// secrets are only ever returned by create
func cloneItem(item map[string]any) map[string]any {
	out := make(map[string]any, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}

func positiveInt(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func randomHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return strings.Repeat("0", n*2)
	}
	return hex.EncodeToString(b)
}
