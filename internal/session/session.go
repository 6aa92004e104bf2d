// Package session holds the credential context shared by every outbound call:
// the bearer token, the active organization scope and the backend base URL.
package session

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	HeaderAuthorization  = "Authorization"
	HeaderOrganizationID = "X-Organization-ID"
)

// Snapshot is an immutable copy of the credential context.
type Snapshot struct {
	Token          string
	OrganizationID string
	BaseURL        string
	Generation     uint64
}

// Update is a partial merge; nil fields are left untouched.
type Update struct {
	Token          *string
	OrganizationID *string
	BaseURL        *string
}

// Credentials is the single source of truth for auth headers.
// One instance is constructed per process and passed to every client.
type Credentials struct {
	mu           sync.RWMutex
	token        string
	orgID        string
	baseURL      string
	generation   uint64
	store        Store
	persistToken bool

	unauthorized func(gen uint64)
}

// Option configures Credentials.
type Option func(*Credentials)

// WithStore persists the organization id (and the token when enabled).
func WithStore(store Store) Option {
	return func(c *Credentials) { c.store = store }
}

// WithTokenPersistence makes SetToken write through to the store.
func WithTokenPersistence(enabled bool) Option {
	return func(c *Credentials) { c.persistToken = enabled }
}

// New creates the credential context, restoring persisted state when a store is set.
func New(baseURL string, opts ...Option) (*Credentials, error) {
	c := &Credentials{baseURL: strings.TrimRight(baseURL, "/")}
	for _, opt := range opts {
		opt(c)
	}
	if c.store == nil {
		return c, nil
	}
	state, err := c.store.Load()
	if err != nil {
		return nil, fmt.Errorf("restore session state: %w", err)
	}
	c.orgID = state.OrganizationID
	if c.persistToken {
		c.token = state.Token
	}
	return c, nil
}

// SetToken replaces the bearer token. Each login starts a new generation.
func (c *Credentials) SetToken(token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
	c.generation++
	if c.persistToken {
		return c.saveLocked()
	}
	return nil
}

// SetOrganizationID switches the organization scope and persists it immediately.
func (c *Credentials) SetOrganizationID(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.orgID = id
	return c.saveLocked()
}

// ClearToken drops both the token and the organization id.
func (c *Credentials) ClearToken() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clearLocked()
}

// ClearIfGeneration clears only when no login happened since gen was observed.
// A navigation-triggered clear must not wipe a session started after it.
func (c *Credentials) ClearIfGeneration(gen uint64) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen {
		return false, nil
	}
	return true, c.clearLocked()
}

// UpdateConfig merges the non-nil fields of u.
func (c *Credentials) UpdateConfig(u Update) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	persist := false
	if u.BaseURL != nil {
		c.baseURL = strings.TrimRight(*u.BaseURL, "/")
	}
	if u.Token != nil {
		c.token = *u.Token
		c.generation++
		persist = c.persistToken
	}
	if u.OrganizationID != nil {
		c.orgID = *u.OrganizationID
		persist = true
	}
	if persist {
		return c.saveLocked()
	}
	return nil
}

// Snapshot returns a consistent copy of the current values.
func (c *Credentials) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Snapshot{
		Token:          c.token,
		OrganizationID: c.orgID,
		BaseURL:        c.baseURL,
		Generation:     c.generation,
	}
}

// BaseURL returns the backend base URL.
func (c *Credentials) BaseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseURL
}

// Token returns the current bearer token, possibly empty.
func (c *Credentials) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Apply injects the auth headers into req and returns the generation they belong to.
func (c *Credentials) Apply(req *http.Request) uint64 {
	snap := c.Snapshot()
	if snap.Token != "" {
		req.Header.Set(HeaderAuthorization, "Bearer "+snap.Token)
	}
	if snap.OrganizationID != "" {
		req.Header.Set(HeaderOrganizationID, snap.OrganizationID)
	}
	return snap.Generation
}

// Authenticated reports whether a usable token is present at now.
func (c *Credentials) Authenticated(now time.Time) bool {
	return TokenUsable(c.Token(), now)
}

// SetUnauthorizedHandler registers the hook run when the backend answers 401.
// The hook receives the generation the rejected request was sent with.
func (c *Credentials) SetUnauthorizedHandler(fn func(gen uint64)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unauthorized = fn
}

// NotifyUnauthorized runs the registered hook, if any.
func (c *Credentials) NotifyUnauthorized(gen uint64) {
	c.mu.RLock()
	fn := c.unauthorized
	c.mu.RUnlock()
	if fn != nil {
		fn(gen)
	}
}

func (c *Credentials) clearLocked() error {
	c.token = ""
	c.orgID = ""
	c.generation++
	return c.saveLocked()
}

func (c *Credentials) saveLocked() error {
	if c.store == nil {
		return nil
	}
	state := State{OrganizationID: c.orgID}
	if c.persistToken {
		state.Token = c.token
	}
	if err := c.store.Save(state); err != nil {
		return fmt.Errorf("persist session state: %w", err)
	}
	return nil
}
