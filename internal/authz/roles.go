package authz

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	ErrSystemRole   = errors.New("system roles cannot be modified")
	ErrRoleNotFound = errors.New("role not found")
	ErrRoleExists   = errors.New("role already exists")
)

// RoleDefinition is a named set of permissions.
type RoleDefinition struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
	IsSystem    bool     `json:"is_system"`
}

// PermissionDefinition describes one permission id.
type PermissionDefinition struct {
	ID       string `json:"id"`
	Category string `json:"category"`
}

// Catalog lists the permissions the console knows about.
func Catalog() []PermissionDefinition {
	ids := []string{
		PermAPIKeyRead, PermAPIKeyWrite,
		PermOAuthRead, PermOAuthWrite,
		PermWebhookRead, PermWebhookWrite,
		PermAuditRead, PermOrgRead,
		PermRoleRead, PermRoleWrite,
		PermPlaygroundUse, PermQuotaRead, PermLivenessVerify,
	}
	out := make([]PermissionDefinition, 0, len(ids))
	for _, id := range ids {
		out = append(out, PermissionDefinition{ID: id, Category: Category(id)})
	}
	return out
}

// SystemRoles are always present and never change.
func SystemRoles() []RoleDefinition {
	return []RoleDefinition{
		{ID: "owner", Name: "Owner", Permissions: []string{Wildcard}, IsSystem: true},
		{ID: "developer", Name: "Developer", Permissions: []string{
			"apikey.*", "oauth.*", "webhook.*", PermPlaygroundUse, PermQuotaRead, PermLivenessVerify, PermOrgRead,
		}, IsSystem: true},
		{ID: "auditor", Name: "Auditor", Permissions: []string{
			PermAuditRead, PermOrgRead, PermRoleRead, PermQuotaRead,
		}, IsSystem: true},
	}
}

// RoleRegistry holds role definitions. System roles are immutable.
type RoleRegistry struct {
	mu    sync.RWMutex
	roles map[string]RoleDefinition
}

// NewRoleRegistry seeds the registry with the system roles and any extra roles.
// Extras that collide with a system role are ignored.
func NewRoleRegistry(extra ...RoleDefinition) *RoleRegistry {
	r := &RoleRegistry{roles: make(map[string]RoleDefinition)}
	for _, role := range SystemRoles() {
		r.roles[role.ID] = role
	}
	for _, role := range extra {
		if _, exists := r.roles[role.ID]; exists {
			continue
		}
		role.IsSystem = false
		r.roles[role.ID] = copyRole(role)
	}
	return r
}

// Get returns a copy of the role.
func (r *RoleRegistry) Get(id string) (RoleDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	role, ok := r.roles[id]
	return copyRole(role), ok
}

// List returns all roles, system roles first, then by id.
func (r *RoleRegistry) List() []RoleDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]RoleDefinition, 0, len(r.roles))
	for _, role := range r.roles {
		out = append(out, copyRole(role))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsSystem != out[j].IsSystem {
			return out[i].IsSystem
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Create adds a custom role.
func (r *RoleRegistry) Create(role RoleDefinition) error {
	if strings.TrimSpace(role.ID) == "" {
		return fmt.Errorf("role id is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.roles[role.ID]; exists {
		return fmt.Errorf("%w: %s", ErrRoleExists, role.ID)
	}
	role.IsSystem = false
	r.roles[role.ID] = copyRole(role)
	return nil
}

// Rename changes a custom role's display name.
func (r *RoleRegistry) Rename(id, name string) error {
	return r.mutate(id, func(role *RoleDefinition) { role.Name = name })
}

// SetPermissions replaces a custom role's permissions.
func (r *RoleRegistry) SetPermissions(id string, perms []string) error {
	return r.mutate(id, func(role *RoleDefinition) { role.Permissions = append([]string(nil), perms...) })
}

// Delete removes a custom role.
func (r *RoleRegistry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	role, ok := r.roles[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRoleNotFound, id)
	}
	if role.IsSystem {
		return fmt.Errorf("%w: %s", ErrSystemRole, id)
	}
	delete(r.roles, id)
	return nil
}

// Permissions returns the permissions granted by a role id.
func (r *RoleRegistry) Permissions(id string) []string {
	role, ok := r.Get(id)
	if !ok {
		return nil
	}
	return role.Permissions
}

func (r *RoleRegistry) mutate(id string, fn func(*RoleDefinition)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	role, ok := r.roles[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRoleNotFound, id)
	}
	if role.IsSystem {
		return fmt.Errorf("%w: %s", ErrSystemRole, id)
	}
	fn(&role)
	r.roles[id] = role
	return nil
}

func copyRole(role RoleDefinition) RoleDefinition {
	role.Permissions = append([]string(nil), role.Permissions...)
	return role
}
