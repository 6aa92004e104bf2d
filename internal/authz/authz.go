// Package authz gates console actions on the current user's permissions.
// It only shapes what the console offers; the backend enforces access itself.
package authz

import "strings"

// Wildcard grants every permission.
const Wildcard = "*"

// Permissions used by the console surfaces.
const (
	PermAPIKeyRead     = "apikey.read"
	PermAPIKeyWrite    = "apikey.write"
	PermOAuthRead      = "oauth.read"
	PermOAuthWrite     = "oauth.write"
	PermWebhookRead    = "webhook.read"
	PermWebhookWrite   = "webhook.write"
	PermAuditRead      = "audit.read"
	PermOrgRead        = "org.read"
	PermRoleRead       = "role.read"
	PermRoleWrite      = "role.write"
	PermPlaygroundUse  = "playground.use"
	PermQuotaRead      = "quota.read"
	PermLivenessVerify = "liveness.verify"
)

// Principal is the user returned by GET /console/me.
type Principal struct {
	UserID      string   `json:"user_id"`
	Email       string   `json:"email"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
}

// Can reports whether p holds required.
func (p Principal) Can(required string) bool {
	return HasPermission(p.Permissions, required)
}

// HasPermission matches required against granted by exact id, by category
// wildcard ("oauth.*" grants "oauth.read") or by the global wildcard.
func HasPermission(granted []string, required string) bool {
	required = strings.TrimSpace(required)
	if required == "" {
		return false
	}
	for _, g := range granted {
		g = strings.TrimSpace(g)
		switch {
		case g == "":
			continue
		case g == Wildcard, g == required:
			return true
		case strings.HasSuffix(g, ".*"):
			if strings.HasPrefix(required, strings.TrimSuffix(g, "*")) {
				return true
			}
		}
	}
	return false
}

// Category is the part of a permission id before the first dot.
func Category(permission string) string {
	if i := strings.IndexByte(permission, '.'); i > 0 {
		return permission[:i]
	}
	return permission
}
