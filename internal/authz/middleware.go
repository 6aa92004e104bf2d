package authz

import (
	"context"
	"net/http"

	apperrors "github.com/anime-shed/kyc-console-go/internal/errors"
	"github.com/anime-shed/kyc-console-go/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const principalKey = "authz.principal"

// PrincipalSource resolves the current user, typically via GET /console/me.
type PrincipalSource interface {
	Principal(ctx context.Context) (Principal, error)
}

// DeniedBody is the full-page "Access Denied" view.
type DeniedBody struct {
	Title      string `json:"title"`
	Detail     string `json:"detail"`
	Permission string `json:"permission"`
}

// LoadPrincipal resolves the principal once per request and stores it in the gin context.
// Unauthorized failures abort with 401; other failures are left to the gated handlers.
func LoadPrincipal(source PrincipalSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := source.Principal(c.Request.Context())
		if err != nil {
			if apperrors.IsType(err, apperrors.ErrorTypeUnauthorized) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"title":  "Sign in required",
					"detail": "Your session has expired. Sign in again to continue.",
					"action": "login",
				})
				return
			}
			logger.WithError(err).Warn("could not resolve current principal")
			c.Next()
			return
		}
		c.Set(principalKey, p)
		c.Next()
	}
}

// PrincipalFrom returns the principal stored by LoadPrincipal.
func PrincipalFrom(c *gin.Context) (Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return Principal{}, false
	}
	p, ok := v.(Principal)
	return p, ok
}

// RequirePermission replaces the page with an Access Denied view when the
// principal lacks permission.
func RequirePermission(permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := PrincipalFrom(c)
		if !ok || !p.Can(permission) {
			logger.WithFields(logrus.Fields{
				"path":       c.Request.URL.Path,
				"permission": permission,
				"user_id":    p.UserID,
			}).Info("access denied")
			c.AbortWithStatusJSON(http.StatusForbidden, DeniedBody{
				Title:      "Access Denied",
				Detail:     "You do not have permission to view this page. Ask an organization owner for access.",
				Permission: permission,
			})
			return
		}
		c.Next()
	}
}
