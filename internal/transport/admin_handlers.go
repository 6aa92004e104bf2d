package transport

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/anime-shed/kyc-console-go/internal/admin"
	"github.com/anime-shed/kyc-console-go/internal/authz"
	apperrors "github.com/anime-shed/kyc-console-go/internal/errors"
)

func (h *handler) me(c *gin.Context) {
	p, ok := authz.PrincipalFrom(c)
	if !ok {
		respondAppError(c, "profile unavailable", apperrors.NewNetworkError("Could not load the current user", nil))
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *handler) listAPIKeys(c *gin.Context) {
	keys, err := h.Admin.ListAPIKeys(c.Request.Context())
	respondList(c, "api keys unavailable", keys, err)
}

func (h *handler) createAPIKey(c *gin.Context) {
	var in admin.CreateAPIKeyInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request format", err)
		return
	}
	key, err := h.Admin.CreateAPIKey(c.Request.Context(), in)
	respondCreated(c, "api key not created", key, err)
}

func (h *handler) revokeAPIKey(c *gin.Context) {
	respondRemoved(c, "api key not revoked", h.Admin.RevokeAPIKey(c.Request.Context(), c.Param("id")))
}

func (h *handler) listOAuthClients(c *gin.Context) {
	clients, err := h.Admin.ListOAuthClients(c.Request.Context())
	respondList(c, "oauth clients unavailable", clients, err)
}

func (h *handler) createOAuthClient(c *gin.Context) {
	var in admin.CreateOAuthClientInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request format", err)
		return
	}
	client, err := h.Admin.CreateOAuthClient(c.Request.Context(), in)
	respondCreated(c, "oauth client not created", client, err)
}

func (h *handler) deleteOAuthClient(c *gin.Context) {
	respondRemoved(c, "oauth client not deleted", h.Admin.DeleteOAuthClient(c.Request.Context(), c.Param("id")))
}

func (h *handler) listWebhooks(c *gin.Context) {
	hooks, err := h.Admin.ListWebhooks(c.Request.Context())
	respondList(c, "webhooks unavailable", hooks, err)
}

func (h *handler) createWebhook(c *gin.Context) {
	var in admin.CreateWebhookInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request format", err)
		return
	}
	hook, err := h.Admin.CreateWebhook(c.Request.Context(), in)
	respondCreated(c, "webhook not created", hook, err)
}

func (h *handler) deleteWebhook(c *gin.Context) {
	respondRemoved(c, "webhook not deleted", h.Admin.DeleteWebhook(c.Request.Context(), c.Param("id")))
}

func (h *handler) auditLogs(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	out, err := h.Admin.AuditLogs(c.Request.Context(), page, limit)
	respondList(c, "audit log unavailable", out, err)
}

func (h *handler) organizations(c *gin.Context) {
	orgs, err := h.Admin.Organizations(c.Request.Context())
	respondList(c, "organizations unavailable", orgs, err)
}

func (h *handler) roles(c *gin.Context) {
	roles, err := h.Admin.Roles(c.Request.Context())
	respondList(c, "roles unavailable", roles, err)
}

func respondList(c *gin.Context, message string, v any, err error) {
	if err != nil {
		respondAppError(c, message, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func respondCreated(c *gin.Context, message string, v any, err error) {
	if err != nil {
		respondAppError(c, message, err)
		return
	}
	c.JSON(http.StatusCreated, v)
}

func respondRemoved(c *gin.Context, message string, err error) {
	if err != nil {
		respondAppError(c, message, err)
		return
	}
	c.Status(http.StatusNoContent)
}
