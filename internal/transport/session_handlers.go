package transport

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/anime-shed/kyc-console-go/internal/errors"
	"github.com/anime-shed/kyc-console-go/internal/logger"
	"github.com/anime-shed/kyc-console-go/internal/session"
	"github.com/anime-shed/kyc-console-go/pkg/models"
)

func (h *handler) sessionResponse() models.SessionResponse {
	snap := h.Creds.Snapshot()
	return models.SessionResponse{
		Authenticated:  h.Creds.Authenticated(h.now()),
		Subject:        session.TokenSubject(snap.Token),
		OrganizationID: snap.OrganizationID,
		BaseURL:        snap.BaseURL,
		Generation:     snap.Generation,
	}
}

func (h *handler) getSession(c *gin.Context) {
	c.JSON(http.StatusOK, h.sessionResponse())
}

func (h *handler) login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request format", err)
		return
	}
	if !session.TokenUsable(req.Token, h.now()) {
		respondAppError(c, "login rejected", apperrors.NewUnauthorizedError("Token has expired", nil))
		return
	}
	if err := h.Creds.SetToken(req.Token); err != nil {
		respondAppError(c, "login failed", apperrors.NewInternalError("Could not store session", err))
		return
	}
	if req.OrganizationID != "" {
		if err := h.Creds.SetOrganizationID(req.OrganizationID); err != nil {
			respondAppError(c, "login failed", apperrors.NewInternalError("Could not store organization", err))
			return
		}
	}
	// quota is per user; a fresh login invalidates what was cached
	if err := h.Quota.Refresh(c.Request.Context()); err != nil {
		logger.WithError(err).Warn("Quota refresh after login failed")
	}
	c.JSON(http.StatusOK, h.sessionResponse())
}

func (h *handler) logout(c *gin.Context) {
	var req models.LogoutRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "invalid request format", err)
			return
		}
	}
	if req.Generation != nil {
		cleared, err := h.Creds.ClearIfGeneration(*req.Generation)
		if err != nil {
			respondAppError(c, "logout failed", apperrors.NewInternalError("Could not clear session", err))
			return
		}
		if !cleared {
			logger.WithField("generation", *req.Generation).Info("Stale logout ignored, a newer login is active")
		}
	} else if err := h.Creds.ClearToken(); err != nil {
		respondAppError(c, "logout failed", apperrors.NewInternalError("Could not clear session", err))
		return
	}
	c.JSON(http.StatusOK, h.sessionResponse())
}

func (h *handler) setOrganization(c *gin.Context) {
	var req models.OrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request format", err)
		return
	}
	if err := h.Creds.SetOrganizationID(req.OrganizationID); err != nil {
		respondAppError(c, "organization switch failed", apperrors.NewInternalError("Could not store organization", err))
		return
	}
	if h.Creds.Authenticated(h.now()) {
		if err := h.Quota.Refresh(c.Request.Context()); err != nil {
			logger.WithError(err).Warn("Quota refresh after organization switch failed")
		}
	}
	c.JSON(http.StatusOK, h.sessionResponse())
}
