package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/anime-shed/kyc-console-go/internal/admin"
	"github.com/anime-shed/kyc-console-go/internal/authz"
	"github.com/anime-shed/kyc-console-go/internal/capability"
	"github.com/anime-shed/kyc-console-go/internal/config"
	apperrors "github.com/anime-shed/kyc-console-go/internal/errors"
	"github.com/anime-shed/kyc-console-go/internal/liveness"
	"github.com/anime-shed/kyc-console-go/internal/logger"
	"github.com/anime-shed/kyc-console-go/internal/observer"
	"github.com/anime-shed/kyc-console-go/internal/playground"
	"github.com/anime-shed/kyc-console-go/internal/provider"
	"github.com/anime-shed/kyc-console-go/internal/quota"
	"github.com/anime-shed/kyc-console-go/internal/repository"
	"github.com/anime-shed/kyc-console-go/internal/session"
	"github.com/anime-shed/kyc-console-go/pkg/models"
	"github.com/anime-shed/kyc-console-go/pkg/validation"
)

const version = "1.0.0"

// Deps are the components the HTTP surface calls into
type Deps struct {
	Config     *config.Config
	Creds      *session.Credentials
	Provider   provider.Provider
	Table      *capability.Table
	Quota      *quota.Tracker
	Inputs     repository.InputRepository
	Uploads    *validation.UploadValidator
	Playground *playground.Orchestrator
	Admin      *admin.Service
	Publisher  observer.Subject
	Gatherer   prometheus.Gatherer
	// LivenessPoller overrides the verdict polling cadence when set
	LivenessPoller *liveness.Poller
}

type handler struct {
	Deps
	// one liveness flow at a time, as in the browser console
	liveness sync.Mutex
	now      func() time.Time
}

func NewHandler(deps Deps) http.Handler {
	if deps.Uploads == nil {
		deps.Uploads = validation.NewUploadValidator(deps.Config.UploadMaxBytes)
	}
	if deps.Publisher == nil {
		deps.Publisher = observer.Nop{}
	}
	h := &handler{Deps: deps, now: time.Now}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Add middleware
	r.Use(
		gin.Recovery(),
		requestLogger(),
		// two images plus multipart overhead
		requestSizeLimiter(3*deps.Config.UploadMaxBytes+(1<<20)),
		errorHandler(),
	)

	// Configure routes
	r.GET("/health", healthCheck)
	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api")
	api.GET("/session", h.getSession)
	api.POST("/session/login", h.login)
	api.POST("/session/logout", h.logout)
	api.PUT("/session/organization", h.setOrganization)

	api.GET("/capabilities", h.listCountries)
	api.GET("/capabilities/:country", h.countryCapabilities)
	api.GET("/quota", h.getQuota)

	api.GET("/playground/:country/:feature", h.selectFeature)
	api.POST("/playground/:country/:feature", h.analyze)
	api.POST("/liveness/:variant", h.runLiveness)

	console := api.Group("/admin", authz.LoadPrincipal(deps.Admin))
	console.GET("/me", h.me)
	console.GET("/api-keys", authz.RequirePermission(authz.PermAPIKeyRead), h.listAPIKeys)
	console.POST("/api-keys", authz.RequirePermission(authz.PermAPIKeyWrite), h.createAPIKey)
	console.DELETE("/api-keys/:id", authz.RequirePermission(authz.PermAPIKeyWrite), h.revokeAPIKey)
	console.GET("/oauth-clients", authz.RequirePermission(authz.PermOAuthRead), h.listOAuthClients)
	console.POST("/oauth-clients", authz.RequirePermission(authz.PermOAuthWrite), h.createOAuthClient)
	console.DELETE("/oauth-clients/:id", authz.RequirePermission(authz.PermOAuthWrite), h.deleteOAuthClient)
	console.GET("/webhooks", authz.RequirePermission(authz.PermWebhookRead), h.listWebhooks)
	console.POST("/webhooks", authz.RequirePermission(authz.PermWebhookWrite), h.createWebhook)
	console.DELETE("/webhooks/:id", authz.RequirePermission(authz.PermWebhookWrite), h.deleteWebhook)
	console.GET("/audit-logs", authz.RequirePermission(authz.PermAuditRead), h.auditLogs)
	console.GET("/organizations", authz.RequirePermission(authz.PermOrgRead), h.organizations)
	console.GET("/roles", authz.RequirePermission(authz.PermRoleRead), h.roles)

	return r
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "available",
		"version": version,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// Middleware and helper functions
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.WithFields(logrus.Fields{
			"method":      c.Request.Method,
			"path":        c.FullPath(),
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
			"ip":          c.ClientIP(),
		}).Debug("Request served")
	}
}

func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func errorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			err := c.Errors.Last()
			respondError(c, determineStatusCode(err.Err), "request processing failed", err.Err)
		}
	}
}

func determineStatusCode(err error) int {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, code int, message string, err error) {
	logger.WithError(err).WithFields(logrus.Fields{
		"status_code": code,
		"message":     message,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	}).Error("Request failed")

	body := models.ErrorResponse{
		Error:   http.StatusText(code),
		Message: fmt.Sprintf("%s: %v", message, err),
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		body.Message = appErr.Message
		if appErr.Details != "" {
			body.Message += ": " + appErr.Details
		}
		body.TraceID = appErr.TraceID
	}
	c.AbortWithStatusJSON(code, body)
}

// respondAppError answers with the status the error carries
func respondAppError(c *gin.Context, message string, err error) {
	respondError(c, determineStatusCode(err), message, err)
}
