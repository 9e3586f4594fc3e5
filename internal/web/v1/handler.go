package v1

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tryswift/cfp-auth/internal/logger"
	logicv1 "github.com/tryswift/cfp-auth/internal/logic/v1"
	"github.com/tryswift/cfp-auth/middleware"
)

// Handler groups HTTP handlers for the auth API v1.
// Dependencies are injected via the constructor — no global state.
type Handler struct {
	auth *logicv1.AuthService
}

// NewHandler creates a new Handler with the given AuthService.
func NewHandler(auth *logicv1.AuthService) *Handler {
	return &Handler{auth: auth}
}

// RegisterRoutes registers all auth API v1 routes on the given router group.
// requireAuth and requireAdmin form the gatekeeper chain; requireAdmin must
// always be preceded by requireAuth.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, requireAuth, requireAdmin gin.HandlerFunc) {
	rg.GET("/auth/github", h.GithubLogin)
	rg.GET("/auth/github/callback", h.GithubCallback)
	rg.GET("/auth/me", requireAuth, h.GetMe)
	rg.GET("/admin/users", requireAuth, requireAdmin, h.ListUsers)
}

// GithubLogin redirects the browser to the GitHub authorize page.
// GET /api/v1/auth/github
func (h *Handler) GithubLogin(c *gin.Context) {
	b := make([]byte, 16)
	rand.Read(b)
	c.Redirect(http.StatusFound, h.auth.LoginURL(hex.EncodeToString(b)))
}

// GithubCallback exchanges the authorization code GitHub redirected back
// with for a session credential.
// GET /api/v1/auth/github/callback?code=...
func (h *Handler) GithubCallback(c *gin.Context) {
	ctx, span := middleware.StartSpan(c.Request.Context(), "http.request", trace.WithAttributes(
		attribute.String("layer", "web"),
		attribute.String("method", c.Request.Method),
		attribute.String("path", c.Request.URL.Path),
	))
	defer span.End()

	log := logger.FromContext(ctx)

	code := c.Query("code")
	if code == "" {
		span.SetAttributes(attribute.Bool("request.valid", false))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing authorization code"})
		return
	}

	response, err := h.auth.Login(ctx, code)
	if err != nil {
		span.RecordError(err)
		// Provider-reported detail stays in the logs; the client only sees
		// a generic failure.
		log.Error().Err(err).Msg("Login failed")

		switch {
		case errors.Is(err, logicv1.ErrTokenHTTP),
			errors.Is(err, logicv1.ErrTokenGitHub),
			errors.Is(err, logicv1.ErrTokenMissing),
			errors.Is(err, logicv1.ErrUserHTTP):
			c.JSON(http.StatusBadGateway, gin.H{"error": "Authentication failed"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		}
		return
	}

	log.Info().
		Str("user_id", response.User.ID).
		Str("role", string(response.User.Role)).
		Msg("Login successful")
	c.JSON(http.StatusOK, response)
}

// GetMe returns the profile embedded in the presented credential.
// GET /api/v1/auth/me
// Authorization: Bearer <token>
func (h *Handler) GetMe(c *gin.Context) {
	_, span := middleware.StartSpan(c.Request.Context(), "http.request", trace.WithAttributes(
		attribute.String("layer", "web"),
		attribute.String("method", c.Request.Method),
		attribute.String("path", c.Request.URL.Path),
	))
	defer span.End()

	identity := middleware.IdentityFromContext(c)
	if identity == nil {
		// RequireAuth guarantees an identity; reaching here means the route
		// was registered without it.
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	span.SetAttributes(attribute.String("user.id", identity.Subject))
	c.JSON(http.StatusOK, gin.H{
		"id":    identity.Subject,
		"login": identity.Username,
		"role":  identity.Role,
	})
}

// ListUsers returns every registered user. Admin only.
// GET /api/v1/admin/users
func (h *Handler) ListUsers(c *gin.Context) {
	ctx, span := middleware.StartSpan(c.Request.Context(), "http.request", trace.WithAttributes(
		attribute.String("layer", "web"),
		attribute.String("method", c.Request.Method),
		attribute.String("path", c.Request.URL.Path),
	))
	defer span.End()

	log := logger.FromContext(ctx)

	users, err := h.auth.ListUsers(ctx)
	if err != nil {
		span.RecordError(err)
		log.Error().Err(err).Msg("User listing failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"users": users})
}
