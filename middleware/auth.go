package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/tryswift/cfp-auth/internal/core/domain"
)

// identityKey is the gin context key the authenticated identity is stored
// under by RequireAuth.
const identityKey = "auth_identity"

// Identity is the verified content of a session credential, attached to the
// request context by RequireAuth for downstream handlers.
type Identity struct {
	Subject  string
	Role     domain.Role
	Username string
}

// VerifyFunc validates a bearer token and returns the identity it asserts.
type VerifyFunc func(token string) (*Identity, error)

// RequireAuth requires a valid, non-expired session credential in the
// Authorization header. Every failure mode (missing header, bad format,
// malformed token, bad signature, expired) collapses into the same 401 so
// clients cannot probe validation internals; the cause is logged only.
func RequireAuth(verify VerifyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := zerolog.Ctx(c.Request.Context())

		authHeader := c.GetHeader("Authorization")
		const bearerPrefix = "Bearer "
		if !strings.HasPrefix(authHeader, bearerPrefix) || len(authHeader) == len(bearerPrefix) {
			logger.Warn().Str("path", c.Request.URL.Path).Msg("Missing or malformed Authorization header")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		identity, err := verify(authHeader[len(bearerPrefix):])
		if err != nil {
			logger.Warn().Err(err).Str("path", c.Request.URL.Path).Msg("Credential verification failed")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		c.Set(identityKey, identity)
		c.Next()
	}
}

// RequireAdmin requires the already-authenticated identity to hold the admin
// role. It must be chained strictly after RequireAuth and never re-verifies
// the credential; a missing identity means the chain was wired wrong and is
// rejected the same way as a wrong role.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := zerolog.Ctx(c.Request.Context())

		identity := IdentityFromContext(c)
		if identity == nil || identity.Role != domain.RoleAdmin {
			if identity != nil {
				logger.Warn().
					Str("subject", identity.Subject).
					Str("role", string(identity.Role)).
					Str("path", c.Request.URL.Path).
					Msg("Admin access denied")
			}
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			return
		}

		c.Next()
	}
}

// IdentityFromContext returns the identity stored by RequireAuth, or nil.
func IdentityFromContext(c *gin.Context) *Identity {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil
	}
	identity, ok := v.(*Identity)
	if !ok {
		return nil
	}
	return identity
}
