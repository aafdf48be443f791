package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"notesvc/internal/models"
	"notesvc/internal/service"
)

// principalKey is the gin context key the authenticated user is stored
// under.
const principalKey = "principal"

// rejectMessage is the single body returned for every rejection branch.
// Distinguishing missing, malformed, expired, unknown-subject and stale
// tokens on the wire would let a caller enumerate accounts or infer
// password-change timing.
const rejectMessage = "invalid or expired credentials"

// Principal returns the authenticated user attached by Auth.
func Principal(c *gin.Context) *models.User {
	return c.MustGet(principalKey).(*models.User)
}

// Auth creates a Gin middleware that resolves the bearer token to a
// principal and aborts with one uniform 401 on any rejection. The
// individual reasons are kept for logging only.
func Auth(auth service.AuthService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			reject(c, logger, "missing_credential")
			return
		}

		user, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrTokenExpired):
				reject(c, logger, "token_expired")
			case errors.Is(err, service.ErrTokenMalformed):
				reject(c, logger, "token_malformed")
			case errors.Is(err, service.ErrUnknownSubject):
				reject(c, logger, "unknown_subject")
			case errors.Is(err, service.ErrStaleToken):
				reject(c, logger, "stale_token")
			default:
				logger.Error("Failed to resolve principal", zap.Error(err))
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"success": false,
					"message": "internal server error",
				})
			}
			return
		}

		c.Set(principalKey, user)
		c.Next()
	}
}

// bearerToken extracts the token from an "Authorization: Bearer <token>"
// header. An absent header, a different scheme or an empty token all count
// as no credential.
func bearerToken(header string) (string, bool) {
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}

func reject(c *gin.Context, logger *zap.Logger, reason string) {
	logger.Warn("Request rejected",
		zap.String("reason", reason),
		zap.String("path", c.FullPath()),
	)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"message": rejectMessage,
	})
}
