package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/oncodose/treatment-api/internal/service/session"
	"github.com/oncodose/treatment-api/pkg/auth"
)

const (
	usernameKey = "username"
	isAdminKey  = "is_admin"
)

// Auth validates the bearer token and requires a live session: a token that
// outlives its session (logout happened) is rejected, because without the
// session there is no passphrase to decrypt anything with.
func Auth(jwtService *auth.JWTService, sessions *session.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "missing bearer token"})
			return
		}

		claims, err := jwtService.Validate(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid token"})
			return
		}

		if _, ok := sessions.Get(claims.Username); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "session expired"})
			return
		}

		c.Set(usernameKey, claims.Username)
		c.Set(isAdminKey, claims.IsAdmin)
		c.Next()
	}
}

// Username returns the authenticated oncologist's username.
func Username(c *gin.Context) string {
	return c.GetString(usernameKey)
}

// IsAdmin reports whether the authenticated oncologist is an admin.
func IsAdmin(c *gin.Context) bool {
	return c.GetBool(isAdminKey)
}

// RequireAdmin gates admin-only routes.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !IsAdmin(c) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "error": "admin access required"})
			return
		}
		c.Next()
	}
}
