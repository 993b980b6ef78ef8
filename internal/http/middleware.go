package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sujalbistaa/postwall/internal/auth"
	"github.com/sujalbistaa/postwall/internal/models"
)

const userIDKey = "userID"

// TokenValidator resolves a bearer token to the caller identity.
type TokenValidator interface {
	Validate(token string) (auth.Identity, error)
}

// ProfileStore records the display profile of authenticated callers.
type ProfileStore interface {
	Upsert(ctx context.Context, user models.User) error
}

// AuthMiddleware requires a valid "Authorization: Bearer <token>" header and
// stores the caller's user ID in the gin context.
func AuthMiddleware(validator TokenValidator, profiles ProfileStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "No token, authorization denied"})
			return
		}
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token format"})
			return
		}

		id, err := validator.Validate(strings.TrimSpace(token))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		if profiles != nil {
			profile := models.User{ID: id.UserID, Username: id.Username, Email: id.Email}
			if err := profiles.Upsert(c.Request.Context(), profile); err != nil {
				slog.Warn("Failed to record user profile", "user_id", id.UserID, "error", err)
			}
		}

		c.Set(userIDKey, id.UserID)
		c.Next()
	}
}

// currentUser returns the caller set by AuthMiddleware.
func currentUser(c *gin.Context) string {
	return c.GetString(userIDKey)
}

// SecurityHeadersMiddleware adds basic, sensible security headers.
func SecurityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Content-Security-Policy", "default-src 'none'; img-src 'self'; frame-ancestors 'none'")
		c.Next()
	}
}

// BodyLimitMiddleware caps the request body at limit bytes.
func BodyLimitMiddleware(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}
