package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sujalbistaa/postwall/internal/posts"
	"github.com/sujalbistaa/postwall/internal/uploads"
)

// handleServiceError maps service errors to HTTP responses.
// Store failures and anything unexpected become a bare 500.
func handleServiceError(c *gin.Context, err error) {
	var valErr *posts.ValidationError
	switch {
	case errors.As(err, &valErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": valErr.Message})

	case uploads.IsUploadError(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

	case posts.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})

	case posts.IsForbidden(err):
		c.JSON(http.StatusForbidden, gin.H{"error": "Not authorized to modify this post"})

	default:
		slog.Error("Unexpected error in post handler",
			"method", c.Request.Method, "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

// handleBindError answers a request whose body could not be parsed.
func handleBindError(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Request body too large"})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
}
