package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/sujalbistaa/postwall/internal/posts"
	"github.com/sujalbistaa/postwall/internal/uploads"
	"github.com/sujalbistaa/postwall/internal/ws"
)

// --- Structs for request binding ---

// PostInput carries optional text; the image comes in as the "image" file field.
type PostInput struct {
	Content *string `json:"content" form:"content"`
}

type CommentInput struct {
	Text string `json:"text" form:"text"`
}

// ImageUploader stores uploaded images and removes them again.
type ImageUploader interface {
	Save(fh *multipart.FileHeader) (string, error)
	Remove(ref string) error
}

// HealthChecker reports whether the store is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// --- Handlers ---

type Env struct {
	Posts          *posts.Service
	Uploads        ImageUploader
	Hub            *ws.Hub
	Health         HealthChecker
	Validator      TokenValidator
	Profiles       ProfileStore
	Limiter        *RateLimiter
	UploadDir      string
	MaxUploadBytes int64
	CORSOrigin     string
}

func (e *Env) GetPosts(c *gin.Context) {
	list, err := e.Posts.List(c.Request.Context())
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (e *Env) GetPost(c *gin.Context) {
	post, err := e.Posts.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

func (e *Env) CreatePost(c *gin.Context) {
	var input PostInput
	if !bindInput(c, &input) {
		return
	}
	imageRef, ok := e.saveUpload(c)
	if !ok {
		return
	}

	content := ""
	if input.Content != nil {
		content = *input.Content
	}
	post, err := e.Posts.Create(c.Request.Context(), currentUser(c), content, imageRef)
	if err != nil {
		e.discardUpload(imageRef)
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Post created successfully", "post": post})
}

func (e *Env) ToggleLike(c *gin.Context) {
	post, action, err := e.Posts.ToggleLike(c.Request.Context(), c.Param("id"), currentUser(c))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	message := "Post liked"
	if action == posts.ActionUnliked {
		message = "Post unliked"
	}
	c.JSON(http.StatusOK, gin.H{"message": message, "action": action, "post": post})
}

func (e *Env) AddComment(c *gin.Context) {
	var input CommentInput
	if !bindInput(c, &input) {
		return
	}

	post, err := e.Posts.AddComment(c.Request.Context(), c.Param("id"), currentUser(c), input.Text)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Comment added successfully", "post": post})
}

func (e *Env) UpdatePost(c *gin.Context) {
	var input PostInput
	if !bindInput(c, &input) {
		return
	}
	imageRef, ok := e.saveUpload(c)
	if !ok {
		return
	}

	changes := posts.Changes{Content: input.Content}
	if imageRef != "" {
		changes.ImageRef = &imageRef
	}
	post, err := e.Posts.Update(c.Request.Context(), c.Param("id"), currentUser(c), changes)
	if err != nil {
		e.discardUpload(imageRef)
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Post updated successfully", "post": post})
}

func (e *Env) DeletePost(c *gin.Context) {
	if err := e.Posts.Delete(c.Request.Context(), c.Param("id"), currentUser(c)); err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Post deleted successfully"})
}

func (e *Env) Healthz(c *gin.Context) {
	if e.Health == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := e.Health.Ping(ctx); err != nil {
		slog.Error("Health check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// bindInput binds the request body into obj. An empty body binds as no
// fields. It writes the error response itself and returns false on failure.
func bindInput(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBind(obj); err != nil && !errors.Is(err, io.EOF) {
		handleBindError(c, err)
		return false
	}
	return true
}

// saveUpload stores the optional "image" file of a multipart request. It
// writes the error response itself and returns false when the upload is rejected.
func (e *Env) saveUpload(c *gin.Context) (string, bool) {
	if c.ContentType() != binding.MIMEMultipartPOSTForm {
		return "", true
	}
	fh, err := c.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return "", true
	}
	if err != nil {
		handleBindError(c, err)
		return "", false
	}

	ref, err := e.Uploads.Save(fh)
	if err != nil {
		if uploads.IsUploadError(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		} else {
			handleServiceError(c, err)
		}
		return "", false
	}
	return ref, true
}

// discardUpload removes an image stored for a request that then failed.
func (e *Env) discardUpload(ref string) {
	if ref == "" {
		return
	}
	if err := e.Uploads.Remove(ref); err != nil {
		slog.Warn("Failed to remove orphaned upload", "ref", ref, "error", err)
	}
}
