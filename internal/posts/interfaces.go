package posts

import (
	"context"

	"github.com/sujalbistaa/postwall/internal/models"
)

// Repository persists posts and resolves author identities.
// Implementations return *NotFoundError for missing posts.
type Repository interface {
	Create(ctx context.Context, post *models.Post) error
	// List returns every post, newest first, with authors resolved.
	List(ctx context.Context) ([]*models.Post, error)
	// Get returns one post with authors resolved.
	Get(ctx context.Context, postID string) (*models.Post, error)
	// ToggleLike flips userID's membership in the post's liker set and
	// reports whether the user now likes the post.
	ToggleLike(ctx context.Context, postID, userID string) (bool, error)
	AppendComment(ctx context.Context, postID string, comment models.Comment) error
	Update(ctx context.Context, postID string, changes Changes) error
	Delete(ctx context.Context, postID string) error
}

// Changes holds the fields replaced by Update. Nil means unchanged.
type Changes struct {
	Content  *string
	ImageRef *string
}

// Publisher receives an Event after each successful mutation.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// ImageStore removes stored images that a post no longer references.
type ImageStore interface {
	Remove(ref string) error
}
