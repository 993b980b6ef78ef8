package posts

import (
	"strings"
	"unicode/utf8"

	"github.com/sujalbistaa/postwall/internal/models"
)

const MaxContentLength = 1000

// LikeAction names the outcome of ToggleLike.
type LikeAction string

const (
	ActionLiked   LikeAction = "liked"
	ActionUnliked LikeAction = "unliked"
)

// EventType names a post mutation broadcast to subscribers.
type EventType string

const (
	EventPostCreated  EventType = "post_created"
	EventPostLiked    EventType = "post_liked"
	EventPostUnliked  EventType = "post_unliked"
	EventCommentAdded EventType = "comment_added"
	EventPostUpdated  EventType = "post_updated"
	EventPostDeleted  EventType = "post_deleted"
)

// Event describes a committed mutation. Post is nil for deletions.
type Event struct {
	Type   EventType    `json:"type"`
	PostID string       `json:"postId"`
	UserID string       `json:"userId"`
	Post   *models.Post `json:"post,omitempty"`
}

// normalizeContent trims content and enforces the length limit.
func normalizeContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if utf8.RuneCountInString(content) > MaxContentLength {
		return "", NewValidationError("content", "post content cannot exceed 1000 characters")
	}
	return content, nil
}
