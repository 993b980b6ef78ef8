package posts

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/sujalbistaa/postwall/internal/models"
)

// Service applies post, like and comment operations on top of a Repository.
type Service struct {
	repo      Repository
	publisher Publisher
	images    ImageStore
	now       func() time.Time
	tracer    trace.Tracer
}

type Option func(*Service)

// WithPublisher sets where committed mutations are announced.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithImageStore lets the service delete images dropped by Update and Delete.
func WithImageStore(store ImageStore) Option {
	return func(s *Service) { s.images = store }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		now:    time.Now,
		tracer: otel.Tracer("github.com/sujalbistaa/postwall/internal/posts"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create stores a new post. At least one of content or imageRef must be non-empty
// once content is trimmed.
func (s *Service) Create(ctx context.Context, authorID, content, imageRef string) (*models.Post, error) {
	ctx, span := s.tracer.Start(ctx, "posts.Create", trace.WithAttributes(attribute.String("user.id", authorID)))
	defer span.End()

	if authorID == "" {
		return nil, fail(span, NewValidationError("user", "author is required"))
	}
	content, err := normalizeContent(content)
	if err != nil {
		return nil, fail(span, err)
	}
	imageRef = strings.TrimSpace(imageRef)
	if content == "" && imageRef == "" {
		return nil, fail(span, NewValidationError("content", "post must contain text or an image"))
	}

	now := s.now().UTC()
	post := &models.Post{
		ID:        uuid.NewString(),
		AuthorID:  authorID,
		Content:   content,
		ImageRef:  imageRef,
		LikedBy:   models.NewUserSet(),
		Comments:  []models.Comment{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, post); err != nil {
		return nil, fail(span, NewPersistenceError("create post", err))
	}
	span.SetAttributes(attribute.String("post.id", post.ID))

	created := s.readBack(ctx, post)
	s.publish(ctx, Event{Type: EventPostCreated, PostID: created.ID, UserID: authorID, Post: created})
	return created, nil
}

// List returns all posts, most recently created first.
func (s *Service) List(ctx context.Context) ([]*models.Post, error) {
	ctx, span := s.tracer.Start(ctx, "posts.List")
	defer span.End()

	list, err := s.repo.List(ctx)
	if err != nil {
		return nil, fail(span, NewPersistenceError("list posts", err))
	}
	span.SetAttributes(attribute.Int("post.count", len(list)))
	return list, nil
}

func (s *Service) Get(ctx context.Context, postID string) (*models.Post, error) {
	ctx, span := s.tracer.Start(ctx, "posts.Get", trace.WithAttributes(attribute.String("post.id", postID)))
	defer span.End()

	post, err := s.get(ctx, postID)
	if err != nil {
		return nil, fail(span, err)
	}
	return post, nil
}

// ToggleLike likes the post for userID, or unlikes it if userID already liked it.
// Two calls in a row leave the liker set unchanged.
func (s *Service) ToggleLike(ctx context.Context, postID, userID string) (*models.Post, LikeAction, error) {
	ctx, span := s.tracer.Start(ctx, "posts.ToggleLike", trace.WithAttributes(
		attribute.String("post.id", postID),
		attribute.String("user.id", userID),
	))
	defer span.End()

	if userID == "" {
		return nil, "", fail(span, NewValidationError("user", "user is required"))
	}
	liked, err := s.repo.ToggleLike(ctx, postID, userID)
	if err != nil {
		return nil, "", fail(span, NewPersistenceError("toggle like", err))
	}

	action, eventType := ActionUnliked, EventPostUnliked
	if liked {
		action, eventType = ActionLiked, EventPostLiked
	}
	span.SetAttributes(attribute.String("like.action", string(action)))

	post, err := s.get(ctx, postID)
	if err != nil {
		return nil, "", fail(span, err)
	}
	s.publish(ctx, Event{Type: eventType, PostID: postID, UserID: userID, Post: post})
	return post, action, nil
}

// AddComment appends a trimmed comment to the end of the post's comments.
func (s *Service) AddComment(ctx context.Context, postID, userID, text string) (*models.Post, error) {
	ctx, span := s.tracer.Start(ctx, "posts.AddComment", trace.WithAttributes(
		attribute.String("post.id", postID),
		attribute.String("user.id", userID),
	))
	defer span.End()

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fail(span, NewValidationError("text", "comment text is required"))
	}
	if userID == "" {
		return nil, fail(span, NewValidationError("user", "user is required"))
	}

	comment := models.Comment{AuthorID: userID, Text: text, CreatedAt: s.now().UTC()}
	if err := s.repo.AppendComment(ctx, postID, comment); err != nil {
		return nil, fail(span, NewPersistenceError("append comment", err))
	}

	post, err := s.get(ctx, postID)
	if err != nil {
		return nil, fail(span, err)
	}
	s.publish(ctx, Event{Type: EventCommentAdded, PostID: postID, UserID: userID, Post: post})
	return post, nil
}

// Update replaces the content and/or image of a post owned by requesterID.
// The post must still hold text or an image afterwards. Empty changes are a
// no-op and publish nothing.
func (s *Service) Update(ctx context.Context, postID, requesterID string, changes Changes) (*models.Post, error) {
	ctx, span := s.tracer.Start(ctx, "posts.Update", trace.WithAttributes(
		attribute.String("post.id", postID),
		attribute.String("user.id", requesterID),
	))
	defer span.End()

	post, err := s.ownedPost(ctx, postID, requesterID)
	if err != nil {
		return nil, fail(span, err)
	}

	content, imageRef := post.Content, post.ImageRef
	if changes.Content != nil {
		c, err := normalizeContent(*changes.Content)
		if err != nil {
			return nil, fail(span, err)
		}
		content = c
		changes.Content = &c
	}
	if changes.ImageRef != nil {
		ref := strings.TrimSpace(*changes.ImageRef)
		imageRef = ref
		changes.ImageRef = &ref
	}
	if content == "" && imageRef == "" {
		return nil, fail(span, NewValidationError("content", "post must contain text or an image"))
	}
	if changes.Content == nil && changes.ImageRef == nil {
		return post, nil
	}

	if err := s.repo.Update(ctx, postID, changes); err != nil {
		return nil, fail(span, NewPersistenceError("update post", err))
	}

	oldImage := post.ImageRef
	written := *post
	written.Content, written.ImageRef = content, imageRef
	written.UpdatedAt = s.now().UTC()
	updated := s.readBack(ctx, &written)
	if oldImage != "" && oldImage != imageRef {
		s.removeImage(oldImage)
	}
	s.publish(ctx, Event{Type: EventPostUpdated, PostID: postID, UserID: requesterID, Post: updated})
	return updated, nil
}

// Delete removes a post owned by requesterID together with its likes and comments.
func (s *Service) Delete(ctx context.Context, postID, requesterID string) error {
	ctx, span := s.tracer.Start(ctx, "posts.Delete", trace.WithAttributes(
		attribute.String("post.id", postID),
		attribute.String("user.id", requesterID),
	))
	defer span.End()

	post, err := s.ownedPost(ctx, postID, requesterID)
	if err != nil {
		return fail(span, err)
	}
	if err := s.repo.Delete(ctx, postID); err != nil {
		return fail(span, NewPersistenceError("delete post", err))
	}
	if post.ImageRef != "" {
		s.removeImage(post.ImageRef)
	}

	s.publish(ctx, Event{Type: EventPostDeleted, PostID: postID, UserID: requesterID})
	return nil
}

func (s *Service) get(ctx context.Context, postID string) (*models.Post, error) {
	post, err := s.repo.Get(ctx, postID)
	if err != nil {
		return nil, NewPersistenceError("get post", err)
	}
	return post, nil
}

// readBack re-reads a post after a committed write. The write stands even
// when the read fails, so the written values are returned instead of an error.
func (s *Service) readBack(ctx context.Context, written *models.Post) *models.Post {
	post, err := s.get(ctx, written.ID)
	if err != nil {
		slog.Warn("Failed to read back committed post", "post_id", written.ID, "error", err)
		if written.Author == nil {
			written.ResolveAuthors(nil)
		}
		return written
	}
	return post
}

func (s *Service) ownedPost(ctx context.Context, postID, requesterID string) (*models.Post, error) {
	post, err := s.get(ctx, postID)
	if err != nil {
		return nil, err
	}
	if requesterID == "" || post.AuthorID != requesterID {
		return nil, ErrForbidden
	}
	return post, nil
}

func (s *Service) removeImage(ref string) {
	if s.images == nil {
		return
	}
	if err := s.images.Remove(ref); err != nil {
		slog.Warn("Failed to remove image", "ref", ref, "error", err)
	}
}

// publish never fails the caller: the mutation is already committed.
func (s *Service) publish(ctx context.Context, event Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		slog.Warn("Failed to publish post event", "type", event.Type, "post_id", event.PostID, "error", err)
	}
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
