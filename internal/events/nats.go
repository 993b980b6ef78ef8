package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/sujalbistaa/postwall/internal/posts"
)

const subjectPrefix = "posts."

// PostEvent is the payload published on posts.<type> subjects.
type PostEvent struct {
	Type       string    `json:"type"`
	PostID     string    `json:"post_id"`
	UserID     string    `json:"user_id"`
	AuthorID   string    `json:"author_id,omitempty"`
	Content    string    `json:"content,omitempty"`
	Image      string    `json:"image,omitempty"`
	LikeCount  int       `json:"like_count"`
	Comments   int       `json:"comment_count"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NatsPublisher forwards post events to NATS with the trace context in the headers.
type NatsPublisher struct {
	nc  *nats.Conn
	now func() time.Time
}

func NewNatsPublisher(nc *nats.Conn) *NatsPublisher {
	return &NatsPublisher{nc: nc, now: time.Now}
}

// Subject returns the subject an event type is published on.
func Subject(t posts.EventType) string {
	return subjectPrefix + string(t)
}

func (p *NatsPublisher) Publish(ctx context.Context, event posts.Event) error {
	msg, err := p.message(ctx, event)
	if err != nil {
		return err
	}
	slog.Debug("Publishing post event", "subject", msg.Subject, "post_id", event.PostID)
	return p.nc.PublishMsg(msg)
}

func (p *NatsPublisher) message(ctx context.Context, event posts.Event) (*nats.Msg, error) {
	payload := PostEvent{
		Type:       string(event.Type),
		PostID:     event.PostID,
		UserID:     event.UserID,
		OccurredAt: p.now().UTC(),
	}
	if event.Post != nil {
		payload.AuthorID = event.Post.AuthorID
		payload.Content = event.Post.Content
		payload.Image = event.Post.ImageRef
		payload.LikeCount = event.Post.LikedBy.Len()
		payload.Comments = len(event.Post.Comments)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshalling error: %w", err)
	}

	msg := &nats.Msg{
		Subject: Subject(event.Type),
		Data:    data,
		Header:  nats.Header{},
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(msg.Header))
	return msg, nil
}
