package events

import (
	"context"
	"errors"

	"github.com/sujalbistaa/postwall/internal/posts"
)

// Fanout delivers each event to every publisher and joins their errors.
type Fanout []posts.Publisher

func (f Fanout) Publish(ctx context.Context, event posts.Event) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
