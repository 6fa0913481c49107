package firehose

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/skyfilter/skyfilter/internal/pkg/text"
)

// WakePublisher notifies the process service that new work exists. Optional.
type WakePublisher interface {
	Publish(ctx context.Context)
}

// Writer drains the queue and records admitted posts. Errors are logged per
// row and never stop the writer; only queue close or context cancellation
// ends Run.
type Writer struct {
	store PostStore
	queue *Queue
	wake  WakePublisher
}

// NewWriter creates a post writer. wake may be nil.
func NewWriter(store PostStore, queue *Queue, wake WakePublisher) *Writer {
	return &Writer{store: store, queue: queue, wake: wake}
}

// Run consumes the queue until it is closed and drained.
func (w *Writer) Run(ctx context.Context) {
	for {
		env, ok := w.queue.Get(ctx)
		if !ok {
			log.Info().Msg("Post writer stopped")
			return
		}

		squished := text.Squish(env.Record.Text)
		err := w.store.InsertPost(ctx, env.URI, squished, env.Record.CreatedAt)
		switch {
		case errors.Is(err, ErrDuplicatePost):
			log.Debug().Str("uri", env.URI).Msg("Duplicate post skipped")
		case err != nil:
			log.Error().Err(err).Str("uri", env.URI).Msg("Failed to record post")
		default:
			log.Debug().Str("uri", env.URI).Msg("Post recorded")
			if w.wake != nil {
				w.wake.Publish(ctx)
			}
		}
	}
}
