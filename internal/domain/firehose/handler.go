package firehose

import (
	"context"

	comatproto "github.com/bluesky-social/indigo/api/atproto"
	appbsky "github.com/bluesky-social/indigo/api/bsky"
	"github.com/rs/zerolog/log"
)

// Handler turns raw commits into admitted-post envelopes on the queue.
type Handler struct {
	queue *Queue
}

// NewHandler creates a commit handler feeding the given queue.
func NewHandler(queue *Queue) *Handler {
	return &Handler{queue: queue}
}

// OnCommit decodes a commit, filters its created posts and enqueues the
// admitted ones. Decode failures drop the commit; admission failures drop
// the record. Deleted posts are decoded but not acted on.
func (h *Handler) OnCommit(ctx context.Context, commit *comatproto.SyncSubscribeRepos_Commit) {
	ops, err := DecodeCommit(commit)
	if err != nil {
		log.Error().Err(err).Str("repo", commit.Repo).Msg("Failed to decode commit")
		return
	}

	for _, created := range ops.Posts.Created {
		record, ok := created.Record.(*appbsky.FeedPost)
		if !ok {
			continue
		}

		post, admitted := h.admit(created.URI, record)
		if !admitted {
			continue
		}

		if err := h.queue.Put(ctx, Envelope{URI: created.URI, Record: post}); err != nil {
			// Context cancelled during backpressure wait; the
			// stream is shutting down.
			return
		}
	}
}

// admit converts and filters one record. A panic while evaluating the
// predicate is logged and treated as a rejection.
func (h *Handler) admit(uri string, record *appbsky.FeedPost) (post Post, admitted bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("error", r).Str("uri", uri).Msg("Admission predicate failed")
			admitted = false
		}
	}()

	post = PostFromRecord(record)
	return post, Admit(post)
}
