package bsky

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"sync"

	comatproto "github.com/bluesky-social/indigo/api/atproto"
	"github.com/bluesky-social/indigo/events"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// CommitHandler receives each commit delivered by the firehose. It may block;
// blocking propagates backpressure into the websocket read loop.
type CommitHandler func(ctx context.Context, commit *comatproto.SyncSubscribeRepos_Commit)

// Firehose consumes com.atproto.sync.subscribeRepos over a websocket and
// delivers commit frames to a handler. Non-commit messages and commits with
// empty block archives are ignored.
type Firehose struct {
	url string

	mu      sync.Mutex
	conn    *websocket.Conn
	stopped bool
	stopc   chan struct{}
}

// NewFirehose creates a firehose consumer for the given subscribeRepos URL.
func NewFirehose(url string) *Firehose {
	return &Firehose{
		url:   url,
		stopc: make(chan struct{}),
	}
}

// Run dials the firehose and delivers commits to handler until Stop is called
// or the connection fails. Returns nil after Stop, the connection error
// otherwise.
func (f *Firehose) Run(ctx context.Context, handler CommitHandler) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.url, http.Header{})
	if err != nil {
		return fmt.Errorf("dial firehose: %w", err)
	}

	f.mu.Lock()
	if f.stopped {
		f.mu.Unlock()
		conn.Close()
		return nil
	}
	f.conn = conn
	f.mu.Unlock()

	log.Info().Str("url", f.url).Msg("Subscribed to firehose")

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if f.isStopped() {
				return nil
			}
			return fmt.Errorf("read firehose frame: %w", err)
		}

		commit, err := parseCommit(data)
		if err != nil {
			// Corrupt frame: drop it and keep the stream alive.
			log.Error().Err(err).Msg("Failed to parse firehose frame")
			continue
		}
		if commit == nil || len(commit.Blocks) == 0 {
			continue
		}

		handler(ctx, commit)
	}
}

// Stop ends delivery. Safe to call concurrently with Run.
func (f *Firehose) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopped {
		return
	}
	f.stopped = true
	close(f.stopc)
	if f.conn != nil {
		f.conn.Close()
	}
}

func (f *Firehose) isStopped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped
}

// parseCommit decodes one wire frame: CBOR(EventHeader) + CBOR(payload).
// Returns nil for frames that are not repo commits, except that a decodable
// error frame is returned as an error.
func parseCommit(data []byte) (*comatproto.SyncSubscribeRepos_Commit, error) {
	r := bytes.NewReader(data)

	var header events.EventHeader
	if err := header.UnmarshalCBOR(r); err != nil {
		return nil, fmt.Errorf("unmarshal header: %w", err)
	}

	if header.Op != events.EvtKindMessage {
		if header.Op == events.EvtKindErrorFrame {
			var errFrame events.ErrorFrame
			if err := errFrame.UnmarshalCBOR(r); err == nil {
				return nil, fmt.Errorf("firehose error frame: %s: %s", errFrame.Error, errFrame.Message)
			}
		}
		return nil, nil
	}

	if header.MsgType != "#commit" {
		return nil, nil
	}

	var commit comatproto.SyncSubscribeRepos_Commit
	if err := commit.UnmarshalCBOR(r); err != nil {
		return nil, fmt.Errorf("unmarshal commit: %w", err)
	}
	return &commit, nil
}
