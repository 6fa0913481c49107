package firehose

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeStore struct {
	mu      sync.Mutex
	inserts []insertedPost
	errs    map[string]error
}

type insertedPost struct {
	uri  string
	text string
}

func (s *fakeStore) InsertPost(_ context.Context, uri, text string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.errs[uri]; ok {
		return err
	}
	s.inserts = append(s.inserts, insertedPost{uri: uri, text: text})
	return nil
}

func (s *fakeStore) recorded() []insertedPost {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]insertedPost(nil), s.inserts...)
}

func runWriter(t *testing.T, store PostStore, queue *Queue) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		NewWriter(store, queue, nil).Run(context.Background())
		close(done)
	}()
	queue.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("writer did not drain and stop")
	}
}

func TestWriter_SquishesTextAndRecords(t *testing.T) {
	store := &fakeStore{}
	queue := NewQueue(4)
	ctx := context.Background()

	queue.Put(ctx, Envelope{
		URI:    "at://did:plc:a/app.bsky.feed.post/1",
		Record: Post{Text: "  hello \n  world  ", CreatedAt: time.Now()},
	})

	runWriter(t, store, queue)

	inserts := store.recorded()
	if len(inserts) != 1 {
		t.Fatalf("expected 1 insert, got %d", len(inserts))
	}
	if inserts[0].text != "hello world" {
		t.Errorf("text not squished: %q", inserts[0].text)
	}
}

func TestWriter_ContinuesPastErrors(t *testing.T) {
	store := &fakeStore{errs: map[string]error{
		"at://dup": ErrDuplicatePost,
		"at://bad": errors.New("connection reset"),
	}}
	queue := NewQueue(8)
	ctx := context.Background()

	for _, uri := range []string{"at://dup", "at://bad", "at://ok"} {
		queue.Put(ctx, Envelope{URI: uri, Record: Post{Text: "t", CreatedAt: time.Now()}})
	}

	runWriter(t, store, queue)

	inserts := store.recorded()
	if len(inserts) != 1 || inserts[0].uri != "at://ok" {
		t.Fatalf("writer did not continue past errors: %+v", inserts)
	}
}
