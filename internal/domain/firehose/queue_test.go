package firehose

import (
	"context"
	"testing"
	"time"
)

func TestQueue_FIFO(t *testing.T) {
	q := NewQueue(4)
	ctx := context.Background()

	for _, uri := range []string{"at://a", "at://b", "at://c"} {
		if err := q.Put(ctx, Envelope{URI: uri}); err != nil {
			t.Fatalf("put: %v", err)
		}
	}

	for _, want := range []string{"at://a", "at://b", "at://c"} {
		env, ok := q.Get(ctx)
		if !ok {
			t.Fatal("queue closed unexpectedly")
		}
		if env.URI != want {
			t.Errorf("got %q, want %q", env.URI, want)
		}
	}
}

func TestQueue_PutBlocksWhenFull(t *testing.T) {
	q := NewQueue(2)
	ctx := context.Background()

	q.Put(ctx, Envelope{URI: "at://1"})
	q.Put(ctx, Envelope{URI: "at://2"})

	blocked := make(chan error, 1)
	go func() {
		blocked <- q.Put(ctx, Envelope{URI: "at://3"})
	}()

	select {
	case <-blocked:
		t.Fatal("put on a full queue did not block")
	case <-time.After(50 * time.Millisecond):
	}

	// Draining one slot must release the producer.
	if _, ok := q.Get(ctx); !ok {
		t.Fatal("get failed")
	}
	select {
	case err := <-blocked:
		if err != nil {
			t.Fatalf("put after drain: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("put did not complete after drain")
	}
}

func TestQueue_PutAbortsOnCancel(t *testing.T) {
	q := NewQueue(1)
	q.Put(context.Background(), Envelope{URI: "at://1"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := q.Put(ctx, Envelope{URI: "at://2"}); err == nil {
		t.Fatal("expected context error on cancelled put")
	}
}

func TestQueue_CloseDrains(t *testing.T) {
	q := NewQueue(4)
	ctx := context.Background()

	q.Put(ctx, Envelope{URI: "at://1"})
	q.Close()

	if env, ok := q.Get(ctx); !ok || env.URI != "at://1" {
		t.Fatalf("expected queued envelope after close, got ok=%v", ok)
	}
	if _, ok := q.Get(ctx); ok {
		t.Fatal("expected closed queue to report not ok once drained")
	}
}
