package firehose

import (
	"bytes"
	"context"
	"testing"

	comatproto "github.com/bluesky-social/indigo/api/atproto"
	appbsky "github.com/bluesky-social/indigo/api/bsky"
	lexutil "github.com/bluesky-social/indigo/lex/util"
	"github.com/ipfs/go-cid"
	"github.com/ipld/go-car"
	carutil "github.com/ipld/go-car/util"
)

// buildCar assembles a CAR archive from raw blocks, the way commits carry
// their records on the wire.
func buildCar(t *testing.T, root cid.Cid, blocks map[cid.Cid][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := car.WriteHeader(&car.CarHeader{Roots: []cid.Cid{root}, Version: 1}, &buf); err != nil {
		t.Fatalf("write car header: %v", err)
	}
	for c, data := range blocks {
		if err := carutil.LdWrite(&buf, c.Bytes(), data); err != nil {
			t.Fatalf("write car block: %v", err)
		}
	}
	return buf.Bytes()
}

func postCommit(t *testing.T, langs []string, text string, embed *appbsky.FeedPost_Embed) *comatproto.SyncSubscribeRepos_Commit {
	t.Helper()
	rec := &appbsky.FeedPost{
		Text:      text,
		CreatedAt: "2026-08-02T10:00:00Z",
		Langs:     langs,
		Embed:     embed,
	}
	c, raw := encodeRecord(t, rec)
	link := lexutil.LexLink(c)

	return &comatproto.SyncSubscribeRepos_Commit{
		Repo:   "did:plc:author",
		Blocks: buildCar(t, c, map[cid.Cid][]byte{c: raw}),
		Ops: []*comatproto.SyncSubscribeRepos_RepoOp{{
			Action: "create",
			Path:   "app.bsky.feed.post/3kabc",
			Cid:    &link,
		}},
	}
}

func imagesEmbed() *appbsky.FeedPost_Embed {
	return &appbsky.FeedPost_Embed{
		EmbedImages: &appbsky.EmbedImages{
			Images: []*appbsky.EmbedImages_Image{{Alt: ""}},
		},
	}
}

func TestDecodeCommit_RoundTrip(t *testing.T) {
	commit := postCommit(t, []string{"en"}, "hi", imagesEmbed())

	ops, err := DecodeCommit(commit)
	if err != nil {
		t.Fatalf("DecodeCommit: %v", err)
	}
	if len(ops.Posts.Created) != 1 {
		t.Fatalf("expected 1 created post, got %d", len(ops.Posts.Created))
	}
	rec, ok := ops.Posts.Created[0].Record.(*appbsky.FeedPost)
	if !ok {
		t.Fatalf("record type %T", ops.Posts.Created[0].Record)
	}
	if rec.Text != "hi" || len(rec.Langs) != 1 || rec.Langs[0] != "en" {
		t.Errorf("record did not round-trip: %+v", rec)
	}
}

func TestHandler_AdmitsEnglishPostWithImages(t *testing.T) {
	queue := NewQueue(4)
	h := NewHandler(queue)

	h.OnCommit(context.Background(), postCommit(t, []string{"en"}, "hi", imagesEmbed()))

	if queue.Len() != 1 {
		t.Fatalf("queue depth = %d, want 1", queue.Len())
	}
	env, _ := queue.Get(context.Background())
	if env.URI != "at://did:plc:author/app.bsky.feed.post/3kabc" {
		t.Errorf("unexpected uri %q", env.URI)
	}
	if env.Record.Text != "hi" {
		t.Errorf("unexpected text %q", env.Record.Text)
	}
}

func TestHandler_RejectsNonEnglishPost(t *testing.T) {
	queue := NewQueue(4)
	h := NewHandler(queue)

	h.OnCommit(context.Background(), postCommit(t, []string{"ja"}, "hi", imagesEmbed()))

	if queue.Len() != 0 {
		t.Fatalf("queue depth = %d, want 0", queue.Len())
	}
}

func TestHandler_IgnoresCorruptCommit(t *testing.T) {
	queue := NewQueue(4)
	h := NewHandler(queue)

	h.OnCommit(context.Background(), &comatproto.SyncSubscribeRepos_Commit{
		Repo:   "did:plc:author",
		Blocks: []byte("garbage"),
	})

	if queue.Len() != 0 {
		t.Fatalf("queue depth = %d, want 0", queue.Len())
	}
}
