package firehose

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	comatproto "github.com/bluesky-social/indigo/api/atproto"
	appbsky "github.com/bluesky-social/indigo/api/bsky"
	lexutil "github.com/bluesky-social/indigo/lex/util"
	"github.com/ipfs/go-cid"
	"github.com/ipld/go-car"
	"github.com/rs/zerolog/log"
)

// Record collections handled by the decoder. Operations on any other
// collection are ignored.
const (
	CollectionPost   = "app.bsky.feed.post"
	CollectionRepost = "app.bsky.feed.repost"
	CollectionLike   = "app.bsky.feed.like"
	CollectionFollow = "app.bsky.graph.follow"
)

// CreatedOp is one create operation with its decoded record.
type CreatedOp struct {
	URI    string
	CID    string
	Author string
	Record lexutil.CBOR
}

// DeletedOp is one delete operation. Deletes carry no record.
type DeletedOp struct {
	URI string
}

// CollectionOps holds the operations of one collection within a commit.
type CollectionOps struct {
	Created []CreatedOp
	Deleted []DeletedOp
}

// OpsByType is the typed operation map for one commit.
type OpsByType struct {
	Posts   CollectionOps
	Reposts CollectionOps
	Likes   CollectionOps
	Follows CollectionOps
}

// DecodeCommit parses the commit's block archive and buckets its operations
// by collection. Update operations are discarded. A record whose decoded type
// disagrees with its URI collection is dropped. An unreadable archive aborts
// the whole commit; a single undecodable record drops that record only.
func DecodeCommit(commit *comatproto.SyncSubscribeRepos_Commit) (*OpsByType, error) {
	blocks, err := readBlocks(commit.Blocks)
	if err != nil {
		return nil, fmt.Errorf("read block archive: %w", err)
	}
	return bucketOps(commit, blocks), nil
}

// bucketOps classifies the commit's operations against the decoded block map.
func bucketOps(commit *comatproto.SyncSubscribeRepos_Commit, blocks map[string][]byte) *OpsByType {
	ops := &OpsByType{}
	for _, op := range commit.Ops {
		if op == nil {
			continue
		}

		uri := fmt.Sprintf("at://%s/%s", commit.Repo, op.Path)
		collection := op.Path
		if i := strings.IndexByte(collection, '/'); i >= 0 {
			collection = collection[:i]
		}

		switch op.Action {
		case "create":
			if op.Cid == nil {
				continue
			}
			cidStr := cid.Cid(*op.Cid).String()
			raw, ok := blocks[cidStr]
			if !ok {
				continue
			}

			rec, err := lexutil.CborDecodeValue(raw)
			if err != nil {
				log.Debug().Err(err).Str("uri", uri).Msg("Undecodable record dropped")
				continue
			}

			created := CreatedOp{
				URI:    uri,
				CID:    cidStr,
				Author: commit.Repo,
				Record: rec,
			}

			// Collection and record type must agree; a mismatch
			// means the record is dropped.
			switch rec.(type) {
			case *appbsky.FeedPost:
				if collection == CollectionPost {
					ops.Posts.Created = append(ops.Posts.Created, created)
				}
			case *appbsky.FeedRepost:
				if collection == CollectionRepost {
					ops.Reposts.Created = append(ops.Reposts.Created, created)
				}
			case *appbsky.FeedLike:
				if collection == CollectionLike {
					ops.Likes.Created = append(ops.Likes.Created, created)
				}
			case *appbsky.GraphFollow:
				if collection == CollectionFollow {
					ops.Follows.Created = append(ops.Follows.Created, created)
				}
			}

		case "delete":
			deleted := DeletedOp{URI: uri}
			switch collection {
			case CollectionPost:
				ops.Posts.Deleted = append(ops.Posts.Deleted, deleted)
			case CollectionRepost:
				ops.Reposts.Deleted = append(ops.Reposts.Deleted, deleted)
			case CollectionLike:
				ops.Likes.Deleted = append(ops.Likes.Deleted, deleted)
			case CollectionFollow:
				ops.Follows.Deleted = append(ops.Follows.Deleted, deleted)
			}
		}
	}

	return ops
}

// readBlocks parses a CAR archive into a content-id to record-bytes map.
func readBlocks(data []byte) (map[string][]byte, error) {
	cr, err := car.NewCarReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	blocks := make(map[string][]byte)
	for {
		blk, err := cr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		blocks[blk.Cid().String()] = blk.RawData()
	}
	return blocks, nil
}
