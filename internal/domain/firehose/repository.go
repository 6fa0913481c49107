package firehose

import (
	"context"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// PostStore persists admitted posts.
type PostStore interface {
	InsertPost(ctx context.Context, uri, text string, createdAt time.Time) error
}

type postStore struct {
	db *sqlx.DB
}

// NewPostStore creates a post store over the given database.
func NewPostStore(db *sqlx.DB) PostStore {
	return &postStore{db: db}
}

func (s *postStore) InsertPost(ctx context.Context, uri, text string, createdAt time.Time) error {
	query := `
		INSERT INTO posts (post_uri, post_text, post_created_at)
		VALUES ($1, $2, $3)
	`
	_, err := s.db.ExecContext(ctx, query, uri, text, createdAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicatePost
		}
		return err
	}
	return nil
}
