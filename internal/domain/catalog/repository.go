package catalog

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Repository defines catalog data access. The process service assumes it is
// the only writer for post status transitions and image rows.
type Repository interface {
	SelectBatch(ctx context.Context, limit int) ([]Post, error)
	CommitResult(ctx context.Context, res Result) error
	CountByStatus(ctx context.Context) (map[int]int64, error)
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates a catalog repository over the given database.
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) SelectBatch(ctx context.Context, limit int) ([]Post, error) {
	query := `
		SELECT post_id, post_uri
		FROM posts
		WHERE post_status_id = $1
		ORDER BY post_created_at ASC
		LIMIT $2
	`
	var posts []Post
	err := r.db.SelectContext(ctx, &posts, query, StatusUncatalogued, limit)
	return posts, err
}

// CommitResult writes one pipeline outcome in a single transaction: the
// status transition, and the image rows when the post completed.
func (r *repository) CommitResult(ctx context.Context, res Result) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`UPDATE posts SET post_status_id = $1 WHERE post_id = $2`,
		res.Status, res.PostID,
	)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}

	if res.Status == StatusComplete {
		query := `
			INSERT INTO images (image_url, image_filepath, image_alt, image_height, image_width, image_score, post_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`
		for _, img := range res.Images {
			_, err = tx.ExecContext(ctx, query,
				img.URL,
				img.Path,
				img.Alt,
				img.Height,
				img.Width,
				img.Score,
				res.PostID,
			)
			if err != nil {
				return fmt.Errorf("insert image: %w", err)
			}
		}
	}

	return tx.Commit()
}

func (r *repository) CountByStatus(ctx context.Context) (map[int]int64, error) {
	query := `
		SELECT post_status_id, COUNT(*) AS n
		FROM posts
		GROUP BY post_status_id
	`
	rows := []struct {
		StatusID int   `db:"post_status_id"`
		N        int64 `db:"n"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, err
	}

	counts := make(map[int]int64, len(rows))
	for _, row := range rows {
		counts[row.StatusID] = row.N
	}
	return counts, nil
}
