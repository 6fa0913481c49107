package database

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// Post status reference values. The six-value encoding with COMPLETE=6 is
// authoritative; any historical rows written under other encodings must be
// migrated before these services run.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS post_statuses (
		post_status_id   INTEGER PRIMARY KEY,
		post_status_name TEXT NOT NULL UNIQUE
	)`,
	`INSERT INTO post_statuses (post_status_id, post_status_name) VALUES
		(1, 'UNCATALOGUED'),
		(2, 'FETCH_POST_ERROR'),
		(3, 'FETCH_IMAGE_ERROR'),
		(4, 'CLASSIFY_IMAGE_ERROR'),
		(5, 'DROPPED'),
		(6, 'COMPLETE')
	ON CONFLICT (post_status_id) DO NOTHING`,
	`CREATE TABLE IF NOT EXISTS posts (
		post_id         BIGSERIAL PRIMARY KEY,
		post_uri        TEXT NOT NULL UNIQUE,
		post_text       TEXT NOT NULL,
		post_created_at TIMESTAMPTZ NOT NULL,
		post_status_id  INTEGER NOT NULL DEFAULT 1 REFERENCES post_statuses (post_status_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_posts_status_created
		ON posts (post_status_id, post_created_at)`,
	`CREATE TABLE IF NOT EXISTS images (
		image_id       BIGSERIAL PRIMARY KEY,
		image_url      TEXT NOT NULL,
		image_filepath TEXT NOT NULL,
		image_alt      TEXT NOT NULL DEFAULT '',
		image_height   INTEGER,
		image_width    INTEGER,
		image_score    DOUBLE PRECISION NOT NULL,
		post_id        BIGINT NOT NULL REFERENCES posts (post_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_images_post_id ON images (post_id)`,
}

// EnsureSchema applies the minimal schema idempotently at startup.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
