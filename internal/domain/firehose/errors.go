package firehose

import "errors"

var (
	// ErrDuplicatePost marks an insert rejected by the post_uri unique
	// constraint.
	ErrDuplicatePost = errors.New("post already recorded")
)
