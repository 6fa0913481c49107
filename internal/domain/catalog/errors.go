package catalog

import "errors"

var (
	// ErrNoImages means the post thread resolved but carried no images.
	ErrNoImages = errors.New("post thread has no images")
	// ErrImageFetch means at least one image download failed.
	ErrImageFetch = errors.New("image fetch failed")
	// ErrClassifier means the classifier signalled rejection.
	ErrClassifier = errors.New("classifier rejected images")
)
