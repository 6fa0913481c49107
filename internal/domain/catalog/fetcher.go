package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/skyfilter/skyfilter/internal/pkg/bsky"
)

const fetchTimeout = 60 * time.Second

// Fetcher downloads a post's images into a dated directory. FetchAll returns
// the images only when every download succeeded; otherwise it reports the
// files it wrote so the caller can remove them.
type Fetcher struct {
	client    *http.Client
	imagesDir string
	now       func() time.Time
}

// NewFetcher creates a fetcher storing images under imagesDir.
func NewFetcher(imagesDir string) *Fetcher {
	return &Fetcher{
		client:    &http.Client{Timeout: fetchTimeout},
		imagesDir: imagesDir,
		now:       time.Now,
	}
}

// FetchAll downloads all images in parallel. On success it returns the
// fetched images. If any download fails it returns ErrImageFetch along with
// the paths already written, for the caller to clean up. A failure to create
// the dated directory is returned as its own wrapped error, with no paths.
func (f *Fetcher) FetchAll(ctx context.Context, refs []bsky.ImageRef) ([]Image, []string, error) {
	date := f.now().UTC().Format("2006-01-02")
	dir := filepath.Join(f.imagesDir, date)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, nil, fmt.Errorf("create image directory: %w", err)
	}

	images := make([]Image, len(refs))
	complete := make([]bool, len(refs))

	var wg sync.WaitGroup
	for i, ref := range refs {
		wg.Add(1)
		go func(i int, ref bsky.ImageRef) {
			defer wg.Done()

			path := filepath.Join(dir, DeriveFilename(ref.URL))
			if err := f.fetchOne(ctx, ref.URL, path); err != nil {
				log.Error().Err(err).Str("url", ref.URL).Msg("Image fetch failed")
				return
			}

			images[i] = Image{
				URL:    ref.URL,
				Path:   path,
				Alt:    ref.Alt,
				Height: ref.Height,
				Width:  ref.Width,
			}
			complete[i] = true
		}(i, ref)
	}
	wg.Wait()

	var written []string
	for i, ok := range complete {
		if ok {
			written = append(written, images[i].Path)
		}
	}
	for _, ok := range complete {
		if !ok {
			return nil, written, ErrImageFetch
		}
	}
	return images, nil, nil
}

func (f *Fetcher) fetchOne(ctx context.Context, url, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if _, err := io.Copy(file, resp.Body); err != nil {
		os.Remove(path) // Cleanup on error
		return err
	}
	return nil
}

// DeriveFilename maps an image URL of the form .../{name}@{suffix} to
// {name}.{suffix}. Without a format tag the base name is used unchanged.
func DeriveFilename(url string) string {
	base := url
	if i := strings.LastIndexByte(base, '/'); i >= 0 {
		base = base[i+1:]
	}
	suffix := ""
	if i := strings.LastIndexByte(url, '@'); i >= 0 {
		suffix = url[i+1:]
	}
	if i := strings.IndexByte(base, '@'); i >= 0 {
		base = base[:i]
	}
	if suffix == "" {
		return base
	}
	return base + "." + suffix
}
