package catalog

import (
	"context"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/skyfilter/skyfilter/internal/pkg/bsky"
)

const (
	// dropThreshold is the max-score boundary below which a post counts
	// as all-negative for the drop filter.
	dropThreshold = 0.3
	// dropProbability is the chance an all-negative post is discarded.
	dropProbability = 0.5
)

// ThreadFetcher resolves a post's image refs from its thread.
type ThreadFetcher interface {
	PostThreadImages(ctx context.Context, uri string) ([]bsky.ImageRef, error)
}

// Pipeline drives one post from UNCATALOGUED to a terminal status:
// fetch thread, fetch images, classify, drop-filter.
type Pipeline struct {
	threads    ThreadFetcher
	fetcher    *Fetcher
	classifier *Classifier
	rng        Rand
}

// NewPipeline creates a post pipeline.
func NewPipeline(threads ThreadFetcher, fetcher *Fetcher, classifier *Classifier, rng Rand) *Pipeline {
	return &Pipeline{
		threads:    threads,
		fetcher:    fetcher,
		classifier: classifier,
		rng:        rng,
	}
}

// Run drives one post to its terminal status. It never returns an error:
// every failure maps to a terminal status, and no image files remain on disk
// for any non-COMPLETE outcome.
func (p *Pipeline) Run(ctx context.Context, post Post) Result {
	refs, err := p.threads.PostThreadImages(ctx, post.URI)
	if err != nil {
		log.Error().Err(err).Int64("post_id", post.ID).Str("uri", post.URI).Msg("Post thread fetch failed")
		return Result{PostID: post.ID, Status: StatusFetchPostError}
	}
	if len(refs) == 0 {
		return Result{PostID: post.ID, Status: StatusFetchPostError}
	}

	images, cleanup, err := p.fetcher.FetchAll(ctx, refs)
	if err != nil {
		log.Error().Err(err).Int64("post_id", post.ID).Msg("Image fetch failed")
		removeFiles(cleanup)
		return Result{PostID: post.ID, Status: StatusFetchImageError}
	}

	scored, err := p.classifier.Classify(ctx, images)
	if err != nil {
		log.Error().Err(err).Int64("post_id", post.ID).Msg("Classification failed")
		removeFiles(imagePaths(images))
		return Result{PostID: post.ID, Status: StatusClassifyImageError}
	}

	if p.dropNegative(scored) {
		log.Debug().Int64("post_id", post.ID).Msg("All-negative post dropped")
		removeFiles(imagePaths(scored))
		return Result{PostID: post.ID, Status: StatusDropped}
	}

	return Result{PostID: post.ID, Status: StatusComplete, Images: scored}
}

// dropNegative discards roughly half of the all-negative posts to rebalance
// the stored corpus toward positives.
func (p *Pipeline) dropNegative(images []Image) bool {
	maxScore := 0.0
	for _, img := range images {
		if img.Score > maxScore {
			maxScore = img.Score
		}
	}
	return maxScore < dropThreshold && p.rng.Float64() < dropProbability
}

func imagePaths(images []Image) []string {
	paths := make([]string, 0, len(images))
	for _, img := range images {
		paths = append(paths, img.Path)
	}
	return paths
}

func removeFiles(paths []string) {
	for _, path := range paths {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Error().Err(err).Str("path", path).Msg("Failed to remove image file")
		}
	}
}
