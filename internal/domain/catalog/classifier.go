package catalog

import (
	"context"
	"fmt"
	"image/color"
	"math/rand"
	"sync"

	"github.com/disintegration/imaging"
)

const (
	inputSide = 512

	// failureSentinel marks a score that signals classifier failure rather
	// than a low-confidence negative.
	failureSentinel = 0.02

	// positiveThreshold is the per-image score at which a post counts as
	// a positive.
	positiveThreshold = 0.5
)

var (
	channelMean = [3]float32{0.485, 0.456, 0.406}
	channelStd  = [3]float32{0.229, 0.224, 0.225}
)

// Tensor is one preprocessed image: channel-first 3×512×512 float32 values.
type Tensor struct {
	Data []float32
}

// Scorer scores a batch of preprocessed images, one score in [0, 1] per
// image.
type Scorer interface {
	Score(ctx context.Context, batch []Tensor) ([]float64, error)
}

// Rand is the injected random source shared by the stub scorer and the drop
// filter, so runs are reproducible under test.
type Rand interface {
	Float64() float64
}

// LockedRand guards a rand.Rand for use from concurrent pipelines.
type LockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewLockedRand creates a LockedRand from the given seed.
func NewLockedRand(seed int64) *LockedRand {
	return &LockedRand{r: rand.New(rand.NewSource(seed))}
}

func (l *LockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

// RandomScorer stands in for the CNN predictor with uniform random scores.
type RandomScorer struct {
	rng Rand
}

// NewRandomScorer creates the stub scorer.
func NewRandomScorer(rng Rand) *RandomScorer {
	return &RandomScorer{rng: rng}
}

func (s *RandomScorer) Score(ctx context.Context, batch []Tensor) ([]float64, error) {
	scores := make([]float64, len(batch))
	for i := range scores {
		scores[i] = s.rng.Float64()
	}
	return scores, nil
}

// Classifier scores a post's fetched images through the predictor.
type Classifier struct {
	scorer Scorer
}

// NewClassifier creates a classifier over the given scorer.
func NewClassifier(scorer Scorer) *Classifier {
	return &Classifier{scorer: scorer}
}

// Classify preprocesses and scores every image. It returns ErrClassifier if
// any score trips the failure sentinel; the caller owns file cleanup.
func (c *Classifier) Classify(ctx context.Context, images []Image) ([]Image, error) {
	batch := make([]Tensor, len(images))
	for i := range images {
		t, err := preprocess(images[i].Path)
		if err != nil {
			return nil, fmt.Errorf("%w: preprocess %s: %v", ErrClassifier, images[i].Path, err)
		}
		batch[i] = t
	}

	scores, err := c.scorer.Score(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrClassifier, err)
	}
	if len(scores) != len(images) {
		return nil, fmt.Errorf("%w: got %d scores for %d images", ErrClassifier, len(scores), len(images))
	}

	for i, score := range scores {
		if score < failureSentinel {
			return nil, fmt.Errorf("%w: score %.4f below failure sentinel", ErrClassifier, score)
		}
		images[i].Score = score
	}
	return images, nil
}

// preprocess pads the image to square, resizes to 512×512 and normalizes
// each channel with the ImageNet mean and standard deviation.
func preprocess(path string) (Tensor, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return Tensor{}, err
	}

	bounds := img.Bounds()
	side := bounds.Dx()
	if bounds.Dy() > side {
		side = bounds.Dy()
	}
	padded := imaging.PasteCenter(imaging.New(side, side, color.NRGBA{A: 255}), img)
	resized := imaging.Resize(padded, inputSide, inputSide, imaging.Lanczos)

	plane := inputSide * inputSide
	data := make([]float32, 3*plane)
	for y := 0; y < inputSide; y++ {
		for x := 0; x < inputSide; x++ {
			px := resized.NRGBAAt(x, y)
			idx := y*inputSide + x
			data[idx] = (float32(px.R)/255 - channelMean[0]) / channelStd[0]
			data[plane+idx] = (float32(px.G)/255 - channelMean[1]) / channelStd[1]
			data[2*plane+idx] = (float32(px.B)/255 - channelMean[2]) / channelStd[2]
		}
	}
	return Tensor{Data: data}, nil
}
