package catalog

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// PipelineRunner drives one post to a terminal result.
type PipelineRunner interface {
	Run(ctx context.Context, post Post) Result
}

// SchedulerConfig holds the batch cadence knobs.
type SchedulerConfig struct {
	BatchSize     int
	BatchInterval time.Duration
	BatchPostpone time.Duration
	BatchWait     time.Duration
}

// Scheduler repeatedly selects a batch of uncatalogued posts, fans the
// pipeline out across it and commits results as they complete. Batches are
// serialized; the loop exits only after the in-flight batch is committed.
type Scheduler struct {
	repo     Repository
	pipeline PipelineRunner
	cfg      SchedulerConfig
	stop     <-chan struct{}
	wake     <-chan struct{} // optional early poll trigger, may be nil
	now      func() time.Time
}

// NewScheduler creates the batch scheduler. stop ends the loop after the
// current batch; wake may be nil.
func NewScheduler(repo Repository, pipeline PipelineRunner, cfg SchedulerConfig, stop, wake <-chan struct{}) *Scheduler {
	return &Scheduler{
		repo:     repo,
		pipeline: pipeline,
		cfg:      cfg,
		stop:     stop,
		wake:     wake,
		now:      time.Now,
	}
}

// Run loops until stop is closed or ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	nextUpdate := s.now().Add(-time.Second)

	for {
		select {
		case <-s.stop:
			log.Info().Msg("Scheduler stopped")
			return
		case <-ctx.Done():
			return
		default:
		}

		now := s.now()
		if now.Before(nextUpdate) {
			s.sleep(ctx, s.cfg.BatchPostpone)
			continue
		}
		nextUpdate = now.Add(s.cfg.BatchInterval)

		batch, err := s.repo.SelectBatch(ctx, s.cfg.BatchSize)
		if err != nil {
			log.Error().Err(err).Msg("Batch select failed")
			s.sleep(ctx, s.cfg.BatchWait)
			continue
		}
		if len(batch) == 0 {
			// Quiet period: back off rather than hot-loop against
			// the database and the API.
			s.sleep(ctx, s.cfg.BatchWait)
			continue
		}

		s.runBatch(ctx, batch)
	}
}

// runBatch fans the pipeline out across the batch and commits results in
// completion order. One post's commit failure never blocks its peers.
func (s *Scheduler) runBatch(ctx context.Context, batch []Post) {
	start := time.Now()
	results := make(chan Result, len(batch))
	for _, post := range batch {
		go func(post Post) {
			results <- s.pipeline.Run(ctx, post)
		}(post)
	}

	for range batch {
		res := <-results
		if err := s.repo.CommitResult(ctx, res); err != nil {
			log.Error().Err(err).
				Int64("post_id", res.PostID).
				Str("status", StatusName(res.Status)).
				Msg("Result commit failed")
		}
	}

	log.Info().
		Int("batch_size", len(batch)).
		Dur("took", time.Since(start)).
		Msg("Batch processed")
}

func (s *Scheduler) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-s.wake:
	case <-s.stop:
	case <-ctx.Done():
	}
}
