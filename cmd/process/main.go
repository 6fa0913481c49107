package main

import (
	"context"
	crand "crypto/rand"
	"encoding/binary"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/skyfilter/skyfilter/internal/api"
	"github.com/skyfilter/skyfilter/internal/config"
	"github.com/skyfilter/skyfilter/internal/domain/catalog"
	"github.com/skyfilter/skyfilter/internal/pkg/bsky"
	"github.com/skyfilter/skyfilter/internal/pkg/database"
	"github.com/skyfilter/skyfilter/internal/pkg/logger"
	"github.com/skyfilter/skyfilter/internal/pkg/shutdown"
	"github.com/skyfilter/skyfilter/internal/pkg/wake"
)

func main() {
	logFile := "logs/process.log"
	if len(os.Args) > 1 {
		logFile = os.Args[1]
	}

	cfg := config.Load()
	logger.Init(logger.Config{
		Level:       cfg.LogLevel,
		Environment: cfg.Env,
		Service:     "process",
		LogFile:     logFile,
	})

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().Str("images_dir", cfg.ImagesDir).Msg("Starting process service")

	db, err := database.NewPostgres(cfg.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	if err := database.EnsureSchema(context.Background(), db); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure schema")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := bsky.NewClient(cfg.PDSURL)
	if err := client.Login(ctx, cfg.BskyUser, cfg.BskyPass); err != nil {
		log.Fatal().Err(err).Msg("Bluesky login failed")
	}

	var wakeCh chan struct{}
	if cfg.RedisURL != "" {
		rdb, err := database.NewRedis(cfg.RedisURL)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to connect to Redis - running without wake-ups")
		} else {
			defer database.CloseRedis(rdb)
			wakeCh = make(chan struct{}, 1)
			go wake.Subscribe(ctx, rdb, wakeCh)
		}
	}

	monitor := shutdown.NewMonitor("process")

	rng := catalog.NewLockedRand(entropySeed())
	pipeline := catalog.NewPipeline(
		client,
		catalog.NewFetcher(cfg.ImagesDir),
		catalog.NewClassifier(catalog.NewRandomScorer(rng)),
		rng,
	)
	repo := catalog.NewRepository(db)

	if cfg.OpsAddr != "" {
		ops := api.NewServer(cfg.OpsAddr, repo, nil)
		go ops.Start()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			ops.Shutdown(ctx)
		}()
	}

	scheduler := catalog.NewScheduler(repo, pipeline, catalog.SchedulerConfig{
		BatchSize:     cfg.BatchSize,
		BatchInterval: cfg.BatchInterval,
		BatchPostpone: cfg.BatchPostpone,
		BatchWait:     cfg.BatchWait,
	}, monitor.Done(), wakeCh)

	scheduler.Run(ctx)

	log.Info().Msg("Process service stopped")
}

// entropySeed seeds the process-wide RNG from OS entropy.
func entropySeed() int64 {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return time.Now().UnixNano()
	}
	return int64(binary.LittleEndian.Uint64(b[:]))
}
