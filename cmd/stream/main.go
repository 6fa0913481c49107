package main

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/skyfilter/skyfilter/internal/api"
	"github.com/skyfilter/skyfilter/internal/config"
	"github.com/skyfilter/skyfilter/internal/domain/catalog"
	"github.com/skyfilter/skyfilter/internal/domain/firehose"
	"github.com/skyfilter/skyfilter/internal/pkg/bsky"
	"github.com/skyfilter/skyfilter/internal/pkg/database"
	"github.com/skyfilter/skyfilter/internal/pkg/logger"
	"github.com/skyfilter/skyfilter/internal/pkg/shutdown"
	"github.com/skyfilter/skyfilter/internal/pkg/wake"
)

func main() {
	logFile := "logs/stream.log"
	if len(os.Args) > 1 {
		logFile = os.Args[1]
	}

	cfg := config.Load()
	logger.Init(logger.Config{
		Level:       cfg.LogLevel,
		Environment: cfg.Env,
		Service:     "stream",
		LogFile:     logFile,
	})

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().Str("firehose", cfg.FirehoseURL).Msg("Starting stream service")

	db, err := database.NewPostgres(cfg.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	if err := database.EnsureSchema(context.Background(), db); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure schema")
	}

	var wakePub firehose.WakePublisher
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb, err = database.NewRedis(cfg.RedisURL)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to connect to Redis - running without wake-ups")
		} else {
			defer database.CloseRedis(rdb)
			wakePub = wake.NewPublisher(rdb)
		}
	}

	monitor := shutdown.NewMonitor("stream")

	queue := firehose.NewQueue(cfg.QueueSize)
	writer := firehose.NewWriter(firehose.NewPostStore(db), queue, wakePub)
	handler := firehose.NewHandler(queue)

	if cfg.OpsAddr != "" {
		ops := api.NewServer(cfg.OpsAddr, catalog.NewRepository(db), queue)
		go ops.Start()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			ops.Shutdown(ctx)
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var writerWG sync.WaitGroup
	writerWG.Add(1)
	go func() {
		defer writerWG.Done()
		writer.Run(ctx)
	}()

	fh := bsky.NewFirehose(cfg.FirehoseURL)
	fhErr := make(chan error, 1)
	go func() {
		fhErr <- fh.Run(ctx, handler.OnCommit)
	}()

	streamFailed := false
	select {
	case <-monitor.Done():
		fh.Stop()
		<-fhErr
	case err := <-fhErr:
		if err != nil {
			log.Error().Err(err).Msg("Firehose connection failed")
			streamFailed = true
		}
	}

	// The producer has stopped; drain what is already queued, then let the
	// writer exit.
	queue.Close()
	writerWG.Wait()

	if streamFailed {
		database.ClosePostgres(db)
		os.Exit(1)
	}
	log.Info().Msg("Stream service stopped")
}
