package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mutbatch/mutbatch/internal/config"
	"github.com/mutbatch/mutbatch/internal/db"
	"github.com/mutbatch/mutbatch/internal/queue"
	"github.com/mutbatch/mutbatch/internal/worker"
)

func main() {
	// Setup logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if os.Getenv("ENV") != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Determine worker type from env
	workerType := os.Getenv("WORKER_TYPE")
	if workerType == "" {
		workerType = "all" // Run all worker types
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to database (optional)
	var sqlDB *sql.DB
	var store *db.Store
	if cfg.DatabaseURL != "" {
		sqlDB, err = sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to database, workers will run in limited mode")
		} else if err := sqlDB.Ping(); err != nil {
			log.Warn().Err(err).Msg("database ping failed, workers will run in limited mode")
			sqlDB.Close()
			sqlDB = nil
		} else {
			log.Info().Msg("connected to database")
			defer sqlDB.Close()
		}

		// Result rows go through the pgx store
		if database, err := db.New(ctx, cfg.DatabaseURL); err == nil {
			store = db.NewStore(database)
			defer database.Close()
		}
	}

	// Connect to NATS (optional)
	var queueClient *queue.Client
	if cfg.NATSURL != "" {
		queueClient, err = queue.NewClient(cfg.NATSURL)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to NATS, workers will poll database")
		} else {
			log.Info().Str("url", cfg.NATSURL).Msg("connected to NATS")
			if err := queueClient.SetupStreams(ctx); err != nil {
				log.Warn().Err(err).Msg("failed to set up streams")
			}
			defer queueClient.Close()
		}
	}

	// Create worker pool
	poolCfg := worker.PoolConfig{
		Config:     cfg,
		WorkerType: workerType,
		DB:         sqlDB,
		Queue:      queueClient,
		Store:      store,
	}

	pool, err := worker.NewPool(poolCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create worker pool")
	}

	// Setup graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Info().Msg("worker pool is shutting down...")
		cancel()
	}()

	log.Info().Str("type", workerType).Msg("starting worker pool")
	if err := pool.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("worker pool error")
	}

	log.Info().Msg("worker pool stopped")
}
