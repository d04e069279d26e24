package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mutbatch/mutbatch/internal/api"
	"github.com/mutbatch/mutbatch/internal/config"
	"github.com/mutbatch/mutbatch/internal/db"
	"github.com/mutbatch/mutbatch/internal/jobs"
	"github.com/mutbatch/mutbatch/internal/queue"
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

	ctx := context.Background()

	// Connect to Postgres (optional, the API degrades to health-only)
	var store *db.Store
	var jobRepo api.JobRepository
	var pipeline *jobs.Pipeline
	if cfg.DatabaseURL != "" {
		database, err := db.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Warn().Err(err).Msg("database unavailable, running without batch storage")
		} else {
			store = db.NewStore(database)
			defer database.Close()
		}

		// The job repository runs on database/sql; same database, second pool
		sqlDB, err := sql.Open("postgres", cfg.DatabaseURL)
		if err == nil {
			if err := sqlDB.Ping(); err != nil {
				sqlDB.Close()
			} else {
				repo := jobs.NewRepository(sqlDB)
				jobRepo = repo

				// NATS is optional too; workers fall back to polling
				var qc *queue.Client
				if cfg.NATSURL != "" {
					qc, err = queue.NewClient(cfg.NATSURL)
					if err != nil {
						log.Warn().Err(err).Msg("queue unavailable, jobs will be claimed by polling")
						qc = nil
					} else {
						defer qc.Close()
					}
				}
				pipeline = jobs.NewPipeline(repo, qc)
				defer sqlDB.Close()
			}
		}
	}

	// Create server
	srv, err := api.NewServer(cfg, store, jobRepo, pipeline)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create server")
	}

	// Start server
	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      srv.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan bool)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Info().Msg("server is shutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(ctx); err != nil {
			log.Fatal().Err(err).Msg("could not gracefully shutdown the server")
		}
		close(done)
	}()

	log.Info().Int("port", cfg.Port).Msg("starting API server")
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("could not listen on port")
	}

	<-done
	log.Info().Msg("server stopped")
}
