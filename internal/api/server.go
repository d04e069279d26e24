// Package api exposes batch results and job control over HTTP. The server
// is read-mostly: workers write results through the store, the API serves
// them to the analysis side and accepts new batches.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mutbatch/mutbatch/internal/config"
	"github.com/mutbatch/mutbatch/internal/db"
	"github.com/mutbatch/mutbatch/internal/jobs"
)

// JobRepository is the slice of the job store the API reads and controls
// jobs through. Keeping it an interface lets handler tests run without
// Postgres.
type JobRepository interface {
	Create(ctx context.Context, job *jobs.Job) error
	GetByID(ctx context.Context, id uuid.UUID) (*jobs.Job, error)
	Cancel(ctx context.Context, id uuid.UUID) error
	Retry(ctx context.Context, id uuid.UUID) error
	ListRecent(ctx context.Context, limit int) ([]*jobs.Job, error)
	ListByStatus(ctx context.Context, status jobs.JobStatus, limit int) ([]*jobs.Job, error)
	ListPendingByType(ctx context.Context, jobType jobs.JobType, limit int) ([]*jobs.Job, error)
	ListByBatch(ctx context.Context, batchID uuid.UUID, limit int) ([]*jobs.Job, error)
	GetChildJobs(ctx context.Context, parentID uuid.UUID) ([]*jobs.Job, error)
}

// Server represents the API server
type Server struct {
	cfg      *config.Config
	store    *db.Store
	jobRepo  JobRepository
	pipeline *jobs.Pipeline
	router   *chi.Mux
}

// NewServer creates a new API server. store, jobRepo and pipeline may each
// be nil; the endpoints needing them report service unavailable.
func NewServer(cfg *config.Config, store *db.Store, jobRepo JobRepository, pipeline *jobs.Pipeline) (*Server, error) {
	s := &Server{
		cfg:      cfg,
		store:    store,
		jobRepo:  jobRepo,
		pipeline: pipeline,
		router:   chi.NewRouter(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s, nil
}

// Router returns the HTTP router
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(corsMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))
}

func (s *Server) setupRoutes() {
	// Health check
	s.router.Get("/health", s.healthCheck)
	s.router.Get("/ready", s.readyCheck)

	// API v1
	s.router.Route("/api/v1", func(r chi.Router) {
		// Batches
		r.Route("/batches", func(r chi.Router) {
			r.Post("/", s.enqueueBatch)
			r.Get("/", s.listBatches)
			r.Get("/{batchID}", s.getBatch)
			r.Get("/{batchID}/results", s.listBatchResults)
			r.Delete("/{batchID}", s.deleteBatch)
		})

		// Per-project results
		r.Get("/results/{resultID}/mutants", s.listResultMutants)

		// Submission roster, populated by the aggregate worker
		r.Route("/submissions", func(r chi.Router) {
			r.Get("/", s.listSubmissions)
			r.Get("/{userName}", s.getSubmission)
		})

		// Jobs
		r.Route("/jobs", func(r chi.Router) {
			r.Get("/", s.listJobs)
			r.Get("/{jobID}", s.getJob)
			r.Post("/{jobID}/cancel", s.cancelJob)
			r.Post("/{jobID}/retry", s.retryJob)
		})
	})
}

// corsMiddleware allows the analysis notebooks to query the API from a
// browser-hosted frontend.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Health check handlers
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyCheck(w http.ResponseWriter, r *http.Request) {
	if s.store != nil {
		if err := s.store.Ping(r.Context()); err != nil {
			respondError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// Response helpers

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
