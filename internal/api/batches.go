package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mutbatch/mutbatch/internal/config"
	"github.com/mutbatch/mutbatch/internal/db"
	"github.com/mutbatch/mutbatch/internal/jobs"
	"github.com/mutbatch/mutbatch/internal/tasks"
)

// EnqueueBatchRequest is the request body for starting a distributed batch
type EnqueueBatchRequest struct {
	Engine      string       `json:"engine"`
	Subset      string       `json:"subset"`
	Steps       bool         `json:"steps,omitempty"`
	Workdir     string       `json:"workdir,omitempty"`
	SkipPackage bool         `json:"skip_package,omitempty"`
	Metadata    string       `json:"metadata,omitempty"`
	Exclude     []string     `json:"exclude,omitempty"`
	Tasks       []tasks.Task `json:"tasks"`
}

// batchConfig converts the request into the config workers merge over
// their defaults. The stored batch row carries this form, not the raw
// request, so field names line up with config.BatchConfig on decode.
func (req *EnqueueBatchRequest) batchConfig() *config.BatchConfig {
	return &config.BatchConfig{
		Engine: req.Engine,
		Operators: config.OperatorConfig{
			Subset: req.Subset,
			Steps:  req.Steps,
		},
		Exclude:  req.Exclude,
		Metadata: req.Metadata,
	}
}

// BatchDetailResponse is a batch row with its aggregate stats attached
type BatchDetailResponse struct {
	Batch *db.Batch      `json:"batch"`
	Stats *db.BatchStats `json:"stats,omitempty"`
}

// enqueueBatch creates a batch row and one clone job per task
func (s *Server) enqueueBatch(w http.ResponseWriter, r *http.Request) {
	if s.store == nil || s.pipeline == nil {
		respondError(w, http.StatusServiceUnavailable, "job system not available")
		return
	}

	var req EnqueueBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if len(req.Tasks) == 0 {
		respondError(w, http.StatusBadRequest, "tasks is required")
		return
	}
	switch req.Engine {
	case "", "pit":
		req.Engine = "pit"
	case "mujava":
	default:
		respondError(w, http.StatusBadRequest, "invalid engine")
		return
	}
	if req.Subset == "" {
		req.Subset = "deletion"
	}
	if req.Workdir == "" {
		req.Workdir = s.cfg.Workdir
	}

	cfgRaw, err := json.Marshal(req.batchConfig())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to encode batch config")
		return
	}
	batch := &db.Batch{
		Engine:        req.Engine,
		Subset:        req.Subset,
		Config:        cfgRaw,
		TotalProjects: len(req.Tasks),
	}
	if err := s.store.CreateBatch(r.Context(), batch); err != nil {
		log.Error().Err(err).Msg("failed to create batch")
		respondError(w, http.StatusInternalServerError, "failed to create batch")
		return
	}

	opts := jobs.BatchOptions{
		Engine:      req.Engine,
		Subset:      req.Subset,
		Steps:       req.Steps,
		Workdir:     req.Workdir,
		SkipPackage: req.SkipPackage || req.Engine == "mujava",
	}
	if _, err := s.pipeline.EnqueueBatch(r.Context(), batch.ID, req.Tasks, opts); err != nil {
		log.Error().Err(err).Str("batch_id", batch.ID.String()).Msg("failed to enqueue batch")
		respondError(w, http.StatusInternalServerError, "failed to enqueue batch")
		return
	}

	if err := s.store.UpdateBatchStatus(r.Context(), batch.ID, "running"); err != nil {
		log.Warn().Err(err).Msg("failed to mark batch running")
	}

	respondJSON(w, http.StatusCreated, batch)
}

// listBatches lists batches, most recent first
func (s *Server) listBatches(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		respondError(w, http.StatusServiceUnavailable, "database not available")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}

	batches, err := s.store.ListBatches(r.Context(), limit, offset)
	if err != nil {
		log.Error().Err(err).Msg("failed to list batches")
		respondError(w, http.StatusInternalServerError, "failed to list batches")
		return
	}

	respondJSON(w, http.StatusOK, batches)
}

// getBatch returns one batch with its aggregate stats
func (s *Server) getBatch(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		respondError(w, http.StatusServiceUnavailable, "database not available")
		return
	}

	batchID, err := uuid.Parse(chi.URLParam(r, "batchID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid batch ID")
		return
	}

	batch, err := s.store.GetBatch(r.Context(), batchID)
	if err != nil {
		log.Error().Err(err).Msg("failed to get batch")
		respondError(w, http.StatusInternalServerError, "failed to get batch")
		return
	}
	if batch == nil {
		respondError(w, http.StatusNotFound, "batch not found")
		return
	}

	resp := BatchDetailResponse{Batch: batch}
	if stats, err := s.store.GetBatchStats(r.Context(), batchID); err == nil {
		resp.Stats = stats
	} else {
		log.Warn().Err(err).Msg("failed to get batch stats")
	}

	respondJSON(w, http.StatusOK, resp)
}

// listBatchResults returns the per-project rows of one batch
func (s *Server) listBatchResults(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		respondError(w, http.StatusServiceUnavailable, "database not available")
		return
	}

	batchID, err := uuid.Parse(chi.URLParam(r, "batchID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid batch ID")
		return
	}

	results, err := s.store.ListResultsByBatch(r.Context(), batchID)
	if err != nil {
		log.Error().Err(err).Msg("failed to list results")
		respondError(w, http.StatusInternalServerError, "failed to list results")
		return
	}

	respondJSON(w, http.StatusOK, results)
}

// listResultMutants returns the stored mutant rows of one project result
func (s *Server) listResultMutants(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		respondError(w, http.StatusServiceUnavailable, "database not available")
		return
	}

	resultID, err := uuid.Parse(chi.URLParam(r, "resultID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid result ID")
		return
	}

	mutants, err := s.store.ListMutantsByResult(r.Context(), resultID)
	if err != nil {
		log.Error().Err(err).Msg("failed to list mutants")
		respondError(w, http.StatusInternalServerError, "failed to list mutants")
		return
	}

	respondJSON(w, http.StatusOK, mutants)
}

// deleteBatch removes a batch and everything hanging off it
func (s *Server) deleteBatch(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		respondError(w, http.StatusServiceUnavailable, "database not available")
		return
	}

	batchID, err := uuid.Parse(chi.URLParam(r, "batchID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid batch ID")
		return
	}

	if err := s.store.DeleteBatch(r.Context(), batchID); err != nil {
		log.Error().Err(err).Str("batch_id", batchID.String()).Msg("failed to delete batch")
		respondError(w, http.StatusNotFound, "batch not found")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
