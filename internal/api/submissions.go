package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// listSubmissions returns the stored submission roster
func (s *Server) listSubmissions(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		respondError(w, http.StatusServiceUnavailable, "database not available")
		return
	}

	subs, err := s.store.ListSubmissions(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to list submissions")
		respondError(w, http.StatusInternalServerError, "failed to list submissions")
		return
	}

	respondJSON(w, http.StatusOK, subs)
}

// getSubmission returns one submission row by user name
func (s *Server) getSubmission(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		respondError(w, http.StatusServiceUnavailable, "database not available")
		return
	}

	userName := chi.URLParam(r, "userName")
	if userName == "" {
		respondError(w, http.StatusBadRequest, "user name is required")
		return
	}

	sub, err := s.store.GetSubmissionByName(r.Context(), userName)
	if err != nil {
		log.Error().Err(err).Str("user", userName).Msg("failed to get submission")
		respondError(w, http.StatusInternalServerError, "failed to get submission")
		return
	}
	if sub == nil {
		respondError(w, http.StatusNotFound, "submission not found")
		return
	}

	respondJSON(w, http.StatusOK, sub)
}
