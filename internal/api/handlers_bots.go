package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mattjoyce/careerloop/internal/bot"
)

// CreateBotRequest is the JSON body for POST /v1/bots.
type CreateBotRequest struct {
	Handle  string  `json:"handle"`
	Name    string  `json:"name"`
	Persona *string `json:"persona,omitempty"`
}

// UpdateBotRequest is the JSON body for PATCH /v1/bots/{bot_id}.
// Nil fields are left unchanged.
type UpdateBotRequest struct {
	Name    *string `json:"name,omitempty"`
	Persona *string `json:"persona,omitempty"`
	Enabled *bool   `json:"enabled,omitempty"`
}

// SubmitJobRequest is the JSON body for POST /v1/bots/{bot_id}/jobs.
type SubmitJobRequest struct {
	Goal    string          `json:"goal"`
	Context json.RawMessage `json:"context,omitempty"`
}

// handleCreateBot handles POST /v1/bots.
func (s *Server) handleCreateBot(w http.ResponseWriter, r *http.Request) {
	var req CreateBotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Handle) == "" || strings.TrimSpace(req.Name) == "" {
		s.writeError(w, http.StatusBadRequest, "handle and name are required")
		return
	}

	b, existing, err := s.bots.Create(r.Context(), req.Handle, req.Name, req.Persona)
	if err != nil {
		s.logger.Error("failed to create bot", "handle", req.Handle, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to create bot")
		return
	}

	status := http.StatusCreated
	if existing {
		status = http.StatusOK
	}
	respondJSON(w, status, b)
}

// handleListBots handles GET /v1/bots.
func (s *Server) handleListBots(w http.ResponseWriter, r *http.Request) {
	bots, err := s.bots.List(r.Context())
	if err != nil {
		s.logger.Error("failed to list bots", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list bots")
		return
	}
	respondJSON(w, http.StatusOK, bots)
}

// handleGetBot handles GET /v1/bots/{bot_id}.
func (s *Server) handleGetBot(w http.ResponseWriter, r *http.Request) {
	b, err := s.bots.GetByID(r.Context(), chi.URLParam(r, "bot_id"))
	if err != nil {
		s.writeError(w, http.StatusNotFound, "bot not found")
		return
	}
	respondJSON(w, http.StatusOK, b)
}

// handleUpdateBot handles PATCH /v1/bots/{bot_id}.
func (s *Server) handleUpdateBot(w http.ResponseWriter, r *http.Request) {
	botID := chi.URLParam(r, "bot_id")

	var req UpdateBotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := s.bots.Update(r.Context(), botID, req.Name, req.Persona, req.Enabled); err != nil {
		s.writeError(w, http.StatusNotFound, "bot not found")
		return
	}

	b, err := s.bots.GetByID(r.Context(), botID)
	if err != nil {
		s.writeError(w, http.StatusNotFound, "bot not found")
		return
	}
	respondJSON(w, http.StatusOK, b)
}

// handleSubmitJob handles POST /v1/bots/{bot_id}/jobs.
func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	botID := chi.URLParam(r, "bot_id")

	var req SubmitJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Goal) == "" {
		s.writeError(w, http.StatusBadRequest, "goal is required")
		return
	}

	job, err := s.submitter.Submit(r.Context(), botID, req.Goal, req.Context)
	if err != nil {
		switch {
		case errors.Is(err, bot.ErrBotDisabled):
			s.writeError(w, http.StatusConflict, "bot is disabled")
		case errors.Is(err, bot.ErrQueueFull):
			s.writeError(w, http.StatusServiceUnavailable, "job queue is full")
		default:
			s.logger.Error("failed to submit job", "bot_id", botID, "error", err)
			s.writeError(w, http.StatusInternalServerError, "failed to submit job")
		}
		return
	}

	respondJSON(w, http.StatusAccepted, job)
}

// handleListBotJobs handles GET /v1/bots/{bot_id}/jobs.
func (s *Server) handleListBotJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.jobs.ListByBot(r.Context(), chi.URLParam(r, "bot_id"))
	if err != nil {
		s.logger.Error("failed to list jobs", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}
	respondJSON(w, http.StatusOK, jobs)
}

// handleGetJob handles GET /v1/jobs/{job_id}.
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobs.GetByID(r.Context(), chi.URLParam(r, "job_id"))
	if err != nil {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	respondJSON(w, http.StatusOK, job)
}

// handleTimeline handles GET /v1/timeline. Accepts optional bot_id and limit
// query parameters.
func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	var err error
	if botID := r.URL.Query().Get("bot_id"); botID != "" {
		activities, listErr := s.activities.ListByBot(r.Context(), botID, limit)
		if listErr == nil {
			respondJSON(w, http.StatusOK, activities)
			return
		}
		err = listErr
	} else {
		activities, listErr := s.activities.ListRecent(r.Context(), limit)
		if listErr == nil {
			respondJSON(w, http.StatusOK, activities)
			return
		}
		err = listErr
	}

	s.logger.Error("failed to list timeline", "error", err)
	s.writeError(w, http.StatusInternalServerError, "failed to list timeline")
}
