package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mattjoyce/careerloop/internal/coach"
	"github.com/mattjoyce/careerloop/internal/store"
)

// JobSubmitter creates and enqueues bot jobs.
type JobSubmitter interface {
	Submit(ctx context.Context, botID, goal string, jobCtx json.RawMessage) (*store.Job, error)
}

// Config holds API server configuration.
type Config struct {
	Listen                  string
	Token                   string
	StreamPollInterval      time.Duration
	StreamHeartbeatInterval time.Duration
}

// Server represents the HTTP API server.
type Server struct {
	config     Config
	manager    *coach.Manager
	bots       *store.BotStore
	jobs       *store.JobStore
	activities *store.ActivityStore
	submitter  JobSubmitter
	logger     *slog.Logger
	server     *http.Server
	startedAt  time.Time
}

// New creates a new API server instance.
func New(config Config, manager *coach.Manager, bots *store.BotStore, jobs *store.JobStore, activities *store.ActivityStore, submitter JobSubmitter, logger *slog.Logger) *Server {
	return &Server{
		config:     config,
		manager:    manager,
		bots:       bots,
		jobs:       jobs,
		activities: activities,
		submitter:  submitter,
		logger:     logger,
		startedAt:  time.Now(),
	}
}

// Start starts the HTTP server (blocking).
func (s *Server) Start(ctx context.Context) error {
	router := s.setupRoutes()

	s.server = &http.Server{
		Addr:         s.config.Listen,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // SSE endpoints are long-lived streams.
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("API server starting", "listen", s.config.Listen)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("API server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

// setupRoutes configures the HTTP router.
func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	// Unauthenticated
	r.Get("/healthz", s.handleHealthz)

	// Protected
	r.Group(func(r chi.Router) {
		r.Use(s.bearerAuth)
		r.Post("/v1/conversations", s.handleCreateConversation)
		r.Get("/v1/conversations/{conversation_id}", s.handleGetConversation)
		r.Post("/v1/conversations/{conversation_id}/messages", s.handlePostMessage)
		r.Get("/v1/conversations/{conversation_id}/events", s.handleConversationEvents)
		r.Patch("/v1/approvals/{approval_id}", s.handleResolveApproval)
		r.Post("/v1/bots", s.handleCreateBot)
		r.Get("/v1/bots", s.handleListBots)
		r.Get("/v1/bots/{bot_id}", s.handleGetBot)
		r.Patch("/v1/bots/{bot_id}", s.handleUpdateBot)
		r.Post("/v1/bots/{bot_id}/jobs", s.handleSubmitJob)
		r.Get("/v1/bots/{bot_id}/jobs", s.handleListBotJobs)
		r.Get("/v1/jobs/{job_id}", s.handleGetJob)
		r.Get("/v1/timeline", s.handleTimeline)
	})

	return r
}

// loggingMiddleware logs HTTP requests.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
