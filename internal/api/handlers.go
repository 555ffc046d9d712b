package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mattjoyce/careerloop/internal/coach"
	"github.com/mattjoyce/careerloop/internal/transcript"
)

// CreateConversationRequest is the JSON body for POST /v1/conversations.
type CreateConversationRequest struct {
	MainContext bool `json:"main_context"`
}

// ConversationResponse is the transcript view returned by conversation endpoints.
type ConversationResponse struct {
	ID          string             `json:"id"`
	MainContext bool               `json:"main_context"`
	SessionID   string             `json:"session_id,omitempty"`
	InProgress  bool               `json:"in_progress"`
	Entries     []transcript.Entry `json:"entries"`
	CreatedAt   time.Time          `json:"created_at"`
}

// PostMessageRequest is the JSON body for POST /v1/conversations/{id}/messages.
type PostMessageRequest struct {
	Message string          `json:"message"`
	Context json.RawMessage `json:"context,omitempty"`
}

// HealthzResponse is returned by GET /healthz.
type HealthzResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// ErrorResponse is returned on errors.
type ErrorResponse struct {
	Error string `json:"error"`
}

// handleHealthz handles GET /healthz.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, HealthzResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
	})
}

// handleCreateConversation handles POST /v1/conversations.
func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	var req CreateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	conv := s.manager.Create(req.MainContext)
	respondJSON(w, http.StatusCreated, conversationView(conv))
}

// handleGetConversation handles GET /v1/conversations/{conversation_id}.
func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	conv, ok := s.manager.Get(chi.URLParam(r, "conversation_id"))
	if !ok {
		s.writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	respondJSON(w, http.StatusOK, conversationView(conv))
}

// handlePostMessage handles POST /v1/conversations/{conversation_id}/messages.
// It blocks until the coach exchange has finished and returns the updated
// transcript.
func (s *Server) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	conv, ok := s.manager.Get(chi.URLParam(r, "conversation_id"))
	if !ok {
		s.writeError(w, http.StatusNotFound, "conversation not found")
		return
	}

	var req PostMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		s.writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	if err := s.manager.Send(r.Context(), conv, req.Message, req.Context); err != nil {
		// The transcript already carries an error notice; the exchange outcome
		// is still worth returning.
		s.logger.Warn("message send failed", "conversation_id", conv.ID, "error", err)
	}

	respondJSON(w, http.StatusOK, conversationView(conv))
}

// handleResolveApproval handles PATCH /v1/approvals/{approval_id}.
func (s *Server) handleResolveApproval(w http.ResponseWriter, r *http.Request) {
	approvalID := chi.URLParam(r, "approval_id")
	if !s.manager.ClearApproval(approvalID) {
		s.writeError(w, http.StatusNotFound, "approval not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "resolved"})
}

func conversationView(conv *coach.Conversation) ConversationResponse {
	return ConversationResponse{
		ID:          conv.ID,
		MainContext: conv.MainContext,
		SessionID:   conv.Transcript.SessionID(),
		InProgress:  conv.Transcript.InProgress(),
		Entries:     conv.Transcript.Entries(),
		CreatedAt:   conv.CreatedAt,
	}
}

func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}
