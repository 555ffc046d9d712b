package api

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mattjoyce/careerloop/internal/coach"
)

// handleConversationEvents handles GET /v1/conversations/{conversation_id}/events.
// It re-broadcasts transcript state as SSE: a `transcript` event whenever the
// transcript changes, `heartbeat` events while it is quiet.
func (s *Server) handleConversationEvents(w http.ResponseWriter, r *http.Request) {
	conv, ok := s.manager.Get(chi.URLParam(r, "conversation_id"))
	if !ok {
		s.writeError(w, http.StatusNotFound, "conversation not found")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	pollInterval := s.config.StreamPollInterval
	if pollInterval <= 0 {
		pollInterval = 700 * time.Millisecond
	}
	heartbeatInterval := s.config.StreamHeartbeatInterval
	if heartbeatInterval <= 0 {
		heartbeatInterval = 15 * time.Second
	}

	var lastSig uint64
	lastSent := time.Time{}

	// Initial state goes out immediately so clients render without waiting
	// for the first change.
	if sig, ok := s.writeTranscriptEvent(w, conv, 0); ok {
		lastSig = sig
		lastSent = time.Now()
		flusher.Flush()
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if sig, ok := s.writeTranscriptEvent(w, conv, lastSig); ok {
				lastSig = sig
				lastSent = time.Now()
				flusher.Flush()
				continue
			}
			if time.Since(lastSent) >= heartbeatInterval {
				fmt.Fprintf(w, "event: heartbeat\ndata: {}\n\n")
				lastSent = time.Now()
				flusher.Flush()
			}
		}
	}
}

// writeTranscriptEvent emits a transcript event when the state signature
// differs from lastSig. It reports the new signature and whether an event was
// written.
func (s *Server) writeTranscriptEvent(w http.ResponseWriter, conv *coach.Conversation, lastSig uint64) (uint64, bool) {
	view := conversationView(conv)
	payload, err := json.Marshal(view)
	if err != nil {
		s.logger.Error("failed to marshal transcript view", "conversation_id", conv.ID, "error", err)
		return lastSig, false
	}

	sig := transcriptSignature(payload)
	if sig == lastSig {
		return lastSig, false
	}

	fmt.Fprintf(w, "event: transcript\ndata: %s\n\n", payload)
	return sig, true
}

// transcriptSignature hashes a serialized transcript view for cheap change
// detection between polls.
func transcriptSignature(payload []byte) uint64 {
	h := fnv.New64a()
	_, _ = h.Write(payload)
	return h.Sum64()
}
