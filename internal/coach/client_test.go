package coach

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestClientStreamRejectsNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "engine overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "/chat/stream", "/chat", "tok", testLogger())
	_, err := c.Stream(context.Background(), Request{Message: "hi"})
	if err == nil {
		t.Fatalf("expected error for non-success status")
	}
	if !strings.Contains(err.Error(), "503") {
		t.Fatalf("error should carry status: %v", err)
	}
}

func TestClientStreamRejectsWrongContentKind(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"response":"not a stream"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "/chat/stream", "/chat", "tok", testLogger())
	_, err := c.Stream(context.Background(), Request{Message: "hi"})
	if err == nil || !strings.Contains(err.Error(), "content type") {
		t.Fatalf("expected content-kind rejection, got %v", err)
	}
}

func TestClientStreamSendsRequestBodyAndAuth(t *testing.T) {
	var gotAuth, gotAccept string
	var gotBody Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotAccept = r.Header.Get("Accept")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte("data: {\"type\":\"response\",\"response\":\"ok\"}\n"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "/chat/stream", "/chat", "tok", testLogger())
	body, err := c.Stream(context.Background(), Request{ConversationID: "c1", Message: "hi"})
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	defer body.Close()

	if gotAuth != "Bearer tok" {
		t.Fatalf("authorization = %q", gotAuth)
	}
	if gotAccept != "text/event-stream" {
		t.Fatalf("accept = %q", gotAccept)
	}
	if gotBody.ConversationID != "c1" || gotBody.Message != "hi" {
		t.Fatalf("unexpected request body: %+v", gotBody)
	}
}

func TestClientCompleteDecodesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"response":"ok","session_id":"s1","sections_generated":["skills"]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "/chat/stream", "/chat", "", testLogger())
	resp, err := c.Complete(context.Background(), Request{Message: "hi"})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if resp.Response != "ok" || resp.SessionID != "s1" || len(resp.SectionsGenerated) != 1 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestClientCompleteErrorsOnBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "/chat/stream", "/chat", "", testLogger())
	if _, err := c.Complete(context.Background(), Request{Message: "hi"}); err == nil {
		t.Fatalf("expected error for bad status")
	}
}
