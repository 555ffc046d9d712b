package coach

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/mattjoyce/careerloop/internal/stream"
)

// Request is the logical chat request sent to the coach engine. The same body
// goes to the streaming endpoint and, on fallback, to the completion endpoint.
type Request struct {
	ConversationID string          `json:"conversation_id,omitempty"`
	SessionID      string          `json:"session_id,omitempty"`
	Message        string          `json:"message"`
	Context        json.RawMessage `json:"context,omitempty"`
}

// Client talks to the coach engine over HTTP.
type Client struct {
	baseURL      string
	streamPath   string
	completePath string
	token        string
	streamClient *http.Client
	httpClient   *http.Client
	logger       *slog.Logger
}

// NewClient creates a coach engine client. The stream client carries no
// timeout; event streams are long-lived.
func NewClient(baseURL, streamPath, completePath, token string, logger *slog.Logger) *Client {
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		streamPath:   streamPath,
		completePath: completePath,
		token:        token,
		streamClient: &http.Client{},
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logger,
	}
}

// Stream POSTs the request to the streaming endpoint and returns the raw
// event stream. Any establishment failure — unreachable host, non-success
// status, or a response that is not an event stream — returns an error so the
// caller can fall back to the completion transport.
func (c *Client) Stream(ctx context.Context, req Request) (io.ReadCloser, error) {
	httpReq, err := c.newRequest(ctx, c.streamPath, req)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.streamClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("connect stream: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("stream request failed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	kind, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if kind != "text/event-stream" {
		resp.Body.Close()
		return nil, fmt.Errorf("stream request failed: unexpected content type %q", resp.Header.Get("Content-Type"))
	}

	return resp.Body, nil
}

// Complete replays the request over the plain request/response endpoint and
// returns the single response-equivalent result.
func (c *Client) Complete(ctx context.Context, req Request) (*stream.Response, error) {
	httpReq, err := c.newRequest(ctx, c.completePath, req)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("complete request: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("complete request: status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var result stream.Response
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("parse complete response: %w", err)
	}
	return &result, nil
}

func (c *Client) newRequest(ctx context.Context, path string, req Request) (*http.Request, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}
	return httpReq, nil
}
