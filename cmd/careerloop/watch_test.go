package main

import (
	"strings"
	"testing"
)

func TestHandleEventTranscriptUpdatesView(t *testing.T) {
	m := newWatchModel(watchConfig{ConversationID: "conv-1"})

	data := []byte(`{
		"id": "conv-1",
		"session_id": "sess-1",
		"in_progress": true,
		"entries": [
			{"role": "user", "content": "hi"},
			{"role": "assistant", "content": "Looking at your resume", "in_progress": true, "active_tools": ["resume_scan"]}
		]
	}`)

	m.handleEvent("transcript", data)

	if m.view.SessionID != "sess-1" {
		t.Fatalf("session id = %q", m.view.SessionID)
	}
	if !m.view.InProgress {
		t.Fatalf("view should be in progress")
	}
	if len(m.view.Entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(m.view.Entries))
	}
	if len(m.log) != 1 || !strings.Contains(m.log[0], "2 entries") {
		t.Fatalf("unexpected log: %v", m.log)
	}
}

func TestHandleEventHeartbeatIsQuiet(t *testing.T) {
	m := newWatchModel(watchConfig{ConversationID: "conv-1"})

	m.handleEvent("heartbeat", []byte(`{}`))

	if m.lastBeat.IsZero() {
		t.Fatalf("heartbeat should update lastBeat")
	}
	if len(m.log) != 0 {
		t.Fatalf("heartbeat should not be logged, got %v", m.log)
	}
}

func TestTranscriptPanelLines(t *testing.T) {
	m := newWatchModel(watchConfig{})
	m.view = transcriptView{
		Entries: []watchEntry{
			{Role: "user", Content: "review my resume"},
			{
				Role:        "assistant",
				Content:     "On it.\nChecking formatting.",
				InProgress:  true,
				ActiveTools: []string{"resume_scan"},
				PendingApproval: &watchApproval{
					Title: "Send follow-up email",
				},
			},
		},
	}

	lines := m.transcriptPanelLines(20, 80)
	joined := strings.Join(lines, "\n")

	if !strings.Contains(joined, "you> review my resume") {
		t.Fatalf("missing user line:\n%s", joined)
	}
	if !strings.Contains(joined, "coach> On it.") {
		t.Fatalf("missing assistant first line:\n%s", joined)
	}
	if !strings.Contains(joined, "  Checking formatting.") {
		t.Fatalf("missing continuation line:\n%s", joined)
	}
	if !strings.Contains(joined, "[tools: resume_scan]") {
		t.Fatalf("missing tool line:\n%s", joined)
	}
	if !strings.Contains(joined, "[approval pending: Send follow-up email]") {
		t.Fatalf("missing approval line:\n%s", joined)
	}
}

func TestTranscriptPanelLinesKeepsTail(t *testing.T) {
	m := newWatchModel(watchConfig{})
	m.view = transcriptView{
		Entries: []watchEntry{
			{Role: "user", Content: "one"},
			{Role: "assistant", Content: "two"},
			{Role: "user", Content: "three"},
		},
	}

	lines := m.transcriptPanelLines(2, 80)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if !strings.Contains(lines[1], "three") {
		t.Fatalf("expected newest line last, got %v", lines)
	}
}
