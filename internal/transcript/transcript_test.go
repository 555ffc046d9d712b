package transcript

import (
	"encoding/json"
	"testing"

	"github.com/mattjoyce/careerloop/internal/stream"
)

func countInProgress(entries []Entry) int {
	n := 0
	for _, e := range entries {
		if e.InProgress {
			n++
		}
	}
	return n
}

func TestBeginCreatesUserEntryAndPlaceholder(t *testing.T) {
	tr := New(true)
	tr.Begin("help me prep for interviews")

	entries := tr.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Role != RoleUser || entries[0].Content != "help me prep for interviews" {
		t.Fatalf("unexpected user entry: %+v", entries[0])
	}
	if entries[1].Role != RoleAssistant || !entries[1].InProgress || entries[1].Content != "" {
		t.Fatalf("unexpected placeholder: %+v", entries[1])
	}
}

func TestSingleInProgressInvariant(t *testing.T) {
	tr := New(true)
	tr.Begin("first")
	// Stream died without a terminal event; a second submission must not
	// leave two in-progress entries behind.
	tr.Begin("second")
	tr.ApplySnapshot(stream.Snapshot{Text: "partial"})
	tr.ApplyTrigger(stream.Snapshot{Text: "a"}, &stream.Trigger{Title: "T", Message: "M"})
	tr.ApplySnapshot(stream.Snapshot{Text: "b"})

	if got := countInProgress(tr.Entries()); got != 1 {
		t.Fatalf("in-progress entries = %d, want 1", got)
	}
}

func TestApplySnapshotOverwritesWorkingFields(t *testing.T) {
	tr := New(true)
	tr.Begin("q")

	tr.ApplySnapshot(stream.Snapshot{Text: "thinking about it", ActiveTools: []string{"job_search"}})
	tr.ApplySnapshot(stream.Snapshot{
		Text:           "here is a plan",
		CompletedTools: []string{"job_search"},
		AgentStreams:   []stream.AgentStream{{Agent: "scout", Text: "found 3 roles"}},
	})

	entries := tr.Entries()
	last := entries[len(entries)-1]
	if !last.InProgress {
		t.Fatalf("snapshot application must keep the entry in progress")
	}
	if last.Content != "here is a plan" {
		t.Fatalf("content = %q", last.Content)
	}
	if len(last.ActiveTools) != 0 || len(last.CompletedTools) != 1 {
		t.Fatalf("tool sets not overwritten: %+v", last)
	}
	if len(last.AgentStreams) != 1 || last.AgentStreams[0].Agent != "scout" {
		t.Fatalf("agent streams not applied: %+v", last.AgentStreams)
	}
}

func TestTriggerSplitsSubTurns(t *testing.T) {
	tr := New(true)
	tr.Begin("q")

	tr.ApplySnapshot(stream.Snapshot{Text: "a"})
	tr.ApplyTrigger(stream.Snapshot{Text: "a"}, &stream.Trigger{Title: "T", Message: "M", Type: "milestone"})
	tr.FinalizeResponse("b", nil, stream.Snapshot{Text: "b"}, &stream.Response{Response: "b"})

	entries := tr.Entries()
	// user + three assistant entries: finalized "a", notice, finalized "b".
	if len(entries) != 4 {
		t.Fatalf("expected 4 entries, got %d: %+v", len(entries), entries)
	}
	if entries[1].Content != "a" || entries[1].InProgress {
		t.Fatalf("first sub-turn not finalized with snapshot: %+v", entries[1])
	}
	if entries[2].Content != "**T**: M" || entries[2].InProgress {
		t.Fatalf("unexpected notice entry: %+v", entries[2])
	}
	if entries[3].Content != "b" || entries[3].InProgress {
		t.Fatalf("unexpected final entry: %+v", entries[3])
	}
}

func TestFinalizeResponseLongerContentWins(t *testing.T) {
	cases := []struct {
		name   string
		local  string
		server string
		want   string
	}{
		{"local longer", "long local answer", "short", "long local answer"},
		{"server longer", "short", "much longer server summary", "much longer server summary"},
		{"tie prefers local", "same!", "other", "same!"},
		{"empty local", "", "server text", "server text"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tr := New(true)
			tr.Begin("q")
			tr.FinalizeResponse(tc.local, nil, stream.Snapshot{Text: tc.local}, &stream.Response{Response: tc.server})

			entries := tr.Entries()
			last := entries[len(entries)-1]
			if last.Content != tc.want {
				t.Fatalf("content = %q, want %q", last.Content, tc.want)
			}
			if last.InProgress {
				t.Fatalf("finalized entry still in progress")
			}
		})
	}
}

func TestFinalizeResponsePrefersStreamedCards(t *testing.T) {
	streamed := []json.RawMessage{json.RawMessage(`{"section":"skills"}`)}
	terminal := []json.RawMessage{json.RawMessage(`{"section":"summary"}`)}

	tr := New(true)
	tr.Begin("q")
	tr.FinalizeResponse("ok", streamed, stream.Snapshot{}, &stream.Response{Response: "ok", SectionCards: terminal})

	entries := tr.Entries()
	last := entries[len(entries)-1]
	if len(last.SideCards) != 1 || string(last.SideCards[0]) != `{"section":"skills"}` {
		t.Fatalf("streamed cards should win: %v", last.SideCards)
	}

	tr2 := New(true)
	tr2.Begin("q")
	tr2.FinalizeResponse("ok", nil, stream.Snapshot{}, &stream.Response{Response: "ok", SectionCards: terminal})
	entries = tr2.Entries()
	last = entries[len(entries)-1]
	if len(last.SideCards) != 1 || string(last.SideCards[0]) != `{"section":"summary"}` {
		t.Fatalf("terminal cards should be used when none streamed: %v", last.SideCards)
	}
}

func TestSessionIDOnlyStoredInMainContext(t *testing.T) {
	tr := New(false)
	tr.Begin("q")
	tr.FinalizeResponse("ok", nil, stream.Snapshot{}, &stream.Response{Response: "ok", SessionID: "s1"})
	if tr.SessionID() != "" {
		t.Fatalf("non-main context must not capture session id, got %q", tr.SessionID())
	}

	main := New(true)
	main.Begin("q")
	main.FinalizeResponse("ok", nil, stream.Snapshot{}, &stream.Response{Response: "ok", SessionID: "s1"})
	if main.SessionID() != "s1" {
		t.Fatalf("session id = %q, want s1", main.SessionID())
	}

	// Each response may overwrite.
	main.Begin("again")
	main.FinalizeResponse("ok", nil, stream.Snapshot{}, &stream.Response{Response: "ok", SessionID: "s2"})
	if main.SessionID() != "s2" {
		t.Fatalf("session id = %q, want s2", main.SessionID())
	}
}

func TestFinalizeErrorReplacesPlaceholder(t *testing.T) {
	tr := New(true)
	tr.Begin("q")
	tr.ApplySnapshot(stream.Snapshot{Text: "partial answer"})
	tr.FinalizeError("boom")

	entries := tr.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected user + error entry, got %d", len(entries))
	}
	last := entries[1]
	if last.Content != "Error: boom" || last.InProgress {
		t.Fatalf("unexpected error entry: %+v", last)
	}
	if countInProgress(entries) != 0 {
		t.Fatalf("lingering in-progress entry after error")
	}
}

func TestApprovalAttachAndClear(t *testing.T) {
	tr := New(true)
	tr.Begin("q")
	tr.SetApproval(&stream.Approval{ID: "ap-1", Kind: "resume_edit", Title: "Review", Agent: "resume-coach"})

	entries := tr.Entries()
	last := entries[len(entries)-1]
	if last.PendingApproval == nil || last.PendingApproval.ID != "ap-1" {
		t.Fatalf("approval not attached: %+v", last.PendingApproval)
	}
	if !last.InProgress {
		t.Fatalf("approval attachment must not finalize the entry")
	}

	if !tr.ClearApproval("ap-1") {
		t.Fatalf("ClearApproval failed to find ap-1")
	}
	if tr.ClearApproval("ap-1") {
		t.Fatalf("ClearApproval found already-cleared approval")
	}
	entries = tr.Entries()
	if entries[len(entries)-1].PendingApproval != nil {
		t.Fatalf("approval not cleared")
	}
}

func TestDedupToolEventsMergesStartIntoEnd(t *testing.T) {
	events := []stream.ToolEvent{
		{Phase: stream.ToolPhaseStart, Tool: "toolA", Agent: "agentA", Input: json.RawMessage(`"i"`)},
		{Phase: stream.ToolPhaseEnd, Tool: "toolA", Agent: "agentA", Output: json.RawMessage(`"o"`)},
	}
	groups := DedupToolEvents(events)
	if len(groups) != 1 || len(groups[0].Tools) != 1 {
		t.Fatalf("expected one group with one tool, got %+v", groups)
	}
	got := groups[0].Tools[0]
	if got.Phase != stream.ToolPhaseEnd || got.Tool != "toolA" || got.Agent != "agentA" {
		t.Fatalf("unexpected merged event: %+v", got)
	}
	if string(got.Input) != `"i"` || string(got.Output) != `"o"` {
		t.Fatalf("input backfill failed: input=%s output=%s", got.Input, got.Output)
	}
}

func TestDedupToolEventsOrdering(t *testing.T) {
	events := []stream.ToolEvent{
		{Phase: stream.ToolPhaseStart, Tool: "search", Agent: "scout"},
		{Phase: stream.ToolPhaseStart, Tool: "draft"},
		{Phase: stream.ToolPhaseStart, Tool: "rank", Agent: "scout"},
		{Phase: stream.ToolPhaseEnd, Tool: "search", Agent: "scout"},
		{Phase: stream.ToolPhaseEnd, Tool: "draft"},
	}
	groups := DedupToolEvents(events)
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if groups[0].Agent != "scout" || groups[1].Agent != "" {
		t.Fatalf("group order should follow first appearance: %+v", groups)
	}
	if groups[0].Tools[0].Tool != "search" || groups[0].Tools[1].Tool != "rank" {
		t.Fatalf("in-group order should follow first appearance: %+v", groups[0].Tools)
	}
}
