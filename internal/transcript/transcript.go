package transcript

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mattjoyce/careerloop/internal/stream"
)

// Transcript owns the mutable entry list for one conversation. All writes go
// through the transition methods below; readers get detached copies. At most
// one assistant entry is in progress at any time.
type Transcript struct {
	mu          sync.Mutex
	entries     []*Entry
	sessionID   string
	mainContext bool
}

// New creates an empty transcript. mainContext marks the primary conversation
// surface, the only place a session id may be captured from a response event.
func New(mainContext bool) *Transcript {
	return &Transcript{mainContext: mainContext}
}

// Begin records a submitted user message and appends the in-progress
// assistant placeholder that snapshots will be applied to.
func (t *Transcript) Begin(userText string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	// A dangling in-progress entry from an interrupted stream would violate
	// the single in-progress invariant; close it out first.
	if i := t.inProgressIndex(); i >= 0 {
		t.entries[i].InProgress = false
	}

	t.entries = append(t.entries, &Entry{
		ID:        uuid.New().String(),
		Role:      RoleUser,
		Content:   userText,
		CreatedAt: time.Now().UTC(),
	})
	t.appendPlaceholder()
}

// ApplySnapshot overwrites the in-progress entry's working fields from an
// accumulator snapshot. The entry stays in progress.
func (t *Transcript) ApplySnapshot(snap stream.Snapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry := t.inProgressEntry()
	applySnapshotFields(entry, snap)
}

// ApplyTrigger handles a server-initiated sub-turn boundary: the current
// entry is finalized with everything accumulated so far, a formatted notice
// is spliced in, and a fresh placeholder continues the remaining stream.
func (t *Transcript) ApplyTrigger(snap stream.Snapshot, trig *stream.Trigger) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry := t.inProgressEntry()
	applySnapshotFields(entry, snap)
	entry.InProgress = false

	t.entries = append(t.entries, &Entry{
		ID:        uuid.New().String(),
		Role:      RoleAssistant,
		Content:   fmt.Sprintf("**%s**: %s", trig.Title, trig.Message),
		CreatedAt: time.Now().UTC(),
	})
	t.appendPlaceholder()
}

// SetApproval attaches a pending approval request to the in-progress entry.
func (t *Transcript) SetApproval(ap *stream.Approval) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cp := *ap
	t.inProgressEntry().PendingApproval = &cp
}

// ClearApproval removes a pending approval once an out-of-band decision has
// been recorded. It reports whether a matching approval was found.
func (t *Transcript) ClearApproval(approvalID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, entry := range t.entries {
		if entry.PendingApproval != nil && entry.PendingApproval.ID == approvalID {
			entry.PendingApproval = nil
			return true
		}
	}
	return false
}

// FinalizeResponse closes the in-progress entry from a terminal response
// event. localText is the re-cleaned full accumulated text; the longer of it
// and the server-supplied response wins, preferring the local text when it is
// not shorter. Cards collected during streaming take precedence over any in
// the terminal payload.
func (t *Transcript) FinalizeResponse(localText string, streamCards []json.RawMessage, snap stream.Snapshot, resp *stream.Response) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry := t.inProgressEntry()
	applySnapshotFields(entry, snap)

	content := resp.Response
	if len(localText) >= len(resp.Response) {
		content = localText
	}
	entry.Content = content

	cards := streamCards
	if len(cards) == 0 {
		cards = resp.SectionCards
	}
	entry.SideCards = cards
	entry.Actions = resp.Actions
	entry.SectionsGenerated = resp.SectionsGenerated
	entry.InProgress = false

	if t.mainContext && resp.SessionID != "" {
		t.sessionID = resp.SessionID
	}
}

// FinalizeError replaces the in-progress placeholder with a finalized error
// notice. Partial content from before the error is not retained.
func (t *Transcript) FinalizeError(message string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if i := t.inProgressIndex(); i >= 0 {
		t.entries = append(t.entries[:i], t.entries[i+1:]...)
	}
	t.entries = append(t.entries, &Entry{
		ID:        uuid.New().String(),
		Role:      RoleAssistant,
		Content:   "Error: " + message,
		CreatedAt: time.Now().UTC(),
	})
}

// Entries returns a detached copy of the transcript. Callers must treat the
// contained slices as read-only.
func (t *Transcript) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Entry, len(t.entries))
	for i, entry := range t.entries {
		out[i] = *entry
	}
	return out
}

// SessionID returns the correlation id captured from the coach engine, or ""
// when none has been seen (or this is not the main conversation context).
func (t *Transcript) SessionID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessionID
}

// InProgress reports whether an assistant entry is currently streaming.
func (t *Transcript) InProgress() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inProgressIndex() >= 0
}

func (t *Transcript) inProgressIndex() int {
	for i, entry := range t.entries {
		if entry.InProgress {
			return i
		}
	}
	return -1
}

// inProgressEntry returns the single in-progress entry, creating one when
// none exists (the stream continued after an early finalize-and-restart).
// Callers hold t.mu.
func (t *Transcript) inProgressEntry() *Entry {
	if i := t.inProgressIndex(); i >= 0 {
		return t.entries[i]
	}
	return t.appendPlaceholder()
}

func (t *Transcript) appendPlaceholder() *Entry {
	entry := &Entry{
		ID:         uuid.New().String(),
		Role:       RoleAssistant,
		InProgress: true,
		CreatedAt:  time.Now().UTC(),
	}
	t.entries = append(t.entries, entry)
	return entry
}

func applySnapshotFields(entry *Entry, snap stream.Snapshot) {
	entry.Content = snap.Text
	entry.ToolEvents = snap.ToolEvents
	entry.AgentEvents = snap.AgentEvents
	entry.AgentStreams = snap.AgentStreams
	entry.ActiveTools = snap.ActiveTools
	entry.CompletedTools = snap.CompletedTools
}
