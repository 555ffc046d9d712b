package coach

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mattjoyce/careerloop/internal/stream"
	"github.com/mattjoyce/careerloop/internal/transcript"
)

// Conversation pairs an id with the transcript it owns. Sends on one
// conversation are serialized; the transcript can be read at any time.
type Conversation struct {
	ID          string
	Transcript  *transcript.Transcript
	MainContext bool
	CreatedAt   time.Time

	sendMu sync.Mutex
}

// Manager owns the conversation registry and creates one Session per
// submitted message.
type Manager struct {
	client *Client
	sched  stream.Scheduler
	logger *slog.Logger

	mu            sync.Mutex
	conversations map[string]*Conversation
}

// NewManager creates a conversation manager.
func NewManager(client *Client, sched stream.Scheduler, logger *slog.Logger) *Manager {
	return &Manager{
		client:        client,
		sched:         sched,
		logger:        logger,
		conversations: make(map[string]*Conversation),
	}
}

// Create registers a new conversation. mainContext marks the primary chat
// surface; only it captures session ids from terminal responses.
func (m *Manager) Create(mainContext bool) *Conversation {
	conv := &Conversation{
		ID:          uuid.New().String(),
		Transcript:  transcript.New(mainContext),
		MainContext: mainContext,
		CreatedAt:   time.Now().UTC(),
	}

	m.mu.Lock()
	m.conversations[conv.ID] = conv
	m.mu.Unlock()

	m.logger.Info("conversation created", "conversation_id", conv.ID, "main", mainContext)
	return conv
}

// Get returns a conversation by id.
func (m *Manager) Get(id string) (*Conversation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.conversations[id]
	return conv, ok
}

// Send submits a user message on a conversation and blocks until the
// transcript has been finalized (or the stream ended). Concurrent sends on
// the same conversation run one at a time.
func (m *Manager) Send(ctx context.Context, conv *Conversation, message string, msgContext json.RawMessage) error {
	conv.sendMu.Lock()
	defer conv.sendMu.Unlock()

	req := Request{
		ConversationID: conv.ID,
		SessionID:      conv.Transcript.SessionID(),
		Message:        message,
		Context:        msgContext,
	}

	session := NewSession(m.client, conv.Transcript, m.sched, m.logger.With("conversation_id", conv.ID))
	return session.Send(ctx, req)
}

// ClearApproval resolves a pending approval across all conversations and
// reports whether it was found.
func (m *Manager) ClearApproval(approvalID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, conv := range m.conversations {
		if conv.Transcript.ClearApproval(approvalID) {
			return true
		}
	}
	return false
}
