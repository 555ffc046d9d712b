package stream

import (
	"encoding/json"
)

// EventType identifies a decoded coach-engine event.
type EventType string

const (
	EventDelta       EventType = "delta"
	EventAgentDelta  EventType = "agent_delta"
	EventAgentStart  EventType = "agent_start"
	EventAgentEnd    EventType = "agent_end"
	EventToolStart   EventType = "tool_start"
	EventToolEnd     EventType = "tool_end"
	EventSectionCard EventType = "section_card"
	EventTrigger     EventType = "trigger"
	// EventApproval is the normalized form of both approval_needed and
	// approval_requested wire events.
	EventApproval EventType = "approval"
	EventResponse EventType = "response"
	EventError    EventType = "error"
)

// AgentPhase marks an agent lifecycle transition.
type AgentPhase string

const (
	AgentPhaseStart AgentPhase = "start"
	AgentPhaseEnd   AgentPhase = "end"
)

// ToolPhase marks a tool invocation transition.
type ToolPhase string

const (
	ToolPhaseStart ToolPhase = "start"
	ToolPhaseEnd   ToolPhase = "end"
)

// ToolEvent is one entry in the tool invocation log.
type ToolEvent struct {
	Phase  ToolPhase       `json:"phase"`
	Tool   string          `json:"tool"`
	Agent  string          `json:"agent,omitempty"`
	Input  json.RawMessage `json:"input,omitempty"`
	Output json.RawMessage `json:"output,omitempty"`
}

// AgentEvent is one entry in the agent lifecycle log.
type AgentEvent struct {
	Agent string     `json:"agent"`
	Phase AgentPhase `json:"phase"`
}

// AgentStream holds the accumulated partial text for one agent. Streams are
// kept in first-seen order for display grouping.
type AgentStream struct {
	Agent string `json:"agent"`
	Text  string `json:"text"`
}

// Approval is a pending approval request attached to an in-progress entry.
// The wire carries two shapes (approval_needed with a pre-shaped item,
// approval_requested with fields nested under "approval"); both decode to
// this one struct.
type Approval struct {
	ID       string `json:"approval_id,omitempty"`
	Kind     string `json:"kind"`
	Title    string `json:"title"`
	Agent    string `json:"agent"`
	Content  string `json:"content"`
	Priority string `json:"priority"`
}

// Trigger is a server-initiated sub-turn boundary.
type Trigger struct {
	Type     string `json:"trigger_type"`
	Title    string `json:"title"`
	Message  string `json:"message"`
	Priority string `json:"priority"`
}

// Response is the terminal payload of a successful sub-turn. The fallback
// transport returns the same shape as a single JSON object.
type Response struct {
	SessionID         string            `json:"session_id,omitempty"`
	Response          string            `json:"response"`
	Actions           json.RawMessage   `json:"actions,omitempty"`
	SectionsGenerated []string          `json:"sections_generated,omitempty"`
	SectionCards      []json.RawMessage `json:"section_cards,omitempty"`
}

// Event is one decoded event from the interleaved coach-engine stream.
// Only the fields relevant to Type are populated.
type Event struct {
	Type     EventType
	Text     string
	Agent    string
	Tool     string
	Input    json.RawMessage
	Output   json.RawMessage
	Card     json.RawMessage
	Trigger  *Trigger
	Approval *Approval
	Response *Response
	Message  string
}

// Terminal reports whether the event ends the current sub-turn for good.
func (e Event) Terminal() bool {
	return e.Type == EventResponse || e.Type == EventError
}

// wireRecord is the superset of fields across all wire event types.
type wireRecord struct {
	Type     string          `json:"type"`
	Text     string          `json:"text"`
	Agent    string          `json:"agent"`
	Tool     string          `json:"tool"`
	Input    json.RawMessage `json:"input"`
	Output   json.RawMessage `json:"output"`
	Card     json.RawMessage `json:"card"`
	Title    string          `json:"title"`
	Message  string          `json:"message"`
	Priority string          `json:"priority"`

	TriggerType string `json:"trigger_type"`

	Item       *Approval `json:"item"`
	ApprovalID string    `json:"approval_id"`
	Approval   *struct {
		Kind     string `json:"type"`
		Title    string `json:"title"`
		Content  string `json:"content"`
		Priority string `json:"priority"`
	} `json:"approval"`

	SessionID         string            `json:"session_id"`
	Response          string            `json:"response"`
	Actions           json.RawMessage   `json:"actions"`
	SectionsGenerated []string          `json:"sections_generated"`
	SectionCards      []json.RawMessage `json:"section_cards"`
}

// decodeEvent parses one JSON record into an Event. It returns ok=false for
// malformed records and for unknown types; both are skipped by the caller so
// the stream stays live.
func decodeEvent(data []byte) (Event, bool) {
	var rec wireRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return Event{}, false
	}

	switch rec.Type {
	case "delta":
		return Event{Type: EventDelta, Text: rec.Text}, true
	case "agent_delta":
		return Event{Type: EventAgentDelta, Agent: rec.Agent, Text: rec.Text}, true
	case "agent_start":
		return Event{Type: EventAgentStart, Agent: rec.Agent}, true
	case "agent_end":
		return Event{Type: EventAgentEnd, Agent: rec.Agent}, true
	case "tool_start":
		return Event{Type: EventToolStart, Tool: rec.Tool, Agent: rec.Agent, Input: rec.Input}, true
	case "tool_end":
		return Event{Type: EventToolEnd, Tool: rec.Tool, Agent: rec.Agent, Output: rec.Output}, true
	case "section_card":
		// The card payload passes through opaquely; the whole record is kept
		// so downstream consumers see exactly what the engine sent.
		card := rec.Card
		if len(card) == 0 {
			card = json.RawMessage(data)
		}
		return Event{Type: EventSectionCard, Card: card}, true
	case "trigger":
		return Event{Type: EventTrigger, Trigger: &Trigger{
			Type:     rec.TriggerType,
			Title:    rec.Title,
			Message:  rec.Message,
			Priority: rec.Priority,
		}}, true
	case "approval_needed":
		if rec.Item == nil {
			return Event{}, false
		}
		item := *rec.Item
		return Event{Type: EventApproval, Approval: &item}, true
	case "approval_requested":
		if rec.Approval == nil {
			return Event{}, false
		}
		return Event{Type: EventApproval, Approval: &Approval{
			ID:       rec.ApprovalID,
			Kind:     rec.Approval.Kind,
			Title:    rec.Approval.Title,
			Agent:    rec.Agent,
			Content:  rec.Approval.Content,
			Priority: rec.Approval.Priority,
		}}, true
	case "response":
		return Event{Type: EventResponse, Response: &Response{
			SessionID:         rec.SessionID,
			Response:          rec.Response,
			Actions:           rec.Actions,
			SectionsGenerated: rec.SectionsGenerated,
			SectionCards:      rec.SectionCards,
		}}, true
	case "error":
		return Event{Type: EventError, Message: rec.Message}, true
	default:
		// Unknown types are accepted and dropped for forward compatibility.
		return Event{}, false
	}
}
