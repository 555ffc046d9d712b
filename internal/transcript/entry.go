package transcript

import (
	"encoding/json"
	"time"

	"github.com/mattjoyce/careerloop/internal/stream"
)

// Role identifies who produced a transcript entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Entry is one turn in a conversation. While InProgress it is repeatedly
// overwritten from accumulator snapshots; once finalized its content is
// authoritative and never changes again.
type Entry struct {
	ID         string `json:"id"`
	Role       Role   `json:"role"`
	Content    string `json:"content"`
	InProgress bool   `json:"in_progress"`

	ToolEvents   []stream.ToolEvent   `json:"tool_events,omitempty"`
	AgentEvents  []stream.AgentEvent  `json:"agent_events,omitempty"`
	AgentStreams []stream.AgentStream `json:"agent_streams,omitempty"`

	ActiveTools    []string `json:"active_tools,omitempty"`
	CompletedTools []string `json:"completed_tools,omitempty"`

	SideCards       []json.RawMessage `json:"side_cards,omitempty"`
	PendingApproval *stream.Approval  `json:"pending_approval,omitempty"`

	Actions           json.RawMessage `json:"actions,omitempty"`
	SectionsGenerated []string        `json:"sections_generated,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// ToolGroup is the display projection of the tool-event log for one agent.
// Entries without an agent name share the implicit unnamed group.
type ToolGroup struct {
	Agent string             `json:"agent,omitempty"`
	Tools []stream.ToolEvent `json:"tools"`
}

// DedupToolEvents collapses a full tool-event history into one entry per
// distinct tool per agent. The end event wins, with its input backfilled from
// the earlier start event when the end did not carry one. Group order and
// in-group tool order follow first appearance.
//
// This is a read-time projection; the underlying log is never mutated.
func DedupToolEvents(events []stream.ToolEvent) []ToolGroup {
	type key struct {
		agent string
		tool  string
	}

	var groupOrder []string
	grouped := make(map[string][]stream.ToolEvent)
	index := make(map[key]int)

	for _, ev := range events {
		k := key{agent: ev.Agent, tool: ev.Tool}
		if i, seen := index[k]; seen {
			prev := grouped[ev.Agent][i]
			if ev.Phase == stream.ToolPhaseEnd {
				if len(ev.Input) == 0 {
					ev.Input = prev.Input
				}
				grouped[ev.Agent][i] = ev
			} else if prev.Phase != stream.ToolPhaseEnd {
				grouped[ev.Agent][i] = ev
			} else if len(prev.Input) == 0 {
				prev.Input = ev.Input
				grouped[ev.Agent][i] = prev
			}
			continue
		}
		if _, seen := grouped[ev.Agent]; !seen {
			groupOrder = append(groupOrder, ev.Agent)
		}
		index[k] = len(grouped[ev.Agent])
		grouped[ev.Agent] = append(grouped[ev.Agent], ev)
	}

	groups := make([]ToolGroup, 0, len(groupOrder))
	for _, agent := range groupOrder {
		groups = append(groups, ToolGroup{Agent: agent, Tools: grouped[agent]})
	}
	return groups
}
