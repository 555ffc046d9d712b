package stream

import (
	"encoding/json"
	"strings"
)

// Accumulator is the mutable working state for one in-flight request. It is
// a pure state machine: one mutation entry point per event type, no I/O, and
// never observed directly — consumers see only value-type Snapshots.
//
// Different fields are updated by disjoint event subsets, so cross-field
// consistency holds only at snapshot time, not event by event.
type Accumulator struct {
	text strings.Builder

	agentOrder []string
	agentText  map[string]*strings.Builder

	toolEvents  []ToolEvent
	agentEvents []AgentEvent

	activeOrder    []string
	activeTools    map[string]struct{}
	completedOrder []string
	completedTools map[string]struct{}

	cards []json.RawMessage
}

// Snapshot is an immutable projection of accumulator state at flush time.
// Side cards are deliberately absent: they surface only at finalization, to
// avoid flicker from partial card data.
type Snapshot struct {
	Text           string
	ActiveTools    []string
	CompletedTools []string
	ToolEvents     []ToolEvent
	AgentEvents    []AgentEvent
	AgentStreams   []AgentStream
}

// NewAccumulator creates an empty accumulator for one request.
func NewAccumulator() *Accumulator {
	return &Accumulator{
		agentText:      make(map[string]*strings.Builder),
		activeTools:    make(map[string]struct{}),
		completedTools: make(map[string]struct{}),
	}
}

// Apply mutates the accumulator for a single non-terminal event and reports
// whether the event changed state a display flush should pick up.
func (a *Accumulator) Apply(ev Event) bool {
	switch ev.Type {
	case EventDelta:
		a.text.WriteString(ev.Text)
	case EventAgentDelta:
		buf, ok := a.agentText[ev.Agent]
		if !ok {
			buf = &strings.Builder{}
			a.agentText[ev.Agent] = buf
			a.agentOrder = append(a.agentOrder, ev.Agent)
		}
		buf.WriteString(ev.Text)
	case EventAgentStart:
		a.agentEvents = append(a.agentEvents, AgentEvent{Agent: ev.Agent, Phase: AgentPhaseStart})
	case EventAgentEnd:
		a.agentEvents = append(a.agentEvents, AgentEvent{Agent: ev.Agent, Phase: AgentPhaseEnd})
	case EventToolStart:
		if _, ok := a.activeTools[ev.Tool]; !ok {
			a.activeTools[ev.Tool] = struct{}{}
			a.activeOrder = append(a.activeOrder, ev.Tool)
		}
		a.toolEvents = append(a.toolEvents, ToolEvent{
			Phase: ToolPhaseStart, Tool: ev.Tool, Agent: ev.Agent, Input: ev.Input,
		})
	case EventToolEnd:
		if _, ok := a.activeTools[ev.Tool]; ok {
			delete(a.activeTools, ev.Tool)
			a.activeOrder = removeString(a.activeOrder, ev.Tool)
		}
		if _, ok := a.completedTools[ev.Tool]; !ok {
			a.completedTools[ev.Tool] = struct{}{}
			a.completedOrder = append(a.completedOrder, ev.Tool)
		}
		a.toolEvents = append(a.toolEvents, ToolEvent{
			Phase: ToolPhaseEnd, Tool: ev.Tool, Agent: ev.Agent, Output: ev.Output,
		})
	case EventSectionCard:
		a.cards = append(a.cards, ev.Card)
	default:
		return false
	}
	return true
}

// Snapshot copies the current state into an immutable value. The caller never
// holds a mutable reference back into the accumulator.
func (a *Accumulator) Snapshot() Snapshot {
	snap := Snapshot{
		Text:           CleanText(a.text.String()),
		ActiveTools:    append([]string(nil), a.activeOrder...),
		CompletedTools: append([]string(nil), a.completedOrder...),
		ToolEvents:     append([]ToolEvent(nil), a.toolEvents...),
		AgentEvents:    append([]AgentEvent(nil), a.agentEvents...),
	}
	for _, agent := range a.agentOrder {
		snap.AgentStreams = append(snap.AgentStreams, AgentStream{
			Agent: agent,
			Text:  CleanText(a.agentText[agent].String()),
		})
	}
	return snap
}

// FinalText re-cleans the full accumulated running text for finalization,
// stripping sentinels and fenced thinking/actions blocks.
func (a *Accumulator) FinalText() string {
	return CleanFinal(a.text.String())
}

// Cards returns the side cards collected during streaming.
func (a *Accumulator) Cards() []json.RawMessage {
	return append([]json.RawMessage(nil), a.cards...)
}

func removeString(list []string, s string) []string {
	out := list[:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
