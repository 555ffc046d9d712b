package stream

import "strings"

// dataPrefix marks a frame line carrying an event record. Lines without it,
// including blank SSE separators and comments, are ignored.
const dataPrefix = "data: "

// Parser turns arbitrary-sized chunks of decoded text into a sequence of
// events. Chunk boundaries carry no meaning: a partial trailing line is held
// back until the rest of it arrives. A Parser serves exactly one request and
// is not restartable.
type Parser struct {
	pending string
}

// NewParser creates a parser for a single stream.
func NewParser() *Parser {
	return &Parser{}
}

// Feed appends a chunk and returns all events completed by it, in order.
// Malformed records and unknown event types are dropped without error.
func (p *Parser) Feed(chunk string) []Event {
	p.pending += chunk

	parts := strings.Split(p.pending, "\n")
	p.pending = parts[len(parts)-1]

	var events []Event
	for _, line := range parts[:len(parts)-1] {
		if ev, ok := parseLine(line); ok {
			events = append(events, ev)
		}
	}
	return events
}

// Close drains the parser at end of stream. A final line the transport closed
// without terminating still counts; nothing is silently lost at stream end.
func (p *Parser) Close() []Event {
	line := p.pending
	p.pending = ""
	if ev, ok := parseLine(line); ok {
		return []Event{ev}
	}
	return nil
}

func parseLine(line string) (Event, bool) {
	line = strings.TrimSuffix(line, "\r")
	if !strings.HasPrefix(line, dataPrefix) {
		return Event{}, false
	}
	return decodeEvent([]byte(line[len(dataPrefix):]))
}
