package coach

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/mattjoyce/careerloop/internal/stream"
	"github.com/mattjoyce/careerloop/internal/transcript"
)

// readBufferSize is deliberately modest; the parser handles frames split
// across read boundaries, so the buffer size only affects syscall overhead.
const readBufferSize = 4096

// Session drives one in-flight request end to end: streaming transport with
// fallback, event parsing, accumulation, coalesced snapshot publication, and
// terminal transitions on the transcript. A Session is used exactly once.
type Session struct {
	client *Client
	tr     *transcript.Transcript
	sched  stream.Scheduler
	logger *slog.Logger

	mu        sync.Mutex
	acc       *stream.Accumulator
	coal      *stream.Coalescer
	finalized bool
}

// NewSession creates a single-use session bound to one transcript.
func NewSession(client *Client, tr *transcript.Transcript, sched stream.Scheduler, logger *slog.Logger) *Session {
	s := &Session{
		client: client,
		tr:     tr,
		sched:  sched,
		logger: logger,
		acc:    stream.NewAccumulator(),
	}
	s.coal = stream.NewCoalescer(sched, s.publish)
	return s
}

// Send submits the user message and blocks until the response stream (or the
// fallback transport) has finished updating the transcript.
func (s *Session) Send(ctx context.Context, req Request) error {
	s.tr.Begin(req.Message)

	body, err := s.client.Stream(ctx, req)
	if err != nil {
		s.logger.Warn("stream transport unavailable, falling back", "error", err)
		return s.fallback(ctx, req)
	}
	defer body.Close()

	parser := stream.NewParser()
	buf := make([]byte, readBufferSize)

	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			for _, ev := range parser.Feed(string(buf[:n])) {
				s.handle(ev)
			}
			if s.isFinalized() {
				// A terminal event is always the last one accepted.
				return nil
			}
		}
		if readErr == io.EOF {
			for _, ev := range parser.Close() {
				s.handle(ev)
			}
			break
		}
		if readErr != nil {
			// Mid-stream transport death is not an establishment failure;
			// flush what arrived and surface the error to the caller.
			s.coal.FlushNow()
			s.logger.Error("stream read failed", "error", readErr)
			return readErr
		}
	}

	if !s.isFinalized() {
		// Stream ended cleanly without a terminal event; nothing accumulated
		// may be lost.
		s.coal.FlushNow()
	}
	return nil
}

// fallback replays the request over the completion transport and feeds the
// single result through the response transition. If it fails too, the outcome
// is still surfaced in the transcript as an error notice.
func (s *Session) fallback(ctx context.Context, req Request) error {
	resp, err := s.client.Complete(ctx, req)
	if err != nil {
		s.logger.Error("fallback transport failed", "error", err)
		s.finalize(func() { s.tr.FinalizeError(fallbackFailureMessage(err)) })
		return err
	}

	s.finalize(func() {
		s.tr.FinalizeResponse("", nil, stream.Snapshot{}, resp)
	})
	return nil
}

func (s *Session) handle(ev stream.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finalized {
		return
	}

	switch ev.Type {
	case stream.EventResponse:
		s.finalized = true
		s.coal.Stop()
		s.tr.FinalizeResponse(s.acc.FinalText(), s.acc.Cards(), s.acc.Snapshot(), ev.Response)
	case stream.EventError:
		s.finalized = true
		s.coal.Stop()
		s.tr.FinalizeError(ev.Message)
	case stream.EventTrigger:
		s.coal.CancelPending()
		s.tr.ApplyTrigger(s.acc.Snapshot(), ev.Trigger)
		// The trigger closes a sub-turn; accumulation restarts for the rest
		// of the stream.
		s.acc = stream.NewAccumulator()
	case stream.EventApproval:
		s.tr.SetApproval(ev.Approval)
	default:
		if s.acc.Apply(ev) {
			s.coal.MarkDirty()
		}
	}
}

// publish applies a coalesced snapshot. It re-checks the terminal state under
// the session lock so a scheduled flush racing a terminal event can never
// overwrite final content.
func (s *Session) publish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalized {
		return
	}
	s.tr.ApplySnapshot(s.acc.Snapshot())
}

func (s *Session) finalize(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalized {
		return
	}
	s.finalized = true
	s.coal.Stop()
	fn()
}

func (s *Session) isFinalized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finalized
}

func fallbackFailureMessage(err error) string {
	if err != nil && err.Error() != "" {
		return err.Error()
	}
	return "the coaching service is unavailable right now, please try again"
}
