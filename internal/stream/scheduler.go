package stream

import (
	"sync"
	"time"
)

// CancelFunc revokes a scheduled callback. Cancelling after the callback has
// fired is a no-op.
type CancelFunc func()

// Scheduler defers a callback until the next display refresh tick. It is an
// injected dependency so coalescing can be tested against a deterministic
// fake instead of a real timer.
type Scheduler interface {
	Schedule(fn func()) CancelFunc
}

// FrameScheduler fires callbacks after one display refresh interval.
type FrameScheduler struct {
	Interval time.Duration
}

// DefaultFrameInterval approximates a 60Hz display refresh.
const DefaultFrameInterval = 16 * time.Millisecond

// Schedule runs fn once after the frame interval elapses.
func (s *FrameScheduler) Schedule(fn func()) CancelFunc {
	interval := s.Interval
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	timer := time.AfterFunc(interval, fn)
	return func() { timer.Stop() }
}

// ManualScheduler queues callbacks until Fire is called. Test use only.
type ManualScheduler struct {
	mu      sync.Mutex
	pending []*manualEntry
}

type manualEntry struct {
	fn        func()
	cancelled bool
}

// Schedule queues fn for the next Fire.
func (s *ManualScheduler) Schedule(fn func()) CancelFunc {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := &manualEntry{fn: fn}
	s.pending = append(s.pending, entry)
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		entry.cancelled = true
	}
}

// Fire runs all queued callbacks, simulating one refresh tick.
func (s *ManualScheduler) Fire() {
	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, entry := range pending {
		s.mu.Lock()
		cancelled := entry.cancelled
		s.mu.Unlock()
		if !cancelled {
			entry.fn()
		}
	}
}

// PendingCount reports how many callbacks are queued.
func (s *ManualScheduler) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, entry := range s.pending {
		if !entry.cancelled {
			n++
		}
	}
	return n
}
