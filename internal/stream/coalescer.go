package stream

import "sync"

// Coalescer limits how often accumulator state is published: however fast
// events arrive, the publish callback runs at most once per scheduler tick,
// while the last state before a terminal event is never lost.
//
// The publish callback runs without the coalescer lock held; callers that
// race publication against terminal events must re-check their own terminal
// state inside the callback.
type Coalescer struct {
	mu        sync.Mutex
	sched     Scheduler
	publish   func()
	dirty     bool
	scheduled bool
	cancel    CancelFunc
	stopped   bool
}

// NewCoalescer creates a coalescer that invokes publish on each flush.
func NewCoalescer(sched Scheduler, publish func()) *Coalescer {
	return &Coalescer{sched: sched, publish: publish}
}

// MarkDirty records a pending change and schedules a flush if none is
// outstanding.
func (c *Coalescer) MarkDirty() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	c.dirty = true
	if !c.scheduled {
		c.scheduled = true
		c.cancel = c.sched.Schedule(c.fire)
	}
}

func (c *Coalescer) fire() {
	c.mu.Lock()
	c.scheduled = false
	c.cancel = nil
	if c.stopped || !c.dirty {
		c.mu.Unlock()
		return
	}
	c.dirty = false
	c.mu.Unlock()

	c.publish()
}

// Stop discards any pending flush permanently. Terminal events call this so a
// stale scheduled flush cannot overwrite authoritative final content.
func (c *Coalescer) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
	c.dirty = false
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.scheduled = false
}

// CancelPending drops any scheduled flush and clears the dirty flag without
// stopping the coalescer. Used at sub-turn boundaries where the caller takes
// its own snapshot and the stream then continues.
func (c *Coalescer) CancelPending() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dirty = false
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.scheduled = false
}

// FlushNow publishes synchronously if state is still dirty. Called once when
// the stream ends without a terminal event.
func (c *Coalescer) FlushNow() {
	c.mu.Lock()
	if c.stopped || !c.dirty {
		c.mu.Unlock()
		return
	}
	c.dirty = false
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.scheduled = false
	c.mu.Unlock()

	c.publish()
}
