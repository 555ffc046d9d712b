package stream

import (
	"sync"
	"testing"
	"time"
)

func TestCoalescerPublishesOncePerTick(t *testing.T) {
	sched := &ManualScheduler{}
	var published int
	c := NewCoalescer(sched, func() { published++ })

	for i := 0; i < 50; i++ {
		c.MarkDirty()
	}
	if published != 0 {
		t.Fatalf("publish before tick: %d", published)
	}
	if sched.PendingCount() != 1 {
		t.Fatalf("expected exactly one scheduled flush, got %d", sched.PendingCount())
	}

	sched.Fire()
	if published != 1 {
		t.Fatalf("expected a single coalesced publish, got %d", published)
	}

	// Nothing new arrived; a spurious tick publishes nothing.
	sched.Fire()
	if published != 1 {
		t.Fatalf("clean tick must not publish, got %d", published)
	}
}

func TestCoalescerStopDiscardsPendingFlush(t *testing.T) {
	sched := &ManualScheduler{}
	var published int
	c := NewCoalescer(sched, func() { published++ })

	c.MarkDirty()
	c.Stop()
	sched.Fire()
	if published != 0 {
		t.Fatalf("stale flush ran after Stop: %d", published)
	}

	c.MarkDirty()
	sched.Fire()
	if published != 0 {
		t.Fatalf("coalescer accepted work after Stop: %d", published)
	}
}

func TestCoalescerFlushNowOnlyWhenDirty(t *testing.T) {
	sched := &ManualScheduler{}
	var published int
	c := NewCoalescer(sched, func() { published++ })

	c.FlushNow()
	if published != 0 {
		t.Fatalf("clean FlushNow published: %d", published)
	}

	c.MarkDirty()
	c.FlushNow()
	if published != 1 {
		t.Fatalf("dirty FlushNow should publish once, got %d", published)
	}
	sched.Fire()
	if published != 1 {
		t.Fatalf("scheduled flush ran after FlushNow drained it: %d", published)
	}
}

func TestCoalescerCancelPendingKeepsAcceptingWork(t *testing.T) {
	sched := &ManualScheduler{}
	var published int
	c := NewCoalescer(sched, func() { published++ })

	c.MarkDirty()
	c.CancelPending()
	sched.Fire()
	if published != 0 {
		t.Fatalf("cancelled flush still ran: %d", published)
	}

	c.MarkDirty()
	sched.Fire()
	if published != 1 {
		t.Fatalf("coalescer should keep working after CancelPending, got %d", published)
	}
}

func TestFrameSchedulerFiresAndCancels(t *testing.T) {
	sched := &FrameScheduler{Interval: 5 * time.Millisecond}

	var mu sync.Mutex
	fired := 0
	done := make(chan struct{})
	sched.Schedule(func() {
		mu.Lock()
		fired++
		mu.Unlock()
		close(done)
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("scheduled callback never fired")
	}

	cancel := sched.Schedule(func() {
		mu.Lock()
		fired++
		mu.Unlock()
	})
	cancel()
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if fired != 1 {
		t.Fatalf("cancelled callback fired, count=%d", fired)
	}
}
