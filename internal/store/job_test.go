package store

import (
	"context"
	"encoding/json"
	"testing"
)

func TestJobStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	bots := NewBotStore(db)
	jobs := NewJobStore(db)

	bot, _, err := bots.Create(ctx, "scout", "Scout", nil)
	if err != nil {
		t.Fatalf("create bot: %v", err)
	}

	job, err := jobs.Create(ctx, bot.ID, "survey the market", json.RawMessage(`{"region":"apac"}`))
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	if job.Status != JobStatusQueued {
		t.Fatalf("new job status = %s", job.Status)
	}

	if err := jobs.UpdateStatus(ctx, job.ID, JobStatusRunning, nil, nil); err != nil {
		t.Fatalf("mark running: %v", err)
	}
	got, err := jobs.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != JobStatusRunning {
		t.Fatalf("status = %s, want running", got.Status)
	}
	if got.StartedAt == nil {
		t.Fatalf("started_at should be set")
	}
	if got.CompletedAt != nil {
		t.Fatalf("completed_at should not be set yet")
	}
	if string(got.Context) != `{"region":"apac"}` {
		t.Fatalf("context round-trip = %s", got.Context)
	}

	result := "three openings found"
	if err := jobs.UpdateStatus(ctx, job.ID, JobStatusDone, &result, nil); err != nil {
		t.Fatalf("mark done: %v", err)
	}
	got, err = jobs.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != JobStatusDone {
		t.Fatalf("status = %s, want done", got.Status)
	}
	if got.Result == nil || *got.Result != result {
		t.Fatalf("result = %v", got.Result)
	}
	if got.CompletedAt == nil {
		t.Fatalf("completed_at should be set")
	}
}

func TestJobStoreNextQueuedOrder(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	bots := NewBotStore(db)
	jobs := NewJobStore(db)

	bot, _, err := bots.Create(ctx, "scout", "Scout", nil)
	if err != nil {
		t.Fatalf("create bot: %v", err)
	}

	none, err := jobs.NextQueued(ctx)
	if err != nil {
		t.Fatalf("next queued empty: %v", err)
	}
	if none != nil {
		t.Fatalf("expected nil job on empty queue")
	}

	first, err := jobs.Create(ctx, bot.ID, "first", nil)
	if err != nil {
		t.Fatalf("create first: %v", err)
	}
	if _, err := jobs.Create(ctx, bot.ID, "second", nil); err != nil {
		t.Fatalf("create second: %v", err)
	}

	next, err := jobs.NextQueued(ctx)
	if err != nil {
		t.Fatalf("next queued: %v", err)
	}
	if next == nil || next.ID != first.ID {
		t.Fatalf("expected oldest queued job %s, got %+v", first.ID, next)
	}
}

func TestJobStoreRequeueRunning(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	bots := NewBotStore(db)
	jobs := NewJobStore(db)

	bot, _, err := bots.Create(ctx, "scout", "Scout", nil)
	if err != nil {
		t.Fatalf("create bot: %v", err)
	}

	interrupted, err := jobs.Create(ctx, bot.ID, "interrupted", nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := jobs.UpdateStatus(ctx, interrupted.ID, JobStatusRunning, nil, nil); err != nil {
		t.Fatalf("mark running: %v", err)
	}
	finished, err := jobs.Create(ctx, bot.ID, "finished", nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := jobs.UpdateStatus(ctx, finished.ID, JobStatusDone, nil, nil); err != nil {
		t.Fatalf("mark done: %v", err)
	}

	n, err := jobs.RequeueRunning(ctx)
	if err != nil {
		t.Fatalf("requeue: %v", err)
	}
	if n != 1 {
		t.Fatalf("requeued %d jobs, want 1", n)
	}

	got, err := jobs.GetByID(ctx, interrupted.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != JobStatusQueued {
		t.Fatalf("interrupted job status = %s, want queued", got.Status)
	}
	got, err = jobs.GetByID(ctx, finished.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != JobStatusDone {
		t.Fatalf("finished job status = %s, want done", got.Status)
	}
}
