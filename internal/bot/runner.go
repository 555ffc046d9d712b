package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cloudwego/eino/components/model"

	"github.com/mattjoyce/careerloop/internal/config"
	"github.com/mattjoyce/careerloop/internal/store"
)

// Runner manages the serial execution of bot jobs.
type Runner struct {
	bots       *store.BotStore
	jobs       *store.JobStore
	activities *store.ActivityStore
	chatModel  model.ToolCallingChatModel
	cfg        config.BotConfig
	logger     *slog.Logger

	queue chan string
	mu    sync.Mutex
	done  chan struct{}
}

var ErrQueueFull = errors.New("runner queue is full")

// ErrBotDisabled is returned by Submit when the target bot is not enabled.
var ErrBotDisabled = errors.New("bot is disabled")

// NewRunner creates a new Runner.
func NewRunner(bots *store.BotStore, jobs *store.JobStore, activities *store.ActivityStore, chatModel model.ToolCallingChatModel, cfg config.BotConfig, logger *slog.Logger) *Runner {
	capacity := cfg.QueueCapacity
	if capacity <= 0 {
		capacity = 100
	}

	return &Runner{
		bots:       bots,
		jobs:       jobs,
		activities: activities,
		chatModel:  chatModel,
		cfg:        cfg,
		logger:     logger,
		queue:      make(chan string, capacity),
		done:       make(chan struct{}),
	}
}

// Submit creates a queued job for a bot and hands it to the worker.
func (r *Runner) Submit(ctx context.Context, botID, goal string, jobCtx json.RawMessage) (*store.Job, error) {
	b, err := r.bots.GetByID(ctx, botID)
	if err != nil {
		return nil, fmt.Errorf("load bot: %w", err)
	}
	if !b.Enabled {
		return nil, ErrBotDisabled
	}

	job, err := r.jobs.Create(ctx, botID, goal, jobCtx)
	if err != nil {
		return nil, err
	}
	if err := r.Enqueue(job.ID); err != nil {
		return nil, err
	}
	return job, nil
}

// Enqueue adds a job ID to the processing queue.
// It returns ErrQueueFull when the queue cannot accept the job within EnqueueTimeout.
func (r *Runner) Enqueue(jobID string) error {
	timeout := r.cfg.EnqueueTimeout
	if timeout <= 0 {
		select {
		case r.queue <- jobID:
			return nil
		default:
			return ErrQueueFull
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r.queue <- jobID:
		return nil
	case <-timer.C:
		return ErrQueueFull
	}
}

// Start runs the serial worker loop. Blocks until context is cancelled.
func (r *Runner) Start(ctx context.Context) {
	defer close(r.done)
	r.logger.Info("bot runner started")
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("bot runner stopping")
			return
		case jobID := <-r.queue:
			r.processJob(ctx, jobID)
		}
	}
}

// Done returns a channel that is closed when the worker loop has returned.
// Use this for graceful shutdown.
func (r *Runner) Done() <-chan struct{} {
	return r.done
}

// Recover requeues jobs interrupted by a previous shutdown and re-enqueues
// everything still queued in the store.
func (r *Runner) Recover(ctx context.Context) error {
	requeued, err := r.jobs.RequeueRunning(ctx)
	if err != nil {
		return err
	}
	if requeued > 0 {
		r.logger.Info("requeued interrupted jobs", "count", requeued)
	}

	queued, err := r.jobs.ListByStatus(ctx, store.JobStatusQueued)
	if err != nil {
		return err
	}

	enqueued := 0
	for _, job := range queued {
		if err := r.Enqueue(job.ID); err != nil {
			r.logger.Warn("failed to enqueue recovered job", "job_id", job.ID, "error", err)
			continue
		}
		enqueued++
	}

	if len(queued) > 0 {
		r.logger.Info("recovery scan complete", "candidates", len(queued), "enqueued", enqueued)
	}
	return nil
}

func (r *Runner) processJob(ctx context.Context, jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, err := r.jobs.GetByID(ctx, jobID)
	if err != nil {
		r.logger.Error("failed to load job for processing", "job_id", jobID, "error", err)
		return
	}

	if job.Status != store.JobStatusQueued {
		r.logger.Warn("skipping job with unexpected status", "job_id", jobID, "status", job.Status)
		return
	}

	b, err := r.bots.GetByID(ctx, job.BotID)
	if err != nil {
		r.logger.Error("failed to load bot for job", "job_id", jobID, "bot_id", job.BotID, "error", err)
		return
	}
	if !b.Enabled {
		errMsg := ErrBotDisabled.Error()
		_ = r.jobs.UpdateStatus(ctx, jobID, store.JobStatusFailed, nil, &errMsg)
		r.logger.Warn("skipping job for disabled bot", "job_id", jobID, "bot", b.Handle)
		return
	}

	loop := NewLoop(r.chatModel, r.cfg, r.jobs, r.activities, r.logger)

	start := time.Now()
	if err := loop.Execute(ctx, b, job); err != nil {
		r.logger.Error("job failed", "job_id", jobID, "bot", b.Handle, "error", err, "duration", time.Since(start))
	} else {
		r.logger.Info("job completed", "job_id", jobID, "bot", b.Handle, "duration", time.Since(start))
	}
}
