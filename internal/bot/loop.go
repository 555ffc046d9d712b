package bot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/flow/agent/react"
	"github.com/cloudwego/eino/schema"

	"github.com/mattjoyce/careerloop/internal/config"
	"github.com/mattjoyce/careerloop/internal/store"
)

// Loop builds and executes an Eino ReAct agent for a single job.
type Loop struct {
	chatModel  model.ToolCallingChatModel
	cfg        config.BotConfig
	jobs       *store.JobStore
	activities *store.ActivityStore
	logger     *slog.Logger
}

// NewLoop creates a new Loop.
func NewLoop(chatModel model.ToolCallingChatModel, cfg config.BotConfig, jobs *store.JobStore, activities *store.ActivityStore, logger *slog.Logger) *Loop {
	return &Loop{
		chatModel:  chatModel,
		cfg:        cfg,
		jobs:       jobs,
		activities: activities,
		logger:     logger,
	}
}

// Execute runs the agent loop for a job, persisting status transitions and the result.
func (l *Loop) Execute(ctx context.Context, b *store.Bot, job *store.Job) error {
	l.logger.Info("starting bot job", "job_id", job.ID, "bot", b.Handle, "goal", job.Goal)

	if err := l.jobs.UpdateStatus(ctx, job.ID, store.JobStatusRunning, nil, nil); err != nil {
		return fmt.Errorf("mark job running: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, l.cfg.JobDeadline)
	defer cancel()

	systemPrompt := fmt.Sprintf("You are %s, a career-coaching bot working on a job. Your goal is:\n\n%s", b.Name, job.Goal)
	if b.Persona != nil && *b.Persona != "" {
		systemPrompt += fmt.Sprintf("\n\nYour persona:\n%s", *b.Persona)
	}
	if len(job.Context) > 0 {
		systemPrompt += fmt.Sprintf("\n\nAdditional context:\n%s", string(job.Context))
	}

	agent, err := react.NewAgent(ctx, &react.AgentConfig{
		ToolCallingModel: l.chatModel,
		ToolsConfig: compose.ToolsNodeConfig{
			Tools: BuildJobTools(l.activities, b.ID, job.ID),
		},
		MessageModifier: func(ctx context.Context, input []*schema.Message) []*schema.Message {
			res := make([]*schema.Message, 0, len(input)+1)
			res = append(res, schema.SystemMessage(systemPrompt))
			res = append(res, input...)
			return res
		},
		MaxStep: l.cfg.MaxSteps,
	})
	if err != nil {
		return l.failJob(ctx, job.ID, fmt.Errorf("build agent: %w", err))
	}

	// Non-streaming generate keeps tool calls intact across providers.
	result, err := agent.Generate(ctx, []*schema.Message{
		schema.UserMessage(job.Goal),
	})
	if err != nil {
		return l.failJob(ctx, job.ID, fmt.Errorf("agent generate: %w", err))
	}

	summary := result.Content
	if err := l.jobs.UpdateStatus(ctx, job.ID, store.JobStatusDone, &summary, nil); err != nil {
		return fmt.Errorf("mark job done: %w", err)
	}

	l.logger.Info("bot job completed", "job_id", job.ID, "bot", b.Handle)
	return nil
}

// failJob persists the failed status and returns the original error, noting a
// persistence failure alongside it when the update itself fails.
func (l *Loop) failJob(ctx context.Context, jobID string, cause error) error {
	errMsg := cause.Error()
	if err := l.jobs.UpdateStatus(ctx, jobID, store.JobStatusFailed, nil, &errMsg); err != nil {
		return fmt.Errorf("failed to persist job status (%v) after: %w", err, cause)
	}
	return cause
}
