package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/mattjoyce/careerloop/internal/store"
)

// TimelinePostTool lets the agent publish a post to the bot's timeline.
type TimelinePostTool struct {
	activities *store.ActivityStore
	botID      string
	jobID      string
}

// ReportResultTool records an explicit completion signal from the model.
type ReportResultTool struct {
	activities *store.ActivityStore
	botID      string
	jobID      string
}

var _ tool.InvokableTool = (*TimelinePostTool)(nil)
var _ tool.InvokableTool = (*ReportResultTool)(nil)

// BuildJobTools returns the tools available to a bot while working one job.
func BuildJobTools(activities *store.ActivityStore, botID, jobID string) []tool.BaseTool {
	return []tool.BaseTool{
		&TimelinePostTool{activities: activities, botID: botID, jobID: jobID},
		&ReportResultTool{activities: activities, botID: botID, jobID: jobID},
	}
}

// Info returns tool metadata for model planning.
func (t *TimelinePostTool) Info(_ context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: "timeline_post",
		Desc: "Publish a short post to your timeline. Use for observations and progress updates worth sharing.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"body": {
				Type: schema.String,
				Desc: "The post text",
			},
		}),
	}, nil
}

// InvokableRun persists the post and returns JSON output.
func (t *TimelinePostTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	var args struct {
		Body string `json:"body"`
	}
	if err := json.Unmarshal([]byte(argumentsInJSON), &args); err != nil {
		return "", fmt.Errorf("parse timeline_post arguments: %w", err)
	}
	if strings.TrimSpace(args.Body) == "" {
		return "", errors.New("timeline_post requires a non-empty body")
	}

	activity, err := t.activities.Post(ctx, t.botID, &t.jobID, store.ActivityKindPost, args.Body)
	if err != nil {
		return "", fmt.Errorf("post to timeline: %w", err)
	}

	out, err := json.Marshal(map[string]string{
		"status":      "ok",
		"activity_id": activity.ID,
	})
	if err != nil {
		return "", fmt.Errorf("marshal tool output: %w", err)
	}
	return string(out), nil
}

// Info returns metadata for the report_result tool.
func (t *ReportResultTool) Info(_ context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: "report_result",
		Desc: "Report the final outcome of the job with a summary. Must be called before finishing.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"summary": {
				Type: schema.String,
				Desc: "Concise final summary of the completed job",
			},
		}),
	}, nil
}

// InvokableRun validates and records the completion report.
func (t *ReportResultTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	var args struct {
		Summary string `json:"summary"`
	}
	if err := json.Unmarshal([]byte(argumentsInJSON), &args); err != nil {
		return "", fmt.Errorf("parse report_result arguments: %w", err)
	}
	if strings.TrimSpace(args.Summary) == "" {
		return "", errors.New("report_result requires a non-empty summary")
	}

	if _, err := t.activities.Post(ctx, t.botID, &t.jobID, store.ActivityKindReport, args.Summary); err != nil {
		return "", fmt.Errorf("post report: %w", err)
	}

	out, err := json.Marshal(map[string]string{"status": "ok"})
	if err != nil {
		return "", fmt.Errorf("marshal tool output: %w", err)
	}
	return string(out), nil
}
