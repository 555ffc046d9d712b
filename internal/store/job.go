package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the lifecycle state of a bot job.
type JobStatus string

const (
	JobStatusQueued  JobStatus = "queued"
	JobStatusRunning JobStatus = "running"
	JobStatusDone    JobStatus = "done"
	JobStatusFailed  JobStatus = "failed"
)

// Job represents a unit of work executed by a bot's agent loop.
type Job struct {
	ID          string          `json:"id"`
	BotID       string          `json:"bot_id"`
	Goal        string          `json:"goal"`
	Context     json.RawMessage `json:"context,omitempty"`
	Status      JobStatus       `json:"status"`
	Result      *string         `json:"result,omitempty"`
	Error       *string         `json:"error,omitempty"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	UpdatedAt   time.Time       `json:"updated_at"`
	CreatedAt   time.Time       `json:"created_at"`
}

// JobStore provides operations on the jobs table.
type JobStore struct {
	db *sql.DB
}

// NewJobStore creates a new JobStore.
func NewJobStore(db *sql.DB) *JobStore {
	return &JobStore{db: db}
}

// Create inserts a new queued job for a bot.
func (s *JobStore) Create(ctx context.Context, botID, goal string, jobCtx json.RawMessage) (*Job, error) {
	now := time.Now().UTC()
	job := &Job{
		ID:        uuid.New().String(),
		BotID:     botID,
		Goal:      goal,
		Context:   jobCtx,
		Status:    JobStatusQueued,
		UpdatedAt: now,
		CreatedAt: now,
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, bot_id, goal, context, status, updated_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.BotID, job.Goal, job.Context, string(job.Status),
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}

	return job, nil
}

// GetByID retrieves a job by its ID.
func (s *JobStore) GetByID(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, bot_id, goal, context, status, result, error, started_at, completed_at, updated_at, created_at
		 FROM jobs WHERE id = ?`, id)
	return scanJob(row)
}

// ListByBot retrieves all jobs for a bot, newest first.
func (s *JobStore) ListByBot(ctx context.Context, botID string) ([]*Job, error) {
	return s.list(ctx,
		`SELECT id, bot_id, goal, context, status, result, error, started_at, completed_at, updated_at, created_at
		 FROM jobs WHERE bot_id = ? ORDER BY created_at DESC`, botID)
}

// ListByStatus retrieves all jobs with the given status, oldest first.
func (s *JobStore) ListByStatus(ctx context.Context, status JobStatus) ([]*Job, error) {
	return s.list(ctx,
		`SELECT id, bot_id, goal, context, status, result, error, started_at, completed_at, updated_at, created_at
		 FROM jobs WHERE status = ? ORDER BY created_at ASC`, string(status))
}

// UpdateStatus updates a job's status and optional result or error message.
func (s *JobStore) UpdateStatus(ctx context.Context, id string, status JobStatus, result *string, errMsg *string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)

	var startedAt, completedAt *string
	if status == JobStatusRunning {
		startedAt = &now
	}
	if status == JobStatusDone || status == JobStatusFailed {
		completedAt = &now
	}

	_, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, result = COALESCE(?, result), error = COALESCE(?, error),
		 started_at = COALESCE(?, started_at), completed_at = COALESCE(?, completed_at), updated_at = ?
		 WHERE id = ?`,
		string(status), result, errMsg, startedAt, completedAt, now, id,
	)
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	return nil
}

// RequeueRunning marks every running job as queued again. Called on startup so
// jobs interrupted by a crash are picked up by the worker.
func (s *JobStore) RequeueRunning(ctx context.Context) (int, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, updated_at = ? WHERE status = ?`,
		string(JobStatusQueued), now, string(JobStatusRunning),
	)
	if err != nil {
		return 0, fmt.Errorf("requeue running jobs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("requeue running jobs: %w", err)
	}
	return int(n), nil
}

// NextQueued returns the oldest queued job, or nil if none.
func (s *JobStore) NextQueued(ctx context.Context) (*Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, bot_id, goal, context, status, result, error, started_at, completed_at, updated_at, created_at
		 FROM jobs WHERE status = ? ORDER BY created_at ASC LIMIT 1`, string(JobStatusQueued))
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return job, err
}

func (s *JobStore) list(ctx context.Context, query string, args ...any) ([]*Job, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// scanner is an interface satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanJob(s scanner) (*Job, error) {
	var j Job
	var status string
	var contextJSON sql.NullString
	var result sql.NullString
	var errMsg sql.NullString
	var startedAt, completedAt, updatedAt, createdAt *string

	err := s.Scan(&j.ID, &j.BotID, &j.Goal, &contextJSON, &status,
		&result, &errMsg, &startedAt, &completedAt, &updatedAt, &createdAt)
	if err != nil {
		return nil, err
	}

	if contextJSON.Valid && contextJSON.String != "" {
		j.Context = json.RawMessage(contextJSON.String)
	}
	if result.Valid {
		v := result.String
		j.Result = &v
	}
	if errMsg.Valid {
		v := errMsg.String
		j.Error = &v
	}

	j.Status = JobStatus(status)
	j.StartedAt = parseTime(startedAt)
	j.CompletedAt = parseTime(completedAt)
	if updatedAt != nil {
		if t, err := time.Parse(time.RFC3339Nano, *updatedAt); err == nil {
			j.UpdatedAt = t
		}
	}
	if createdAt != nil {
		if t, err := time.Parse(time.RFC3339Nano, *createdAt); err == nil {
			j.CreatedAt = t
		}
	}
	return &j, nil
}

func parseTime(s *string) *time.Time {
	if s == nil {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, *s)
	if err != nil {
		return nil
	}
	return &t
}
