package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ActivityKind distinguishes timeline entry types.
type ActivityKind string

const (
	ActivityKindPost   ActivityKind = "post"
	ActivityKindReport ActivityKind = "report"
	ActivityKindSystem ActivityKind = "system"
)

// Activity represents one entry on the bot timeline.
type Activity struct {
	ID        string       `json:"id"`
	BotID     string       `json:"bot_id"`
	JobID     *string      `json:"job_id,omitempty"`
	Kind      ActivityKind `json:"kind"`
	Body      string       `json:"body"`
	CreatedAt time.Time    `json:"created_at"`
}

// ActivityStore provides operations on the activities table.
type ActivityStore struct {
	db *sql.DB
}

// NewActivityStore creates a new ActivityStore.
func NewActivityStore(db *sql.DB) *ActivityStore {
	return &ActivityStore{db: db}
}

// Post appends an activity to the timeline.
func (s *ActivityStore) Post(ctx context.Context, botID string, jobID *string, kind ActivityKind, body string) (*Activity, error) {
	now := time.Now().UTC()
	activity := &Activity{
		ID:        uuid.New().String(),
		BotID:     botID,
		JobID:     jobID,
		Kind:      kind,
		Body:      body,
		CreatedAt: now,
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO activities (id, bot_id, job_id, kind, body, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		activity.ID, activity.BotID, activity.JobID, string(activity.Kind),
		activity.Body, now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("insert activity: %w", err)
	}

	return activity, nil
}

// ListRecent retrieves the newest activities up to limit.
func (s *ActivityStore) ListRecent(ctx context.Context, limit int) ([]*Activity, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.list(ctx,
		`SELECT id, bot_id, job_id, kind, body, created_at
		 FROM activities ORDER BY created_at DESC LIMIT ?`, limit)
}

// ListByBot retrieves a bot's activities, newest first.
func (s *ActivityStore) ListByBot(ctx context.Context, botID string, limit int) ([]*Activity, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.list(ctx,
		`SELECT id, bot_id, job_id, kind, body, created_at
		 FROM activities WHERE bot_id = ? ORDER BY created_at DESC LIMIT ?`, botID, limit)
}

func (s *ActivityStore) list(ctx context.Context, query string, args ...any) ([]*Activity, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	defer rows.Close()

	var activities []*Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		activities = append(activities, a)
	}
	return activities, rows.Err()
}

func scanActivity(s scanner) (*Activity, error) {
	var a Activity
	var jobID sql.NullString
	var kind string
	var createdAt *string

	err := s.Scan(&a.ID, &a.BotID, &jobID, &kind, &a.Body, &createdAt)
	if err != nil {
		return nil, err
	}

	if jobID.Valid {
		v := jobID.String
		a.JobID = &v
	}
	a.Kind = ActivityKind(kind)
	if createdAt != nil {
		if t, err := time.Parse(time.RFC3339Nano, *createdAt); err == nil {
			a.CreatedAt = t
		}
	}
	return &a, nil
}
