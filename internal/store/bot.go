package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Bot represents a stored bot definition.
type Bot struct {
	ID        string    `json:"id"`
	Handle    string    `json:"handle"`
	Name      string    `json:"name"`
	Persona   *string   `json:"persona,omitempty"`
	Enabled   bool      `json:"enabled"`
	UpdatedAt time.Time `json:"updated_at"`
	CreatedAt time.Time `json:"created_at"`
}

// BotStore provides CRUD operations on the bots table.
type BotStore struct {
	db *sql.DB
}

// NewBotStore creates a new BotStore.
func NewBotStore(db *sql.DB) *BotStore {
	return &BotStore{db: db}
}

// DB returns the underlying database connection.
func (s *BotStore) DB() *sql.DB {
	return s.db
}

// Create inserts a new bot. If the handle already exists, returns the existing bot.
func (s *BotStore) Create(ctx context.Context, handle, name string, persona *string) (*Bot, bool, error) {
	existing, err := s.GetByHandle(ctx, handle)
	if err == nil && existing != nil {
		return existing, true, nil
	}

	now := time.Now().UTC()
	bot := &Bot{
		ID:        uuid.New().String(),
		Handle:    handle,
		Name:      name,
		Persona:   persona,
		Enabled:   true,
		UpdatedAt: now,
		CreatedAt: now,
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO bots (id, handle, name, persona, enabled, updated_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		bot.ID, bot.Handle, bot.Name, bot.Persona, boolToInt(bot.Enabled),
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, false, fmt.Errorf("insert bot: %w", err)
	}

	return bot, false, nil
}

// GetByID retrieves a bot by its ID.
func (s *BotStore) GetByID(ctx context.Context, id string) (*Bot, error) {
	return s.scanOne(ctx, `SELECT id, handle, name, persona, enabled, updated_at, created_at FROM bots WHERE id = ?`, id)
}

// GetByHandle retrieves a bot by its handle.
func (s *BotStore) GetByHandle(ctx context.Context, handle string) (*Bot, error) {
	return s.scanOne(ctx, `SELECT id, handle, name, persona, enabled, updated_at, created_at FROM bots WHERE handle = ?`, handle)
}

// List retrieves all bots ordered by creation time.
func (s *BotStore) List(ctx context.Context) ([]*Bot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, handle, name, persona, enabled, updated_at, created_at FROM bots ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list bots: %w", err)
	}
	defer rows.Close()

	var bots []*Bot
	for rows.Next() {
		b, err := scanBot(rows)
		if err != nil {
			return nil, err
		}
		bots = append(bots, b)
	}
	return bots, rows.Err()
}

// Update modifies a bot's mutable fields. Nil fields are left unchanged.
func (s *BotStore) Update(ctx context.Context, id string, name *string, persona *string, enabled *bool) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)

	var enabledInt *int
	if enabled != nil {
		v := boolToInt(*enabled)
		enabledInt = &v
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE bots SET name = COALESCE(?, name), persona = COALESCE(?, persona),
		 enabled = COALESCE(?, enabled), updated_at = ?
		 WHERE id = ?`,
		name, persona, enabledInt, now, id,
	)
	if err != nil {
		return fmt.Errorf("update bot: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update bot: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *BotStore) scanOne(ctx context.Context, query string, args ...any) (*Bot, error) {
	row := s.db.QueryRowContext(ctx, query, args...)
	return scanBot(row)
}

func scanBot(s scanner) (*Bot, error) {
	var b Bot
	var persona sql.NullString
	var enabled int
	var updatedAt, createdAt *string

	err := s.Scan(&b.ID, &b.Handle, &b.Name, &persona, &enabled, &updatedAt, &createdAt)
	if err != nil {
		return nil, err
	}

	if persona.Valid {
		v := persona.String
		b.Persona = &v
	}
	b.Enabled = enabled != 0
	if updatedAt != nil {
		if t, err := time.Parse(time.RFC3339Nano, *updatedAt); err == nil {
			b.UpdatedAt = t
		}
	}
	if createdAt != nil {
		if t, err := time.Parse(time.RFC3339Nano, *createdAt); err == nil {
			b.CreatedAt = t
		}
	}
	return &b, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
