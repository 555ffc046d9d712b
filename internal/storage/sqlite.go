package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// OpenSQLite opens (and creates if needed) the SQLite database at path and
// ensures required tables exist.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	pragmas := []string{
		"PRAGMA foreign_keys = ON;",
		"PRAGMA busy_timeout = 5000;",
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(pctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", p, err)
		}
	}

	db.SetMaxOpenConns(1)

	if err := bootstrap(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func bootstrap(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS bots (
			id         TEXT PRIMARY KEY,
			handle     TEXT NOT NULL UNIQUE,
			name       TEXT NOT NULL,
			persona    TEXT,
			enabled    INTEGER NOT NULL DEFAULT 1,
			updated_at TEXT NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS jobs (
			id           TEXT PRIMARY KEY,
			bot_id       TEXT NOT NULL REFERENCES bots(id),
			goal         TEXT NOT NULL,
			context      JSON,
			status       TEXT NOT NULL DEFAULT 'queued',
			result       TEXT,
			error        TEXT,
			started_at   TEXT,
			completed_at TEXT,
			updated_at   TEXT NOT NULL,
			created_at   TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS jobs_bot_id_idx ON jobs(bot_id, created_at);`,
		`CREATE INDEX IF NOT EXISTS jobs_status_idx ON jobs(status, created_at);`,
		`CREATE TABLE IF NOT EXISTS activities (
			id         TEXT PRIMARY KEY,
			bot_id     TEXT NOT NULL REFERENCES bots(id),
			job_id     TEXT REFERENCES jobs(id),
			kind       TEXT NOT NULL,
			body       TEXT NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS activities_created_idx ON activities(created_at);`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap sqlite: %w", err)
		}
	}
	return nil
}
