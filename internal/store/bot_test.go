package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/mattjoyce/careerloop/internal/storage"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "careerloop.db")
	db, err := storage.OpenSQLite(ctx, dbPath)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestBotStoreCreateHandleIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewBotStore(openTestDB(t))

	first, existing, err := store.Create(ctx, "scout", "Scout", nil)
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	if existing {
		t.Fatalf("first create should not be existing")
	}
	if !first.Enabled {
		t.Fatalf("new bot should be enabled")
	}

	second, existing, err := store.Create(ctx, "scout", "Scout Again", nil)
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	if !existing {
		t.Fatalf("second create should be existing")
	}
	if first.ID != second.ID {
		t.Fatalf("expected same bot id for duplicate handle, got %s vs %s", first.ID, second.ID)
	}
}

func TestBotStoreUpdatePartialFields(t *testing.T) {
	ctx := context.Background()
	store := NewBotStore(openTestDB(t))

	persona := "dry and precise"
	bot, _, err := store.Create(ctx, "critic", "Critic", &persona)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	disabled := false
	if err := store.Update(ctx, bot.ID, nil, nil, &disabled); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := store.GetByID(ctx, bot.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Enabled {
		t.Fatalf("bot should be disabled")
	}
	if got.Name != "Critic" {
		t.Fatalf("name should be unchanged, got %q", got.Name)
	}
	if got.Persona == nil || *got.Persona != persona {
		t.Fatalf("persona should be unchanged, got %v", got.Persona)
	}
}

func TestBotStoreUpdateMissingBot(t *testing.T) {
	ctx := context.Background()
	store := NewBotStore(openTestDB(t))

	name := "Nobody"
	err := store.Update(ctx, "no-such-id", &name, nil, nil)
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected ErrNoRows, got %v", err)
	}
}

func TestBotStoreListOrder(t *testing.T) {
	ctx := context.Background()
	store := NewBotStore(openTestDB(t))

	for _, handle := range []string{"a", "b", "c"} {
		if _, _, err := store.Create(ctx, handle, handle, nil); err != nil {
			t.Fatalf("create %s: %v", handle, err)
		}
	}

	bots, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(bots) != 3 {
		t.Fatalf("expected 3 bots, got %d", len(bots))
	}
	for i, handle := range []string{"a", "b", "c"} {
		if bots[i].Handle != handle {
			t.Fatalf("bots[%d].Handle = %q, want %q", i, bots[i].Handle, handle)
		}
	}
}
