package storage

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/rgeddes/inkbound/pkg/book"
)

func setupTestStore(t *testing.T, playerID string) (*SessionStore, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewSessionStore(client, playerID, logger), mr
}

func testSnapshot(bookID string) *book.Snapshot {
	return &book.Snapshot{
		BookID: bookID,
		Title:  book.TitleFromSlug(bookID),
		Seed:   book.DeriveSeed("reader", bookID),
		Pages: map[string]*book.Page{
			"p1": {
				PageID: "p1",
				Title:  "The Shore",
				Prose:  "Grey waves drag at your boots.",
				Choices: []book.Choice{
					{ID: "climb", Label: "Climb the cliff path"},
				},
			},
		},
		Current: "p1",
		Path:    []string{"a1"},
		Active:  true,
	}
}

func TestSessionStore_SaveAndLoad(t *testing.T) {
	store, _ := setupTestStore(t, "reader")
	ctx := context.Background()

	snap := testSnapshot("codex_paths")
	if err := store.Save(ctx, snap); err != nil {
		t.Fatalf("Failed to save snapshot: %v", err)
	}

	loaded, err := store.Load(ctx, "codex_paths")
	if err != nil {
		t.Fatalf("Failed to load snapshot: %v", err)
	}
	if loaded == nil {
		t.Fatal("Expected non-nil snapshot")
	}

	if loaded.BookID != "codex_paths" {
		t.Errorf("Expected book id codex_paths, got %q", loaded.BookID)
	}
	if loaded.Seed != snap.Seed {
		t.Errorf("Expected seed %q, got %q", snap.Seed, loaded.Seed)
	}
	if loaded.Current != "p1" {
		t.Errorf("Expected current p1, got %q", loaded.Current)
	}
	if len(loaded.Pages) != 1 || loaded.Pages["p1"].Prose == "" {
		t.Errorf("Expected pages to round-trip, got %+v", loaded.Pages)
	}
	if len(loaded.Path) != 1 || loaded.Path[0] != "a1" {
		t.Errorf("Expected path [a1], got %v", loaded.Path)
	}
}

func TestSessionStore_LoadMissing(t *testing.T) {
	store, _ := setupTestStore(t, "reader")

	loaded, err := store.Load(context.Background(), "never_opened")
	if err != nil {
		t.Fatalf("Expected no error for missing snapshot, got %v", err)
	}
	if loaded != nil {
		t.Errorf("Expected nil snapshot, got %+v", loaded)
	}
}

func TestSessionStore_Delete(t *testing.T) {
	store, _ := setupTestStore(t, "reader")
	ctx := context.Background()

	if err := store.Save(ctx, testSnapshot("codex_paths")); err != nil {
		t.Fatalf("Failed to save snapshot: %v", err)
	}
	if err := store.Delete(ctx, "codex_paths"); err != nil {
		t.Fatalf("Failed to delete snapshot: %v", err)
	}

	loaded, err := store.Load(ctx, "codex_paths")
	if err != nil || loaded != nil {
		t.Errorf("Expected snapshot gone, got %+v (%v)", loaded, err)
	}
}

func TestSessionStore_ListIsPerPlayer(t *testing.T) {
	store, mr := setupTestStore(t, "reader")
	ctx := context.Background()

	if err := store.Save(ctx, testSnapshot("codex_paths")); err != nil {
		t.Fatalf("Failed to save snapshot: %v", err)
	}
	if err := store.Save(ctx, testSnapshot("whispering_grove")); err != nil {
		t.Fatalf("Failed to save snapshot: %v", err)
	}

	// Another player's snapshot in the same keyspace.
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	other := NewSessionStore(client, "stranger", logger)
	if err := other.Save(ctx, testSnapshot("codex_paths")); err != nil {
		t.Fatalf("Failed to save other player's snapshot: %v", err)
	}

	books, err := store.List(ctx)
	if err != nil {
		t.Fatalf("Failed to list snapshots: %v", err)
	}
	if len(books) != 2 {
		t.Fatalf("Expected 2 books for reader, got %d: %v", len(books), books)
	}
	for _, b := range books {
		if b != "codex_paths" && b != "whispering_grove" {
			t.Errorf("Unexpected book id %q", b)
		}
	}
}
