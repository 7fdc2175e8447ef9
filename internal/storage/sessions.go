package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/rgeddes/inkbound/pkg/book"
)

// SessionStore persists book session snapshots in Redis, keyed per
// player so different readers never see each other's page graphs.
type SessionStore struct {
	client   *redis.Client
	playerID string
	logger   *slog.Logger
}

var _ book.Store = (*SessionStore)(nil)

// NewSessionStore creates a store bound to one player.
func NewSessionStore(client *redis.Client, playerID string, logger *slog.Logger) *SessionStore {
	return &SessionStore{
		client:   client,
		playerID: playerID,
		logger:   logger,
	}
}

func (s *SessionStore) key(bookID string) string {
	return fmt.Sprintf("book-session:%s:%s", s.playerID, bookID)
}

// Save writes the snapshot. Snapshots have no TTL; a closed book must
// survive until the reader returns to it.
func (s *SessionStore) Save(ctx context.Context, snap *book.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal session snapshot: %w", err)
	}

	if err := s.client.Set(ctx, s.key(snap.BookID), data, 0).Err(); err != nil {
		s.logger.Error("Failed to save session snapshot", "book_id", snap.BookID, "error", err)
		return fmt.Errorf("failed to save session snapshot: %w", err)
	}

	s.logger.Debug("Session snapshot saved", "book_id", snap.BookID, "pages", len(snap.Pages))
	return nil
}

// Load returns the snapshot for a book, or (nil, nil) when the book
// has never been opened by this player.
func (s *SessionStore) Load(ctx context.Context, bookID string) (*book.Snapshot, error) {
	data, err := s.client.Get(ctx, s.key(bookID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load session snapshot: %w", err)
	}

	var snap book.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session snapshot: %w", err)
	}
	return &snap, nil
}

// Delete removes a book's snapshot.
func (s *SessionStore) Delete(ctx context.Context, bookID string) error {
	if err := s.client.Del(ctx, s.key(bookID)).Err(); err != nil {
		return fmt.Errorf("failed to delete session snapshot: %w", err)
	}
	return nil
}

// List returns the book ids this player has snapshots for.
func (s *SessionStore) List(ctx context.Context) ([]string, error) {
	pattern := fmt.Sprintf("book-session:%s:*", s.playerID)
	keys, err := s.client.Keys(ctx, pattern).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list session snapshots: %w", err)
	}

	prefix := fmt.Sprintf("book-session:%s:", s.playerID)
	books := make([]string, 0, len(keys))
	for _, k := range keys {
		books = append(books, k[len(prefix):])
	}
	return books, nil
}
