package book

import (
	"context"
	"fmt"
	"sync"
)

// Shelf is the per-player registry of sessions, one per book id. At
// most one session is active at a time: opening a different book
// closes the session currently being read.
type Shelf struct {
	playerID string
	deps     Deps

	mu       sync.Mutex
	sessions map[string]*Session
	active   *Session
}

// NewShelf creates an empty shelf for a player.
func NewShelf(playerID string, deps Deps) *Shelf {
	return &Shelf{
		playerID: playerID,
		deps:     deps,
		sessions: make(map[string]*Session),
	}
}

// Open activates the session for a book, creating it lazily on first
// open. An existing session (in memory or in the snapshot store) is
// resumed without a new generation call.
func (sh *Shelf) Open(ctx context.Context, bookID string) (*Session, error) {
	sh.mu.Lock()
	sess, ok := sh.sessions[bookID]
	if !ok && sh.deps.Store != nil {
		if snap, err := sh.deps.Store.Load(ctx, bookID); err != nil {
			sh.deps.Logger.Error("Failed to load session snapshot", "error", err, "book_id", bookID)
		} else if snap != nil {
			sess = RestoreSession(snap, sh.deps)
			sh.sessions[bookID] = sess
			ok = true
		}
	}
	if !ok {
		sess = NewSession(bookID, sh.playerID, sh.deps)
		sh.sessions[bookID] = sess
	}

	prev := sh.active
	sh.active = sess
	sh.mu.Unlock()

	if prev != nil && prev != sess {
		prev.Close(ctx)
	}

	if err := sess.Open(ctx); err != nil {
		return sess, fmt.Errorf("failed to open book %q: %w", bookID, err)
	}
	return sess, nil
}

// Active returns the session currently being read, or nil.
func (sh *Shelf) Active() *Session {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return sh.active
}

// Close deactivates the active session, if any.
func (sh *Shelf) Close(ctx context.Context) {
	sh.mu.Lock()
	sess := sh.active
	sh.active = nil
	sh.mu.Unlock()

	if sess != nil {
		sess.Close(ctx)
	}
}
