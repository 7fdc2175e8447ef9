package book

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rgeddes/inkbound/pkg/effects"
)

// State is the observable position of a session in its lifecycle.
type State string

const (
	StateClosed         State = "closed"
	StateAwaitingPage   State = "awaiting_page"
	StateRendered       State = "rendered"
	StateAwaitingChoice State = "awaiting_choice"
	StateEnded          State = "ended"
)

var (
	// ErrChoiceNotFound means the reader's input matched no current
	// choice. Local and non-fatal; session state is unchanged.
	ErrChoiceNotFound = errors.New("choice not found")

	// ErrBusy rejects a second command while a generation call is
	// already in flight for this book.
	ErrBusy = errors.New("a page is already being generated")

	// ErrEnded rejects choose on a terminal page.
	ErrEnded = errors.New("the story has ended")

	// ErrNoCurrentPage rejects operations that need a rendered page.
	ErrNoCurrentPage = errors.New("no current page")
)

// Generator produces narrative text and illustrations. The concrete
// implementation owns scheduling, throttling, and endpoint fallback.
type Generator interface {
	GenerateText(ctx context.Context, system, prompt string) (string, error)
	GenerateImage(ctx context.Context, prompt string) (string, error)
}

// Sink receives narrated output for the reader.
type Sink interface {
	ShowPage(p *Page)
	ShowText(text string)
	ShowImage(ref string)
}

// Store persists session snapshots. Load returns (nil, nil) when no
// snapshot exists for the book.
type Store interface {
	Save(ctx context.Context, snap *Snapshot) error
	Load(ctx context.Context, bookID string) (*Snapshot, error)
}

const bookTopic = "book-events"

// Deps are the collaborators a session delegates to.
type Deps struct {
	Generator Generator
	Applier   *effects.Applier
	Sink      Sink
	Events    effects.Publisher
	Store     Store
	Logger    *slog.Logger
}

// Session is the branching narrative state for one book: its page
// graph, current pointer, and append-only choice path. A session is
// created lazily the first time a book is opened, then lives for the
// process lifetime; close only deactivates it.
type Session struct {
	deps Deps

	mu        sync.RWMutex
	bookID    string
	title     string
	seed      string
	pages     map[string]*Page
	current   string
	path      []string
	active    bool
	busy      bool
	createdAt time.Time
	lastAt    time.Time
}

// Summary is the pure-read view of a session.
type Summary struct {
	Title     string   `json:"title"`
	Seed      string   `json:"seed"`
	Path      []string `json:"path"`
	PageCount int      `json:"page_count"`
}

// DeriveSeed produces the stable generation seed for a player and
// book pairing.
func DeriveSeed(playerID, bookID string) string {
	sum := sha256.Sum256([]byte(playerID + ":" + bookID))
	return hex.EncodeToString(sum[:])[:16]
}

// NewSession creates the in-memory state for a book. It does not
// issue any generation call; Open does that.
func NewSession(bookID, playerID string, deps Deps) *Session {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	now := time.Now().UTC()
	return &Session{
		deps:      deps,
		bookID:    bookID,
		title:     TitleFromSlug(bookID),
		seed:      DeriveSeed(playerID, bookID),
		pages:     make(map[string]*Page),
		createdAt: now,
		lastAt:    now,
	}
}

func (s *Session) BookID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bookID
}

func (s *Session) Title() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.title
}

func (s *Session) Seed() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seed
}

// Path returns a copy of the append-only choice path.
func (s *Session) Path() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.path...)
}

// CurrentPage returns the page the session pointer rests on, or nil.
func (s *Session) CurrentPage() *Page {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == "" {
		return nil
	}
	return s.pages[s.current]
}

func (s *Session) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// State derives the lifecycle state from the session fields.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	page, ok := s.pages[s.current]
	switch {
	case s.busy:
		return StateAwaitingPage
	case !s.active:
		return StateClosed
	case s.current == "" || !ok:
		return StateClosed
	case page.IsTerminal():
		return StateEnded
	default:
		return StateAwaitingChoice
	}
}

// Open activates the session. The first open requests page one; any
// later open re-renders the existing current page without a network
// call, making resume idempotent.
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return ErrBusy
	}
	s.active = true
	if s.current != "" {
		page := s.pages[s.current]
		s.lastAt = time.Now().UTC()
		s.mu.Unlock()
		s.deps.Sink.ShowPage(page)
		return nil
	}
	s.busy = true
	s.mu.Unlock()
	defer s.setBusy(false)

	s.publish(ctx, "book.opened", map[string]any{"book_id": s.BookID()})

	builder := NewPrompt(s)
	return s.requestPage(ctx, builder.BuildSystem(), builder.BuildUser())
}

// Choose resolves the reader's input against the current page's
// choices, applies the choice's immediate effects, appends it to the
// path, and requests the next page.
func (s *Session) Choose(ctx context.Context, token string) error {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return ErrBusy
	}
	if s.current == "" {
		s.mu.Unlock()
		return ErrNoCurrentPage
	}
	page := s.pages[s.current]
	if page.IsTerminal() {
		s.mu.Unlock()
		return ErrEnded
	}

	idx, choice := resolveChoice(token, page.Choices)
	if choice == nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrChoiceNotFound, token)
	}

	pathEntry := choice.ID
	if pathEntry == "" {
		pathEntry = strconv.Itoa(idx + 1)
	}
	s.path = append(s.path, pathEntry)
	s.busy = true
	s.mu.Unlock()
	defer s.setBusy(false)

	if choice.Effects != nil {
		s.deps.Applier.Apply(ctx, choice.Effects)
	}

	builder := NewPrompt(s).WithChoice(choice)
	if err := s.requestPage(ctx, builder.BuildSystem(), builder.BuildUser()); err != nil {
		// The transition did not complete. Remove the entry so the
		// path only ever records completed transitions and a retry
		// appends it exactly once.
		s.mu.Lock()
		s.path = s.path[:len(s.path)-1]
		s.mu.Unlock()
		return err
	}
	return nil
}

// Ask runs a side query scoped to the current page. It mutates
// neither pages nor path.
func (s *Session) Ask(ctx context.Context, question string) (string, error) {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return "", ErrBusy
	}
	if s.current == "" {
		s.mu.Unlock()
		return "", ErrNoCurrentPage
	}
	s.busy = true
	s.mu.Unlock()
	defer s.setBusy(false)

	builder := NewPrompt(s).WithQuestion(question)
	answer, err := s.deps.Generator.GenerateText(ctx, builder.BuildSystem(), builder.BuildUser())
	if err != nil {
		return "", fmt.Errorf("ask failed: %w", err)
	}

	s.touch()
	s.deps.Sink.ShowText(answer)
	return answer, nil
}

// Draw requests an illustration for the current page and returns a
// displayable reference.
func (s *Session) Draw(ctx context.Context) (string, error) {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return "", ErrBusy
	}
	if s.current == "" {
		s.mu.Unlock()
		return "", ErrNoCurrentPage
	}
	page := s.pages[s.current]
	s.busy = true
	s.mu.Unlock()
	defer s.setBusy(false)

	prompt := page.IllustrationPrompt
	if prompt == "" {
		prompt = fmt.Sprintf("An illustration for %q: %s", page.Title, excerpt(page.Prose, 300))
	}

	ref, err := s.deps.Generator.GenerateImage(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("draw failed: %w", err)
	}

	s.touch()
	s.deps.Sink.ShowImage(ref)
	return ref, nil
}

// Close deactivates the session. Pages and path are retained, so a
// closed session can be resumed.
func (s *Session) Close(ctx context.Context) {
	s.mu.Lock()
	s.active = false
	s.lastAt = time.Now().UTC()
	s.mu.Unlock()

	s.publish(ctx, "book.closed", map[string]any{"book_id": s.BookID()})
	s.save(ctx)
}

// Resume reactivates the session and re-renders the current page
// without a network call.
func (s *Session) Resume() {
	s.mu.Lock()
	s.active = true
	s.lastAt = time.Now().UTC()
	page := (*Page)(nil)
	if s.current != "" {
		page = s.pages[s.current]
	}
	s.mu.Unlock()

	if page != nil {
		s.deps.Sink.ShowPage(page)
	}
}

// Summary returns the pure-read view; no state changes.
func (s *Session) Summary() Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Summary{
		Title:     s.title,
		Seed:      s.seed,
		Path:      append([]string(nil), s.path...),
		PageCount: len(s.pages),
	}
}

// requestPage runs one generation call and folds the result into the
// session. On any failure the session keeps its prior stable state:
// no partial page is stored and the pointer does not move.
func (s *Session) requestPage(ctx context.Context, system, user string) error {
	raw, err := s.deps.Generator.GenerateText(ctx, system, user)
	if err != nil {
		s.deps.Sink.ShowText(msgPageRefuses)
		return fmt.Errorf("page generation failed: %w", err)
	}

	page, err := ExtractPage(raw)
	if err != nil {
		s.deps.Logger.Warn("Model output yielded no page", "book_id", s.BookID())
		s.deps.Sink.ShowText(msgPageRefuses)
		return err
	}

	s.mu.Lock()
	page.Normalize(len(s.pages))
	if _, exists := s.pages[page.PageID]; exists {
		// Model-chosen ids are only locally meaningful; collisions
		// within a session are last-write-wins.
		s.deps.Logger.Warn("Duplicate page id, overwriting",
			"book_id", s.bookID, "page_id", page.PageID)
	}
	s.pages[page.PageID] = page
	s.current = page.PageID
	s.lastAt = time.Now().UTC()
	s.mu.Unlock()

	if page.Effects != nil {
		s.deps.Applier.Apply(ctx, page.Effects)
	}

	s.publish(ctx, "page.rendered", map[string]any{
		"book_id":  s.BookID(),
		"page_id":  page.PageID,
		"terminal": page.IsTerminal(),
	})
	s.save(ctx)
	s.deps.Sink.ShowPage(page)
	return nil
}

func (s *Session) setBusy(b bool) {
	s.mu.Lock()
	s.busy = b
	s.mu.Unlock()
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastAt = time.Now().UTC()
	s.mu.Unlock()
}

// publish is best-effort; a failed publish never blocks the story.
func (s *Session) publish(ctx context.Context, eventType string, payload map[string]any) {
	if s.deps.Events == nil {
		return
	}
	if err := s.deps.Events.Publish(ctx, bookTopic, eventType, payload); err != nil {
		s.deps.Logger.Debug("Failed to publish book event", "error", err, "event_type", eventType)
	}
}

// save is best-effort snapshot persistence.
func (s *Session) save(ctx context.Context) {
	if s.deps.Store == nil {
		return
	}
	if err := s.deps.Store.Save(ctx, s.Snapshot()); err != nil {
		s.deps.Logger.Error("Failed to save session snapshot", "error", err, "book_id", s.BookID())
	}
}

// resolveChoice matches reader input against the page's choices in
// strict order: exact 1-based index, exact id (case-insensitive), id
// prefix, label prefix. The numeric check runs first even when the
// token would also be a valid id prefix.
func resolveChoice(token string, choices []Choice) (int, *Choice) {
	token = strings.TrimSpace(token)
	if token == "" {
		return -1, nil
	}

	if n, err := strconv.Atoi(token); err == nil && n >= 1 && n <= len(choices) {
		return n - 1, &choices[n-1]
	}

	lower := strings.ToLower(token)
	for i := range choices {
		if strings.ToLower(choices[i].ID) == lower {
			return i, &choices[i]
		}
	}
	for i := range choices {
		if choices[i].ID != "" && strings.HasPrefix(strings.ToLower(choices[i].ID), lower) {
			return i, &choices[i]
		}
	}
	for i := range choices {
		if strings.HasPrefix(strings.ToLower(choices[i].Label), lower) {
			return i, &choices[i]
		}
	}

	return -1, nil
}
