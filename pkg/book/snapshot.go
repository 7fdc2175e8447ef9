package book

import (
	"time"
)

// Snapshot is the serializable form of a session: plain structured
// data with no function values or live handles, suitable for storage.
type Snapshot struct {
	BookID    string           `json:"book_id"`
	Title     string           `json:"title"`
	Seed      string           `json:"seed"`
	Pages     map[string]*Page `json:"pages"`
	Current   string           `json:"current,omitempty"`
	Path      []string         `json:"path"`
	Active    bool             `json:"active"`
	CreatedAt time.Time        `json:"created_at"`
	LastAt    time.Time        `json:"last_at"`
}

// Snapshot captures the current session state.
func (s *Session) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pages := make(map[string]*Page, len(s.pages))
	for id, p := range s.pages {
		pages[id] = p
	}

	return &Snapshot{
		BookID:    s.bookID,
		Title:     s.title,
		Seed:      s.seed,
		Pages:     pages,
		Current:   s.current,
		Path:      append([]string(nil), s.path...),
		Active:    s.active,
		CreatedAt: s.createdAt,
		LastAt:    s.lastAt,
	}
}

// RestoreSession rebuilds a session from a snapshot. The restored
// session is inactive until opened or resumed.
func RestoreSession(snap *Snapshot, deps Deps) *Session {
	s := NewSession(snap.BookID, "", deps)
	s.title = snap.Title
	s.seed = snap.Seed
	if snap.Pages != nil {
		s.pages = snap.Pages
	}
	s.current = snap.Current
	// A hand-edited or corrupt snapshot may point at a page that was
	// never stored; treat it as having no current page.
	if _, ok := s.pages[s.current]; !ok {
		s.current = ""
	}
	s.path = append([]string(nil), snap.Path...)
	s.active = false
	if !snap.CreatedAt.IsZero() {
		s.createdAt = snap.CreatedAt
	}
	if !snap.LastAt.IsZero() {
		s.lastAt = snap.LastAt
	}
	return s
}
