package player

import (
	"sort"
	"sync"
)

// State is an in-memory player stat and inventory store. It satisfies
// the effects.PlayerState interface and is shared between the session
// layer and the rest of the game, so access is mutex-guarded.
type State struct {
	mu        sync.RWMutex
	truth     float64
	coherence float64
	shadow    float64
	insight   int
	hp        int
	inventory map[string]struct{}
}

// New returns a player at full health with neutral stats.
func New() *State {
	return &State{
		truth:     0.5,
		coherence: 0.5,
		shadow:    0,
		insight:   0,
		hp:        100,
		inventory: make(map[string]struct{}),
	}
}

func (s *State) Truth() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.truth
}

func (s *State) SetTruth(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.truth = v
}

func (s *State) Coherence() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.coherence
}

func (s *State) SetCoherence(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.coherence = v
}

func (s *State) Shadow() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.shadow
}

func (s *State) SetShadow(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shadow = v
}

func (s *State) Insight() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.insight
}

func (s *State) SetInsight(v int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insight = v
}

func (s *State) HP() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hp
}

func (s *State) SetHP(v int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hp = v
}

func (s *State) AddItem(id string) {
	if id == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inventory[id] = struct{}{}
}

func (s *State) RemoveItem(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inventory, id)
}

func (s *State) HasItem(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.inventory[id]
	return ok
}

// Items returns a copy of the current inventory.
func (s *State) Items() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]string, 0, len(s.inventory))
	for id := range s.inventory {
		items = append(items, id)
	}
	sort.Strings(items)
	return items
}
