package utils

import (
	"sync"
	"sync/atomic"
)

// Gate is a single-slot in-flight guard. TryAcquire succeeds only when no
// other holder is active, so a long-running cycle cannot overlap with itself.
type Gate struct {
	busy atomic.Bool
}

// TryAcquire claims the gate. Returns false if it is already held.
func (g *Gate) TryAcquire() bool {
	return g.busy.CompareAndSwap(false, true)
}

// Release frees the gate for the next acquirer.
func (g *Gate) Release() {
	g.busy.Store(false)
}

// InFlight reports whether the gate is currently held.
func (g *Gate) InFlight() bool {
	return g.busy.Load()
}

// URLSet is a thread-safe set for tracking seen listing identifiers.
type URLSet struct {
	mu   sync.RWMutex
	seen map[string]struct{}
}

// NewURLSet creates an empty URLSet.
func NewURLSet() *URLSet {
	return &URLSet{seen: make(map[string]struct{})}
}

// Add returns true if the key was newly added, false if already present.
func (s *URLSet) Add(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.seen[key]; exists {
		return false
	}
	s.seen[key] = struct{}{}
	return true
}

// Contains returns true if the key has already been seen.
func (s *URLSet) Contains(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, exists := s.seen[key]
	return exists
}

// Size returns the number of unique keys tracked.
func (s *URLSet) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.seen)
}
