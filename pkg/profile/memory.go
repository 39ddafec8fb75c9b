package profile

import (
	"context"
	"sync"
)

// MemoryStore implements Store with an in-memory map.
// Useful for tests and single-node deployments seeded at startup.
type MemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]*Profile
}

// NewMemoryStore creates an empty in-memory profile store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{profiles: make(map[string]*Profile)}
}

// Put adds or replaces a profile.
func (s *MemoryStore) Put(p *Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.ToyID] = p
}

// Get returns the profile for a toy, or ErrNotFound.
func (s *MemoryStore) Get(ctx context.Context, toyID string) (*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[toyID]
	if !ok {
		return nil, ErrNotFound
	}

	// Return a copy; callers must not mutate stored profiles.
	cp := *p
	return &cp, nil
}

// Verify MemoryStore implements Store at compile time.
var _ Store = (*MemoryStore)(nil)
