package identity

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory [Store]. Safe for concurrent use.
type MemoryStore struct {
	mu       sync.Mutex
	profiles map[string]Profile
}

// Compile-time interface check.
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty [MemoryStore].
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{profiles: make(map[string]Profile)}
}

// Upsert implements [Store].
func (s *MemoryStore) Upsert(_ context.Context, p Profile) (Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.profiles[p.ID]; ok {
		p.CreatedAt = existing.CreatedAt
	} else if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	s.profiles[p.ID] = p
	return p, nil
}

// Get implements [Store].
func (s *MemoryStore) Get(_ context.Context, userID string) (Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		return Profile{}, ErrNotFound
	}
	return p, nil
}

// List implements [Store].
func (s *MemoryStore) List(_ context.Context) ([]Profile, error) {
	s.mu.Lock()
	out := make([]Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, p)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
