package history

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory [Store] for tests and deployments without
// durable storage. Safe for concurrent use.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]Entry
}

// Compile-time interface check.
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty [MemoryStore].
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

// Append implements [Store].
func (s *MemoryStore) Append(_ context.Context, e Entry) (Entry, error) {
	e.ID = uuid.NewString()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if e.Tips == nil {
		e.Tips = []string{}
	}
	s.mu.Lock()
	s.entries[e.ID] = e
	s.mu.Unlock()
	return e, nil
}

// ListByUser implements [Store].
func (s *MemoryStore) ListByUser(_ context.Context, userID string) ([]Entry, error) {
	s.mu.Lock()
	out := make([]Entry, 0)
	for _, e := range s.entries {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Get implements [Store].
func (s *MemoryStore) Get(_ context.Context, id string) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return e, nil
}

// Delete implements [Store].
func (s *MemoryStore) Delete(_ context.Context, id, requestingUserID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return ErrNotFound
	}
	if e.UserID != requestingUserID {
		return ErrForbidden
	}
	delete(s.entries, id)
	return nil
}

// AggregateStats implements [Store].
func (s *MemoryStore) AggregateStats(_ context.Context, now time.Time) (*Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := &Stats{
		NeedDistribution:   make(map[string]int),
		AnimalDistribution: make(map[string]int),
	}
	users := make(map[string]struct{})
	daily := make(map[string]int)
	var totalConfidence float64

	for _, e := range s.entries {
		stats.TotalRecordings++
		users[e.UserID] = struct{}{}
		stats.NeedDistribution[string(e.DetectedNeed)]++
		stats.AnimalDistribution[string(e.AnimalType)]++
		totalConfidence += e.Confidence
		daily[e.CreatedAt.UTC().Format(dateLayout)]++
	}

	stats.TotalUsers = len(users)
	if stats.TotalRecordings > 0 {
		stats.AvgConfidence = totalConfidence / float64(stats.TotalRecordings)
	}
	stats.DailyRecordings = dailyWindow(now, daily)
	return stats, nil
}
