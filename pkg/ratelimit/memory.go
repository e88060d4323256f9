package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a process-local sliding window, for tests and for
// single-instance deployments without Redis. Limits enforced here do
// not hold across instances.
type MemoryStore struct {
	mu   sync.Mutex
	hits map[string][]time.Time
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{hits: make(map[string][]time.Time)}
}

// Add implements SlidingWindow.
func (s *MemoryStore) Add(ctx context.Context, key string, now time.Time, window time.Duration) (int, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := now.Add(-window)
	kept := s.hits[key][:0]
	for _, hit := range s.hits[key] {
		if hit.After(cutoff) {
			kept = append(kept, hit)
		}
	}
	kept = append(kept, now)
	s.hits[key] = kept

	return len(kept), kept[0], nil
}
