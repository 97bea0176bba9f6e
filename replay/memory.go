package replay

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a process-local NonceStore. Expired entries are evicted
// lazily on Add and by Cleanup.
type MemoryStore struct {
	entries map[string]time.Time
	mu      sync.Mutex
	nowFunc func() time.Time
	adds    int
}

var _ NonceStore = (*MemoryStore)(nil)

// sweepEvery bounds map growth without scanning on every insert.
const sweepEvery = 1024

func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		entries: make(map[string]time.Time),
		nowFunc: now,
	}
}

func (s *MemoryStore) Add(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowFunc()
	if exp, exists := s.entries[key]; exists && now.Before(exp) {
		return false, nil
	}
	s.entries[key] = now.Add(ttl)

	s.adds++
	if s.adds%sweepEvery == 0 {
		s.sweep(now)
	}
	return true, nil
}

// Cleanup removes expired entries.
func (s *MemoryStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweep(s.nowFunc())
}

func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *MemoryStore) sweep(now time.Time) {
	for key, exp := range s.entries {
		if !now.Before(exp) {
			delete(s.entries, key)
		}
	}
}
