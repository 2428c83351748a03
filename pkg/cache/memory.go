package cache

import (
	"context"
	"sync"
)

// memorySweepEvery is the number of writes between sweeps of expired
// entries. Expired entries are also dropped on read, so the sweep only
// bounds memory held by keys that are never read again.
const memorySweepEvery = 256

// MemoryStore is an in-process Store backed by a map. It is the default
// backend: no external service, no persistence, entries vanish with the
// process.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	writes  int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*Entry),
	}
}

// Get retrieves the entry for key.
// Returns ErrCacheMiss if the key doesn't exist or the entry is expired.
func (s *MemoryStore) Get(_ context.Context, key Key) (*Entry, error) {
	k := key.String()

	s.mu.RLock()
	entry, ok := s.entries[k]
	s.mu.RUnlock()

	if !ok {
		CacheMisses.WithLabelValues("memory").Inc()
		return nil, ErrCacheMiss
	}

	if entry.IsExpired() {
		s.mu.Lock()
		// Re-check: another reader may have evicted it already.
		if cur, ok := s.entries[k]; ok && cur.IsExpired() {
			delete(s.entries, k)
			CacheEvictions.WithLabelValues("memory").Inc()
		}
		s.mu.Unlock()
		CacheMisses.WithLabelValues("memory").Inc()
		return nil, ErrCacheMiss
	}

	CacheHits.WithLabelValues("memory").Inc()
	return entry, nil
}

// Set stores an entry. Entries that are already expired are dropped.
func (s *MemoryStore) Set(_ context.Context, key Key, entry *Entry) error {
	if entry == nil {
		return ErrInvalidEntry
	}
	if entry.TTL() <= 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key.String()] = entry
	s.writes++
	if s.writes%memorySweepEvery == 0 {
		s.sweepLocked()
	}
	return nil
}

// Delete removes the entry for key.
func (s *MemoryStore) Delete(_ context.Context, key Key) error {
	s.mu.Lock()
	delete(s.entries, key.String())
	s.mu.Unlock()
	return nil
}

// Close discards all entries.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	s.entries = make(map[string]*Entry)
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, including not yet swept
// expired ones.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *MemoryStore) sweepLocked() {
	for k, e := range s.entries {
		if e.IsExpired() {
			delete(s.entries, k)
			CacheEvictions.WithLabelValues("memory").Inc()
		}
	}
}
