package idstore

import (
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

type entryKey struct {
	entityID string
	id       string
}

// InMemoryStore is a thread-safe in-memory implementation of Store. The
// clock is injected so expiry behaviour is deterministic under test.
type InMemoryStore struct {
	mu      sync.RWMutex
	clock   clockwork.Clock
	entries map[entryKey]Entry
}

// NewInMemoryStore creates an in-memory identifier store. A nil clock
// falls back to wall-clock time.
func NewInMemoryStore(clock clockwork.Clock) *InMemoryStore {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &InMemoryStore{
		clock:   clock,
		entries: make(map[entryKey]Entry),
	}
}

var _ Store = (*InMemoryStore)(nil)

// Set upserts the entry under the write lock, so concurrent writers for
// the same key cannot interleave a read-modify-write.
func (s *InMemoryStore) Set(entityID, id string, expiryTime time.Time) error {
	if entityID == "" || id == "" {
		return errors.New("entityID and id are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[entryKey{entityID, id}] = Entry{
		EntityID:   entityID,
		ID:         id,
		ExpiryTime: expiryTime,
	}
	return nil
}

// Has reports whether an unexpired entry exists for (entityID, id).
func (s *InMemoryStore) Has(entityID, id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[entryKey{entityID, id}]
	if !ok {
		return false
	}
	return entry.ExpiryTime.After(s.clock.Now())
}

// DeleteExpired removes logically dead rows and returns how many were
// dropped. Purely a maintenance helper; Has treats expired rows as absent
// either way.
func (s *InMemoryStore) DeleteExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	removed := 0
	for key, entry := range s.entries {
		if !entry.ExpiryTime.After(now) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}
