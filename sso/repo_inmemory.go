package sso

import (
	"errors"
	"sync"
)

// InMemoryRegistry is a thread-safe in-memory implementation of Registry.
type InMemoryRegistry struct {
	mu       sync.RWMutex
	sessions map[string][]Session // principalID -> legs, oldest first
}

func NewInMemoryRegistry() *InMemoryRegistry {
	return &InMemoryRegistry{
		sessions: make(map[string][]Session),
	}
}

var _ Registry = (*InMemoryRegistry)(nil)

func (r *InMemoryRegistry) Record(principalID string, session Session) error {
	if principalID == "" {
		return errors.New("principalID is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[principalID] = append(r.sessions[principalID], session)
	return nil
}

func (r *InMemoryRegistry) Active(principalID string) []Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	legs := r.sessions[principalID]
	if len(legs) == 0 {
		return nil
	}
	out := make([]Session, len(legs))
	copy(out, legs)
	return out
}

func (r *InMemoryRegistry) Clear(principalID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, principalID)
	return nil
}

func (r *InMemoryRegistry) DropBySessionIndex(sessionIndex string) int {
	if sessionIndex == "" {
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	dropped := 0
	for principalID, legs := range r.sessions {
		kept := legs[:0]
		for _, leg := range legs {
			if leg.SessionIndex == sessionIndex {
				dropped++
				continue
			}
			kept = append(kept, leg)
		}
		if len(kept) == 0 {
			delete(r.sessions, principalID)
		} else {
			r.sessions[principalID] = kept
		}
	}
	return dropped
}
