package session

import (
	"context"
	"sync"
)

// MemoryStore keeps sessions in process memory. Entries never expire.
type MemoryStore struct {
	mu     sync.Mutex
	states map[Key]State
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[Key]State)}
}

func (s *MemoryStore) Get(_ context.Context, key Key) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[key], nil
}

func (s *MemoryStore) Set(_ context.Context, key Key, state State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state.Empty() {
		delete(s.states, key)
		return nil
	}
	s.states[key] = state
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, key)
	return nil
}
