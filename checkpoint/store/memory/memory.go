// Package memory provides an in-memory checkpoint store for tests and
// single-process crawls that do not need durability.
package memory

import (
	"encoding/json"
	"sync"

	"github.com/jamespreed/scholar-crawler/checkpoint"
)

// Static and compile-time check to ensure InMemoryStore implements
// checkpoint.Store interface.
var _ checkpoint.Store = (*InMemoryStore)(nil)

// InMemoryStore keeps the latest checkpoint in memory. The state is
// stored serialized so later mutations of the caller's value cannot
// leak into a saved checkpoint.
type InMemoryStore struct {
	mu   sync.RWMutex
	data []byte
}

// NewInMemoryStore creates an empty in-memory checkpoint store.
func NewInMemoryStore() *InMemoryStore {
	return new(InMemoryStore)
}

// Save persists the state, replacing any previous checkpoint.
func (s *InMemoryStore) Save(state *checkpoint.State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.data = data
	s.mu.Unlock()

	return nil
}

// Load returns the most recently saved state or
// checkpoint.ErrNoCheckpoint when none exists.
func (s *InMemoryStore) Load() (*checkpoint.State, error) {
	s.mu.RLock()
	data := s.data
	s.mu.RUnlock()

	if data == nil {
		return nil, checkpoint.ErrNoCheckpoint
	}

	state := new(checkpoint.State)
	if err := json.Unmarshal(data, state); err != nil {
		return nil, err
	}

	return state, nil
}
