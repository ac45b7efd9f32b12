// Package pantry keeps the household state that outlives a single analysis:
// the shopping list and the saved fridge profiles.
package pantry

import (
	"context"
	"sync"
)

// Keys under which the collections are stored. Each value is the whole
// collection as JSON, rewritten on every change.
const (
	ShoppingListKey = "pantry_list"
	ProfilesKey     = "fridge_profiles"
)

// Store is a key/value store for JSON documents.
type Store interface {
	// Load returns the value stored under key, or nil if there is none.
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, value []byte) error
}

// MemoryStore is a Store backed by a map. It is safe for concurrent use.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string][]byte)}
}

// Load implements Store.
func (s *MemoryStore) Load(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.values[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

// Save implements Store.
func (s *MemoryStore) Save(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = append([]byte(nil), value...)
	return nil
}
