package user

import (
	"context"
	"sync"
)

// Store loads and persists the whole user collection.
type Store interface {
	Load(ctx context.Context) ([]User, error)
	Save(ctx context.Context, users []User) error
}

// MemoryStore implements Store with an in-memory slice.
type MemoryStore struct {
	mu    sync.RWMutex
	items []User
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied users.
func NewMemoryStore(items []User) *MemoryStore {
	return &MemoryStore{items: append([]User(nil), items...)}
}

// Load returns a copy of the stored collection.
func (s *MemoryStore) Load(ctx context.Context) ([]User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]User{}, s.items...), nil
}

// Save replaces the stored collection with a copy of users.
func (s *MemoryStore) Save(ctx context.Context, users []User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.items = append([]User{}, users...)
	s.mu.Unlock()
	return nil
}
