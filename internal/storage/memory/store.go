// Package memory stores downloads in-memory for tests and dry runs.
package memory

import (
	"context"
	"fmt"
	"path"
	"sync"
)

// Store keeps saved bodies keyed by dir/name. Later saves overwrite earlier ones.
type Store struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string][]byte),
	}
}

// Save records body under dir/name and returns a memory:// path.
func (s *Store) Save(ctx context.Context, dir, name string, body []byte) (string, int64, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, fmt.Errorf("save canceled: %w", err)
	}
	if name == "" {
		return "", 0, fmt.Errorf("name is required")
	}
	key := path.Join(dir, name)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = append([]byte(nil), body...)
	return "memory://" + key, int64(len(body)), nil
}

// Get returns a copy of the body saved under dir/name.
func (s *Store) Get(dir, name string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.data[path.Join(dir, name)]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), data...), true
}

// Len returns the number of distinct files held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
