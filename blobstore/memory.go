package blobstore

import (
	"bytes"
	"context"
	"slices"
	"sync"
)

// MemoryStore keeps blobs in a map. It backs tests and serves as a scratch
// source or target for Copy.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string][]byte{}}
}

// Get returns a private copy of the content of name.
func (s *MemoryStore) Get(_ context.Context, name string) ([]byte, error) {
	s.mu.RLock()
	b, ok := s.data[name]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	// Stored slices are never mutated, so cloning outside the lock is safe.
	return bytes.Clone(b), nil
}

// Put stores a copy of data under name.
func (s *MemoryStore) Put(_ context.Context, name string, data []byte) error {
	b := append(make([]byte, 0, len(data)), data...)

	s.mu.Lock()
	s.data[name] = b
	s.mu.Unlock()
	return nil
}

// Delete drops name if present.
func (s *MemoryStore) Delete(_ context.Context, name string) error {
	s.mu.Lock()
	delete(s.data, name)
	s.mu.Unlock()
	return nil
}

// List returns the names under prefix in byte order.
func (s *MemoryStore) List(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	var names []string
	for name := range s.data {
		if HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	s.mu.RUnlock()

	slices.Sort(names)
	return names, nil
}

// Exists reports whether name is stored.
func (s *MemoryStore) Exists(_ context.Context, name string) (bool, error) {
	s.mu.RLock()
	_, ok := s.data[name]
	s.mu.RUnlock()
	return ok, nil
}

// Len returns the number of stored blobs.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
