// Package memory provides a thread-safe in-memory storage.Backend for
// tests and demos.
package memory

import (
	"fmt"
	"sync"

	"github.com/itc-kingsavage/savage-scanner/storage"
)

// Store is an in-memory storage.Backend.
type Store struct {
	mu   sync.RWMutex
	data map[string]*storage.SessionRecord
}

var _ storage.Backend = (*Store)(nil)

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{data: make(map[string]*storage.SessionRecord)}
}

func (s *Store) Put(sessionID string, record *storage.SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[sessionID] = record.Clone()
	return nil
}

func (s *Store) Get(sessionID string) (*storage.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.data[sessionID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", sessionID, storage.ErrNotFound)
	}
	return rec.Clone(), nil
}

func (s *Store) Delete(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[sessionID]; !ok {
		return fmt.Errorf("%s: %w", sessionID, storage.ErrNotFound)
	}
	delete(s.data, sessionID)
	return nil
}

func (s *Store) List() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	return ids, nil
}
