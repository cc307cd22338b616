package memory

import (
	"context"
	"sync"

	"github.com/aretw0/graphlens/pkg/domain"
	"github.com/aretw0/graphlens/pkg/ports"
)

// Store implements ports.HistoryStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]domain.HistoryEntry
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]domain.HistoryEntry),
	}
}

// Put stores the entry, replacing any entry with the same filename.
func (s *Store) Put(ctx context.Context, entry domain.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[entry.Filename] = entry
	return nil
}

// Get retrieves an entry by filename.
func (s *Store) Get(ctx context.Context, filename string) (*domain.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.data[filename]
	if !ok {
		return nil, domain.ErrHistoryNotFound
	}
	return &entry, nil
}

// Delete removes the entry.
func (s *Store) Delete(ctx context.Context, filename string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, filename)
	return nil
}

// List returns all entries, most recent first.
func (s *Store) List(ctx context.Context) ([]domain.HistoryEntry, error) {
	s.mu.RLock()
	entries := make([]domain.HistoryEntry, 0, len(s.data))
	for _, e := range s.data {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	ports.SortHistory(entries)
	return entries, nil
}
