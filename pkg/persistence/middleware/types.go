// Package middleware provides ports.HistoryStore decorators that transform
// stored content transparently to callers.
package middleware

import (
	"context"

	"github.com/aretw0/graphlens/pkg/domain"
	"github.com/aretw0/graphlens/pkg/ports"
)

// Middleware allows wrapping a HistoryStore to add behavior.
type Middleware func(ports.HistoryStore) ports.HistoryStore

// Chain applies middlewares so that the first one listed is the outermost.
func Chain(store ports.HistoryStore, mws ...Middleware) ports.HistoryStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}

// contentStore rewrites Content on the way in and out of the next store.
type contentStore struct {
	next   ports.HistoryStore
	encode func(string) (string, error)
	decode func(string) (string, error)
}

func (s *contentStore) Put(ctx context.Context, entry domain.HistoryEntry) error {
	encoded, err := s.encode(entry.Content)
	if err != nil {
		return err
	}
	entry.Content = encoded
	return s.next.Put(ctx, entry)
}

func (s *contentStore) Get(ctx context.Context, filename string) (*domain.HistoryEntry, error) {
	entry, err := s.next.Get(ctx, filename)
	if err != nil {
		return nil, err
	}
	if entry.Content, err = s.decode(entry.Content); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *contentStore) Delete(ctx context.Context, filename string) error {
	return s.next.Delete(ctx, filename)
}

func (s *contentStore) List(ctx context.Context) ([]domain.HistoryEntry, error) {
	entries, err := s.next.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if entries[i].Content, err = s.decode(entries[i].Content); err != nil {
			return nil, err
		}
	}
	return entries, nil
}
