package ports

import (
	"context"

	"github.com/aretw0/graphlens/pkg/domain"
)

// HistoryStore persists previously loaded files by filename.
// Implementations must be safe for concurrent use.
type HistoryStore interface {
	// Put stores the entry, replacing any entry with the same filename.
	Put(ctx context.Context, entry domain.HistoryEntry) error

	// Get returns the entry for filename.
	// Returns domain.ErrHistoryNotFound if there is none.
	Get(ctx context.Context, filename string) (*domain.HistoryEntry, error)

	// Delete removes the entry for filename. Deleting a missing entry is not an error.
	Delete(ctx context.Context, filename string) error

	// List returns every entry, most recent first.
	List(ctx context.Context) ([]domain.HistoryEntry, error)
}
