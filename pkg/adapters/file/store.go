package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/aretw0/graphlens/pkg/domain"
	"github.com/aretw0/graphlens/pkg/ports"
)

// HistoryKey is the fixed name of the document holding every entry.
const HistoryKey = "fileHistory"

// record is the on-disk shape of one entry, keyed by filename in the document.
type record struct {
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
	Digest    string `json:"digest,omitempty"`
}

// Store implements ports.HistoryStore as a single JSON document on the local
// filesystem. Every write rewrites the document atomically.
type Store struct {
	BasePath string
	mu       sync.Mutex
}

// New creates a new Store with the given base path.
// If basePath is empty, it defaults to ".graphlens".
func New(basePath string) *Store {
	if basePath == "" {
		basePath = ".graphlens"
	}
	return &Store{BasePath: basePath}
}

// Path is the location of the history document.
func (s *Store) Path() string {
	return filepath.Join(s.BasePath, HistoryKey+".json")
}

// Put stores the entry, replacing any entry with the same filename.
func (s *Store) Put(ctx context.Context, entry domain.HistoryEntry) error {
	if entry.Filename == "" {
		return fmt.Errorf("filename cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	doc[entry.Filename] = record{Content: entry.Content, Timestamp: entry.Timestamp, Digest: entry.Digest}
	return s.write(doc)
}

// Get retrieves an entry by filename.
func (s *Store) Get(ctx context.Context, filename string) (*domain.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	rec, ok := doc[filename]
	if !ok {
		return nil, domain.ErrHistoryNotFound
	}
	return &domain.HistoryEntry{Filename: filename, Content: rec.Content, Timestamp: rec.Timestamp, Digest: rec.Digest}, nil
}

// Delete removes the entry.
func (s *Store) Delete(ctx context.Context, filename string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	if _, ok := doc[filename]; !ok {
		return nil
	}
	delete(doc, filename)
	return s.write(doc)
}

// List returns all entries, most recent first.
func (s *Store) List(ctx context.Context) ([]domain.HistoryEntry, error) {
	s.mu.Lock()
	doc, err := s.read()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	entries := make([]domain.HistoryEntry, 0, len(doc))
	for name, rec := range doc {
		entries = append(entries, domain.HistoryEntry{Filename: name, Content: rec.Content, Timestamp: rec.Timestamp, Digest: rec.Digest})
	}
	ports.SortHistory(entries)
	return entries, nil
}

func (s *Store) read() (map[string]record, error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]record{}, nil
		}
		return nil, fmt.Errorf("failed to read history file: %w", err)
	}

	doc := map[string]record{}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal history: %w", err)
	}
	return doc, nil
}

// write replaces the document atomically: temp file in the same directory,
// fsync, then rename over the destination.
func (s *Store) write(doc map[string]record) error {
	if err := os.MkdirAll(s.BasePath, 0o755); err != nil {
		return fmt.Errorf("failed to ensure history directory: %w", err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}

	tmpFile, err := os.CreateTemp(s.BasePath, "tmp-"+HistoryKey+"-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	// Windows cannot rename an open file.
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.Path()); err != nil {
		return fmt.Errorf("failed to replace history file: %w", err)
	}
	return nil
}
