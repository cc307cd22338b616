// Package sqlite provides a ports.HistoryStore backed by an embedded SQLite
// database.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	"github.com/aretw0/graphlens/pkg/domain"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schema string

// Store implements ports.HistoryStore on a single SQLite table.
type Store struct {
	conn *sql.DB
}

// Open opens or creates the database at path and applies the schema.
// Use ":memory:" for a throwaway database.
func Open(path string) (*Store, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// SQLite serializes writers anyway; one connection avoids SQLITE_BUSY
	// and keeps ":memory:" databases shared.
	conn.SetMaxOpenConns(1)

	if path != ":memory:" {
		if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
			conn.Close()
			return nil, fmt.Errorf("enabling WAL mode: %w", err)
		}
	}
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &Store{conn: conn}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Put stores the entry, replacing any entry with the same filename.
func (s *Store) Put(ctx context.Context, entry domain.HistoryEntry) error {
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO file_history (filename, content, timestamp, digest)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(filename) DO UPDATE SET
			content = excluded.content,
			timestamp = excluded.timestamp,
			digest = excluded.digest
	`, entry.Filename, entry.Content, entry.Timestamp, entry.Digest)
	if err != nil {
		return fmt.Errorf("inserting history entry: %w", err)
	}
	return nil
}

// Get retrieves an entry by filename.
func (s *Store) Get(ctx context.Context, filename string) (*domain.HistoryEntry, error) {
	e := domain.HistoryEntry{Filename: filename}
	err := s.conn.QueryRowContext(ctx,
		`SELECT content, timestamp, digest FROM file_history WHERE filename = ?`, filename,
	).Scan(&e.Content, &e.Timestamp, &e.Digest)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrHistoryNotFound
		}
		return nil, fmt.Errorf("querying history entry: %w", err)
	}
	return &e, nil
}

// Delete removes the entry.
func (s *Store) Delete(ctx context.Context, filename string) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM file_history WHERE filename = ?`, filename); err != nil {
		return fmt.Errorf("deleting history entry: %w", err)
	}
	return nil
}

// List returns all entries, most recent first.
func (s *Store) List(ctx context.Context) ([]domain.HistoryEntry, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT filename, content, timestamp, digest
		FROM file_history
		ORDER BY timestamp DESC, filename ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("listing history: %w", err)
	}
	defer rows.Close()

	entries := []domain.HistoryEntry{}
	for rows.Next() {
		var e domain.HistoryEntry
		if err := rows.Scan(&e.Filename, &e.Content, &e.Timestamp, &e.Digest); err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
