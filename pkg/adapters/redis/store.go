package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aretw0/graphlens/pkg/domain"
	"github.com/aretw0/graphlens/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

// record is the JSON value stored in the history hash.
type record struct {
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
	Digest    string `json:"digest,omitempty"`
}

// Store implements ports.HistoryStore using Redis. Entries live in one hash
// keyed by filename; a sorted set scored by load time indexes them.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

type Option func(*Store)

// WithTTL expires entries that were loaded longer than ttl ago. Expired
// entries are pruned lazily on List.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// WithClock overrides the time source used for expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: "graphlens:",
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func (s *Store) hashKey() string {
	return s.prefix + "fileHistory"
}

func (s *Store) indexKey() string {
	return s.prefix + "fileHistory:index"
}

// Put stores the entry, replacing any entry with the same filename.
func (s *Store) Put(ctx context.Context, entry domain.HistoryEntry) error {
	data, err := json.Marshal(record{Content: entry.Content, Timestamp: entry.Timestamp, Digest: entry.Digest})
	if err != nil {
		return fmt.Errorf("failed to marshal history entry: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.hashKey(), entry.Filename, data)
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{
		Score:  float64(entry.Timestamp),
		Member: entry.Filename,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// Get retrieves an entry by filename.
func (s *Store) Get(ctx context.Context, filename string) (*domain.HistoryEntry, error) {
	val, err := s.client.HGet(ctx, s.hashKey(), filename).Result()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrHistoryNotFound
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}
	return decodeRecord(filename, val)
}

// Delete removes the entry.
func (s *Store) Delete(ctx context.Context, filename string) error {
	pipe := s.client.TxPipeline()
	pipe.HDel(ctx, s.hashKey(), filename)
	pipe.ZRem(ctx, s.indexKey(), filename)
	_, err := pipe.Exec(ctx)
	return err
}

// List returns all entries, most recent first.
func (s *Store) List(ctx context.Context) ([]domain.HistoryEntry, error) {
	if err := s.prune(ctx); err != nil {
		return nil, err
	}

	names, err := s.client.ZRevRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	if len(names) == 0 {
		return []domain.HistoryEntry{}, nil
	}

	vals, err := s.client.HMGet(ctx, s.hashKey(), names...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch history entries: %w", err)
	}

	entries := make([]domain.HistoryEntry, 0, len(names))
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			// Index entry without a value: removed concurrently.
			continue
		}
		e, err := decodeRecord(names[i], str)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	ports.SortHistory(entries)
	return entries, nil
}

// prune drops entries older than the TTL from both keys.
func (s *Store) prune(ctx context.Context) error {
	if s.ttl <= 0 {
		return nil
	}
	cutoff := strconv.FormatInt(s.now().Add(-s.ttl).UnixMilli(), 10)
	expired, err := s.client.ZRangeByScore(ctx, s.indexKey(), &backend.ZRangeBy{Min: "-inf", Max: "(" + cutoff}).Result()
	if err != nil {
		return fmt.Errorf("failed to find expired history: %w", err)
	}
	if len(expired) == 0 {
		return nil
	}

	pipe := s.client.TxPipeline()
	pipe.HDel(ctx, s.hashKey(), expired...)
	pipe.ZRemRangeByScore(ctx, s.indexKey(), "-inf", "("+cutoff)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to prune expired history: %w", err)
	}
	return nil
}

func decodeRecord(filename, val string) (*domain.HistoryEntry, error) {
	var rec record
	if err := json.Unmarshal([]byte(val), &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal history entry: %w", err)
	}
	return &domain.HistoryEntry{Filename: filename, Content: rec.Content, Timestamp: rec.Timestamp, Digest: rec.Digest}, nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
