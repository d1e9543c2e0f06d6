// Package redis stores run history in Redis: one JSON value per record and
// a sorted set indexing record IDs by creation time.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kbrouter/kbrouter/history"
	"github.com/redis/go-redis/v9"
)

// Store implements history.Store using Redis
type Store struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ history.Store = (*Store)(nil)

// Options configuration for Redis connection
type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string        // Key prefix, default "kbrouter:"
	TTL      time.Duration // Expiration for records, default 0 (no expiration)
}

// New creates a new Redis history store
func New(opts Options) *Store {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return NewWithClient(client, opts.Prefix, opts.TTL)
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, prefix string, ttl time.Duration) *Store {
	if prefix == "" {
		prefix = "kbrouter:"
	}
	return &Store{client: client, prefix: prefix, ttl: ttl}
}

func (s *Store) recordKey(id string) string {
	return fmt.Sprintf("%shistory:%s", s.prefix, id)
}

func (s *Store) indexKey() string {
	return s.prefix + "history:index"
}

// Save stores a record and indexes it by creation time
func (s *Store) Save(ctx context.Context, rec *history.Record) error {
	history.Prepare(rec)
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal history record: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.recordKey(rec.ID), data, s.ttl)
	pipe.ZAdd(ctx, s.indexKey(), redis.Z{
		Score:  float64(rec.CreatedAt.UnixNano()),
		Member: rec.ID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save history record to redis: %w", err)
	}
	return nil
}

// Load retrieves a record by ID
func (s *Store) Load(ctx context.Context, id string) (*history.Record, error) {
	data, err := s.client.Get(ctx, s.recordKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, history.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load history record from redis: %w", err)
	}

	var rec history.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal history record: %w", err)
	}
	return &rec, nil
}

// List returns the newest records first. Index entries whose record has
// expired are pruned from the index.
func (s *Store) List(ctx context.Context, limit int) ([]*history.Record, error) {
	limit = history.NormalizeLimit(limit)
	ids, err := s.client.ZRevRange(ctx, s.indexKey(), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read history index: %w", err)
	}
	if len(ids) == 0 {
		return []*history.Record{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.recordKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch history records: %w", err)
	}

	out := make([]*history.Record, 0, len(values))
	var stale []any
	for i, v := range values {
		str, ok := v.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		var rec history.Record
		if err := json.Unmarshal([]byte(str), &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal history record %s: %w", ids[i], err)
		}
		out = append(out, &rec)
	}
	if len(stale) > 0 {
		if err := s.client.ZRem(ctx, s.indexKey(), stale...).Err(); err != nil {
			return nil, fmt.Errorf("failed to prune history index: %w", err)
		}
	}
	return out, nil
}

// Close closes the client
func (s *Store) Close() error {
	return s.client.Close()
}
