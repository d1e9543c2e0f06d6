package knowledge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// BadgerStore persists chunks in a badger database. Each chunk is one JSON
// value under "<collection>/chunk/<id>"; search scans the collection.
type BadgerStore struct {
	db         *badger.DB
	collection string
	prefix     []byte
}

// OpenBadgerStore opens or creates the store at dir. An empty dir keeps the
// data in memory.
func OpenBadgerStore(dir, collection string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open vector store: %w", err)
	}
	return NewBadgerStore(db, collection), nil
}

// NewBadgerStore uses an already open database.
func NewBadgerStore(db *badger.DB, collection string) *BadgerStore {
	if collection == "" {
		collection = DefaultCollection
	}
	return &BadgerStore{
		db:         db,
		collection: collection,
		prefix:     []byte(collection + "/chunk/"),
	}
}

// Collection returns the collection name.
func (s *BadgerStore) Collection() string {
	return s.collection
}

func (s *BadgerStore) Add(_ context.Context, chunks []Chunk) error {
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for _, c := range chunks {
		if c.ID == "" || len(c.Embedding) == 0 {
			return fmt.Errorf("chunk %q needs an id and an embedding", c.ID)
		}
		data, err := json.Marshal(c)
		if err != nil {
			return err
		}
		if err := wb.Set(append(append([]byte{}, s.prefix...), c.ID...), data); err != nil {
			return fmt.Errorf("store chunk %s: %w", c.ID, err)
		}
	}
	return wb.Flush()
}

func (s *BadgerStore) Search(ctx context.Context, embedding []float32, k int) ([]ScoredChunk, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive")
	}

	var hits []ScoredChunk
	err := s.scan(ctx, func(c Chunk) bool {
		hits = append(hits, ScoredChunk{Chunk: c, Score: cosineSimilarity(embedding, c.Embedding)})
		return true
	})
	if err != nil {
		return nil, err
	}
	return topK(hits, k), nil
}

func (s *BadgerStore) Count(ctx context.Context) (int, error) {
	n := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = s.prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	return n, err
}

func (s *BadgerStore) Sample(ctx context.Context, n int) ([]Chunk, error) {
	var out []Chunk
	if n <= 0 {
		return out, nil
	}
	err := s.scan(ctx, func(c Chunk) bool {
		out = append(out, c)
		return len(out) < n
	})
	return out, err
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// scan decodes chunks in key order until fn returns false.
func (s *BadgerStore) scan(ctx context.Context, fn func(Chunk) bool) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = s.prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var c Chunk
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &c)
			})
			if err != nil {
				return fmt.Errorf("decode chunk %s: %w", it.Item().Key(), err)
			}
			if !fn(c) {
				return nil
			}
		}
		return nil
	})
}
