package knowledge

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// Store keeps embedded chunks and finds the ones closest to a query vector.
type Store interface {
	Add(ctx context.Context, chunks []Chunk) error
	Search(ctx context.Context, embedding []float32, k int) ([]ScoredChunk, error)
	Count(ctx context.Context) (int, error)
	// Sample returns up to n chunks in storage order.
	Sample(ctx context.Context, n int) ([]Chunk, error)
	Close() error
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu     sync.RWMutex
	chunks []Chunk
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Add(_ context.Context, chunks []Chunk) error {
	for _, c := range chunks {
		if len(c.Embedding) == 0 {
			return fmt.Errorf("chunk %s has no embedding", c.ID)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = append(s.chunks, chunks...)
	return nil
}

func (s *MemoryStore) Search(_ context.Context, embedding []float32, k int) ([]ScoredChunk, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	hits := make([]ScoredChunk, 0, len(s.chunks))
	for _, c := range s.chunks {
		hits = append(hits, ScoredChunk{Chunk: c, Score: cosineSimilarity(embedding, c.Embedding)})
	}
	return topK(hits, k), nil
}

func (s *MemoryStore) Count(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks), nil
}

func (s *MemoryStore) Sample(_ context.Context, n int) ([]Chunk, error) {
	if n <= 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.chunks[:min(n, len(s.chunks))]), nil
}

func (s *MemoryStore) Close() error {
	return nil
}
