package knowledge

import (
	"math"
	"sort"
)

// DefaultCollection is the collection chunks are stored under.
const DefaultCollection = "my_docs"

// Chunk is one embedded piece of a source document.
type Chunk struct {
	ID        string         `json:"id"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Embedding []float32      `json:"embedding,omitempty"`
}

// Source returns the "source" metadata value, if any.
func (c Chunk) Source() string {
	s, _ := c.Metadata["source"].(string)
	return s
}

// ScoredChunk is a search hit.
type ScoredChunk struct {
	Chunk
	Score float64 `json:"score"`
}

// topK keeps the k best-scoring chunks, highest first.
func topK(hits []ScoredChunk, k int) []ScoredChunk {
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
	if k < len(hits) {
		hits = hits[:k]
	}
	return hits
}

// cosineSimilarity returns 0 for vectors of different length or zero norm.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
