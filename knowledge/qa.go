package knowledge

import (
	"context"
	"fmt"
	"strings"

	"github.com/kbrouter/kbrouter/log"
)

// DefaultTopK is the number of chunks stuffed into a QA prompt.
const DefaultTopK = 2

// Generator answers a prompt under a system instruction.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

const qaSystem = "Use the following pieces of context to answer the question at the end. " +
	"If you don't know the answer, just say that you don't know, don't try to make up an answer."

// Answer is a QA response with the chunks it was grounded on.
type Answer struct {
	Text    string        `json:"result"`
	Sources []ScoredChunk `json:"source_documents,omitempty"`
}

// QAEngine answers questions from a Store.
type QAEngine struct {
	store     Store
	embedder  Embedder
	generator Generator
	k         int
	logger    log.Logger
}

// NewQAEngine creates a QA engine retrieving k chunks per question. k <= 0
// uses DefaultTopK.
func NewQAEngine(store Store, embedder Embedder, generator Generator, k int, logger log.Logger) *QAEngine {
	if k <= 0 {
		k = DefaultTopK
	}
	return &QAEngine{
		store:     store,
		embedder:  embedder,
		generator: generator,
		k:         k,
		logger:    log.OrDefault(logger),
	}
}

// Ask retrieves context for question and generates an answer.
func (e *QAEngine) Ask(ctx context.Context, question string) (Answer, error) {
	vec, err := e.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return Answer{}, fmt.Errorf("embed question: %w", err)
	}
	hits, err := e.store.Search(ctx, vec, e.k)
	if err != nil {
		return Answer{}, fmt.Errorf("failed to search vector store: %w", err)
	}
	e.logger.Debug("retrieved %d chunk(s)", len(hits))

	text, err := e.generator.Generate(ctx, qaSystem, stuffPrompt(question, hits))
	if err != nil {
		return Answer{}, err
	}
	return Answer{Text: strings.TrimSpace(text), Sources: hits}, nil
}

func stuffPrompt(question string, hits []ScoredChunk) string {
	parts := make([]string, len(hits))
	for i, h := range hits {
		parts[i] = h.Content
	}
	return strings.Join(parts, "\n\n") + "\n\nQuestion: " + question + "\nHelpful Answer:"
}

// Stats describes the contents of a Store.
type Stats struct {
	Documents int     `json:"documents"`
	Samples   []Chunk `json:"samples"`
}

// CollectStats counts the stored chunks and returns up to samples of them
// without their embeddings.
func CollectStats(ctx context.Context, store Store, samples int) (Stats, error) {
	n, err := store.Count(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("count chunks: %w", err)
	}
	sample, err := store.Sample(ctx, samples)
	if err != nil {
		return Stats{}, fmt.Errorf("sample chunks: %w", err)
	}
	for i := range sample {
		sample[i].Embedding = nil
	}
	return Stats{Documents: n, Samples: sample}, nil
}
