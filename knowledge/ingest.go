package knowledge

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/textsplitter"

	"github.com/kbrouter/kbrouter/graph"
	"github.com/kbrouter/kbrouter/log"
)

// ErrNoContent is returned when a file yields no text to index.
var ErrNoContent = errors.New("document contains no extractable text")

// IngestState flows through the ingestion graph.
type IngestState struct {
	Name      string
	Data      []byte
	Documents []schema.Document
	Chunks    []Chunk
	Stored    int
}

// IngestResult summarizes one ingested file.
type IngestResult struct {
	Source    string `json:"source"`
	Documents int    `json:"documents"`
	Chunks    int    `json:"chunks"`
}

// Ingestor indexes files into a Store.
type Ingestor struct {
	store    Store
	embedder Embedder
	splitter textsplitter.TextSplitter
	logger   log.Logger

	graph    *graph.StateGraph[IngestState]
	runnable *graph.StateRunnable[IngestState]
}

// IngestorOption configures an Ingestor.
type IngestorOption func(*ingestorOptions)

type ingestorOptions struct {
	chunkSize    int
	chunkOverlap int
	logger       log.Logger
	tracer       *graph.Tracer
}

// WithChunking overrides the default chunk size and overlap.
func WithChunking(size, overlap int) IngestorOption {
	return func(o *ingestorOptions) {
		o.chunkSize = size
		o.chunkOverlap = overlap
	}
}

// WithIngestLogger sets the ingestor's logger.
func WithIngestLogger(logger log.Logger) IngestorOption {
	return func(o *ingestorOptions) {
		o.logger = logger
	}
}

// WithIngestTracer attaches a tracer to every ingestion run.
func WithIngestTracer(tracer *graph.Tracer) IngestorOption {
	return func(o *ingestorOptions) {
		o.tracer = tracer
	}
}

// NewIngestor builds the ingestion graph.
func NewIngestor(store Store, embedder Embedder, opts ...IngestorOption) (*Ingestor, error) {
	o := ingestorOptions{
		chunkSize:    DefaultChunkSize,
		chunkOverlap: DefaultChunkOverlap,
		logger:       log.GetDefaultLogger(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	splitter, err := NewSplitter(o.chunkSize, o.chunkOverlap)
	if err != nil {
		return nil, err
	}

	in := &Ingestor{
		store:    store,
		embedder: embedder,
		splitter: splitter,
		logger:   log.OrDefault(o.logger),
	}

	g := graph.NewStateGraph[IngestState]()
	g.AddNode("load", "Parse the uploaded file", in.load)
	g.AddNode("split", "Split documents into chunks", in.split)
	g.AddNode("embed", "Embed chunks", in.embed)
	g.AddNode("store", "Persist chunks in the vector store", in.persist)
	g.SetEntryPoint("load")
	g.AddEdge("load", "split")
	g.AddEdge("split", "embed")
	g.AddEdge("embed", "store")
	g.AddEdge("store", graph.END)

	runnable, err := g.Compile()
	if err != nil {
		return nil, fmt.Errorf("compile ingestion graph: %w", err)
	}
	if o.tracer != nil {
		runnable = runnable.WithTracer(o.tracer)
	}
	in.graph = g
	in.runnable = runnable
	return in, nil
}

// Graph returns the ingestion graph.
func (in *Ingestor) Graph() *graph.StateGraph[IngestState] {
	return in.graph
}

// Ingest parses, chunks, embeds and stores one file.
func (in *Ingestor) Ingest(ctx context.Context, name string, data []byte) (IngestResult, error) {
	final, err := in.runnable.Invoke(ctx, IngestState{Name: name, Data: data})
	if err != nil {
		var nodeErr *graph.NodeError
		if errors.As(err, &nodeErr) {
			err = fmt.Errorf("%s: %w", nodeErr.Node, nodeErr.Err)
		}
		return IngestResult{Source: name}, fmt.Errorf("ingest %s: %w", name, err)
	}

	in.logger.Info("successfully indexed %d chunks from %s", final.Stored, name)
	return IngestResult{
		Source:    name,
		Documents: len(final.Documents),
		Chunks:    final.Stored,
	}, nil
}

func (in *Ingestor) load(ctx context.Context, s IngestState) (IngestState, error) {
	docs, err := Load(ctx, s.Name, s.Data)
	if err != nil {
		return s, err
	}
	if len(docs) == 0 {
		return s, ErrNoContent
	}
	s.Documents = docs
	s.Data = nil
	in.logger.Debug("loaded %d document(s) from %s", len(docs), s.Name)
	return s, nil
}

func (in *Ingestor) split(_ context.Context, s IngestState) (IngestState, error) {
	parts, err := Split(in.splitter, s.Documents)
	if err != nil {
		return s, err
	}
	chunks := make([]Chunk, 0, len(parts))
	for _, p := range parts {
		chunks = append(chunks, Chunk{
			ID:       uuid.NewString(),
			Content:  p.PageContent,
			Metadata: p.Metadata,
		})
	}
	if len(chunks) == 0 {
		return s, ErrNoContent
	}
	s.Chunks = chunks
	in.logger.Debug("split into %d chunks", len(chunks))
	return s, nil
}

func (in *Ingestor) embed(ctx context.Context, s IngestState) (IngestState, error) {
	texts := make([]string, len(s.Chunks))
	for i, c := range s.Chunks {
		texts[i] = c.Content
	}
	vectors, err := in.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return s, err
	}
	if len(vectors) != len(s.Chunks) {
		return s, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(s.Chunks))
	}

	chunks := make([]Chunk, len(s.Chunks))
	for i, c := range s.Chunks {
		c.Embedding = vectors[i]
		chunks[i] = c
	}
	s.Chunks = chunks
	return s, nil
}

func (in *Ingestor) persist(ctx context.Context, s IngestState) (IngestState, error) {
	if err := in.store.Add(ctx, s.Chunks); err != nil {
		return s, fmt.Errorf("failed to add documents to vector store: %w", err)
	}
	s.Stored = len(s.Chunks)
	return s, nil
}
