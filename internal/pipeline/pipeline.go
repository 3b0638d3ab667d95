// Package pipeline orchestrates the five RAG stages: fetch, chunk, embed,
// index and generate.
package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/issuepilot/issuepilot/internal/chunk"
	"github.com/issuepilot/issuepilot/internal/core"
	"github.com/issuepilot/issuepilot/internal/logger"
)

// DefaultTopK is the number of segments retrieved per question.
const DefaultTopK = 4

// embedBatchSize bounds how many segments go into one embeddings request.
const embedBatchSize = 64

// Pipeline wires the stages together. It holds no per-question state; every
// Answer call is independent and idempotent against the immutable index.
type Pipeline struct {
	chunker   *chunk.Chunker
	embedder  core.Embedder
	index     core.VectorIndex
	generator core.Generator
	topK      int
}

// Option configures the pipeline.
type Option func(*Pipeline)

// WithTopK sets how many segments are retrieved per question.
func WithTopK(k int) Option {
	return func(p *Pipeline) {
		if k > 0 {
			p.topK = k
		}
	}
}

// New creates a pipeline from its stages.
func New(chunker *chunk.Chunker, embedder core.Embedder, index core.VectorIndex, generator core.Generator, opts ...Option) *Pipeline {
	p := &Pipeline{
		chunker:   chunker,
		embedder:  embedder,
		index:     index,
		generator: generator,
		topK:      DefaultTopK,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Ingest chunks the documents, embeds every segment and bulk-inserts the
// (vector, segment) pairs. Returns the number of segments indexed.
func (p *Pipeline) Ingest(ctx context.Context, docs []core.Document) (int, error) {
	segments := p.chunker.Split(docs)
	if len(segments) == 0 {
		logger.Warn("Ingest produced no segments from %d documents", len(docs))
		return 0, nil
	}

	logger.Info("Embedding %d segments from %d documents", len(segments), len(docs))

	for start := 0; start < len(segments); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(segments) {
			end = len(segments)
		}
		batch := segments[start:end]

		texts := make([]string, len(batch))
		for i, seg := range batch {
			texts[i] = seg.Text
		}

		vectors, err := p.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return 0, fmt.Errorf("embed segments %d-%d: %w", start, end, err)
		}

		if err := p.index.Insert(ctx, batch, vectors); err != nil {
			return 0, fmt.Errorf("insert segments %d-%d: %w", start, end, err)
		}
	}

	logger.Info("Indexed %d segments", len(segments))
	return len(segments), nil
}

// IngestFrom fetches documents from the source and ingests them.
func (p *Pipeline) IngestFrom(ctx context.Context, source core.DocumentSource) (int, error) {
	docs, err := source.Fetch(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch documents: %w", err)
	}
	return p.Ingest(ctx, docs)
}

// Answer embeds the question, retrieves the top-k closest segments and hands
// both to the generator. Errors from any stage are surfaced unchanged; in
// particular an empty index yields core.ErrEmptyIndex.
func (p *Pipeline) Answer(ctx context.Context, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", fmt.Errorf("question is empty")
	}

	vector, err := p.embedder.Embed(ctx, question)
	if err != nil {
		return "", fmt.Errorf("embed question: %w", err)
	}

	results, err := p.index.Search(ctx, vector, p.topK)
	if err != nil {
		return "", fmt.Errorf("search index: %w", err)
	}

	segments := make([]core.Segment, len(results))
	for i, r := range results {
		segments[i] = r.Segment
	}

	logger.Debug("Retrieved %d segments for question", len(segments))

	answer, err := p.generator.Generate(ctx, question, segments)
	if err != nil {
		return "", fmt.Errorf("generate answer: %w", err)
	}

	return answer, nil
}
