package core

import "context"

// DocumentSource fetches raw documents from an external provider.
type DocumentSource interface {
	Fetch(ctx context.Context) ([]Document, error)
}

// Embedder maps text to fixed-dimension embedding vectors.
type Embedder interface {
	// Embed generates an embedding vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates one vector per input text, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the vector size every embedding has. It must match
	// the dimension the vector index was created with.
	Dimensions() int
}

// VectorIndex stores (vector, segment) pairs and answers nearest-neighbor
// queries. There is no delete or update path; the index is append-only at
// build time and read-only afterwards.
type VectorIndex interface {
	// Insert adds segments and their vectors in bulk. vectors[i] belongs to
	// segments[i].
	Insert(ctx context.Context, segments []Segment, vectors [][]float32) error

	// Search returns the k closest segments by ascending distance, ties
	// broken by insertion order. Searching an empty index returns
	// ErrEmptyIndex rather than an empty result.
	Search(ctx context.Context, vector []float32, k int) ([]ScoredSegment, error)

	Close(ctx context.Context) error
}

// Generator produces a natural-language answer for a question, grounded on
// the retrieved segments. The segment list may be empty, in which case the
// model answers from its own knowledge.
type Generator interface {
	Generate(ctx context.Context, question string, segments []Segment) (string, error)
}
