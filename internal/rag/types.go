package rag

// DefaultEmbeddingDim is the default dimension for embedding vectors.
const DefaultEmbeddingDim = 1536

// DefaultTopK is the number of segments retrieved when the caller passes a
// non-positive k.
const DefaultTopK = 4
