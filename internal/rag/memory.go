package rag

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/issuepilot/issuepilot/internal/core"
)

// MemoryIndex is an exact nearest-neighbor index held in process memory.
// It answers the same contract as the Milvus-backed index and is the default
// when no Milvus deployment is configured.
type MemoryIndex struct {
	mu      sync.RWMutex
	dim     int
	entries []memoryEntry
}

type memoryEntry struct {
	segment core.Segment
	vector  []float32
}

// NewMemoryIndex creates an empty in-memory index for vectors of the given
// dimension.
func NewMemoryIndex(dim int) *MemoryIndex {
	if dim <= 0 {
		dim = DefaultEmbeddingDim
	}
	return &MemoryIndex{dim: dim}
}

// Insert adds segments and their vectors in bulk.
func (m *MemoryIndex) Insert(ctx context.Context, segments []core.Segment, vectors [][]float32) error {
	if len(segments) != len(vectors) {
		return fmt.Errorf("segment/vector count mismatch: %d vs %d", len(segments), len(vectors))
	}

	for i, vec := range vectors {
		if len(vec) != m.dim {
			return fmt.Errorf("vector %d has dimension %d, index expects %d: %w",
				i, len(vec), m.dim, core.ErrDimensionMismatch)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range segments {
		vec := make([]float32, m.dim)
		copy(vec, vectors[i])
		m.entries = append(m.entries, memoryEntry{segment: segments[i], vector: vec})
	}

	return nil
}

// Search scans every entry and returns the k closest segments by ascending
// Euclidean distance. Ties keep insertion order.
func (m *MemoryIndex) Search(ctx context.Context, vector []float32, k int) ([]core.ScoredSegment, error) {
	if k <= 0 {
		k = DefaultTopK
	}

	if len(vector) != m.dim {
		return nil, fmt.Errorf("query vector has dimension %d, index expects %d: %w",
			len(vector), m.dim, core.ErrDimensionMismatch)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.entries) == 0 {
		return nil, core.ErrEmptyIndex
	}

	results := make([]core.ScoredSegment, 0, len(m.entries))
	for _, e := range m.entries {
		results = append(results, core.ScoredSegment{
			Segment:  e.segment,
			Distance: l2Distance(vector, e.vector),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})

	if k > len(results) {
		k = len(results)
	}
	return results[:k], nil
}

// Len returns the number of stored entries.
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Close is a no-op for the in-memory index.
func (m *MemoryIndex) Close(ctx context.Context) error {
	return nil
}

func l2Distance(a, b []float32) float32 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return float32(math.Sqrt(sum))
}
