package rag

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/index"
	"github.com/milvus-io/milvus/client/v2/milvusclient"

	"github.com/issuepilot/issuepilot/internal/core"
	"github.com/issuepilot/issuepilot/internal/logger"
)

// Field names for the segments collection.
const (
	FieldID         = "id"
	FieldDocumentID = "document_id"
	FieldTitle      = "title"
	FieldURI        = "uri"
	FieldText       = "text"
	FieldMetadata   = "metadata"
	FieldCreateTime = "create_time"
	FieldVector     = "vector"
)

// SegmentCollection is the Milvus collection holding embedded segments.
const SegmentCollection = "segments"

// VarChar length limits for the collection schema.
const (
	maxIDLength      = "255"
	maxTitleLength   = "1024"
	maxURILength     = "1024"
	maxVarCharLength = "65535"
)

// hnswSearchEf is the ef parameter used for HNSW searches.
const hnswSearchEf = 100

// MilvusIndex stores segment vectors in a Milvus collection with an HNSW
// index and answers nearest-neighbor queries against it.
type MilvusIndex struct {
	client     *milvusclient.Client
	collection string
	dim        int
	inserted   int
}

// NewMilvusIndex connects to Milvus at addr and ensures the segments
// collection exists with the expected schema and index.
func NewMilvusIndex(ctx context.Context, addr string, dim int) (*MilvusIndex, error) {
	logger.Info("Connecting to Milvus at %s with dimension %d", addr, dim)

	if dim <= 0 {
		dim = DefaultEmbeddingDim
	}

	c, err := milvusclient.New(ctx, &milvusclient.ClientConfig{
		Address: addr,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Milvus: %w", err)
	}

	m := &MilvusIndex{
		client:     c,
		collection: SegmentCollection,
		dim:        dim,
	}

	if err := m.ensureCollection(ctx); err != nil {
		c.Close(ctx)
		return nil, err
	}

	return m, nil
}

// ensureCollection creates the segments collection, its HNSW index and loads
// it into memory, unless it already exists.
func (m *MilvusIndex) ensureCollection(ctx context.Context) error {
	hasOpt := milvusclient.NewHasCollectionOption(m.collection)
	exists, err := m.client.HasCollection(ctx, hasOpt)
	if err != nil {
		return fmt.Errorf("failed to check if collection exists: %w", err)
	}

	if !exists {
		schema := &entity.Schema{
			CollectionName: m.collection,
			Description:    "Embedded document segments for retrieval",
			Fields: []*entity.Field{
				{
					Name:       FieldID,
					DataType:   entity.FieldTypeVarChar,
					PrimaryKey: true,
					AutoID:     false,
					TypeParams: map[string]string{
						"max_length": maxIDLength,
					},
				},
				{
					Name:     FieldDocumentID,
					DataType: entity.FieldTypeVarChar,
					TypeParams: map[string]string{
						"max_length": maxIDLength,
					},
				},
				{
					Name:     FieldTitle,
					DataType: entity.FieldTypeVarChar,
					TypeParams: map[string]string{
						"max_length": maxTitleLength,
					},
				},
				{
					Name:     FieldURI,
					DataType: entity.FieldTypeVarChar,
					TypeParams: map[string]string{
						"max_length": maxURILength,
					},
				},
				{
					Name:     FieldText,
					DataType: entity.FieldTypeVarChar,
					TypeParams: map[string]string{
						"max_length": maxVarCharLength,
					},
				},
				{
					Name:     FieldMetadata,
					DataType: entity.FieldTypeJSON,
				},
				{
					Name:     FieldCreateTime,
					DataType: entity.FieldTypeInt64,
				},
				{
					Name:     FieldVector,
					DataType: entity.FieldTypeFloatVector,
					TypeParams: map[string]string{
						"dim": fmt.Sprintf("%d", m.dim),
					},
				},
			},
		}

		createOpt := milvusclient.NewCreateCollectionOption(m.collection, schema)
		if err := m.client.CreateCollection(ctx, createOpt); err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}

		vecIdx := index.NewHNSWIndex(entity.L2, 16, 200)
		indexOpt := milvusclient.NewCreateIndexOption(m.collection, FieldVector, vecIdx)
		if _, err := m.client.CreateIndex(ctx, indexOpt); err != nil {
			return fmt.Errorf("failed to create index on vector field: %w", err)
		}

		logger.Info("Created collection with HNSW index: %s", m.collection)
	}

	// Milvus requires loaded collections for searching. Loading an already
	// loaded collection is fine.
	loadOpt := milvusclient.NewLoadCollectionOption(m.collection)
	if _, err := m.client.LoadCollection(ctx, loadOpt); err != nil {
		return fmt.Errorf("failed to load collection %s into memory: %w", m.collection, err)
	}

	return nil
}

// Insert stores segments and their vectors in one column-based insert.
func (m *MilvusIndex) Insert(ctx context.Context, segments []core.Segment, vectors [][]float32) error {
	if len(segments) != len(vectors) {
		return fmt.Errorf("segment/vector count mismatch: %d vs %d", len(segments), len(vectors))
	}
	if len(segments) == 0 {
		return nil
	}

	ids := make([]string, len(segments))
	docIDs := make([]string, len(segments))
	titles := make([]string, len(segments))
	uris := make([]string, len(segments))
	texts := make([]string, len(segments))
	metas := make([][]byte, len(segments))
	times := make([]int64, len(segments))

	for i, seg := range segments {
		if len(vectors[i]) != m.dim {
			return fmt.Errorf("vector %d has dimension %d, index expects %d: %w",
				i, len(vectors[i]), m.dim, core.ErrDimensionMismatch)
		}

		ids[i] = seg.ID
		docIDs[i] = seg.DocumentID
		titles[i] = seg.Title
		uris[i] = seg.URI
		texts[i] = seg.Text
		times[i] = seg.CreatedAt

		metaJSON := []byte("{}")
		if seg.Metadata != nil {
			if b, err := json.Marshal(seg.Metadata); err == nil {
				metaJSON = b
			}
		}
		metas[i] = metaJSON
	}

	insertOpt := milvusclient.NewColumnBasedInsertOption(m.collection).
		WithVarcharColumn(FieldID, ids).
		WithVarcharColumn(FieldDocumentID, docIDs).
		WithVarcharColumn(FieldTitle, titles).
		WithVarcharColumn(FieldURI, uris).
		WithVarcharColumn(FieldText, texts).
		WithInt64Column(FieldCreateTime, times).
		WithFloatVectorColumn(FieldVector, m.dim, vectors).
		WithColumns(column.NewColumnJSONBytes(FieldMetadata, metas))

	if _, err := m.client.Insert(ctx, insertOpt); err != nil {
		return fmt.Errorf("failed to insert segments: %w", err)
	}

	flushTask, err := m.client.Flush(ctx, milvusclient.NewFlushOption(m.collection))
	if err != nil {
		return fmt.Errorf("failed to flush collection: %w", err)
	}
	if err := flushTask.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for flush: %w", err)
	}

	m.inserted += len(segments)
	logger.Debug("Inserted %d segments into %s", len(segments), m.collection)
	return nil
}

// Search returns the k closest segments by L2 distance.
func (m *MilvusIndex) Search(ctx context.Context, vector []float32, k int) ([]core.ScoredSegment, error) {
	if k <= 0 {
		k = DefaultTopK
	}

	if len(vector) != m.dim {
		return nil, fmt.Errorf("query vector has dimension %d, index expects %d: %w",
			len(vector), m.dim, core.ErrDimensionMismatch)
	}

	searchOpt := milvusclient.NewSearchOption(m.collection, k, []entity.Vector{
		entity.FloatVector(vector),
	}).
		WithANNSField(FieldVector).
		WithOutputFields(FieldID, FieldDocumentID, FieldTitle, FieldURI, FieldText, FieldMetadata, FieldCreateTime).
		WithAnnParam(index.NewHNSWAnnParam(hnswSearchEf))

	resultSets, err := m.client.Search(ctx, searchOpt)
	if err != nil {
		return nil, fmt.Errorf("failed to execute search: %w", err)
	}

	var results []core.ScoredSegment
	for _, rs := range resultSets {
		for i := 0; i < rs.ResultCount; i++ {
			seg := core.Segment{}

			if id, err := rs.IDs.GetAsString(i); err == nil {
				seg.ID = id
			}
			seg.DocumentID = columnString(rs.GetColumn(FieldDocumentID), i)
			seg.Title = columnString(rs.GetColumn(FieldTitle), i)
			seg.URI = columnString(rs.GetColumn(FieldURI), i)
			seg.Text = columnString(rs.GetColumn(FieldText), i)

			if raw := columnString(rs.GetColumn(FieldMetadata), i); raw != "" {
				var meta map[string]interface{}
				if err := json.Unmarshal([]byte(raw), &meta); err == nil {
					seg.Metadata = meta
				}
			}

			if col := rs.GetColumn(FieldCreateTime); col != nil {
				if v, err := col.GetAsInt64(i); err == nil {
					seg.CreatedAt = v
				}
			}

			distance := float32(0)
			if i < len(rs.Scores) {
				distance = rs.Scores[i]
			}

			results = append(results, core.ScoredSegment{
				Segment:  seg,
				Distance: distance,
			})
		}
	}

	if len(results) == 0 {
		// An empty collection would otherwise look like a silent no-match.
		return nil, core.ErrEmptyIndex
	}

	return results, nil
}

// Len returns the number of segments inserted through this client.
func (m *MilvusIndex) Len() int {
	return m.inserted
}

// Close closes the connection to Milvus.
func (m *MilvusIndex) Close(ctx context.Context) error {
	return m.client.Close(ctx)
}

func columnString(col column.Column, i int) string {
	if col == nil {
		return ""
	}
	s, err := col.GetAsString(i)
	if err != nil {
		return ""
	}
	return s
}
