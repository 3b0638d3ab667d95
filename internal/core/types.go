package core

// Document is one unit of raw text fetched from a document source.
// Documents are immutable once created.
type Document struct {
	ID        string                 `json:"id"`
	Title     string                 `json:"title,omitempty"`
	Source    string                 `json:"source,omitempty"`
	URI       string                 `json:"uri,omitempty"`
	Text      string                 `json:"text"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt int64                  `json:"created_at,omitempty"`
	UpdatedAt int64                  `json:"updated_at,omitempty"`
}

// Segment is a bounded window of a Document sized for embedding. It keeps
// enough of the parent document (ID, title, URI) to cite it in an answer.
type Segment struct {
	ID         string                 `json:"id"`
	DocumentID string                 `json:"document_id"`
	Title      string                 `json:"title,omitempty"`
	URI        string                 `json:"uri,omitempty"`
	Text       string                 `json:"text"`
	Position   int                    `json:"position"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt  int64                  `json:"created_at,omitempty"`
}

// ScoredSegment pairs a retrieved segment with its distance to the query
// vector. Smaller distance means a closer match.
type ScoredSegment struct {
	Segment  Segment `json:"segment"`
	Distance float32 `json:"distance"`
}
