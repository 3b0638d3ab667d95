// Package chunk splits documents into fixed-size overlapping segments.
package chunk

import (
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/issuepilot/issuepilot/internal/core"
)

// DefaultMaxLength is the default maximum segment length in bytes.
const DefaultMaxLength = 512

// DefaultOverlap is the default number of bytes shared with the previous
// segment.
const DefaultOverlap = 30

// Chunker produces fixed-size windows advanced by (max length - overlap).
// It has no awareness of sentence or paragraph boundaries.
type Chunker struct {
	maxLength int
	overlap   int
}

// Option configures the chunker.
type Option func(*Chunker)

// WithMaxLength sets the maximum segment length in bytes.
func WithMaxLength(n int) Option {
	return func(c *Chunker) {
		if n > 0 {
			c.maxLength = n
		}
	}
}

// WithOverlap sets the overlap between neighboring segments in bytes.
func WithOverlap(n int) Option {
	return func(c *Chunker) {
		if n >= 0 {
			c.overlap = n
		}
	}
}

// New creates a chunker with the given options.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		maxLength: DefaultMaxLength,
		overlap:   DefaultOverlap,
	}

	for _, opt := range opts {
		opt(c)
	}

	// The window must advance: overlap has to stay below the max length.
	if c.overlap >= c.maxLength {
		c.overlap = c.maxLength / 4
	}

	return c
}

// MaxLength returns the configured maximum segment length.
func (c *Chunker) MaxLength() int {
	return c.maxLength
}

// Overlap returns the configured overlap.
func (c *Chunker) Overlap() int {
	return c.overlap
}

// Split walks every document producing segments in document order. A document
// shorter than the max length yields exactly one segment equal to the whole
// document; a document with empty text yields none.
func (c *Chunker) Split(docs []core.Document) []core.Segment {
	var segments []core.Segment
	for i := range docs {
		segments = append(segments, c.splitDocument(&docs[i])...)
	}
	return segments
}

func (c *Chunker) splitDocument(doc *core.Document) []core.Segment {
	text := doc.Text
	if text == "" {
		return nil
	}

	step := c.maxLength - c.overlap
	estimated := len(text)/step + 1
	segments := make([]core.Segment, 0, estimated)

	position := 0
	for start := 0; start < len(text); start += step {
		// Windows are byte-sized but must not split a rune.
		for start < len(text) && !utf8.RuneStart(text[start]) {
			start++
		}
		if start >= len(text) {
			break
		}

		end := start + c.maxLength
		if end >= len(text) {
			end = len(text)
		} else {
			for end > start && !utf8.RuneStart(text[end]) {
				end--
			}
			if end == start {
				_, size := utf8.DecodeRuneInString(text[start:])
				end = start + size
			}
		}

		segments = append(segments, core.Segment{
			ID:         uuid.New().String(),
			DocumentID: doc.ID,
			Title:      doc.Title,
			URI:        doc.URI,
			Text:       text[start:end],
			Position:   position,
			Metadata:   doc.Metadata,
			CreatedAt:  doc.CreatedAt,
		})
		position++

		if end == len(text) {
			break
		}
	}

	return segments
}
