package chunk

import (
	"math"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/issuepilot/issuepilot/internal/core"
)

func doc(id, text string) core.Document {
	return core.Document{ID: id, Title: "t-" + id, URI: "uri-" + id, Text: text}
}

func TestSplit_EmptyDocumentList(t *testing.T) {
	c := New()

	segments := c.Split(nil)
	assert.Empty(t, segments)

	segments = c.Split([]core.Document{})
	assert.Empty(t, segments)
}

func TestSplit_ThousandCharDocument(t *testing.T) {
	// 1000 chars with max length 512 and overlap 30 must give exactly three
	// segments: two full windows plus the remainder.
	c := New(WithMaxLength(512), WithOverlap(30))
	text := strings.Repeat("a", 1000)

	segments := c.Split([]core.Document{doc("d1", text)})
	require.Len(t, segments, 3)

	assert.Len(t, segments[0].Text, 512)
	assert.Len(t, segments[1].Text, 512)
	assert.Len(t, segments[2].Text, 1000-2*(512-30))
}

func TestSplit_NeighborsOverlap(t *testing.T) {
	c := New(WithMaxLength(100), WithOverlap(20))

	var b strings.Builder
	for i := 0; b.Len() < 500; i++ {
		b.WriteByte(byte('a' + i%26))
	}
	text := b.String()

	segments := c.Split([]core.Document{doc("d1", text)})
	require.Greater(t, len(segments), 1)

	for i := 1; i < len(segments); i++ {
		prev := segments[i-1].Text
		tail := prev[len(prev)-20:]
		assert.True(t, strings.HasPrefix(segments[i].Text, tail),
			"segment %d should start with the last 20 bytes of segment %d", i, i-1)
	}
}

func TestSplit_ShortDocumentIsOneSegment(t *testing.T) {
	c := New(WithMaxLength(512), WithOverlap(30))

	segments := c.Split([]core.Document{doc("d1", "short text")})
	require.Len(t, segments, 1)
	assert.Equal(t, "short text", segments[0].Text)
	assert.Equal(t, "d1", segments[0].DocumentID)
	assert.Equal(t, 0, segments[0].Position)
}

func TestSplit_ExactWindowBoundary(t *testing.T) {
	c := New(WithMaxLength(512), WithOverlap(30))

	segments := c.Split([]core.Document{doc("d1", strings.Repeat("x", 512))})
	require.Len(t, segments, 1)
	assert.Len(t, segments[0].Text, 512)
}

func TestSplit_SegmentCountFormula(t *testing.T) {
	// For o < m a document of length L yields ceil((L-o)/(m-o)) segments.
	const m, o = 128, 16
	c := New(WithMaxLength(m), WithOverlap(o))

	for _, l := range []int{1, 16, 17, 127, 128, 129, 240, 241, 500, 1000, 4096} {
		segments := c.Split([]core.Document{doc("d1", strings.Repeat("z", l))})
		want := int(math.Ceil(float64(l-o) / float64(m-o)))
		if want < 1 {
			want = 1
		}
		assert.Len(t, segments, want, "length %d", l)
	}
}

func TestSplit_EmptyTextProducesNoSegments(t *testing.T) {
	c := New()
	segments := c.Split([]core.Document{doc("d1", "")})
	assert.Empty(t, segments)
}

func TestSplit_CarriesDocumentReference(t *testing.T) {
	c := New(WithMaxLength(10), WithOverlap(2))

	segments := c.Split([]core.Document{doc("issue-42", strings.Repeat("q", 25))})
	require.NotEmpty(t, segments)

	for i, seg := range segments {
		assert.Equal(t, "issue-42", seg.DocumentID)
		assert.Equal(t, "t-issue-42", seg.Title)
		assert.Equal(t, "uri-issue-42", seg.URI)
		assert.Equal(t, i, seg.Position)
		assert.NotEmpty(t, seg.ID)
	}
}

func TestNew_ClampsOverlap(t *testing.T) {
	c := New(WithMaxLength(100), WithOverlap(100))
	assert.Equal(t, 25, c.Overlap(), "overlap >= max length falls back to a quarter window")

	c = New(WithMaxLength(100), WithOverlap(200))
	assert.Equal(t, 25, c.Overlap())
}

func TestSplit_NeverSplitsRunes(t *testing.T) {
	// Three-byte runes against a window size that is not a multiple of
	// three, so raw byte windows would cut runes at every boundary.
	c := New(WithMaxLength(10), WithOverlap(2))
	text := strings.Repeat("日", 100)

	segments := c.Split([]core.Document{doc("d1", text)})
	require.NotEmpty(t, segments)

	for i, seg := range segments {
		assert.True(t, utf8.ValidString(seg.Text), "segment %d is not valid UTF-8: %q", i, seg.Text)
		assert.NotEmpty(t, seg.Text)
		assert.LessOrEqual(t, len(seg.Text), c.MaxLength())
	}
}

func TestSplit_MixedWidthTextStaysValid(t *testing.T) {
	c := New(WithMaxLength(16), WithOverlap(4))
	text := strings.Repeat("aé日b ", 40)

	segments := c.Split([]core.Document{doc("d1", text)})
	require.NotEmpty(t, segments)

	for i, seg := range segments {
		assert.True(t, utf8.ValidString(seg.Text), "segment %d is not valid UTF-8", i)
	}
}
