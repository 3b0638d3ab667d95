package localdocs

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetch_LoadsTextAndMarkdown(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("plain notes"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("# readme"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "image.png"), []byte{0x89, 0x50}, 0o644))

	docs, err := NewSource(dir).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 2, "unsupported files are skipped")

	byID := map[string]string{}
	for _, d := range docs {
		byID[d.ID] = d.Text
		assert.Equal(t, "local", d.Source)
		assert.NotZero(t, d.CreatedAt)
	}
	assert.Equal(t, "plain notes", byID["notes.txt"])
	assert.Equal(t, "# readme", byID["README.md"])
}

func TestFetch_WalksSubdirectories(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "docs")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "guide.md"), []byte("guide"), 0o644))

	docs, err := NewSource(dir).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, filepath.Join("docs", "guide.md"), docs[0].ID)
}

func TestFetch_EmptyDirectory(t *testing.T) {
	docs, err := NewSource(t.TempDir()).Fetch(context.Background())
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestFetch_MissingDirectory(t *testing.T) {
	_, err := NewSource(filepath.Join(t.TempDir(), "nope")).Fetch(context.Background())
	assert.Error(t, err)
}
