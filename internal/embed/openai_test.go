package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/issuepilot/issuepilot/internal/core"
)

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

func fakeEmbeddingServer(t *testing.T, dim int, gotReq *embeddingRequest) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if gotReq != nil {
			*gotReq = req
		}

		type item struct {
			Object    string    `json:"object"`
			Index     int       `json:"index"`
			Embedding []float64 `json:"embedding"`
		}
		data := make([]item, len(req.Input))
		// Return items in reverse so ordering by index is exercised.
		for i := range req.Input {
			vec := make([]float64, dim)
			vec[0] = float64(i + 1)
			data[len(req.Input)-1-i] = item{Object: "embedding", Index: i, Embedding: vec}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"object": "list",
			"model":  req.Model,
			"data":   data,
		})
	}))
}

func TestOpenAIEmbedder_EmbedBatch(t *testing.T) {
	var gotReq embeddingRequest
	srv := fakeEmbeddingServer(t, 4, &gotReq)
	defer srv.Close()

	e := NewOpenAIEmbedder(Config{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		Model:   "test-embedding-model",
		Dim:     4,
	})

	vectors, err := e.EmbedBatch(context.Background(), []string{"alpha", "beta", "gamma"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)

	assert.Equal(t, "test-embedding-model", gotReq.Model)
	assert.Equal(t, []string{"alpha", "beta", "gamma"}, gotReq.Input)

	// Input order preserved even though the server answered in reverse.
	assert.Equal(t, float32(1), vectors[0][0])
	assert.Equal(t, float32(2), vectors[1][0])
	assert.Equal(t, float32(3), vectors[2][0])
	for _, vec := range vectors {
		assert.Len(t, vec, 4)
	}
}

func TestOpenAIEmbedder_Embed(t *testing.T) {
	srv := fakeEmbeddingServer(t, 3, nil)
	defer srv.Close()

	e := NewOpenAIEmbedder(Config{APIKey: "k", BaseURL: srv.URL, Model: "m", Dim: 3})

	vec, err := e.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Len(t, vec, 3)
}

func TestOpenAIEmbedder_DimensionMismatch(t *testing.T) {
	srv := fakeEmbeddingServer(t, 8, nil)
	defer srv.Close()

	e := NewOpenAIEmbedder(Config{APIKey: "k", BaseURL: srv.URL, Model: "m", Dim: 4})

	_, err := e.Embed(context.Background(), "hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)
}

func TestOpenAIEmbedder_EmptyBatch(t *testing.T) {
	e := NewOpenAIEmbedder(Config{APIKey: "k", Model: "m", Dim: 4})

	vectors, err := e.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vectors)
}

func TestOpenAIEmbedder_Dimensions(t *testing.T) {
	e := NewOpenAIEmbedder(Config{APIKey: "k", Model: "m", Dim: 1024})
	assert.Equal(t, 1024, e.Dimensions())
}
