// Package embed generates embedding vectors through an OpenAI-compatible
// embeddings endpoint.
package embed

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/issuepilot/issuepilot/internal/core"
	"github.com/issuepilot/issuepilot/internal/logger"
)

// OpenAIEmbedder implements core.Embedder against the OpenAI embeddings API.
// Pointing BaseURL at a local inference server that speaks the same protocol
// works as well.
type OpenAIEmbedder struct {
	client openai.Client
	model  string
	dim    int
}

// Config holds the embedder configuration.
type Config struct {
	APIKey  string
	BaseURL string // empty means the public OpenAI endpoint
	Model   string
	Dim     int
}

// NewOpenAIEmbedder creates a new embedder for the configured model.
func NewOpenAIEmbedder(cfg Config) *OpenAIEmbedder {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIEmbedder{
		client: openai.NewClient(opts...),
		model:  cfg.Model,
		dim:    cfg.Dim,
	}
}

// Embed generates an embedding vector for a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch generates one vector per input text, in input order.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(e.model),
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("embeddings request failed: %w", err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embeddings response has %d vectors for %d inputs", len(resp.Data), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		vec := make([]float32, len(d.Embedding))
		for j, v := range d.Embedding {
			vec[j] = float32(v)
		}

		if len(vec) != e.dim {
			return nil, fmt.Errorf("model %q returned dimension %d, expected %d: %w",
				e.model, len(vec), e.dim, core.ErrDimensionMismatch)
		}

		i := int(d.Index)
		if i < 0 || i >= len(vectors) {
			return nil, fmt.Errorf("embeddings response has out-of-range index %d", i)
		}
		vectors[i] = vec
	}

	logger.Debug("Embedded %d texts with model %s", len(texts), e.model)
	return vectors, nil
}

// Dimensions returns the vector size this embedder produces.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.dim
}
