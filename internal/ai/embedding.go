package ai

import (
	"context"
	"fmt"
	"strings"

	appErr "github.com/xxxsen/mrag/internal/pkg/errors"
)

// EmbeddingClient turns text into fixed-size vectors. All failures surface as
// embedding errors.
type EmbeddingClient struct {
	embedder  IEmbedder
	retry     RetryConfig
	dimension int
}

func NewEmbeddingClient(embedder IEmbedder, retry RetryConfig, dimension int) *EmbeddingClient {
	return &EmbeddingClient{embedder: embedder, retry: retry, dimension: dimension}
}

func (c *EmbeddingClient) Dimension() int {
	return c.dimension
}

func (c *EmbeddingClient) ModelName() string {
	if c.embedder == nil {
		return ""
	}
	return c.embedder.ModelName()
}

// Embed embeds a chunk of document text.
func (c *EmbeddingClient) Embed(ctx context.Context, text string) ([]float32, error) {
	return c.embed(ctx, text, TaskRetrievalDocument)
}

// EmbedQuery embeds a search query.
func (c *EmbeddingClient) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, appErr.Invalid("query must not be empty")
	}
	return c.embed(ctx, text, TaskRetrievalQuery)
}

// EmbedBatch embeds texts one call at a time and stops at the first failure.
// The result is index aligned with texts.
func (c *EmbeddingClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for i, text := range texts {
		vec, err := c.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed text %d: %w", i, err)
		}
		out = append(out, vec)
	}
	return out, nil
}

// embed only refuses the empty string. Whitespace-only windows are valid
// document chunks.
func (c *EmbeddingClient) embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	if text == "" {
		return nil, appErr.Invalid("text must not be empty")
	}
	if c.embedder == nil {
		return nil, appErr.Embedding(fmt.Errorf("embedder not configured"))
	}
	var vec []float32
	err := c.retry.Do(ctx, "embed", func(ctx context.Context) error {
		res, err := c.embedder.Embed(ctx, text, taskType)
		if err != nil {
			return err
		}
		if c.dimension > 0 && len(res) != c.dimension {
			return Permanent(fmt.Errorf("embedding dimension mismatch: got %d, want %d", len(res), c.dimension))
		}
		vec = res
		return nil
	})
	if err != nil {
		return nil, appErr.Embedding(err)
	}
	return vec, nil
}
