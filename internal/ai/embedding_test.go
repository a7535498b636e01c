package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	appErr "github.com/xxxsen/mrag/internal/pkg/errors"
)

type fakeEmbedder struct {
	vec      []float32
	err      error
	calls    int
	taskType string
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	f.calls++
	f.taskType = taskType
	return f.vec, f.err
}

func (f *fakeEmbedder) ModelName() string {
	return "fake:embed"
}

func TestEmbeddingClientSuccess(t *testing.T) {
	fe := &fakeEmbedder{vec: []float32{1, 2, 3}}
	c := NewEmbeddingClient(fe, fastRetry(3), 3)

	vec, err := c.Embed(context.Background(), "hello")
	require.NoError(t, err)
	require.Equal(t, []float32{1, 2, 3}, vec)
	require.Equal(t, TaskRetrievalDocument, fe.taskType)

	_, err = c.EmbedQuery(context.Background(), "hello")
	require.NoError(t, err)
	require.Equal(t, TaskRetrievalQuery, fe.taskType)
	require.Equal(t, "fake:embed", c.ModelName())
}

func TestEmbeddingClientDimensionMismatch(t *testing.T) {
	fe := &fakeEmbedder{vec: []float32{1, 2}}
	c := NewEmbeddingClient(fe, fastRetry(3), 3)

	_, err := c.Embed(context.Background(), "hello")
	require.ErrorIs(t, err, appErr.ErrEmbedding)
	require.Equal(t, 1, fe.calls)
}

func TestEmbeddingClientUpstreamFailure(t *testing.T) {
	cause := errors.New("connection reset")
	fe := &fakeEmbedder{err: cause}
	c := NewEmbeddingClient(fe, fastRetry(2), 3)

	_, err := c.Embed(context.Background(), "hello")
	require.ErrorIs(t, err, appErr.ErrEmbedding)
	require.ErrorIs(t, err, cause)
	require.Equal(t, 2, fe.calls)
}

func TestEmbeddingClientRejectsEmptyText(t *testing.T) {
	fe := &fakeEmbedder{vec: []float32{1}}
	c := NewEmbeddingClient(fe, fastRetry(1), 1)

	_, err := c.Embed(context.Background(), "")
	require.ErrorIs(t, err, appErr.ErrInvalid)
	_, err = c.EmbedQuery(context.Background(), "  \n ")
	require.ErrorIs(t, err, appErr.ErrInvalid)
	require.Zero(t, fe.calls)

	vec, err := c.Embed(context.Background(), "   ")
	require.NoError(t, err)
	require.Equal(t, []float32{1}, vec)
	require.Equal(t, 1, fe.calls)
}

func TestEmbeddingClientNotConfigured(t *testing.T) {
	c := NewEmbeddingClient(nil, fastRetry(1), 1)
	_, err := c.Embed(context.Background(), "hello")
	require.ErrorIs(t, err, appErr.ErrEmbedding)
}

func TestEmbeddingClientBatch(t *testing.T) {
	fe := &fakeEmbedder{vec: []float32{1, 0}}
	c := NewEmbeddingClient(fe, fastRetry(1), 2)

	out, err := c.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, out, 3)
	require.Equal(t, 3, fe.calls)

	_, err = c.EmbedBatch(context.Background(), []string{"a", " "})
	require.ErrorIs(t, err, appErr.ErrInvalid)
	require.Contains(t, err.Error(), "embed text 1")
}
