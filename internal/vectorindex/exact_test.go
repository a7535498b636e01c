package vectorindex

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/mrag/internal/model"
)

type fakeSource struct {
	chunks []model.Chunk
	docs   map[string]*model.Document
}

func (f *fakeSource) ListVectors(ctx context.Context) ([]model.Chunk, error) {
	return f.chunks, nil
}

func (f *fakeSource) ListByIDs(ctx context.Context, ids []string) ([]*model.Document, error) {
	out := make([]*model.Document, 0, len(ids))
	for _, id := range ids {
		if d, ok := f.docs[id]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

func newFakeSource() *fakeSource {
	uploaded := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	return &fakeSource{
		docs: map[string]*model.Document{
			"d1": {ID: "d1", Title: "one", FileType: model.FileTypeText, UploadedAt: uploaded},
			"d2": {ID: "d2", Title: "two", FileType: model.FileTypeMarkdown, UploadedAt: uploaded},
		},
		chunks: []model.Chunk{
			{ID: 1, DocumentID: "d1", ChunkIndex: 0, Text: "x axis", Embedding: []float32{1, 0, 0}},
			{ID: 2, DocumentID: "d1", ChunkIndex: 1, Text: "y axis", Embedding: []float32{0, 1, 0}},
			{ID: 3, DocumentID: "d2", ChunkIndex: 0, Text: "diagonal", Embedding: []float32{1, 1, 0}},
			{ID: 4, DocumentID: "d2", ChunkIndex: 1, Text: "x again", Embedding: []float32{2, 0, 0}},
		},
	}
}

func TestExactRanksIdenticalVectorFirst(t *testing.T) {
	src := newFakeSource()
	idx := NewExact(src, src)

	res, err := idx.Search(context.Background(), []float32{0, 1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, res, 4)
	require.Equal(t, "y axis", res[0].Text)
	require.InDelta(t, 1.0, res[0].Score, 1e-9)
	require.Equal(t, "d1", res[0].Document.ID)
	require.Equal(t, "one", res[0].Document.Title)
	for i := 1; i < len(res); i++ {
		require.GreaterOrEqual(t, res[i-1].Score, res[i].Score)
	}
}

func TestExactTiesKeepInsertionOrder(t *testing.T) {
	src := newFakeSource()
	idx := NewExact(src, src)

	res, err := idx.Search(context.Background(), []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, res, 2)
	require.Equal(t, int64(1), res[0].ChunkID)
	require.Equal(t, int64(4), res[1].ChunkID)
}

func TestExactTopKBound(t *testing.T) {
	src := newFakeSource()
	idx := NewExact(src, src)

	res, err := idx.Search(context.Background(), []float32{1, 1, 1}, 1)
	require.NoError(t, err)
	require.Len(t, res, 1)

	res, err = idx.Search(context.Background(), []float32{1, 1, 1}, 0)
	require.NoError(t, err)
	require.Empty(t, res)
}

func TestExactEmptyCorpus(t *testing.T) {
	src := &fakeSource{docs: map[string]*model.Document{}}
	idx := NewExact(src, src)

	res, err := idx.Search(context.Background(), []float32{1, 0}, 5)
	require.NoError(t, err)
	require.NotNil(t, res)
	require.Empty(t, res)
}

func TestCosineSimilarity(t *testing.T) {
	require.InDelta(t, 1.0, CosineSimilarity([]float32{1, 2}, []float32{2, 4}), 1e-9)
	require.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	require.InDelta(t, -1.0, CosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	require.Zero(t, CosineSimilarity([]float32{1}, []float32{1, 2}))
	require.Zero(t, CosineSimilarity([]float32{0, 0}, []float32{1, 2}))
}

func TestNewSelectsBackend(t *testing.T) {
	src := newFakeSource()
	idx, err := New(BackendExact, Sources{Vectors: src, Documents: src})
	require.NoError(t, err)
	require.IsType(t, &exactIndex{}, idx)

	_, err = New("faiss", Sources{})
	require.Error(t, err)
}
