package job

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/mrag/internal/model"
	"github.com/xxxsen/mrag/internal/service"
	"github.com/xxxsen/mrag/internal/testutil"
)

type fakeCleaner struct {
	cutoff int64
}

func (f *fakeCleaner) DeleteBefore(ctx context.Context, cutoff int64) (int64, error) {
	f.cutoff = cutoff
	return 3, nil
}

func TestEmbeddingCacheCleanupJob(t *testing.T) {
	cleaner := &fakeCleaner{}
	j := NewEmbeddingCacheCleanupJob(cleaner, time.Hour)
	now := time.Unix(10_000, 0)
	j.now = func() time.Time { return now }

	require.NoError(t, j.Run(context.Background()))
	require.Equal(t, int64(10_000-3600), cleaner.cutoff)
	require.Equal(t, "embedding_cache_cleanup", j.Name())
}

func TestStaleProcessingJob(t *testing.T) {
	store := testutil.NewMemStore()
	ingest, err := service.NewIngestService(store, store, testutil.NewStubEmbedder(4), nil, service.IngestConfig{})
	require.NoError(t, err)
	content := "hello"
	doc, err := ingest.Ingest(context.Background(), service.IngestInput{Title: "t", FileType: "txt", Content: &content})
	require.NoError(t, err)
	store.SetStatus(doc.ID, model.DocumentStatusProcessing, time.Now().Add(-2*time.Hour))

	require.NoError(t, NewStaleProcessingJob(ingest, time.Hour).Run(context.Background()))
	got, err := store.GetByID(context.Background(), doc.ID)
	require.NoError(t, err)
	require.Equal(t, model.DocumentStatusFailed, got.Status)
}

func TestSummaryJob(t *testing.T) {
	store := testutil.NewMemStore()
	summaries := service.NewSummaryService(store, &testutil.StubAnswerer{Reply: "sum"})
	require.NoError(t, NewSummaryJob(summaries, 5).Run(context.Background()))
	require.NoError(t, NewSummaryJob(nil, 5).Run(context.Background()))
}
