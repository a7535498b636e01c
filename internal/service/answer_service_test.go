package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/mrag/internal/model"
	appErr "github.com/xxxsen/mrag/internal/pkg/errors"
	"github.com/xxxsen/mrag/internal/testutil"
	"github.com/xxxsen/mrag/internal/vectorindex"
)

type failingIndex struct{}

func (failingIndex) Search(ctx context.Context, query []float32, topK int) ([]model.SearchResult, error) {
	return nil, errors.New("connection refused")
}

func newSearch(store *testutil.MemStore, emb QueryEmbedder) *SearchService {
	return NewSearchService(emb, vectorindex.NewExact(store, store), 5, 20)
}

func seedProcessed(t *testing.T, store *testutil.MemStore, emb *testutil.StubEmbedder, title, content string) string {
	t.Helper()
	svc := newIngest(t, store, emb, IngestConfig{ChunkSize: 20, ChunkOverlap: 0})
	doc, err := svc.Ingest(context.Background(), IngestInput{Title: title, FileType: "txt", Content: &content})
	require.NoError(t, err)
	_, err = svc.Process(context.Background(), doc.ID, false)
	require.NoError(t, err)
	return doc.ID
}

func TestBuildContextKeepsWholeChunks(t *testing.T) {
	sep := len([]rune(contextSeparator))
	chunks := []string{strings.Repeat("a", 10), strings.Repeat("b", 10), strings.Repeat("c", 10)}

	require.Equal(t, strings.Join(chunks, contextSeparator), BuildContext(chunks, 30+2*sep))

	got := BuildContext(chunks, 20+sep+5)
	require.Equal(t, chunks[0]+contextSeparator+chunks[1], got)

	require.Equal(t, chunks[0], BuildContext(chunks, 12))
	require.Equal(t, "aaaaa", BuildContext(chunks, 5))
	require.Equal(t, "", BuildContext(nil, 5))
}

func TestBuildContextCountsRunes(t *testing.T) {
	require.Equal(t, "日本", BuildContext([]string{"日本語"}, 2))
}

func TestAnswerValidation(t *testing.T) {
	svc := NewAnswerService(&testutil.StubAnswerer{Reply: "x"}, nil, AnswerConfig{})
	_, err := svc.Answer(context.Background(), " ", []string{"ctx"})
	require.ErrorIs(t, err, appErr.ErrInvalid)
	_, err = svc.Answer(context.Background(), "q", nil)
	require.ErrorIs(t, err, appErr.ErrInvalid)
	_, err = svc.Answer(context.Background(), "q", []string{"  "})
	require.ErrorIs(t, err, appErr.ErrInvalid)
}

func TestAnswerBudgetAndCache(t *testing.T) {
	answerer := &testutil.StubAnswerer{Reply: "Paris"}
	svc := NewAnswerService(answerer, nil, AnswerConfig{MaxContextChars: 10, CacheSize: 10, CacheTTL: time.Minute})

	chunks := []string{strings.Repeat("x", 25), "second"}
	answer, err := svc.Answer(context.Background(), "capital?", chunks)
	require.NoError(t, err)
	require.Equal(t, "Paris", answer)
	require.Equal(t, []string{strings.Repeat("x", 10)}, answerer.Contexts)

	_, err = svc.Answer(context.Background(), "capital?", chunks)
	require.NoError(t, err)
	require.Equal(t, 1, answerer.Calls())
}

func TestAnswerSynthesisError(t *testing.T) {
	cause := errors.New("timeout")
	svc := NewAnswerService(&testutil.StubAnswerer{Err: cause}, nil, AnswerConfig{})
	_, err := svc.Answer(context.Background(), "q", []string{"ctx"})
	require.ErrorIs(t, err, appErr.ErrSynthesis)
	require.ErrorIs(t, err, cause)
}

func TestSearchRanksMatchingChunkFirst(t *testing.T) {
	store := testutil.NewMemStore()
	emb := testutil.NewStubEmbedder(16)
	docID := seedProcessed(t, store, emb, "Facts", "the sky is blue.....grass grows green.")

	search := newSearch(store, emb)
	res, err := search.Search(context.Background(), "grass grows green.", 5)
	require.NoError(t, err)
	require.Len(t, res, 2)
	require.Equal(t, "grass grows green.", res[0].Text)
	require.InDelta(t, 1.0, res[0].Score, 1e-6)
	require.Equal(t, docID, res[0].Document.ID)
	require.Equal(t, "Facts", res[0].Document.Title)
	require.GreaterOrEqual(t, res[0].Score, res[1].Score)
}

func TestSearchValidation(t *testing.T) {
	store := testutil.NewMemStore()
	emb := testutil.NewStubEmbedder(4)
	search := newSearch(store, emb)

	_, err := search.Search(context.Background(), "", 5)
	require.ErrorIs(t, err, appErr.ErrInvalid)
	_, err = search.Search(context.Background(), "q", 0)
	require.ErrorIs(t, err, appErr.ErrInvalid)
	_, err = search.Search(context.Background(), "q", 21)
	require.ErrorIs(t, err, appErr.ErrInvalid)
	require.Zero(t, emb.Calls())

	res, err := search.Search(context.Background(), "q", 3)
	require.NoError(t, err)
	require.Empty(t, res)
}

func TestSearchEmbeddingFailureSkipsIndex(t *testing.T) {
	emb := testutil.NewStubEmbedder(4)
	emb.FailOn = func(string) error { return errors.New("quota") }
	search := NewSearchService(emb, failingIndex{}, 5, 20)

	_, err := search.Search(context.Background(), "q", 5)
	require.ErrorIs(t, err, appErr.ErrEmbedding)
}

func TestSearchBackendFailure(t *testing.T) {
	search := NewSearchService(testutil.NewStubEmbedder(4), failingIndex{}, 5, 20)
	_, err := search.Search(context.Background(), "q", 5)
	require.ErrorIs(t, err, appErr.ErrStorage)
}

func TestAskFallbacks(t *testing.T) {
	store := testutil.NewMemStore()
	emb := testutil.NewStubEmbedder(8)
	answerer := &testutil.StubAnswerer{Reply: "It is blue."}
	svc := NewAnswerService(answerer, newSearch(store, emb), AnswerConfig{})
	ctx := context.Background()

	res, err := svc.Ask(ctx, "What color is the sky?", 5)
	require.NoError(t, err)
	require.True(t, res.Fallback)
	require.Equal(t, NoAnswerMessage, res.Answer)
	require.Zero(t, answerer.Calls())

	seedProcessed(t, store, emb, "Sky", "the sky is blue.")
	res, err = svc.Ask(ctx, "What color is the sky?", 5)
	require.NoError(t, err)
	require.False(t, res.Fallback)
	require.Equal(t, "It is blue.", res.Answer)
	require.Len(t, res.Sources, 1)

	answerer.Err = errors.New("model down")
	res, err = svc.Ask(ctx, "Really?", 5)
	require.NoError(t, err)
	require.True(t, res.Fallback)
	require.Equal(t, ApologyMessage, res.Answer)
	require.Len(t, res.Sources, 1)

	_, err = svc.Ask(ctx, "Really?", 0)
	require.ErrorIs(t, err, appErr.ErrInvalid)
}
