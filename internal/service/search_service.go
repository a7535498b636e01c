package service

import (
	"context"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/mrag/internal/model"
	appErr "github.com/xxxsen/mrag/internal/pkg/errors"
	"github.com/xxxsen/mrag/internal/vectorindex"
)

type SearchService struct {
	embedder    QueryEmbedder
	index       vectorindex.Index
	defaultTopK int
	maxTopK     int
}

func NewSearchService(embedder QueryEmbedder, index vectorindex.Index, defaultTopK, maxTopK int) *SearchService {
	if defaultTopK <= 0 {
		defaultTopK = 5
	}
	if maxTopK < defaultTopK {
		maxTopK = defaultTopK
	}
	return &SearchService{embedder: embedder, index: index, defaultTopK: defaultTopK, maxTopK: maxTopK}
}

func (s *SearchService) DefaultTopK() int {
	return s.defaultTopK
}

// Search embeds query and returns the topK closest chunks. Nothing is
// searched when the embedding fails.
func (s *SearchService) Search(ctx context.Context, query string, topK int) ([]model.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, appErr.Invalid("query is required")
	}
	if topK <= 0 || topK > s.maxTopK {
		return nil, appErr.Invalidf("topK must be between 1 and %d", s.maxTopK)
	}
	logger := logutil.GetLogger(ctx).With(zap.Int("top_k", topK))
	vec, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		logger.Error("failed to embed search query", zap.Error(err))
		return nil, appErr.Embedding(err)
	}
	results, err := s.index.Search(ctx, vec, topK)
	if err != nil {
		logger.Error("vector search failed", zap.Error(err))
		return nil, appErr.Storage(err)
	}
	for _, r := range results {
		logger.Debug("search match", zap.String("document_id", r.Document.ID), zap.Int("chunk_index", r.ChunkIndex), zap.Float64("score", r.Score))
	}
	return results, nil
}
