package service

import (
	"context"

	"github.com/xxxsen/common/logutil"

	"github.com/xxxsen/mrag/internal/model"
)

type IndexStatus struct {
	Exists     bool   `json:"exists"`
	Backend    string `json:"backend"`
	Similarity string `json:"similarity"`
	Dimensions int    `json:"numDimensions"`
}

type IndexService struct {
	indexes IndexManager
	backend string
}

func NewIndexService(indexes IndexManager, backend string) *IndexService {
	return &IndexService{indexes: indexes, backend: backend}
}

func (s *IndexService) Status(ctx context.Context) (*IndexStatus, error) {
	exists, err := s.indexes.Exists(ctx)
	if err != nil {
		return nil, err
	}
	return &IndexStatus{
		Exists:     exists,
		Backend:    s.backend,
		Similarity: "cosine",
		Dimensions: model.EmbeddingDimension,
	}, nil
}

// Ensure creates the vector index when missing and reports whether it did.
func (s *IndexService) Ensure(ctx context.Context) (bool, error) {
	created, err := s.indexes.Ensure(ctx)
	if err != nil {
		return false, err
	}
	if created {
		logutil.GetLogger(ctx).Info("vector index created")
	}
	return created, nil
}
