package vectorindex

import (
	"context"
	"fmt"

	"github.com/xxxsen/mrag/internal/model"
)

const (
	BackendPGVector = "pgvector"
	BackendExact    = "exact"
)

// Index ranks stored chunks by cosine similarity to a query vector, highest
// first. Equal scores keep chunk insertion order.
type Index interface {
	Search(ctx context.Context, query []float32, topK int) ([]model.SearchResult, error)
}

type NearestSearcher interface {
	SearchNearest(ctx context.Context, vec []float32, topK int) ([]model.SearchResult, error)
}

type VectorSource interface {
	ListVectors(ctx context.Context) ([]model.Chunk, error)
}

type DocumentLookup interface {
	ListByIDs(ctx context.Context, ids []string) ([]*model.Document, error)
}

type Sources struct {
	Nearest   NearestSearcher
	Vectors   VectorSource
	Documents DocumentLookup
}

func New(backend string, src Sources) (Index, error) {
	switch backend {
	case "", BackendPGVector:
		return NewPGVector(src.Nearest), nil
	case BackendExact:
		return NewExact(src.Vectors, src.Documents), nil
	}
	return nil, fmt.Errorf("unsupported vector index backend: %s", backend)
}

type pgvectorIndex struct {
	searcher NearestSearcher
}

// NewPGVector delegates ranking to the database.
func NewPGVector(searcher NearestSearcher) Index {
	return &pgvectorIndex{searcher: searcher}
}

func (p *pgvectorIndex) Search(ctx context.Context, query []float32, topK int) ([]model.SearchResult, error) {
	if topK <= 0 {
		return []model.SearchResult{}, nil
	}
	return p.searcher.SearchNearest(ctx, query, topK)
}
