package vectorindex

import (
	"context"
	"math"
	"sort"

	"github.com/xxxsen/mrag/internal/model"
)

type exactIndex struct {
	vectors   VectorSource
	documents DocumentLookup
}

// NewExact scans every stored vector per query. Suitable for small corpora
// and for checking the pgvector backend.
func NewExact(vectors VectorSource, documents DocumentLookup) Index {
	return &exactIndex{vectors: vectors, documents: documents}
}

func (e *exactIndex) Search(ctx context.Context, query []float32, topK int) ([]model.SearchResult, error) {
	if topK <= 0 {
		return []model.SearchResult{}, nil
	}
	chunks, err := e.vectors.ListVectors(ctx)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return []model.SearchResult{}, nil
	}
	type scored struct {
		chunk model.Chunk
		score float64
	}
	items := make([]scored, 0, len(chunks))
	for _, c := range chunks {
		items = append(items, scored{chunk: c, score: CosineSimilarity(query, c.Embedding)})
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].score != items[j].score {
			return items[i].score > items[j].score
		}
		return items[i].chunk.ID < items[j].chunk.ID
	})
	if len(items) > topK {
		items = items[:topK]
	}

	ids := make([]string, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, it := range items {
		if !seen[it.chunk.DocumentID] {
			seen[it.chunk.DocumentID] = true
			ids = append(ids, it.chunk.DocumentID)
		}
	}
	docs, err := e.documents.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	refs := make(map[string]model.DocumentRef, len(docs))
	for _, d := range docs {
		refs[d.ID] = d.Ref()
	}

	results := make([]model.SearchResult, 0, len(items))
	for _, it := range items {
		ref, ok := refs[it.chunk.DocumentID]
		if !ok {
			continue
		}
		results = append(results, model.SearchResult{
			ChunkID:    it.chunk.ID,
			Text:       it.chunk.Text,
			ChunkIndex: it.chunk.ChunkIndex,
			Score:      it.score,
			Document:   ref,
		})
	}
	return results, nil
}

// CosineSimilarity returns 0 for mismatched lengths or zero vectors.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
