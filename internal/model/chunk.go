package model

import "time"

// EmbeddingDimension is shared by the embedding client and the
// vector(1536) column of rag_chunks.
const EmbeddingDimension = 1536

type Chunk struct {
	ID         int64     `json:"id"`
	DocumentID string    `json:"documentId"`
	ChunkIndex int       `json:"chunkIndex"`
	Text       string    `json:"text"`
	Embedding  []float32 `json:"-"`
	CreatedAt  time.Time `json:"createdAt"`
}

type SearchResult struct {
	ChunkID    int64       `json:"-"`
	Text       string      `json:"text"`
	ChunkIndex int         `json:"chunkIndex"`
	Score      float64     `json:"score"`
	Document   DocumentRef `json:"document"`
}
