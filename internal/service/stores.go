package service

import (
	"context"
	"time"

	"github.com/xxxsen/mrag/internal/model"
)

type DocumentStore interface {
	Create(ctx context.Context, doc *model.Document) error
	GetByID(ctx context.Context, id string) (*model.Document, error)
	List(ctx context.Context, offset, limit uint) ([]*model.Document, error)
	ClaimProcessing(ctx context.Context, id string, from []model.DocumentStatus, now time.Time) (bool, error)
	MarkFailed(ctx context.Context, id string, reason string, now time.Time) error
	UpdateSummary(ctx context.Context, id string, summary string, now time.Time) error
	ListPendingSummaries(ctx context.Context, limit int) ([]*model.Document, error)
	FailStaleProcessing(ctx context.Context, cutoff time.Time, reason string, now time.Time) (int64, error)
}

type ChunkStore interface {
	StoreProcessed(ctx context.Context, docID string, chunks []model.Chunk, now time.Time) error
	ListByDocument(ctx context.Context, docID string) ([]model.Chunk, error)
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

type Answerer interface {
	Answer(ctx context.Context, contextText, question string) (string, error)
}

type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

type IndexManager interface {
	Exists(ctx context.Context) (bool, error)
	Ensure(ctx context.Context) (bool, error)
}
