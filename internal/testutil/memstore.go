package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xxxsen/mrag/internal/model"
	appErr "github.com/xxxsen/mrag/internal/pkg/errors"
	"github.com/xxxsen/mrag/internal/vectorindex"
)

// MemStore is an in-memory document and chunk store with the same status
// rules as the PostgreSQL repositories.
type MemStore struct {
	mu     sync.Mutex
	docs   map[string]*model.Document
	chunks map[string][]model.Chunk
	nextID int64

	// StoreErr, when set, fails StoreProcessed without writing anything.
	StoreErr error
	// CreateErr, when set, fails Create.
	CreateErr error
}

func NewMemStore() *MemStore {
	return &MemStore{
		docs:   map[string]*model.Document{},
		chunks: map[string][]model.Chunk{},
	}
}

func cloneDoc(d *model.Document) *model.Document {
	c := *d
	return &c
}

func (m *MemStore) Create(ctx context.Context, doc *model.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return m.CreateErr
	}
	if _, ok := m.docs[doc.ID]; ok {
		return appErr.Conflict("document already exists")
	}
	m.docs[doc.ID] = cloneDoc(doc)
	return nil
}

func (m *MemStore) GetByID(ctx context.Context, id string) (*model.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return nil, appErr.NotFound("document not found")
	}
	return cloneDoc(d), nil
}

func (m *MemStore) List(ctx context.Context, offset, limit uint) ([]*model.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.Document, 0, len(m.docs))
	for _, d := range m.docs {
		out = append(out, cloneDoc(d))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UploadedAt.Equal(out[j].UploadedAt) {
			return out[i].UploadedAt.After(out[j].UploadedAt)
		}
		return out[i].ID < out[j].ID
	})
	if int(offset) >= len(out) {
		return []*model.Document{}, nil
	}
	out = out[offset:]
	if limit > 0 && int(limit) < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemStore) ListByIDs(ctx context.Context, ids []string) ([]*model.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.Document, 0, len(ids))
	for _, id := range ids {
		if d, ok := m.docs[id]; ok {
			out = append(out, cloneDoc(d))
		}
	}
	return out, nil
}

func (m *MemStore) ClaimProcessing(ctx context.Context, id string, from []model.DocumentStatus, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return false, nil
	}
	for _, s := range from {
		if d.Status == s {
			d.Status = model.DocumentStatusProcessing
			d.LastError = nil
			d.UpdatedAt = now
			return true, nil
		}
	}
	return false, nil
}

func (m *MemStore) MarkFailed(ctx context.Context, id string, reason string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok || d.Status != model.DocumentStatusProcessing {
		return nil
	}
	d.Status = model.DocumentStatusFailed
	d.LastError = &reason
	d.UpdatedAt = now
	return nil
}

func (m *MemStore) UpdateSummary(ctx context.Context, id string, summary string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return appErr.NotFound("document not found")
	}
	d.Summary = &summary
	d.UpdatedAt = now
	return nil
}

func (m *MemStore) ListPendingSummaries(ctx context.Context, limit int) ([]*model.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.Document, 0)
	for _, d := range m.docs {
		if d.Status == model.DocumentStatusProcessed && d.Summary == nil && d.Content != nil {
			out = append(out, cloneDoc(d))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemStore) FailStaleProcessing(ctx context.Context, cutoff time.Time, reason string, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, d := range m.docs {
		if d.Status == model.DocumentStatusProcessing && d.UpdatedAt.Before(cutoff) {
			r := reason
			d.Status = model.DocumentStatusFailed
			d.LastError = &r
			d.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

func (m *MemStore) StoreProcessed(ctx context.Context, docID string, chunks []model.Chunk, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.StoreErr != nil {
		return appErr.Storage(m.StoreErr)
	}
	d, ok := m.docs[docID]
	if !ok || d.Status != model.DocumentStatusProcessing {
		return appErr.Conflict("document is no longer processing")
	}
	stored := make([]model.Chunk, 0, len(chunks))
	for _, c := range chunks {
		m.nextID++
		c.ID = m.nextID
		c.DocumentID = docID
		c.CreatedAt = now
		stored = append(stored, c)
	}
	m.chunks[docID] = stored
	d.Status = model.DocumentStatusProcessed
	d.ChunkCount = len(stored)
	d.LastError = nil
	d.UpdatedAt = now
	return nil
}

func (m *MemStore) ListByDocument(ctx context.Context, docID string) ([]model.Chunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Chunk, 0, len(m.chunks[docID]))
	for _, c := range m.chunks[docID] {
		c.Embedding = nil
		out = append(out, c)
	}
	return out, nil
}

func (m *MemStore) ListVectors(ctx context.Context) ([]model.Chunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Chunk, 0)
	for _, cs := range m.chunks {
		out = append(out, cs...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SearchNearest mirrors the pgvector query by ranking in memory.
func (m *MemStore) SearchNearest(ctx context.Context, vec []float32, topK int) ([]model.SearchResult, error) {
	return vectorindex.NewExact(m, m).Search(ctx, vec, topK)
}

// Chunks returns the stored chunks of a document including embeddings.
func (m *MemStore) Chunks(docID string) []model.Chunk {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Chunk(nil), m.chunks[docID]...)
}

// SetStatus forces a document into status, for tests that need a given state.
func (m *MemStore) SetStatus(id string, status model.DocumentStatus, updatedAt time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.docs[id]; ok {
		d.Status = status
		d.UpdatedAt = updatedAt
	}
}
