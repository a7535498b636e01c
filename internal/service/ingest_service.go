package service

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xxxsen/mrag/internal/chunker"
	"github.com/xxxsen/mrag/internal/extract"
	"github.com/xxxsen/mrag/internal/filestore"
	"github.com/xxxsen/mrag/internal/model"
	appErr "github.com/xxxsen/mrag/internal/pkg/errors"
)

const staleProcessingReason = "processing did not finish in time"

type IngestConfig struct {
	ChunkSize    int
	ChunkOverlap int
	Concurrency  int
}

type IngestInput struct {
	Title    string
	FileType string
	Content  *string
}

type ProcessResult struct {
	DocumentID string               `json:"documentId"`
	Chunks     int                  `json:"chunks"`
	Status     model.DocumentStatus `json:"status"`
}

type IngestService struct {
	docs     DocumentStore
	chunks   ChunkStore
	embedder Embedder
	files    filestore.Store
	cfg      IngestConfig
	now      func() time.Time
}

func NewIngestService(docs DocumentStore, chunks ChunkStore, embedder Embedder, files filestore.Store, cfg IngestConfig) (*IngestService, error) {
	if cfg.ChunkSize == 0 && cfg.ChunkOverlap == 0 {
		cfg.ChunkSize = chunker.DefaultChunkSize
		cfg.ChunkOverlap = chunker.DefaultOverlap
	}
	if err := chunker.Validate(cfg.ChunkSize, cfg.ChunkOverlap); err != nil {
		return nil, err
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &IngestService{
		docs:     docs,
		chunks:   chunks,
		embedder: embedder,
		files:    files,
		cfg:      cfg,
		now:      time.Now,
	}, nil
}

// Ingest stores a new document in the uploaded state.
func (s *IngestService) Ingest(ctx context.Context, input IngestInput) (*model.Document, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, appErr.Invalid("title is required")
	}
	if strings.TrimSpace(input.FileType) == "" {
		return nil, appErr.Invalid("filetype is required")
	}
	fileType, ok := model.ParseFileType(input.FileType)
	if !ok {
		return nil, appErr.Invalidf("unsupported filetype %q", input.FileType)
	}
	doc := s.newDocument(title, fileType)
	doc.Content = input.Content
	if err := s.docs.Create(ctx, doc); err != nil {
		return nil, err
	}
	logutil.GetLogger(ctx).Info("document ingested",
		zap.String("document_id", doc.ID),
		zap.String("filetype", string(doc.FileType)),
		zap.Bool("has_content", doc.HasContent()),
	)
	return doc, nil
}

// IngestFile keeps the original file in the file store and its extracted
// text as the document content. Only text formats are accepted.
func (s *IngestService) IngestFile(ctx context.Context, title, filename string, data []byte) (*model.Document, error) {
	fileType, err := extract.FileTypeFromName(filename)
	if err != nil {
		return nil, err
	}
	text, err := extract.Text(fileType, data)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, appErr.Invalid("file contains no text")
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	}
	if title == "" {
		return nil, appErr.Invalid("title is required")
	}

	doc := s.newDocument(title, fileType)
	doc.Content = &text
	if s.files != nil {
		key := doc.ID + "." + string(fileType)
		if err := s.files.Save(ctx, key, data); err != nil {
			return nil, appErr.Storage(fmt.Errorf("save original file: %w", err))
		}
		name := filepath.Base(filename)
		url := s.files.URL(key)
		doc.Filename = &name
		doc.FileURL = &url
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		if doc.Filename != nil {
			s.removeOriginal(ctx, doc.ID+"."+string(fileType))
		}
		return nil, err
	}
	logutil.GetLogger(ctx).Info("document file ingested",
		zap.String("document_id", doc.ID),
		zap.String("filename", filename),
		zap.Int("bytes", len(data)),
	)
	return doc, nil
}

// removeOriginal drops a stored file whose document was never created.
func (s *IngestService) removeOriginal(ctx context.Context, key string) {
	ctx = context.WithoutCancel(ctx)
	if err := s.files.Delete(ctx, key); err != nil {
		logutil.GetLogger(ctx).Error("failed to remove orphaned file", zap.String("key", key), zap.Error(err))
	}
}

func (s *IngestService) Get(ctx context.Context, id string) (*model.Document, error) {
	if strings.TrimSpace(id) == "" {
		return nil, appErr.Invalid("document id is required")
	}
	return s.docs.GetByID(ctx, id)
}

func (s *IngestService) List(ctx context.Context) ([]*model.Document, error) {
	return s.docs.List(ctx, 0, 0)
}

func (s *IngestService) ListChunks(ctx context.Context, id string) ([]model.Chunk, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.chunks.ListByDocument(ctx, id)
}

// Process chunks, embeds and persists a document. Only one call per document
// can be in flight; a processed document is only reprocessed when force is set.
// Any failure after the claim leaves the document failed with no new chunks.
func (s *IngestService) Process(ctx context.Context, id string, force bool) (*ProcessResult, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !doc.HasContent() {
		return nil, appErr.Invalid("This document does not have content to process.")
	}
	switch doc.Status {
	case model.DocumentStatusProcessing:
		return nil, appErr.Conflict("document is already being processed")
	case model.DocumentStatusProcessed:
		if !force {
			return nil, appErr.Conflict("document is already processed, set force to reprocess")
		}
	}
	from := []model.DocumentStatus{model.DocumentStatusUploaded, model.DocumentStatusFailed}
	if force {
		from = append(from, model.DocumentStatusProcessed)
	}
	claimed, err := s.docs.ClaimProcessing(ctx, id, from, s.now())
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, appErr.Conflict("document is already being processed")
	}

	logger := logutil.GetLogger(ctx).With(zap.String("document_id", id))
	chunks, err := s.buildChunks(ctx, id, *doc.Content)
	if err == nil {
		err = s.chunks.StoreProcessed(ctx, id, chunks, s.now())
	}
	if err != nil {
		logger.Error("document processing failed", zap.Error(err))
		s.markFailed(ctx, id, err)
		return nil, err
	}
	logger.Info("document processed", zap.Int("chunks", len(chunks)))
	return &ProcessResult{
		DocumentID: id,
		Chunks:     len(chunks),
		Status:     model.DocumentStatusProcessed,
	}, nil
}

func (s *IngestService) buildChunks(ctx context.Context, id, content string) ([]model.Chunk, error) {
	pieces, err := chunker.Chunk(content, s.cfg.ChunkSize, s.cfg.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	vectors := make([][]float32, len(pieces))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i := range pieces {
		g.Go(func() error {
			vec, err := s.embedder.Embed(gctx, pieces[i])
			if err != nil {
				return err
			}
			vectors[i] = vec
			logutil.GetLogger(ctx).Debug("chunk embedded", zap.String("document_id", id), zap.Int("chunk_index", i))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, appErr.Embedding(err)
	}
	chunks := make([]model.Chunk, 0, len(pieces))
	for i, text := range pieces {
		chunks = append(chunks, model.Chunk{
			DocumentID: id,
			ChunkIndex: i,
			Text:       text,
			Embedding:  vectors[i],
		})
	}
	return chunks, nil
}

// markFailed records the failure even when the request context is already
// cancelled.
func (s *IngestService) markFailed(ctx context.Context, id string, cause error) {
	ctx = context.WithoutCancel(ctx)
	if err := s.docs.MarkFailed(ctx, id, cause.Error(), s.now()); err != nil {
		logutil.GetLogger(ctx).Error("failed to mark document failed", zap.String("document_id", id), zap.Error(err))
	}
}

// RecoverStale fails documents that have been processing for longer than age.
func (s *IngestService) RecoverStale(ctx context.Context, age time.Duration) (int64, error) {
	now := s.now()
	n, err := s.docs.FailStaleProcessing(ctx, now.Add(-age), staleProcessingReason, now)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		logutil.GetLogger(ctx).Warn("stale processing documents failed", zap.Int64("count", n))
	}
	return n, nil
}

func (s *IngestService) newDocument(title string, fileType model.FileType) *model.Document {
	now := s.now()
	return &model.Document{
		ID:         newID(),
		Title:      title,
		FileType:   fileType,
		Status:     model.DocumentStatusUploaded,
		UploadedAt: now,
		UpdatedAt:  now,
	}
}
