package service

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type SummaryService struct {
	docs       DocumentStore
	summarizer Summarizer
	now        func() time.Time
}

func NewSummaryService(docs DocumentStore, summarizer Summarizer) *SummaryService {
	return &SummaryService{docs: docs, summarizer: summarizer, now: time.Now}
}

// ProcessPendingSummaries summarizes up to limit processed documents that
// have no summary yet. Per document failures are logged and retried later.
func (s *SummaryService) ProcessPendingSummaries(ctx context.Context, limit int) (int, error) {
	docs, err := s.docs.ListPendingSummaries(ctx, limit)
	if err != nil {
		return 0, err
	}
	done := 0
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return done, err
		}
		if !doc.HasContent() {
			continue
		}
		logger := logutil.GetLogger(ctx).With(zap.String("document_id", doc.ID))
		summary, err := s.summarizer.Summarize(ctx, *doc.Content)
		if err != nil {
			logger.Warn("summary generation failed", zap.Error(err))
			continue
		}
		if err := s.docs.UpdateSummary(ctx, doc.ID, summary, s.now()); err != nil {
			logger.Error("save summary failed", zap.Error(err))
			continue
		}
		done++
	}
	return done, nil
}
