package job

import (
	"context"
	"time"

	"github.com/xxxsen/mrag/internal/service"
)

// StaleProcessingJob fails documents left in processing, for example by a
// crash mid-ingestion, so they can be processed again.
type StaleProcessingJob struct {
	ingest *service.IngestService
	maxAge time.Duration
}

func NewStaleProcessingJob(ingest *service.IngestService, maxAge time.Duration) *StaleProcessingJob {
	return &StaleProcessingJob{ingest: ingest, maxAge: maxAge}
}

func (j *StaleProcessingJob) Name() string {
	return "stale_processing_recovery"
}

func (j *StaleProcessingJob) Run(ctx context.Context) error {
	if j.ingest == nil {
		return nil
	}
	maxAge := j.maxAge
	if maxAge <= 0 {
		maxAge = 30 * time.Minute
	}
	_, err := j.ingest.RecoverStale(ctx, maxAge)
	return err
}
