package job

import (
	"context"

	"github.com/xxxsen/mrag/internal/service"
)

type SummaryJob struct {
	summaries *service.SummaryService
	batch     int
}

func NewSummaryJob(summaries *service.SummaryService, batch int) *SummaryJob {
	return &SummaryJob{summaries: summaries, batch: batch}
}

func (j *SummaryJob) Name() string {
	return "document_summary"
}

func (j *SummaryJob) Run(ctx context.Context) error {
	if j.summaries == nil {
		return nil
	}
	_, err := j.summaries.ProcessPendingSummaries(ctx, j.batch)
	return err
}
