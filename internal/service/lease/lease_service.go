package lease

import (
	"context"

	"github.com/feichai0017/lease-parser/internal/models"
)

// LeaseProcessor is the pipeline behind the HTTP gateway and the job worker.
type LeaseProcessor interface {
	Parse(ctx context.Context, req *models.IngestRequest) (*models.ParseOutcome, error)
	SubmitJob(ctx context.Context, req *models.IngestRequest) (*models.ParseJob, error)
	GetJob(ctx context.Context, jobID string) (*models.ParseJob, error)
}
