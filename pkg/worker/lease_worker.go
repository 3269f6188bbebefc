package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/feichai0017/lease-parser/internal/models"
	"github.com/feichai0017/lease-parser/internal/utils/retry"
	"github.com/feichai0017/lease-parser/pkg/logger"
	"github.com/feichai0017/lease-parser/pkg/queue"
)

// Parser runs the extraction pipeline for one request.
type Parser interface {
	Parse(ctx context.Context, req *models.IngestRequest) (*models.ParseOutcome, error)
}

// LeaseWorker executes queued lease parses.
type LeaseWorker struct {
	BaseWorker
	parser Parser
	jobs   queue.JobStore
	// retriesLeft reports whether asynq will run the task again after a failure.
	retriesLeft func(ctx context.Context) bool
}

func NewLeaseWorker(cfg *Config, parser Parser, jobs queue.JobStore, log logger.Logger) *LeaseWorker {
	queues := cfg.Queues
	if len(queues) == 0 {
		queues = map[string]int{queue.QueueName: 1}
	}
	server := asynq.NewServer(
		asynq.RedisClientOpt{Addr: cfg.RedisAddr, DB: cfg.RedisDB},
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues:      queues,
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				return time.Duration(n) * 30 * time.Second
			},
		},
	)

	w := &LeaseWorker{
		BaseWorker: BaseWorker{
			server: server,
			mux:    asynq.NewServeMux(),
			logger: log,
		},
		parser:      parser,
		jobs:        jobs,
		retriesLeft: asynqRetriesLeft,
	}
	w.mux.HandleFunc(queue.TaskTypeLeaseParse, w.handleLeaseParse)
	return w
}

func (w *LeaseWorker) handleLeaseParse(ctx context.Context, t *asynq.Task) error {
	var payload queue.TaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		w.logger.Error("Failed to unmarshal task", logger.Error(err), logger.String("payload", string(t.Payload())))
		return fmt.Errorf("%w: failed to unmarshal task: %v", asynq.SkipRetry, err)
	}

	job, err := w.jobs.GetJob(ctx, payload.JobID)
	if err != nil {
		return fmt.Errorf("%w: load job %s: %v", asynq.SkipRetry, payload.JobID, err)
	}

	log := w.logger.With(
		logger.String("job_id", job.ID),
		logger.String("correlation_id", job.CorrelationID),
	)
	log.Info("Processing lease job", logger.String("pdf_url", job.DocumentURL))

	w.update(ctx, job, models.JobRunning, nil, nil)

	outcome, err := w.parser.Parse(ctx, &models.IngestRequest{
		DocumentURL:   job.DocumentURL,
		CorrelationID: job.CorrelationID,
		LeaseUploadID: job.LeaseUploadID,
		Mode:          job.Mode,
	})
	if err != nil {
		failure := models.NewErrorEnvelope(err, job.CorrelationID, job.LeaseUploadID)
		if retry.IsTransient(err) && w.retriesLeft(ctx) {
			log.Warn("Lease job will be retried", logger.String("kind", string(models.KindOf(err))), logger.Error(err))
			w.update(ctx, job, models.JobRetrying, nil, failure)
			return err
		}
		log.Error("Lease job failed", logger.String("kind", string(models.KindOf(err))), logger.Error(err))
		w.update(ctx, job, models.JobFailed, nil, failure)
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	w.update(ctx, job, models.JobCompleted, outcome.Result, nil)
	log.Info("Lease job completed", logger.Duration("elapsed", outcome.Elapsed))
	return nil
}

func asynqRetriesLeft(ctx context.Context) bool {
	retried, ok := asynq.GetRetryCount(ctx)
	if !ok {
		return false
	}
	limit, ok := asynq.GetMaxRetry(ctx)
	return ok && retried < limit
}

func (w *LeaseWorker) update(ctx context.Context, job *models.ParseJob, status models.JobStatus, result *models.ExtractionResult, failure *models.ErrorEnvelope) {
	job.Status = status
	job.Result = result
	job.Error = failure
	job.UpdatedAt = time.Now().UTC()
	if err := w.jobs.SaveJob(ctx, job); err != nil {
		w.logger.Error("Failed to save job status",
			logger.String("job_id", job.ID),
			logger.String("status", string(status)),
			logger.Error(err),
		)
	}
}
