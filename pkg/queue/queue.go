// Package queue enqueues asynchronous lease parses on asynq and keeps their
// status in Redis.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/feichai0017/lease-parser/internal/models"
)

const (
	TaskTypeLeaseParse = "lease:parse"
	QueueName          = "leases"
	jobKeyPrefix       = "lease_job:"
)

// ErrJobNotFound is returned for unknown or expired job ids.
var ErrJobNotFound = errors.New("job not found")

// JobStore persists job state.
type JobStore interface {
	SaveJob(ctx context.Context, job *models.ParseJob) error
	GetJob(ctx context.Context, jobID string) (*models.ParseJob, error)
}

// Queue accepts new parse jobs.
type Queue interface {
	JobStore
	Enqueue(ctx context.Context, job *models.ParseJob) error
}

// TaskPayload is the asynq payload of a lease parse task.
type TaskPayload struct {
	JobID string `json:"jobId"`
}

type QueueConfig struct {
	RedisAddr      string
	RedisDB        int
	MaxRetries     int
	ProcessTimeout time.Duration
	JobTTL         time.Duration
}

// AsynqQueue enqueues tasks with asynq and stores job state with go-redis.
type AsynqQueue struct {
	client *asynq.Client
	store  *RedisJobStore
	cfg    QueueConfig
}

func NewAsynqQueue(cfg QueueConfig, redisClient redis.UniversalClient) *AsynqQueue {
	if cfg.ProcessTimeout <= 0 {
		cfg.ProcessTimeout = 5 * time.Minute
	}
	return &AsynqQueue{
		client: asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr, DB: cfg.RedisDB}),
		store:  NewRedisJobStore(redisClient, cfg.JobTTL),
		cfg:    cfg,
	}
}

// Enqueue saves job as pending and schedules it. The job id doubles as the
// asynq task id, so a duplicate id is rejected by asynq.
func (q *AsynqQueue) Enqueue(ctx context.Context, job *models.ParseJob) error {
	now := time.Now().UTC()
	job.Status = models.JobPending
	job.CreatedAt, job.UpdatedAt = now, now
	if err := q.store.SaveJob(ctx, job); err != nil {
		return err
	}

	payload, err := json.Marshal(TaskPayload{JobID: job.ID})
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}
	task := asynq.NewTask(TaskTypeLeaseParse, payload,
		asynq.TaskID(job.ID),
		asynq.Queue(QueueName),
		asynq.MaxRetry(q.cfg.MaxRetries),
		asynq.Timeout(q.cfg.ProcessTimeout),
	)
	if _, err := q.client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}
	return nil
}

func (q *AsynqQueue) SaveJob(ctx context.Context, job *models.ParseJob) error {
	return q.store.SaveJob(ctx, job)
}

func (q *AsynqQueue) GetJob(ctx context.Context, jobID string) (*models.ParseJob, error) {
	return q.store.GetJob(ctx, jobID)
}

func (q *AsynqQueue) Close() error {
	return q.client.Close()
}

// RedisJobStore keeps one JSON document per job with a TTL.
type RedisJobStore struct {
	redis redis.UniversalClient
	ttl   time.Duration
}

func NewRedisJobStore(client redis.UniversalClient, ttl time.Duration) *RedisJobStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisJobStore{redis: client, ttl: ttl}
}

func (s *RedisJobStore) SaveJob(ctx context.Context, job *models.ParseJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	if err := s.redis.Set(ctx, jobKeyPrefix+job.ID, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}
	return nil
}

func (s *RedisJobStore) GetJob(ctx context.Context, jobID string) (*models.ParseJob, error) {
	data, err := s.redis.Get(ctx, jobKeyPrefix+jobID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	var job models.ParseJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return &job, nil
}
