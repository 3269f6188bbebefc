package lease

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/feichai0017/lease-parser/config"
	"github.com/feichai0017/lease-parser/internal/agent"
	"github.com/feichai0017/lease-parser/internal/agent/document"
	"github.com/feichai0017/lease-parser/internal/utils/validator"
	"github.com/feichai0017/lease-parser/pkg/cache"
	"github.com/feichai0017/lease-parser/pkg/logger"
	"github.com/feichai0017/lease-parser/pkg/queue"
	"github.com/feichai0017/lease-parser/pkg/storage"
)

// Runtime is a fully wired service plus the resources it owns.
type Runtime struct {
	Service   *LeaseService
	Validator *validator.DocumentValidator
	// Stager is nil when no staging backend is configured.
	Stager *storage.Stager
	// Queue and Jobs are nil without Redis.
	Queue *queue.AsynqQueue
	Jobs  *queue.RedisJobStore

	closers []func() error
}

// GetService wires the pipeline from cfg. Redis backs the result cache and the
// job queue when REDIS_ADDR is set; object storage backs upload staging when a
// staging backend is set.
func GetService(ctx context.Context, cfg *config.Config, log logger.Logger) (*Runtime, error) {
	rt := &Runtime{}
	deps := Dependencies{}

	var stager document.Stager
	if cfg.Staging.Backend != config.StagingNone && cfg.Staging.Backend != "" {
		store, err := storage.NewStorage(ctx, storage.StorageType(cfg.Staging.Backend), storage.Options{
			Bucket:    cfg.Staging.Bucket,
			Endpoint:  cfg.Staging.Endpoint,
			Region:    cfg.Staging.Region,
			AccessKey: cfg.Staging.AccessKey,
			SecretKey: cfg.Staging.SecretKey,
			UseSSL:    cfg.Staging.UseSSL,
			Prefix:    storage.DefaultPrefix,
		}, log.Named("storage"))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		rt.Stager = storage.NewStager(store, storage.DefaultPrefix, cfg.Staging.URLExpiry, log.Named("stager"))
		stager = rt.Stager
	}

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
		rt.closers = append(rt.closers, client.Close)

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}

		if cfg.Redis.CacheTTL > 0 {
			deps.Cache = cache.NewRedisCache(client, cfg.Redis.CacheTTL)
		}
		rt.Jobs = queue.NewRedisJobStore(client, cfg.Redis.JobTTL)
		rt.Queue = queue.NewAsynqQueue(queue.QueueConfig{
			RedisAddr:      cfg.Redis.Addr,
			RedisDB:        cfg.Redis.DB,
			MaxRetries:     cfg.Retry.MaxAttempts,
			ProcessTimeout: cfg.Converter.Timeout + cfg.Extractor.Timeout,
			JobTTL:         cfg.Redis.JobTTL,
		}, client)
		rt.closers = append(rt.closers, rt.Queue.Close)
		deps.Queue = rt.Queue
	}

	factory, err := agent.NewProcessorFactory(ctx, cfg, stager, log)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to initialize processor factory: %w", err)
	}
	extractor, closeExtractor, err := agent.NewExtractor(ctx, cfg, log)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to initialize extractor: %w", err)
	}
	rt.closers = append(rt.closers, closeExtractor)

	rt.Validator = validator.NewDocumentValidator(log.Named("validator"), &validator.ValidatorConfig{
		MaxFileSize: cfg.MaxUploadBytes(),
	})
	deps.Converters = factory
	deps.Extractor = extractor
	deps.Validator = rt.Validator

	rt.Service = NewService(cfg, deps, log.Named("lease"))
	return rt, nil
}

// Close releases everything GetService opened, most recent first.
func (rt *Runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}
