package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/feichai0017/lease-parser/config"
	"github.com/feichai0017/lease-parser/internal/service/lease"
	"github.com/feichai0017/lease-parser/pkg/logger"
	"github.com/feichai0017/lease-parser/pkg/queue"
	"github.com/feichai0017/lease-parser/pkg/worker"
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		panic(err)
	}
	if err := cfg.Validate(); err != nil {
		panic(err)
	}

	log, err := logger.NewLogger(
		logger.WithLevel(cfg.Log.Level),
		logger.WithEncoding(cfg.Log.Encoding),
		logger.WithInitialFields(map[string]interface{}{"service": "lease-worker"}),
		logger.WithOutputPaths([]string{"stdout", "logs/worker.log"}),
	)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if cfg.Redis.Addr == "" {
		log.Error("REDIS_ADDR is required to run the worker")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := lease.GetService(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to create lease service", logger.Error(err))
		os.Exit(1)
	}
	defer rt.Close()

	leaseWorker := worker.NewLeaseWorker(&worker.Config{
		RedisAddr:   cfg.Redis.Addr,
		RedisDB:     cfg.Redis.DB,
		Concurrency: cfg.Redis.Concurrency,
		Queues:      map[string]int{queue.QueueName: 1},
	}, rt.Service, rt.Jobs, log.Named("worker"))

	log.Info("Worker starting", logger.Int("concurrency", cfg.Redis.Concurrency))
	if err := leaseWorker.Start(ctx); err != nil {
		log.Error("Failed to start worker", logger.Error(err))
		os.Exit(1)
	}
	log.Info("Worker stopped")
}
