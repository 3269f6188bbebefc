package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/feichai0017/lease-parser/api/handlers"
	"github.com/feichai0017/lease-parser/api/routes"
	"github.com/feichai0017/lease-parser/config"
	"github.com/feichai0017/lease-parser/internal/service/lease"
	"github.com/feichai0017/lease-parser/pkg/logger"
)

const sweepInterval = time.Hour

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		panic(err)
	}
	if err := cfg.Validate(); err != nil {
		panic(err)
	}

	// init logger
	log, err := logger.NewLogger(
		logger.WithLevel(cfg.Log.Level),
		logger.WithEncoding(cfg.Log.Encoding),
		logger.WithInitialFields(map[string]interface{}{"service": "lease-parser"}),
		logger.WithOutputPaths(cfg.Log.Outputs),
	)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := lease.GetService(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize lease service", logger.Error(err))
	}
	defer rt.Close()

	// Credentials are checked per request as well; this only warns early.
	if _, err := cfg.Resolve(); err != nil {
		log.Warn("Lease parsing is misconfigured", logger.Error(err))
	}

	h := handlers.NewHandlers(rt.Service, rt.Validator, handlers.Options{
		MaxUpload:    cfg.MaxUploadBytes(),
		PreviewChars: cfg.Server.PreviewChars,
		Health: handlers.HealthInfo{
			Converter: cfg.Converter.Backend,
			Extractor: cfg.Extractor.Backend,
			Cache:     cfg.Redis.Addr != "" && cfg.Redis.CacheTTL > 0,
			Jobs:      rt.Queue != nil,
		},
	}, log)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.MaxMultipartMemory = 32 << 20
	routes.SetupRoutes(r, h, log)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: r,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Server starting", logger.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if rt.Stager != nil {
		g.Go(func() error {
			rt.Stager.RunSweeper(gctx, sweepInterval, cfg.Staging.Retention)
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("Server forced to shutdown", logger.Error(err))
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("Server stopped with error", logger.Error(err))
	}
}
