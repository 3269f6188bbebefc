package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/google/uuid"

	"github.com/feichai0017/lease-parser/internal/models"
	"github.com/feichai0017/lease-parser/pkg/logger"
)

// DefaultPrefix is the key prefix for staged uploads.
const DefaultPrefix = "lease-uploads/"

// Stager publishes uploads to object storage behind presigned URLs so that
// URL-only converters can read them.
type Stager struct {
	store  Storage
	prefix string
	expiry time.Duration
	now    func() time.Time
	logger logger.Logger
}

func NewStager(store Storage, prefix string, expiry time.Duration, log logger.Logger) *Stager {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Stager{store: store, prefix: prefix, expiry: expiry, now: time.Now, logger: log}
}

// Stage stores the upload under a fresh key and returns a presigned GET URL.
func (s *Stager) Stage(ctx context.Context, upload *models.Upload) (string, error) {
	key := path.Join(s.prefix, s.now().UTC().Format("2006/01/02"), uuid.NewString()+".pdf")
	if _, err := s.store.Store(ctx, bytes.NewReader(upload.Data), int64(len(upload.Data)), key, "application/pdf"); err != nil {
		return "", fmt.Errorf("stage %s: %w", upload.Filename, err)
	}
	url, err := s.store.PresignURL(ctx, key, s.expiry)
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	s.logger.Info("Staged upload",
		logger.String("filename", upload.Filename),
		logger.String("key", key),
		logger.Int("size", len(upload.Data)),
	)
	return url, nil
}

// Sweep removes staged uploads older than retention.
func (s *Stager) Sweep(ctx context.Context, retention time.Duration) (int, error) {
	return s.store.CleanupBefore(ctx, s.now().Add(-retention))
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *Stager) RunSweeper(ctx context.Context, interval, retention time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.Sweep(ctx, retention)
			if err != nil {
				s.logger.Error("Staging sweep failed", logger.Error(err))
				continue
			}
			if n > 0 {
				s.logger.Info("Staging sweep removed uploads", logger.Int("count", n))
			}
		}
	}
}
