package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/feichai0017/lease-parser/pkg/logger"
	"github.com/feichai0017/lease-parser/pkg/storage/minio"
	"github.com/feichai0017/lease-parser/pkg/storage/s3"
)

// StorageType selects the object store backend.
type StorageType string

const (
	StorageTypeS3    StorageType = "s3"
	StorageTypeMinio StorageType = "minio"
)

// Storage is an object store holding staged lease uploads.
type Storage interface {
	// Store writes the object and returns its key.
	Store(ctx context.Context, reader io.Reader, size int64, key, contentType string) (string, error)
	// PresignURL returns a time-limited GET URL for key.
	PresignURL(ctx context.Context, key string, expiry time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
	// CleanupBefore deletes objects under the configured prefix last modified
	// before threshold and returns how many were removed.
	CleanupBefore(ctx context.Context, threshold time.Time) (int, error)
}

// Options are the connection settings shared by both backends.
type Options struct {
	Bucket    string
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Prefix    string
}

// NewStorage creates the backend named by storageType.
func NewStorage(ctx context.Context, storageType StorageType, opts Options, log logger.Logger) (Storage, error) {
	switch storageType {
	case StorageTypeS3:
		st, err := s3.NewS3Storage(ctx, s3.Config{
			Bucket:    opts.Bucket,
			Endpoint:  opts.Endpoint,
			Region:    opts.Region,
			AccessKey: opts.AccessKey,
			SecretKey: opts.SecretKey,
			Prefix:    opts.Prefix,
		}, log)
		if err != nil {
			return nil, err
		}
		return st, nil
	case StorageTypeMinio:
		st, err := minio.NewMinioStorage(ctx, minio.Config{
			Bucket:    opts.Bucket,
			Endpoint:  opts.Endpoint,
			Region:    opts.Region,
			AccessKey: opts.AccessKey,
			SecretKey: opts.SecretKey,
			UseSSL:    opts.UseSSL,
			Prefix:    opts.Prefix,
		}, log)
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageType)
	}
}
