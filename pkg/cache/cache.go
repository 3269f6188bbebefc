// Package cache stores normalized extraction results in Redis so repeated
// submissions of the same document skip the conversion and model calls.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/feichai0017/lease-parser/internal/models"
)

const keyPrefix = "lease:result:"

// Entry is one cached parse.
type Entry struct {
	Result   *models.ExtractionResult  `json:"leaseData"`
	Document *models.ConvertedDocument `json:"document"`
	StoredAt time.Time                 `json:"storedAt"`
}

// ResultCache looks up and stores parses by document key.
type ResultCache interface {
	Get(ctx context.Context, key string) (*Entry, bool, error)
	Set(ctx context.Context, key string, entry *Entry) error
}

// Key derives the cache key for an ingest request. Uploads hash their bytes,
// URL sources hash the URL. The mode and variant, which names the backends and
// model that produced the result, are part of the key.
func Key(req *models.IngestRequest, variant string) string {
	h := sha256.New()
	h.Write([]byte(variant))
	h.Write([]byte{0})
	if req.HasUpload() {
		h.Write(req.Upload.Data)
	} else {
		h.Write([]byte(req.DocumentURL))
	}
	return keyPrefix + string(req.Mode) + ":" + hex.EncodeToString(h.Sum(nil))
}

type RedisCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedisCache(client redis.UniversalClient, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, key string) (*Entry, bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cache: %w", err)
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, false, fmt.Errorf("failed to decode cache entry: %w", err)
	}
	return &e, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, entry *Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write cache: %w", err)
	}
	return nil
}
