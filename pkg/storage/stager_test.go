package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/lease-parser/internal/models"
)

type memStorage struct {
	objects   map[string][]byte
	threshold time.Time
	storeErr  error
}

func (m *memStorage) Store(_ context.Context, r io.Reader, _ int64, key, _ string) (string, error) {
	if m.storeErr != nil {
		return "", m.storeErr
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.objects[key] = b
	return key, nil
}

func (m *memStorage) PresignURL(_ context.Context, key string, expiry time.Duration) (string, error) {
	return "https://bucket.example/" + key + "?expires=" + expiry.String(), nil
}

func (m *memStorage) Delete(_ context.Context, key string) error {
	delete(m.objects, key)
	return nil
}

func (m *memStorage) CleanupBefore(_ context.Context, threshold time.Time) (int, error) {
	m.threshold = threshold
	return 0, nil
}

func TestStager_Stage(t *testing.T) {
	store := &memStorage{objects: map[string][]byte{}}
	s := NewStager(store, "", 10*time.Minute, nil)
	s.now = func() time.Time { return time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC) }

	url, err := s.Stage(context.Background(), &models.Upload{Filename: "lease.pdf", Data: []byte("%PDF-1.4")})
	require.NoError(t, err)

	require.Len(t, store.objects, 1)
	for key, data := range store.objects {
		assert.True(t, strings.HasPrefix(key, "lease-uploads/2024/03/15/"), key)
		assert.True(t, strings.HasSuffix(key, ".pdf"), key)
		assert.Equal(t, []byte("%PDF-1.4"), data)
		assert.Equal(t, "https://bucket.example/"+key+"?expires=10m0s", url)
	}
}

func TestStager_StageFailure(t *testing.T) {
	s := NewStager(&memStorage{objects: map[string][]byte{}, storeErr: errors.New("access denied")}, "", 0, nil)
	_, err := s.Stage(context.Background(), &models.Upload{Filename: "lease.pdf"})
	assert.ErrorContains(t, err, "access denied")
}

func TestStager_Sweep(t *testing.T) {
	store := &memStorage{objects: map[string][]byte{}}
	s := NewStager(store, "", 0, nil)
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	_, err := s.Sweep(context.Background(), 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, now.Add(-24*time.Hour), store.threshold)
}

func TestNewStorage_Unsupported(t *testing.T) {
	_, err := NewStorage(context.Background(), "gcs", Options{}, nil)
	assert.Error(t, err)
}
