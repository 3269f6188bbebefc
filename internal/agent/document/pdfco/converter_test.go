package pdfco

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/lease-parser/internal/models"
	"github.com/feichai0017/lease-parser/internal/utils/retry"
	"github.com/feichai0017/lease-parser/pkg/logger"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		BaseURL: srv.URL,
		APIKey:  "test-key",
		Retry:   retry.Policy{MaxAttempts: 2, Initial: time.Millisecond, Max: time.Millisecond},
	}, logger.NewTestLogger())
}

func upload() *models.IngestRequest {
	return &models.IngestRequest{
		Upload: &models.Upload{Filename: "lease.pdf", MimeType: "application/pdf", Data: []byte("%PDF-1.4 test")},
		Mode:   models.TextMode,
	}
}

func TestTextConverter_Upload(t *testing.T) {
	var got map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/pdf/convert/to/text", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"body":"LEASE between Landlord and Acme Corp","pageCount":4,"error":false,"status":200}`))
	})

	doc, err := NewTextConverter(client).Convert(context.Background(), upload())
	require.NoError(t, err)

	assert.Equal(t, models.KindText, doc.Kind)
	assert.Equal(t, "LEASE between Landlord and Acme Corp", doc.Body)
	assert.Equal(t, 4, doc.PageCount)
	assert.Equal(t, true, got["inline"])
	assert.True(t, strings.HasPrefix(got["file"].(string), "data:application/pdf;base64,"))
}

func TestTextConverter_URLSource(t *testing.T) {
	var got map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"body":"text"}`))
	})

	_, err := NewTextConverter(client).Convert(context.Background(), &models.IngestRequest{DocumentURL: "https://files/lease.pdf"})
	require.NoError(t, err)
	assert.Equal(t, "https://files/lease.pdf", got["url"])
	assert.NotContains(t, got, "file")
}

func TestTextConverter_MissingBodyIsConversionError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":true,"status":400,"message":"Password protected file"}`))
	})

	_, err := NewTextConverter(client).Convert(context.Background(), upload())
	var e *models.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, models.KindConversion, e.Kind)
	assert.Equal(t, "PDF conversion failed: Password protected file", e.Message)
}

func TestTextConverter_EmptyBodyOn200(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":200}`))
	})

	_, err := NewTextConverter(client).Convert(context.Background(), upload())
	assert.Equal(t, models.KindConversion, models.KindOf(err))
	assert.Contains(t, err.Error(), "Unknown error")
}

func TestTextConverter_RetriesServerErrors(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"body":"ok"}`))
	})

	doc, err := NewTextConverter(client).Convert(context.Background(), upload())
	require.NoError(t, err)
	assert.Equal(t, "ok", doc.Body)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestTextConverter_Unauthorized(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":true,"message":"Invalid API key"}`))
	})

	_, err := NewTextConverter(client).Convert(context.Background(), upload())
	var se *retry.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.Code)
	assert.Equal(t, models.KindConversion, models.KindOf(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

type fakeStager struct {
	url string
	err error
}

func (f *fakeStager) Stage(context.Context, *models.Upload) (string, error) {
	return f.url, f.err
}

func TestImageConverter(t *testing.T) {
	var got map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/pdf/convert/to/png", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"urls":["https://cdn/p1.png"],"pageCount":6,"error":false}`))
	})

	t.Run("url source", func(t *testing.T) {
		doc, err := NewImageConverter(client, nil).Convert(context.Background(), &models.IngestRequest{DocumentURL: "https://files/lease.pdf"})
		require.NoError(t, err)
		assert.Equal(t, "https://cdn/p1.png", doc.FirstPage())
		assert.Equal(t, 6, doc.PageCount)
		assert.Equal(t, "https://files/lease.pdf", got["url"])
	})

	t.Run("staged upload", func(t *testing.T) {
		conv := NewImageConverter(client, &fakeStager{url: "https://bucket/staged.pdf"})
		_, err := conv.Convert(context.Background(), upload())
		require.NoError(t, err)
		assert.Equal(t, "https://bucket/staged.pdf", got["url"])
	})

	t.Run("upload without staging", func(t *testing.T) {
		_, err := NewImageConverter(client, nil).Convert(context.Background(), upload())
		assert.Equal(t, models.KindBadRequest, models.KindOf(err))
	})

	t.Run("staging failure", func(t *testing.T) {
		_, err := NewImageConverter(client, &fakeStager{err: errors.New("bucket gone")}).Convert(context.Background(), upload())
		assert.Equal(t, models.KindConversion, models.KindOf(err))
	})
}

func TestImageConverter_FailureShapes(t *testing.T) {
	for name, body := range map[string]string{
		"error flag":   `{"error":true,"urls":["https://cdn/p1.png"],"message":"bad page"}`,
		"missing urls": `{"error":false}`,
		"empty urls":   `{"urls":[]}`,
	} {
		t.Run(name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			})
			_, err := NewImageConverter(client, nil).Convert(context.Background(), &models.IngestRequest{DocumentURL: "https://files/lease.pdf"})
			assert.Equal(t, models.KindConversion, models.KindOf(err))
		})
	}
}
