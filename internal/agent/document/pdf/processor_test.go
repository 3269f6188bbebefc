package pdf

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/lease-parser/internal/models"
	"github.com/feichai0017/lease-parser/internal/testutil"
)

func TestLocalTextConverter_Upload(t *testing.T) {
	conv := NewLocalTextConverter(nil, 1<<20)
	req := &models.IngestRequest{Upload: &models.Upload{
		Filename: "lease.pdf",
		Data:     testutil.PDF("Tenant: Acme Corp", "Suite 200"),
	}}

	doc, err := conv.Convert(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, models.KindText, doc.Kind)
	assert.Equal(t, 2, doc.PageCount)
	assert.Equal(t, "local", doc.Source)
	assert.Contains(t, doc.Body, "Acme Corp")
	assert.Less(t, strings.Index(doc.Body, "Acme"), strings.Index(doc.Body, "200"))
}

func TestLocalTextConverter_URLSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(testutil.PDF("Tenant: Acme Corp"))
	}))
	defer srv.Close()

	doc, err := NewLocalTextConverter(nil, 1<<20).Convert(context.Background(), &models.IngestRequest{DocumentURL: srv.URL + "/lease.pdf"})
	require.NoError(t, err)
	assert.Contains(t, doc.Body, "Acme Corp")
}

func TestLocalTextConverter_Failures(t *testing.T) {
	conv := NewLocalTextConverter(nil, 1<<20)

	_, err := conv.Convert(context.Background(), &models.IngestRequest{Upload: &models.Upload{Data: []byte("not a pdf")}})
	assert.Equal(t, models.KindConversion, models.KindOf(err))

	_, err = conv.Convert(context.Background(), &models.IngestRequest{Upload: &models.Upload{Data: testutil.PDF("")}})
	assert.Equal(t, models.KindConversion, models.KindOf(err))
}

func TestLocalTextConverter_DownloadLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(testutil.PDF("Tenant: Acme Corp"))
	}))
	defer srv.Close()

	_, err := NewLocalTextConverter(nil, 10).Convert(context.Background(), &models.IngestRequest{DocumentURL: srv.URL})
	assert.Equal(t, models.KindPayloadTooLarge, models.KindOf(err))
}
