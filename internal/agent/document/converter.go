// Package document turns an inbound lease PDF into text or page images.
package document

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/feichai0017/lease-parser/internal/models"
)

// Converter produces a ConvertedDocument for one conversion mode.
type Converter interface {
	// Name identifies the backend in logs and responses.
	Name() string
	Mode() models.Mode
	Convert(ctx context.Context, req *models.IngestRequest) (*models.ConvertedDocument, error)
}

// Stager publishes an uploaded PDF at a URL a remote converter can fetch.
type Stager interface {
	Stage(ctx context.Context, upload *models.Upload) (string, error)
}

// Source returns the PDF bytes of req, downloading URL sources with client.
// Downloads larger than limit bytes are rejected.
func Source(ctx context.Context, client *http.Client, req *models.IngestRequest, limit int64) ([]byte, error) {
	if req.HasUpload() {
		return req.Upload.Data, nil
	}
	if client == nil {
		client = http.DefaultClient
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.DocumentURL, nil)
	if err != nil {
		return nil, models.BadRequest(fmt.Sprintf("invalid pdfUrl: %v", err))
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, models.ConversionError("failed to download PDF", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, models.ConversionError(fmt.Sprintf("failed to download PDF: status %d", resp.StatusCode), nil)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, models.ConversionError("failed to download PDF", err)
	}
	if int64(len(data)) > limit {
		return nil, models.PayloadTooLarge(fmt.Sprintf("PDF at pdfUrl exceeds %d bytes", limit))
	}
	return data, nil
}
