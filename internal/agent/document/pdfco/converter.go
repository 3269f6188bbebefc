package pdfco

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/feichai0017/lease-parser/internal/agent/document"
	"github.com/feichai0017/lease-parser/internal/models"
	"github.com/feichai0017/lease-parser/pkg/logger"
)

// TextConverter extracts the full text layer of a PDF.
type TextConverter struct {
	client *Client
}

func NewTextConverter(client *Client) *TextConverter {
	return &TextConverter{client: client}
}

func (c *TextConverter) Name() string      { return sourceName }
func (c *TextConverter) Mode() models.Mode { return models.TextMode }

func (c *TextConverter) Convert(ctx context.Context, req *models.IngestRequest) (*models.ConvertedDocument, error) {
	body := map[string]any{"inline": true}
	if req.HasUpload() {
		body["file"] = "data:application/pdf;base64," + base64.StdEncoding.EncodeToString(req.Upload.Data)
	} else {
		body["url"] = req.DocumentURL
	}

	resp, err := c.client.post(ctx, "/pdf/convert/to/text", body)
	if err != nil {
		return nil, models.ConversionError("PDF conversion failed", err)
	}
	if resp.failed() || resp.Body == "" {
		c.client.logger.Warn("PDF.co returned no text",
			logger.Int("status", resp.Status),
			logger.String("reason", resp.reason()),
		)
		return nil, models.ConversionError(fmt.Sprintf("PDF conversion failed: %s", resp.reason()), nil)
	}
	return models.NewTextDocument(resp.Body, sourceName, resp.PageCount), nil
}

// ImageConverter renders the first page of a PDF to a hosted PNG.
type ImageConverter struct {
	client *Client
	stager document.Stager
}

// NewImageConverter creates an ImageConverter. stager may be nil, in which
// case only URL sources are accepted.
func NewImageConverter(client *Client, stager document.Stager) *ImageConverter {
	return &ImageConverter{client: client, stager: stager}
}

func (c *ImageConverter) Name() string      { return sourceName }
func (c *ImageConverter) Mode() models.Mode { return models.ImageMode }

func (c *ImageConverter) Convert(ctx context.Context, req *models.IngestRequest) (*models.ConvertedDocument, error) {
	url := req.DocumentURL
	if req.HasUpload() {
		if c.stager == nil {
			return nil, models.BadRequest("Image mode requires a pdfUrl when upload staging is not configured")
		}
		staged, err := c.stager.Stage(ctx, req.Upload)
		if err != nil {
			return nil, models.ConversionError("failed to stage upload for conversion", err)
		}
		url = staged
	}

	resp, err := c.client.post(ctx, "/pdf/convert/to/png", map[string]any{
		"url":   url,
		"pages": "0",
	})
	if err != nil {
		return nil, models.ConversionError("PDF to image conversion failed", err)
	}
	if resp.failed() || len(resp.URLs) == 0 {
		c.client.logger.Warn("PDF.co returned no page images",
			logger.Int("status", resp.Status),
			logger.String("reason", resp.reason()),
		)
		return nil, models.ConversionError(fmt.Sprintf("PDF to image conversion failed: %s", resp.reason()), nil)
	}

	doc := models.NewPageImagesDocument(resp.URLs, sourceName)
	if resp.PageCount > doc.PageCount {
		doc.PageCount = resp.PageCount
	}
	return doc, nil
}
