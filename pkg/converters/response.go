// Package converters turns pipeline outcomes into the JSON bodies returned to
// callers.
package converters

import (
	"github.com/feichai0017/lease-parser/internal/models"
)

// DefaultPreviewChars is the preview length used when none is configured.
const DefaultPreviewChars = 500

// LeaseResponse is the success body of a parse.
type LeaseResponse struct {
	Success       bool                     `json:"success"`
	Filename      string                   `json:"filename,omitempty"`
	LeaseUploadID string                   `json:"leaseUploadId,omitempty"`
	CorrelationID string                   `json:"correlationId,omitempty"`
	RequestID     string                   `json:"requestId,omitempty"`
	LeaseData     *models.ExtractionResult `json:"leaseData"`
	ExtractedText string                   `json:"extractedText,omitempty"`
	PageCount     int                      `json:"pageCount"`
	PageImageURL  string                   `json:"pageImageUrl,omitempty"`
	Mode          models.Mode              `json:"mode"`
	Source        string                   `json:"source,omitempty"`
	Cached        bool                     `json:"cached"`
	ProcessingMs  int64                    `json:"processingMs"`
}

// ResponseConverter assembles LeaseResponse values.
type ResponseConverter struct {
	previewChars int
}

func NewResponseConverter(previewChars int) *ResponseConverter {
	if previewChars <= 0 {
		previewChars = DefaultPreviewChars
	}
	return &ResponseConverter{previewChars: previewChars}
}

// Convert builds the success body. The text preview is only for humans and is
// never parsed back.
func (c *ResponseConverter) Convert(req *models.IngestRequest, out *models.ParseOutcome) *LeaseResponse {
	resp := &LeaseResponse{
		Success:       true,
		Filename:      out.Filename,
		LeaseUploadID: req.LeaseUploadID,
		CorrelationID: req.CorrelationID,
		RequestID:     out.RequestID,
		LeaseData:     out.Result,
		Mode:          out.Mode,
		Cached:        out.Cached,
		ProcessingMs:  out.Elapsed.Milliseconds(),
	}
	if resp.LeaseData == nil {
		resp.LeaseData = &models.ExtractionResult{}
	}
	if doc := out.Document; doc != nil {
		resp.PageCount = doc.PageCount
		resp.Source = doc.Source
		switch doc.Kind {
		case models.KindText:
			resp.ExtractedText = Preview(doc.Body, c.previewChars)
		case models.KindPageImages:
			resp.PageImageURL = doc.FirstPage()
		}
	}
	return resp
}

// Preview returns the first n runes of s, marked with "..." when cut.
func Preview(s string, n int) string {
	cut := models.Truncate(s, n)
	if len(cut) < len(s) {
		return cut + "..."
	}
	return cut
}
