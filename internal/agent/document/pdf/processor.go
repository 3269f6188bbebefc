// Package pdf reads the embedded text layer of a PDF without any remote call.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/ledongthuc/pdf"
	"golang.org/x/sync/errgroup"

	"github.com/feichai0017/lease-parser/internal/agent/document"
	"github.com/feichai0017/lease-parser/internal/models"
	"github.com/feichai0017/lease-parser/pkg/logger"
)

const sourceName = "local"

// LocalTextConverter is the offline TextMode backend. Scanned PDFs without a
// text layer yield a ConversionError; there is no OCR fallback.
type LocalTextConverter struct {
	logger      logger.Logger
	maxWorkers  int
	maxDownload int64
	httpClient  *http.Client
}

func NewLocalTextConverter(log logger.Logger, maxDownload int64) *LocalTextConverter {
	if log == nil {
		log = logger.NewNop()
	}
	return &LocalTextConverter{
		logger:      log,
		maxWorkers:  4,
		maxDownload: maxDownload,
		httpClient:  http.DefaultClient,
	}
}

func (p *LocalTextConverter) Name() string      { return sourceName }
func (p *LocalTextConverter) Mode() models.Mode { return models.TextMode }

func (p *LocalTextConverter) Convert(ctx context.Context, req *models.IngestRequest) (*models.ConvertedDocument, error) {
	content, err := document.Source(ctx, p.httpClient, req, p.maxDownload)
	if err != nil {
		return nil, err
	}

	pages, err := p.pageTexts(ctx, content)
	if err != nil {
		return nil, models.ConversionError("PDF conversion failed", err)
	}

	body := strings.TrimSpace(strings.Join(pages, "\n\n"))
	if body == "" {
		return nil, models.ConversionError("PDF conversion failed: document has no text layer", nil)
	}
	return models.NewTextDocument(body, sourceName, len(pages)), nil
}

// pageTexts extracts every page concurrently and returns them in page order.
func (p *LocalTextConverter) pageTexts(ctx context.Context, content []byte) (pages []string, err error) {
	defer recoverMalformed(&err)

	reader := bytes.NewReader(content)
	pdfReader, err := pdf.NewReader(reader, reader.Size())
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}

	numPages := pdfReader.NumPage()
	texts := make([]string, numPages)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.maxWorkers)
	for i := 1; i <= numPages; i++ {
		pageNum := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			text, err := plainText(pdfReader.Page(pageNum))
			if err != nil {
				return fmt.Errorf("failed to get text from page %d: %w", pageNum, err)
			}
			texts[pageNum-1] = strings.TrimSpace(text)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	p.logger.Debug("Extracted PDF text layer", logger.Int("pages", numPages))
	return texts, nil
}

func plainText(page pdf.Page) (text string, err error) {
	defer recoverMalformed(&err)
	if page.V.IsNull() {
		return "", nil
	}
	return page.GetPlainText(nil)
}

// recoverMalformed turns the panics ledongthuc/pdf raises on broken input into errors.
func recoverMalformed(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("malformed PDF: %v", r)
	}
}
