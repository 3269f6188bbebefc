// Package validator checks inbound lease documents before any upstream call.
package validator

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/feichai0017/lease-parser/internal/models"
	"github.com/feichai0017/lease-parser/pkg/logger"
)

const pdfMagic = "%PDF-"

var disableConfigDir sync.Once

// DocumentValidator rejects uploads that are too large, not PDFs or unreadable.
type DocumentValidator struct {
	logger logger.Logger
	config *ValidatorConfig
	pdfcpu *model.Configuration
}

type ValidatorConfig struct {
	MaxFileSize  int64 // bytes
	MaxPageCount int   // 0 means unlimited
}

func NewDocumentValidator(log logger.Logger, config *ValidatorConfig) *DocumentValidator {
	if log == nil {
		log = logger.NewNop()
	}
	if config == nil {
		config = &ValidatorConfig{MaxFileSize: 10 << 20}
	}
	disableConfigDir.Do(api.DisableConfigDir)

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	return &DocumentValidator{logger: log, config: config, pdfcpu: conf}
}

// ReadUpload reads a multipart file into an Upload, enforcing the size limit.
// Content checks are left to ValidateUpload.
func (v *DocumentValidator) ReadUpload(fh *multipart.FileHeader) (*models.Upload, error) {
	if fh == nil {
		return nil, models.BadRequest("No file uploaded")
	}
	if v.config.MaxFileSize > 0 && fh.Size > v.config.MaxFileSize {
		return nil, v.tooLarge()
	}

	f, err := fh.Open()
	if err != nil {
		return nil, models.NewError(models.KindBadRequest, "Failed to read uploaded file", err)
	}
	defer f.Close()

	// Size on the header is client supplied; read one byte past the limit to catch lies.
	r := io.Reader(f)
	if v.config.MaxFileSize > 0 {
		r = io.LimitReader(f, v.config.MaxFileSize+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, models.NewError(models.KindBadRequest, "Failed to read uploaded file", err)
	}

	if v.config.MaxFileSize > 0 && int64(len(data)) > v.config.MaxFileSize {
		return nil, v.tooLarge()
	}
	return &models.Upload{
		Filename: filepath.Base(fh.Filename),
		MimeType: fh.Header.Get("Content-Type"),
		Data:     data,
	}, nil
}

// ValidateUpload checks size, type and structure, and returns the page count.
func (v *DocumentValidator) ValidateUpload(u *models.Upload) (int, error) {
	if u == nil || len(u.Data) == 0 {
		return 0, models.BadRequest("No file uploaded")
	}
	if v.config.MaxFileSize > 0 && int64(len(u.Data)) > v.config.MaxFileSize {
		return 0, v.tooLarge()
	}
	if !isPDF(u) {
		v.logger.Warn("Rejected non-PDF upload",
			logger.String("filename", u.Filename),
			logger.String("mime_type", u.MimeType),
			logger.Int64("size", int64(len(u.Data))),
		)
		return 0, models.BadRequest("Only PDF files are supported")
	}

	pages, err := v.PageCount(u.Data)
	if err != nil {
		return 0, err
	}
	if v.config.MaxPageCount > 0 && pages > v.config.MaxPageCount {
		return 0, models.BadRequest(fmt.Sprintf("PDF has %d pages, the limit is %d", pages, v.config.MaxPageCount))
	}
	return pages, nil
}

// PageCount parses the PDF structure with relaxed validation.
func (v *DocumentValidator) PageCount(data []byte) (int, error) {
	n, err := api.PageCount(bytes.NewReader(data), v.pdfcpu)
	if err != nil {
		v.logger.Warn("Unreadable PDF", logger.Error(err))
		return 0, models.NewError(models.KindBadRequest, "Invalid or corrupted PDF file", err)
	}
	return n, nil
}

// ValidateURL checks a caller supplied document URL.
func (v *DocumentValidator) ValidateURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return models.BadRequest("pdfUrl is required")
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return models.BadRequest("pdfUrl must be an absolute http(s) URL")
	}
	return nil
}

func (v *DocumentValidator) tooLarge() error {
	return models.PayloadTooLarge(fmt.Sprintf("File size exceeds maximum limit of %d MB", v.config.MaxFileSize>>20))
}

// isPDF requires the PDF magic bytes and, when the client declared a type,
// that it names PDF or is the generic binary type.
func isPDF(u *models.Upload) bool {
	if !bytes.HasPrefix(u.Data, []byte(pdfMagic)) {
		return false
	}
	if http.DetectContentType(u.Data) != "application/pdf" {
		return false
	}
	declared := strings.ToLower(u.MimeType)
	return declared == "" || strings.Contains(declared, "pdf") || strings.HasPrefix(declared, "application/octet-stream")
}
