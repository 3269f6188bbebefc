package models

import (
	"time"
)

// Mode selects the conversion strategy for a document.
type Mode string

const (
	// TextMode converts the whole PDF into plain text.
	TextMode Mode = "text"
	// ImageMode renders the PDF into per-page images for a vision model.
	ImageMode Mode = "image"
)

// ParseMode maps caller input to a Mode. Empty input yields fallback.
func ParseMode(s string, fallback Mode) (Mode, bool) {
	switch Mode(s) {
	case "":
		return fallback, true
	case TextMode, ImageMode:
		return Mode(s), true
	default:
		return "", false
	}
}

// Upload is a PDF received in the request body.
type Upload struct {
	Filename string
	MimeType string
	Data     []byte
}

// IngestRequest is a validated inbound parse request. Exactly one of Upload
// and DocumentURL is set.
type IngestRequest struct {
	Upload        *Upload
	DocumentURL   string
	CorrelationID string
	LeaseUploadID string
	Mode          Mode
}

// HasUpload reports whether the document bytes travel with the request.
func (r *IngestRequest) HasUpload() bool {
	return r.Upload != nil
}

// DocumentKind tags the ConvertedDocument union.
type DocumentKind string

const (
	KindText       DocumentKind = "text"
	KindPageImages DocumentKind = "page_images"
)

// ConvertedDocument is the output of a converter. Body is set for KindText,
// PageURLs (non-empty, in page order) for KindPageImages.
type ConvertedDocument struct {
	Kind      DocumentKind `json:"kind"`
	Body      string       `json:"body,omitempty"`
	PageURLs  []string     `json:"pageUrls,omitempty"`
	PageCount int          `json:"pageCount"`
	Source    string       `json:"source"`
}

// NewTextDocument builds a text variant.
func NewTextDocument(body, source string, pageCount int) *ConvertedDocument {
	return &ConvertedDocument{Kind: KindText, Body: body, PageCount: pageCount, Source: source}
}

// NewPageImagesDocument builds a page-images variant. urls must not be empty.
func NewPageImagesDocument(urls []string, source string) *ConvertedDocument {
	cp := make([]string, len(urls))
	copy(cp, urls)
	return &ConvertedDocument{Kind: KindPageImages, PageURLs: cp, PageCount: len(cp), Source: source}
}

// FirstPage returns the URL of page one, or "" for text documents.
func (d *ConvertedDocument) FirstPage() string {
	if d.Kind != KindPageImages || len(d.PageURLs) == 0 {
		return ""
	}
	return d.PageURLs[0]
}

// ExtractionResult is the canonical lease record. Field order is the JSON key order.
type ExtractionResult struct {
	TenantName         string  `json:"tenant_name"`
	Suite              string  `json:"suite"`
	LeasedArea         float64 `json:"leased_area"`
	Measurement        string  `json:"measurement"`
	LeaseStart         string  `json:"lease_start"`
	LeaseEnd           string  `json:"lease_end"`
	TermMonths         float64 `json:"term_months"`
	StartingRent       float64 `json:"starting_rent"`
	CurrentRent        float64 `json:"current_rent"`
	AnnualIncrease     float64 `json:"annual_increase"`
	FreeRentMonths     float64 `json:"free_rent_months"`
	ExpenseReimb       string  `json:"expense_reimb"`
	RenewalOption      string  `json:"renewal_option"`
	RenewalOptionTerms string  `json:"renewal_option_terms"`
}

// ParseOutcome is everything the pipeline produced for one request.
type ParseOutcome struct {
	Result    *ExtractionResult
	Document  *ConvertedDocument
	Mode      Mode
	Filename  string
	Cached    bool
	Elapsed   time.Duration
	RequestID string
}

// JobStatus is the lifecycle of an asynchronous parse job.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	// JobRetrying means the last attempt failed transiently and another is queued.
	JobRetrying JobStatus = "retrying"
)

// ParseJob is the persisted state of an asynchronous parse.
type ParseJob struct {
	ID            string            `json:"jobId"`
	Status        JobStatus         `json:"status"`
	DocumentURL   string            `json:"pdfUrl"`
	LeaseUploadID string            `json:"leaseUploadId,omitempty"`
	CorrelationID string            `json:"correlationId,omitempty"`
	Mode          Mode              `json:"mode"`
	Result        *ExtractionResult `json:"leaseData,omitempty"`
	Error         *ErrorEnvelope    `json:"failure,omitempty"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}
