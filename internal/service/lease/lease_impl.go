// Package lease runs one lease document through conversion, prompting,
// extraction and normalization.
package lease

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/feichai0017/lease-parser/config"
	"github.com/feichai0017/lease-parser/internal/agent/document"
	"github.com/feichai0017/lease-parser/internal/agent/llm"
	"github.com/feichai0017/lease-parser/internal/agent/prompt"
	"github.com/feichai0017/lease-parser/internal/models"
	"github.com/feichai0017/lease-parser/internal/schema"
	"github.com/feichai0017/lease-parser/internal/utils/validator"
	"github.com/feichai0017/lease-parser/pkg/cache"
	"github.com/feichai0017/lease-parser/pkg/logger"
	"github.com/feichai0017/lease-parser/pkg/queue"
)

// ErrJobsDisabled is returned by the job methods when no queue is configured.
var ErrJobsDisabled = errors.New("async jobs are not enabled")

type stage string

const (
	stageReceived   stage = "received"
	stageValidated  stage = "validated"
	stageConverted  stage = "converted"
	stagePrompted   stage = "prompted"
	stageExtracted  stage = "extracted"
	stageNormalized stage = "normalized"
	stageResponded  stage = "responded"
)

// ConverterSource hands out the converter for a mode.
type ConverterSource interface {
	GetConverter(mode models.Mode) (document.Converter, error)
}

// Dependencies are the collaborators of LeaseService. Cache and Queue are optional.
type Dependencies struct {
	Converters ConverterSource
	Extractor  llm.Extractor
	Schema     *schema.Schema
	Validator  *validator.DocumentValidator
	Cache      cache.ResultCache
	Queue      queue.Queue
}

type LeaseService struct {
	cfg        *config.Config
	converters ConverterSource
	extractor  llm.Extractor
	schema     *schema.Schema
	validator  *validator.DocumentValidator
	cache      cache.ResultCache
	queue      queue.Queue
	logger     logger.Logger
}

func NewService(cfg *config.Config, deps Dependencies, log logger.Logger) *LeaseService {
	if log == nil {
		log = logger.NewNop()
	}
	if deps.Schema == nil {
		deps.Schema = schema.Lease()
	}
	if deps.Validator == nil {
		deps.Validator = validator.NewDocumentValidator(log, &validator.ValidatorConfig{MaxFileSize: cfg.MaxUploadBytes()})
	}
	return &LeaseService{
		cfg:        cfg,
		converters: deps.Converters,
		extractor:  deps.Extractor,
		schema:     deps.Schema,
		validator:  deps.Validator,
		cache:      deps.Cache,
		queue:      deps.Queue,
		logger:     log,
	}
}

// Parse runs the pipeline. Stages run in order and the first failure ends the
// request; no partial result is returned alongside an error.
func (s *LeaseService) Parse(ctx context.Context, req *models.IngestRequest) (*models.ParseOutcome, error) {
	start := time.Now()
	requestID := logger.RequestID(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	if req.Mode == "" {
		req.Mode = defaultMode(req)
	}
	log := s.logger.With(
		logger.String("request_id", requestID),
		logger.String("correlation_id", req.CorrelationID),
		logger.String("lease_upload_id", req.LeaseUploadID),
		logger.String("mode", string(req.Mode)),
	)
	log.Info("Lease pipeline stage", logger.String("stage", string(stageReceived)))

	out, st, err := s.run(ctx, log, req)
	if err != nil {
		log.Error("Lease pipeline failed",
			logger.String("stage", string(st)),
			logger.String("kind", string(models.KindOf(err))),
			logger.Duration("elapsed", time.Since(start)),
			logger.Error(err),
		)
		return nil, err
	}

	out.RequestID = requestID
	out.Elapsed = time.Since(start)
	log.Info("Lease pipeline stage",
		logger.String("stage", string(stageResponded)),
		logger.Bool("cached", out.Cached),
		logger.Duration("elapsed", out.Elapsed),
	)
	return out, nil
}

// run returns the last stage reached so failures can be attributed.
func (s *LeaseService) run(ctx context.Context, log logger.Logger, req *models.IngestRequest) (*models.ParseOutcome, stage, error) {
	pages, err := s.validate(req)
	if err != nil {
		return nil, stageReceived, err
	}
	if err := s.resolveCredentials(req.Mode); err != nil {
		return nil, stageReceived, err
	}
	log.Info("Lease pipeline stage", logger.String("stage", string(stageValidated)), logger.Int("page_count", pages))

	out := &models.ParseOutcome{Mode: req.Mode}
	if req.HasUpload() {
		out.Filename = req.Upload.Filename
	}

	key := cache.Key(req, s.cacheVariant(req.Mode))
	if entry := s.lookup(ctx, log, key); entry != nil {
		out.Result, out.Document, out.Cached = entry.Result, entry.Document, true
		return out, stageNormalized, nil
	}

	converter, err := s.converters.GetConverter(req.Mode)
	if err != nil {
		return nil, stageValidated, err
	}
	doc, err := s.convert(ctx, converter, req)
	if err != nil {
		return nil, stageValidated, err
	}
	if doc.PageCount == 0 && pages > 0 {
		withPages := *doc
		withPages.PageCount = pages
		doc = &withPages
	}
	log.Info("Lease pipeline stage",
		logger.String("stage", string(stageConverted)),
		logger.String("converter", converter.Name()),
		logger.Int("page_count", doc.PageCount),
		logger.Int("text_length", len(doc.Body)),
	)

	p, err := prompt.Build(doc, s.schema, prompt.WithMaxChars(s.cfg.Extractor.PromptMaxChars))
	if err != nil {
		return nil, stageConverted, err
	}
	log.Info("Lease pipeline stage", logger.String("stage", string(stagePrompted)), logger.Bool("image", p.HasImage()))

	raw, err := s.extract(ctx, p)
	if err != nil {
		return nil, stagePrompted, err
	}
	log.Info("Lease pipeline stage", logger.String("stage", string(stageExtracted)), logger.Int("raw_length", len(raw)))

	result, report, err := s.schema.Validate(raw)
	if err != nil {
		return nil, stageExtracted, err
	}
	log.Info("Lease pipeline stage",
		logger.String("stage", string(stageNormalized)),
		logger.Strings("defaulted", report.Defaulted),
		logger.Strings("coerced", report.Coerced),
		logger.Strings("renamed", report.Renamed),
		logger.Strings("dropped", report.Dropped),
	)

	out.Result, out.Document = result, doc
	s.store(ctx, log, key, out)
	return out, stageNormalized, nil
}

func (s *LeaseService) validate(req *models.IngestRequest) (int, error) {
	if _, ok := models.ParseMode(string(req.Mode), ""); !ok {
		return 0, models.BadRequest(fmt.Sprintf("unsupported mode: %s", req.Mode))
	}
	if req.HasUpload() {
		return s.validator.ValidateUpload(req.Upload)
	}
	return 0, s.validator.ValidateURL(req.DocumentURL)
}

// resolveCredentials fails before any outbound call when a key is missing.
// Image mode always converts through PDF.co.
func (s *LeaseService) resolveCredentials(mode models.Mode) error {
	creds, err := s.cfg.Resolve()
	if err != nil {
		return models.MissingCredential(err.Error())
	}
	if mode == models.ImageMode && creds.PDFCoAPIKey == "" {
		missing := &config.MissingCredentialError{Integration: "PDF.co", Setting: "PDFCO_API_KEY"}
		return models.MissingCredential(missing.Error())
	}
	return nil
}

func (s *LeaseService) convert(ctx context.Context, c document.Converter, req *models.IngestRequest) (*models.ConvertedDocument, error) {
	if s.cfg.Converter.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Converter.Timeout)
		defer cancel()
	}
	doc, err := c.Convert(ctx, req)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *LeaseService) extract(ctx context.Context, p prompt.Prompt) (string, error) {
	if s.cfg.Extractor.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Extractor.Timeout)
		defer cancel()
	}
	return s.extractor.Extract(ctx, p)
}

// cacheVariant names the converter, extractor and model that produce results
// for mode.
func (s *LeaseService) cacheVariant(mode models.Mode) string {
	ex := s.cfg.Extractor
	model := ex.Model
	switch {
	case ex.Backend == config.ExtractorVertex:
		model = ex.VertexModel
	case mode == models.ImageMode:
		model = ex.VisionModel
	}
	conv := s.cfg.Converter.Backend
	if mode == models.ImageMode {
		conv = config.ConverterPDFCo
	}
	return strings.Join([]string{conv, ex.Backend, model}, "/")
}

// lookup treats cache failures as misses.
func (s *LeaseService) lookup(ctx context.Context, log logger.Logger, key string) *cache.Entry {
	if s.cache == nil {
		return nil
	}
	entry, hit, err := s.cache.Get(ctx, key)
	if err != nil {
		log.Warn("Result cache read failed", logger.Error(err))
		return nil
	}
	if !hit || entry.Result == nil {
		return nil
	}
	log.Info("Result cache hit", logger.Time("stored_at", entry.StoredAt))
	return entry
}

func (s *LeaseService) store(ctx context.Context, log logger.Logger, key string, out *models.ParseOutcome) {
	if s.cache == nil {
		return
	}
	// Page image links are temporary and would outlive their expiry in the cache.
	doc := *out.Document
	doc.PageURLs = nil
	entry := &cache.Entry{Result: out.Result, Document: &doc, StoredAt: time.Now().UTC()}
	if err := s.cache.Set(ctx, key, entry); err != nil {
		log.Warn("Result cache write failed", logger.Error(err))
	}
}

// SubmitJob validates a URL sourced request and enqueues it for the worker.
func (s *LeaseService) SubmitJob(ctx context.Context, req *models.IngestRequest) (*models.ParseJob, error) {
	if s.queue == nil {
		return nil, ErrJobsDisabled
	}
	if req.HasUpload() {
		return nil, models.BadRequest("Jobs accept pdfUrl sources only")
	}
	if req.Mode == "" {
		req.Mode = models.ImageMode
	}
	if _, err := s.validate(req); err != nil {
		return nil, err
	}
	if err := s.resolveCredentials(req.Mode); err != nil {
		return nil, err
	}

	job := &models.ParseJob{
		ID:            uuid.NewString(),
		DocumentURL:   req.DocumentURL,
		LeaseUploadID: req.LeaseUploadID,
		CorrelationID: req.CorrelationID,
		Mode:          req.Mode,
	}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		s.logger.Error("Failed to enqueue lease job",
			logger.String("job_id", job.ID),
			logger.String("correlation_id", req.CorrelationID),
			logger.Error(err),
		)
		return nil, models.NewError(models.KindInternal, "Failed to enqueue lease job", err)
	}

	s.logger.Info("Lease job created",
		logger.String("job_id", job.ID),
		logger.String("correlation_id", req.CorrelationID),
		logger.String("pdf_url", req.DocumentURL),
	)
	return job, nil
}

func (s *LeaseService) GetJob(ctx context.Context, jobID string) (*models.ParseJob, error) {
	if s.queue == nil {
		return nil, ErrJobsDisabled
	}
	return s.queue.GetJob(ctx, jobID)
}

func defaultMode(req *models.IngestRequest) models.Mode {
	if req.HasUpload() {
		return models.TextMode
	}
	return models.ImageMode
}
