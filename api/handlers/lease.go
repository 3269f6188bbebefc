package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/lease-parser/api/middleware"
	"github.com/feichai0017/lease-parser/internal/models"
	"github.com/feichai0017/lease-parser/internal/service/lease"
	"github.com/feichai0017/lease-parser/internal/utils/validator"
	"github.com/feichai0017/lease-parser/pkg/converters"
	"github.com/feichai0017/lease-parser/pkg/logger"
	"github.com/feichai0017/lease-parser/pkg/queue"
)

// multipartOverhead is the allowance for form fields and boundaries on top of
// the file size limit.
const multipartOverhead = 1 << 20

type LeaseHandler struct {
	service   lease.LeaseProcessor
	validator *validator.DocumentValidator
	responses *converters.ResponseConverter
	maxUpload int64
	logger    logger.Logger
}

// ParseLeaseRequest is the JSON body of a URL sourced parse.
type ParseLeaseRequest struct {
	PdfURL        string `json:"pdfUrl"`
	LeaseUploadID string `json:"leaseUploadId"`
	CorrelationID string `json:"correlationId"`
	Mode          string `json:"mode"`
}

// JobAccepted is returned when a parse job is queued.
type JobAccepted struct {
	Success   bool             `json:"success"`
	JobID     string           `json:"jobId"`
	Status    models.JobStatus `json:"status"`
	StatusURL string           `json:"statusUrl"`
}

func NewLeaseHandler(service lease.LeaseProcessor, v *validator.DocumentValidator, responses *converters.ResponseConverter, maxUpload int64, log logger.Logger) *LeaseHandler {
	return &LeaseHandler{
		service:   service,
		validator: v,
		responses: responses,
		maxUpload: maxUpload,
		logger:    log,
	}
}

// ParseLease handles POST /parse-lease. Multipart bodies carry the PDF in the
// file part and default to text mode; JSON bodies name a pdfUrl and default to
// image mode.
func (h *LeaseHandler) ParseLease(c *gin.Context) {
	req, err := h.bind(c)
	if err != nil {
		h.fail(c, err, req)
		return
	}

	out, err := h.service.Parse(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err, req)
		return
	}
	c.JSON(http.StatusOK, h.responses.Convert(req, out))
}

// SubmitJob handles POST /parse-lease/jobs.
func (h *LeaseHandler) SubmitJob(c *gin.Context) {
	req, err := h.bindJSON(c)
	if err != nil {
		h.fail(c, err, req)
		return
	}

	job, err := h.service.SubmitJob(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err, req)
		return
	}
	c.JSON(http.StatusAccepted, JobAccepted{
		Success:   true,
		JobID:     job.ID,
		Status:    job.Status,
		StatusURL: strings.TrimSuffix(c.Request.URL.Path, "/") + "/" + job.ID,
	})
}

// GetJob handles GET /parse-lease/jobs/:jobId.
func (h *LeaseHandler) GetJob(c *gin.Context) {
	job, err := h.service.GetJob(c.Request.Context(), c.Param("jobId"))
	if err != nil {
		h.fail(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, job)
}

func (h *LeaseHandler) bind(c *gin.Context) (*models.IngestRequest, error) {
	switch c.ContentType() {
	case gin.MIMEMultipartPOSTForm:
		return h.bindMultipart(c)
	case gin.MIMEJSON:
		return h.bindJSON(c)
	default:
		return &models.IngestRequest{CorrelationID: c.GetHeader(middleware.HeaderCorrelationID)}, models.BadRequest("No file uploaded")
	}
}

func (h *LeaseHandler) bindMultipart(c *gin.Context) (*models.IngestRequest, error) {
	req := &models.IngestRequest{CorrelationID: c.GetHeader(middleware.HeaderCorrelationID)}

	if h.maxUpload > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload+multipartOverhead)
	}
	if err := c.Request.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return req, models.PayloadTooLarge("File size exceeds maximum upload size")
		}
		return req, models.NewError(models.KindBadRequest, "Invalid form data", err)
	}

	if v := c.PostForm("correlationId"); v != "" {
		req.CorrelationID = v
	}
	req.LeaseUploadID = c.PostForm("leaseUploadId")
	mode, ok := models.ParseMode(c.PostForm("mode"), models.TextMode)
	if !ok {
		return req, models.BadRequest("mode must be text or image")
	}
	req.Mode = mode

	fh, err := c.FormFile("file")
	if err != nil {
		return req, models.BadRequest("No file uploaded")
	}
	upload, err := h.validator.ReadUpload(fh)
	if err != nil {
		return req, err
	}
	req.Upload = upload
	return req, nil
}

func (h *LeaseHandler) bindJSON(c *gin.Context) (*models.IngestRequest, error) {
	req := &models.IngestRequest{CorrelationID: c.GetHeader(middleware.HeaderCorrelationID)}

	var body ParseLeaseRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		return req, models.NewError(models.KindBadRequest, "Invalid request body", err)
	}
	if body.CorrelationID != "" {
		req.CorrelationID = body.CorrelationID
	}
	req.LeaseUploadID = body.LeaseUploadID
	req.DocumentURL = strings.TrimSpace(body.PdfURL)
	if req.DocumentURL == "" {
		return req, models.BadRequest("pdfUrl is required")
	}
	mode, ok := models.ParseMode(body.Mode, models.ImageMode)
	if !ok {
		return req, models.BadRequest("mode must be text or image")
	}
	req.Mode = mode
	return req, nil
}

// fail is the only place a failure becomes an HTTP status.
func (h *LeaseHandler) fail(c *gin.Context, err error, req *models.IngestRequest) {
	var correlationID, leaseUploadID string
	if req != nil {
		correlationID, leaseUploadID = req.CorrelationID, req.LeaseUploadID
	}
	env := models.NewErrorEnvelope(err, correlationID, leaseUploadID)
	status := models.HTTPStatus(err)

	switch {
	case errors.Is(err, queue.ErrJobNotFound):
		status = http.StatusNotFound
		env.Error, env.Details = "Job not found", ""
	case errors.Is(err, lease.ErrJobsDisabled):
		status = http.StatusServiceUnavailable
		env.Error, env.Details = "Async jobs are not enabled", ""
	}

	log := logger.FromContext(c.Request.Context(), h.logger)
	if status >= http.StatusInternalServerError {
		log.Error("Lease request failed", logger.Int("status", status), logger.String("kind", string(env.Kind)), logger.Error(err))
	} else {
		log.Warn("Lease request rejected", logger.Int("status", status), logger.String("kind", string(env.Kind)), logger.String("error", env.Error))
	}
	c.JSON(status, env)
}
