package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/lease-parser/api/middleware"
	"github.com/feichai0017/lease-parser/internal/models"
	"github.com/feichai0017/lease-parser/internal/service/lease"
	"github.com/feichai0017/lease-parser/internal/utils/validator"
	"github.com/feichai0017/lease-parser/pkg/converters"
	"github.com/feichai0017/lease-parser/pkg/logger"
)

type Handlers struct {
	Lease  *LeaseHandler
	Health *HealthHandler
}

// Options configure the handlers.
type Options struct {
	MaxUpload    int64
	PreviewChars int
	Health       HealthInfo
}

func NewHandlers(
	leaseService lease.LeaseProcessor,
	v *validator.DocumentValidator,
	opts Options,
	logger logger.Logger,
) *Handlers {
	return &Handlers{
		Lease:  NewLeaseHandler(leaseService, v, converters.NewResponseConverter(opts.PreviewChars), opts.MaxUpload, logger),
		Health: &HealthHandler{info: opts.Health},
	}
}

// HealthInfo is reported by GET /health.
type HealthInfo struct {
	Converter string `json:"converter"`
	Extractor string `json:"extractor"`
	Cache     bool   `json:"cache"`
	Jobs      bool   `json:"jobs"`
}

type HealthHandler struct {
	info HealthInfo
}

func (h *HealthHandler) Check(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "backends": h.info})
}

// MethodNotAllowed renders the 405 envelope.
func MethodNotAllowed(c *gin.Context) {
	err := models.NewError(models.KindMethodNotAllowed, "Method not allowed", nil)
	c.JSON(http.StatusMethodNotAllowed, models.NewErrorEnvelope(err, c.GetHeader(middleware.HeaderCorrelationID), ""))
}

// Preflight answers OPTIONS requests that carry no Origin header.
func Preflight(c *gin.Context) {
	c.Status(http.StatusOK)
}
