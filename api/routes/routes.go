package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/feichai0017/lease-parser/api/handlers"
	"github.com/feichai0017/lease-parser/api/middleware"
	"github.com/feichai0017/lease-parser/pkg/logger"
)

// SetupRoutes mounts the lease endpoints at the root and under /api/v1.
func SetupRoutes(r *gin.Engine, h *handlers.Handlers, log logger.Logger) {
	r.HandleMethodNotAllowed = true
	r.NoMethod(handlers.MethodNotAllowed)

	r.Use(middleware.RequestContext(log))
	r.Use(middleware.CORS())

	r.GET("/health", h.Health.Check)

	mount(r, h)
	mount(r.Group("/api/v1"), h)
}

func mount(g gin.IRoutes, h *handlers.Handlers) {
	g.POST("/parse-lease", h.Lease.ParseLease)
	g.OPTIONS("/parse-lease", handlers.Preflight)
	g.POST("/parse-lease/jobs", h.Lease.SubmitJob)
	g.GET("/parse-lease/jobs/:jobId", h.Lease.GetJob)
}
