package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/factura-ai/invoice-extractor/internal/auth"
	"github.com/factura-ai/invoice-extractor/internal/common"
	"github.com/factura-ai/invoice-extractor/internal/export"
	"github.com/factura-ai/invoice-extractor/internal/extract"
	"github.com/factura-ai/invoice-extractor/internal/invoice"
)

// Server is the thin HTTP layer over the extraction pipeline and record
// service. Routing and auth live here only as glue; the core is transport
// agnostic.
type Server struct {
	extractor *extract.Extractor
	invoices  *invoice.Service
	exporter  *export.Service
	users     auth.UserStore
	log       *slog.Logger
}

func New(
	extractor *extract.Extractor,
	invoices *invoice.Service,
	exporter *export.Service,
	users auth.UserStore,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		extractor: extractor,
		invoices:  invoices,
		exporter:  exporter,
		users:     users,
		log:       logger,
	}
}

// Router wires all HTTP routes.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	api := r.Group("/api")
	{
		api.POST("/login", s.Login)
		api.POST("/extract", s.Extract)
		api.GET("/stats", s.Stats)
		api.GET("/export", s.Export)
		api.GET("/archive-url", s.ArchiveURL)

		api.POST("/invoices", s.ValidateAndSave)
		api.GET("/invoices", s.List)
		api.GET("/invoices/:id", s.Get)
		api.PUT("/invoices/:id", s.Update)
		api.DELETE("/invoices/:id", s.Delete)
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return r
}

// abortWithError renders a structured error response. Raw model text never
// reaches the caller; only the error kind and message do.
func (s *Server) abortWithError(c *gin.Context, err error) {
	status := common.HTTPStatus(err)

	var appErr *common.AppError
	if errors.As(err, &appErr) {
		body := gin.H{"error": appErr.Kind.Error(), "message": appErr.Message}
		if appErr.Field != "" {
			body["field"] = appErr.Field
		}
		if appErr.Rule != "" {
			body["rule"] = appErr.Rule
		}
		if status >= http.StatusInternalServerError {
			s.log.Error("request failed", "status", status, "error", err)
		}
		c.AbortWithStatusJSON(status, body)
		return
	}

	s.log.Error("request failed", "status", status, "error", err)
	c.AbortWithStatusJSON(status, gin.H{"error": "internal error", "message": "internal error"})
}
