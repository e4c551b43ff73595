package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ledgerpay/invoicer/internal/service"
)

// Server is the thin transport binding over the invoice service. It only
// maps requests and responses; every rule lives in the service.
type Server struct {
	invoices *service.InvoiceService
	logger   *zap.Logger
}

// NewServer creates the HTTP binding.
func NewServer(invoices *service.InvoiceService, logger *zap.Logger) *Server {
	return &Server{invoices: invoices, logger: logger}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router(debug bool) *gin.Engine {
	if debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestIDMiddleware())
	router.Use(loggingMiddleware(s.logger))

	router.GET("/health", s.handleHealth)

	api := router.Group("/api/v1")
	{
		api.POST("/invoices", s.handleCreateInvoice)
		api.GET("/invoices/:id", s.handleGetInvoice)
		api.POST("/invoices/:id/verify", s.handleVerifyInvoice)
		api.POST("/invoices/:id/refund", s.handleRefundInvoice)
		api.GET("/balance/:symbol", s.handleGetBalance)
		api.GET("/accounts/:symbol/identifier", s.handleGetAccountIdentifier)
		api.POST("/transfers", s.handleTransfer)
		api.POST("/allowlist", s.handleAuthorizeCreation)
	}

	return router
}

// requestIDMiddleware tags every request with an id for log correlation.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Writer.Header().Set("X-Request-ID", id)
		c.Next()
	}
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		logger.Info("HTTP request",
			zap.String("request_id", c.GetString("request_id")),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
