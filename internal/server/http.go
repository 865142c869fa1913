package server

import (
	"context"
	"log/slog"
	"net/http"
	"path"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultBodySizeLimit caps request bodies at 25MB, enough for the
// image payloads data-URI uploads carry.
const DefaultBodySizeLimit int64 = 25 << 20

// Server wraps the Echo server
type Server struct {
	echo    *echo.Echo
	handler *Handler
}

// Config holds server configuration options
type Config struct {
	MetricsEnabled  bool   // Whether to expose Prometheus metrics endpoint
	MetricsEndpoint string // HTTP path for metrics endpoint (default: /metrics)
	BodySizeLimit   int64  // Max request body size in bytes (default: 25MB)
	Logger          *slog.Logger
}

// New creates a new HTTP server
func New(chat ChatService, files FileService, cfg *Config) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	handler := NewHandler(chat, files)

	logger := slog.Default()
	if cfg != nil && cfg.Logger != nil {
		logger = cfg.Logger
	}

	// Global middleware stack (order matters)
	e.Use(RequestLogger(logger))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(RequestMetrics())

	bodySizeLimit := DefaultBodySizeLimit
	if cfg != nil && cfg.BodySizeLimit > 0 {
		bodySizeLimit = cfg.BodySizeLimit
	}
	e.Use(middleware.BodyLimit(strconv.FormatInt(bodySizeLimit, 10)))

	// Public routes
	e.GET("/health", handler.Health)
	if cfg != nil && cfg.MetricsEnabled {
		metricsPath := "/metrics"
		if cfg.MetricsEndpoint != "" {
			// Normalize path to prevent traversal
			metricsPath = path.Clean(cfg.MetricsEndpoint)
		}
		e.GET(metricsPath, echo.WrapHandler(promhttp.Handler()))
	}

	// API routes
	e.GET("/v1/models", handler.ListModels)
	e.POST("/v1/chat/completions", handler.ChatCompletion)
	e.POST("/v1/files", handler.UploadFile)
	e.GET("/v1/files", handler.ListFiles)
	e.GET("/v1/files/:id", handler.RetrieveFile)
	e.DELETE("/v1/files/:id", handler.DeleteFile)
	e.GET("/v1/files/:id/content", handler.RetrieveFileContent)

	return &Server{
		echo:    e,
		handler: handler,
	}
}

// Start starts the HTTP server on the given address
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// ServeHTTP implements the http.Handler interface, allowing Server to be used with httptest
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
