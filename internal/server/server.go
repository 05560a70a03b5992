package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"LeadCrawler/internal/logger"
)

const shutdownTimeout = 10 * time.Second

// Config configures the HTTP listener.
type Config struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// NewRouter wires the routes. A nil gatherer serves the default registry.
func NewRouter(h *Handler, gatherer prometheus.Gatherer, log logger.Interface) *gin.Engine {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if log == nil {
		log = logger.NewNoOp()
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(log))

	router.GET("/health", h.Health)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	v1 := router.Group("/api/v1")
	v1.POST("/requests", h.HandleRequest)
	v1.GET("/leads", h.ListLeads)
	v1.DELETE("/leads", h.ClearLeads)
	v1.PATCH("/leads/:id", h.UpdateLead)
	v1.GET("/stats", h.GetStats)
	v1.GET("/export.csv", h.ExportCSV)
	v1.GET("/exports/latest", h.DownloadLatest)
	v1.GET("/exports/latest/preview", h.PreviewLatest)

	return router
}

func requestLogger(log logger.Interface) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("server: request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"took", time.Since(start),
		)
	}
}

// Server is the HTTP API server.
type Server struct {
	http *http.Server
	log  logger.Interface
}

// New creates a Server for handler.
func New(cfg Config, handler http.Handler, log logger.Interface) *Server {
	if log == nil {
		log = logger.NewNoOp()
	}
	return &Server{
		http: &http.Server{
			Addr:         cfg.Address,
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		log: log,
	}
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server: listening", "address", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	s.log.Info("server: shutting down")
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
