// Package http provides the local sync API server consumed by the inventory UI.
package http

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/allisson/invsync/internal/config"
	inventoryHTTP "github.com/allisson/invsync/internal/inventory/http"
	"github.com/allisson/invsync/internal/metrics"
	queueHTTP "github.com/allisson/invsync/internal/queue/http"
)

// Server represents the HTTP server.
type Server struct {
	db     *sql.DB
	server *http.Server
	router *gin.Engine
	logger *slog.Logger
}

// NewServer creates a new HTTP server.
func NewServer(
	db *sql.DB,
	host string,
	port int,
	logger *slog.Logger,
) *Server {
	return &Server{
		db:     db,
		logger: logger,
		server: &http.Server{
			Addr:        fmt.Sprintf("%s:%d", host, port),
			ReadTimeout: 15 * time.Second,
			// Event streams stay open for the lifetime of the UI.
			WriteTimeout: 0,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// SetupRouter configures the Gin router with all routes and middleware.
func (s *Server) SetupRouter(
	cfg *config.Config,
	inventoryHandler *inventoryHTTP.InventoryHandler,
	syncHandler *queueHTTP.SyncHandler,
	metricsProvider *metrics.Provider,
) {
	gin.SetMode(cfg.GetGinMode())

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestid.New(requestid.WithGenerator(func() string {
		return uuid.Must(uuid.NewV7()).String()
	})))
	router.Use(CustomLoggerMiddleware(s.logger))

	if corsMiddleware := createCORSMiddleware(cfg.CORSEnabled, cfg.CORSAllowOrigins, s.logger); corsMiddleware != nil {
		router.Use(corsMiddleware)
	}

	if metricsProvider != nil {
		router.Use(metrics.HTTPMetricsMiddleware(metricsProvider.MeterProvider(), cfg.MetricsNamespace))
	}

	router.GET("/health", s.healthHandler)
	router.GET("/ready", s.readinessHandler)

	v1 := router.Group("/v1")
	if cfg.RateLimitEnabled {
		v1.Use(RateLimitMiddleware(cfg.RateLimitRequestsPerSec, cfg.RateLimitBurst, s.logger))
	}

	hotels := v1.Group("/hotels/:hotelID")
	{
		hotels.POST("/batches", inventoryHandler.AddBatchHandler)
	}

	batches := v1.Group("/batches/:batchID")
	{
		batches.POST("/collect", inventoryHandler.CollectHandler)
		batches.POST("/write-offs", inventoryHandler.WriteOffHandler)
		batches.PATCH("", inventoryHandler.UpdateHandler)
		batches.DELETE("", inventoryHandler.DeleteHandler)
	}

	sync := v1.Group("/sync")
	{
		sync.GET("/status", syncHandler.StatusHandler)
		sync.GET("/events", syncHandler.EventsHandler)
		sync.GET("/operations", syncHandler.ListOperationsHandler)
		sync.DELETE("/operations", syncHandler.ClearHandler)
		sync.GET("/operations/:id", syncHandler.GetOperationHandler)
		sync.DELETE("/operations/:id", syncHandler.DiscardHandler)
		sync.POST("/operations/:id/retry", syncHandler.RetryHandler)
		sync.GET("/dead-letters", syncHandler.ListDeadLettersHandler)
	}

	v1.GET("/cache", syncHandler.CacheHandler)

	s.router = router
}

// GetHandler returns the http.Handler for testing purposes.
func (s *Server) GetHandler() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start(ctx context.Context) error {
	if s.router == nil {
		return fmt.Errorf("router not configured: call SetupRouter first")
	}
	s.server.Handler = s.router

	s.logger.Info("starting http server", slog.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// OnShutdown registers fn to run when Shutdown begins, before open connections drain.
func (s *Server) OnShutdown(fn func()) {
	s.server.RegisterOnShutdown(fn)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.server.Shutdown(ctx)
}

// healthHandler reports that the process is up.
func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// readinessHandler reports whether the operation store is reachable.
func (s *Server) readinessHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	components := gin.H{"database": "ok"}
	if s.db == nil || s.db.PingContext(ctx) != nil {
		components["database"] = "error"
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":     "not_ready",
			"components": components,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "ready",
		"components": components,
	})
}
