package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/donbr/graphrag-platform/pkg/config"
	"github.com/donbr/graphrag-platform/pkg/server/handlers"
	"github.com/donbr/graphrag-platform/pkg/types"
)

// Server represents the HTTP server
type Server struct {
	config *config.Config
	router *gin.Engine
	engine handlers.Engine
	logger *slog.Logger
	server *http.Server
}

// New creates a new server instance
func New(cfg *config.Config, engine handlers.Engine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		config: cfg,
		engine: engine,
		logger: logger,
	}
}

// Setup sets up the server routes and middleware
func (s *Server) Setup() {
	gin.SetMode(s.config.Server.Mode)

	s.router = gin.New()

	s.router.Use(gin.Logger())
	s.router.Use(gin.Recovery())
	s.router.Use(corsMiddleware())
	s.router.Use(contextMiddleware())

	s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}
}

// setupRoutes sets up all the routes
func (s *Server) setupRoutes() {
	healthHandler := handlers.NewHealthHandler(s.engine)
	ingestHandler := handlers.NewIngestHandler(s.engine)
	searchHandler := handlers.NewSearchHandler(s.engine)

	// Health endpoints
	s.router.GET("/health", healthHandler.HealthCheck)
	s.router.GET("/ready", healthHandler.ReadinessCheck)
	s.router.GET("/live", healthHandler.LivenessCheck)

	// API v1 routes
	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/ingest", ingestHandler.AddSegments)
		v1.DELETE("/ingest/clear", ingestHandler.ClearDataset)
		v1.GET("/stats", ingestHandler.GetStats)
		v1.POST("/search", searchHandler.Search)
	}
}

// Router returns the configured gin engine, for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Start starts the server
func (s *Server) Start() error {
	s.logger.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Stop stops the server gracefully
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping server")
	return s.server.Shutdown(ctx)
}

// corsMiddleware adds CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Header("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// contextMiddleware extracts request identity from headers for telemetry
func contextMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		if userID := c.GetHeader("X-User-ID"); userID != "" {
			ctx = context.WithValue(ctx, types.ContextKeyUserID, userID)
		}
		if sessionID := c.GetHeader("X-Session-ID"); sessionID != "" {
			ctx = context.WithValue(ctx, types.ContextKeySessionID, sessionID)
		}
		ctx = context.WithValue(ctx, types.ContextKeyRequestSource, "server")

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
