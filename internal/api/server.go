// Package api exposes the safety engine over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/clinical-safety-engine/internal/domain"
	"github.com/clinical-safety-engine/internal/registry"
	"github.com/clinical-safety-engine/internal/service"
)

// Server is the HTTP boundary over the evaluation services and the registry
// management API.
type Server struct {
	cfg          *domain.ServerConfig
	orchestrator *service.SafetyOrchestrator
	analyzer     *service.DrugSafetyAnalyzer
	scorer       *service.ConfidenceScorer
	rules        *registry.RuleRegistry
	interactions *registry.InteractionRegistry
	store        *registry.SQLiteStore
	logger       *logrus.Logger

	router *gin.Engine
	server *http.Server
}

// NewServer creates the HTTP server and wires its routes.
func NewServer(
	cfg *domain.ServerConfig,
	orchestrator *service.SafetyOrchestrator,
	analyzer *service.DrugSafetyAnalyzer,
	scorer *service.ConfidenceScorer,
	rules *registry.RuleRegistry,
	interactions *registry.InteractionRegistry,
	store *registry.SQLiteStore,
	logger *logrus.Logger,
) *Server {
	if logger.GetLevel() == logrus.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(requestIDMiddleware())

	s := &Server{
		cfg:          cfg,
		orchestrator: orchestrator,
		analyzer:     analyzer,
		scorer:       scorer,
		rules:        rules,
		interactions: interactions,
		store:        store,
		logger:       logger,
		router:       router,
	}
	s.setupRoutes()
	return s
}

// Start runs the server until the context is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures the API routes.
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/safety-check", s.handleSafetyCheck)
		v1.POST("/drug-interactions", s.handleDrugInteractions)
		v1.POST("/confidence", s.handleConfidence)

		admin := v1.Group("/admin")
		{
			admin.GET("/rules", s.handleListRules)
			admin.POST("/rules", s.handleAddRule)
			admin.PUT("/rules/:id", s.handleUpdateRule)
			admin.GET("/interactions", s.handleListInteractions)
			admin.POST("/interactions", s.handleAddInteraction)
			admin.DELETE("/interactions", s.handleRemoveInteraction)
		}
	}
}

// handleHealth reports liveness and registry sizes.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":       "healthy",
		"timestamp":    time.Now().UTC(),
		"rules":        s.rules.Len(),
		"interactions": s.interactions.Len(),
	})
}

// corsMiddleware adds CORS headers to responses.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization, X-Request-ID")
		c.Header("Access-Control-Expose-Headers", "Content-Length")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// requestIDMiddleware adds a unique request ID to each request.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}
