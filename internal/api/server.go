// Package api exposes the triage engine over HTTP and websockets with gin.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/symptom-triage-mcp/internal/catalog"
	"github.com/symptom-triage-mcp/internal/domain"
	"github.com/symptom-triage-mcp/internal/middleware"
	"github.com/symptom-triage-mcp/internal/repository"
	"github.com/symptom-triage-mcp/internal/service"
)

// SessionArchive is the read side of the completed-session archive.
type SessionArchive interface {
	ListRecent(ctx context.Context, limit, offset int) ([]repository.SessionSummary, error)
	CountByRisk(ctx context.Context) (map[string]int, error)
}

// Dependencies are the collaborators the HTTP layer routes to.
type Dependencies struct {
	Triage      *service.TriageService
	Feedback    *service.FeedbackService
	Catalog     *catalog.Catalog
	RateLimiter *middleware.RateLimiter
	Health      *HealthChecker
	Archive     SessionArchive
}

// Server represents the HTTP server
type Server struct {
	cfg      domain.ServerConfig
	deps     Dependencies
	logger   *logrus.Logger
	router   *gin.Engine
	server   *http.Server
	upgrader websocket.Upgrader
}

// NewServer builds the router. gin's mode is left to the caller.
func NewServer(cfg domain.ServerConfig, deps Dependencies, logger *logrus.Logger) *Server {
	if deps.Health == nil {
		deps.Health = NewHealthChecker()
	}

	router := gin.New()
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.CorrelationID())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.AuditLogger(logger))
	router.Use(corsMiddleware())

	s := &Server{
		cfg:    cfg,
		deps:   deps,
		logger: logger,
		router: router,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
	s.setupRoutes()
	return s
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
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
		var err error
		if s.cfg.TLSEnabled {
			err = s.server.ListenAndServeTLS(s.cfg.CertFile, s.cfg.KeyFile)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	v1.Use(s.deps.RateLimiter.Middleware())
	{
		v1.POST("/triage", s.handleStartTriage)
		v1.POST("/triage/step", s.handleStepTriage)
		v1.POST("/triage/:id/answer", s.handleAnswer)
		v1.GET("/triage/:id", s.handleGetSession)
		v1.GET("/interview", s.handleInterview)

		v1.POST("/feedback", s.handleSubmitFeedback)
		v1.GET("/feedback", s.handleListFeedback)
		v1.GET("/priors", s.handleGetPriors)

		v1.GET("/catalog/symptoms", s.handleListSymptoms)

		if s.deps.Archive != nil {
			v1.GET("/sessions", s.handleListSessions)
			v1.GET("/sessions/risk-counts", s.handleRiskCounts)
		}
	}
}

// corsMiddleware adds CORS headers to responses
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, "+middleware.CorrelationHeader)
		c.Header("Access-Control-Expose-Headers", middleware.CorrelationHeader)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
