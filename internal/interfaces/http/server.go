// Package http provides HTTP server adapter for the application layer.
// This is a thin adapter layer that translates HTTP requests to application service calls.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/ulule/limiter/v3"

	"github.com/garyjia/travel-claims/internal/application/port"
	"github.com/garyjia/travel-claims/internal/application/service"
	"github.com/garyjia/travel-claims/internal/application/workflow"
	"github.com/garyjia/travel-claims/internal/domain/entity"
	"github.com/garyjia/travel-claims/pkg/utils"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	MaxReceiptBytes int64
	CORS            CORSConfig
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:            "0.0.0.0",
		Port:            8080,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		MaxReceiptBytes: 10 << 20,
		CORS: CORSConfig{
			AllowOrigins: []string{"http://localhost:3000"},
		},
	}
}

// Dependencies are the application services the server routes to
type Dependencies struct {
	Claims   service.ClaimService
	Payouts  service.PayoutService
	Engine   workflow.WorkflowEngine
	Verifier port.IdentityVerifier

	// Limiter is optional; nil disables rate limiting
	Limiter *limiter.Limiter
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	deps       Dependencies
	logger     Logger
}

// NewServer creates a new HTTP server with the given services
func NewServer(config ServerConfig, deps Dependencies, logger Logger) (*Server, error) {
	gin.SetMode(gin.ReleaseMode)

	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		if err := utils.RegisterValidators(v); err != nil {
			return nil, fmt.Errorf("failed to register validators: %w", err)
		}
	}

	if config.MaxReceiptBytes <= 0 {
		config.MaxReceiptBytes = DefaultServerConfig().MaxReceiptBytes
	}

	router := gin.New()
	router.MaxMultipartMemory = config.MaxReceiptBytes

	server := &Server{
		config: config,
		router: router,
		deps:   deps,
		logger: logger,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server, nil
}

// setupMiddleware configures middleware for the router
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(requestIDMiddleware())
	s.router.Use(s.loggingMiddleware())
	if len(s.config.CORS.AllowOrigins) > 0 {
		s.router.Use(corsMiddleware(s.config.CORS))
	}
	if s.deps.Limiter != nil {
		s.router.Use(s.rateLimitMiddleware(s.deps.Limiter))
	}
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	h := NewHandlers(s.deps.Claims, s.deps.Payouts, s.deps.Engine, s.config.MaxReceiptBytes, s.logger)

	employee := requireRoles(entity.RoleEmployee)
	staff := requireRoles(entity.RoleHR, entity.RoleDirector, entity.RoleOffice)
	reviewers := requireRoles(entity.RoleHR, entity.RoleDirector)
	office := requireRoles(entity.RoleOffice)

	s.router.GET("/health", h.HealthCheck)

	api := s.router.Group("/api")
	api.Use(s.authMiddleware(s.deps.Verifier))
	{
		// Employee
		api.POST("/claim", employee, h.SubmitClaim)
		api.GET("/employee/claims", employee, h.ListMyClaims)
		api.PATCH("/claims/:id/request-reimbursement", employee, h.RequestReimbursement)

		// Shared reads; ownership is checked by the claim service
		api.GET("/claims/:id", h.GetClaim)
		api.GET("/claims/:id/receipts/:index", h.GetReceipt)

		// Staff
		api.GET("/claims", staff, h.ListClaims)
		api.GET("/claims/:id/history", staff, h.GetClaimHistory)
		api.GET("/claims/:id/payouts", staff, h.GetPayoutAttempts)

		// Review
		api.PATCH("/claims/:id/forward", requireRoles(entity.RoleHR), h.ForwardClaim)
		api.PATCH("/claims/:id/approve", requireRoles(entity.RoleDirector), h.ApproveClaim)
		api.PATCH("/claims/:id/reject", reviewers, h.RejectClaim)
		api.PUT("/claims/:id/status", reviewers, h.OverrideStatus)

		// Office
		api.PATCH("/claims/:id/mark-paid", office, h.MarkPaid)
		api.POST("/claims/:id/process-payment", office, h.ProcessPayment)
		api.PATCH("/claims/:id/payouts/:attemptId", office, h.SettlePayoutAttempt)
		api.POST("/payouts/process", office, h.DirectPayout)
	}
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	addr := s.Address()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("Stopping HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
