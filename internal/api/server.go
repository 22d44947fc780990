package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gnb-control/gnbctl/internal/auth"
	"github.com/gnb-control/gnbctl/internal/metrics"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

// Options wires the server to its collaborators.
type Options struct {
	Orchestrator OrchestratorPort
	Reader       ReaderPort
	Logs         LogPort
	Docs         DocsPort
	Audit        AuditPort
	Metrics      *metrics.Metrics
	Auth         *auth.Middleware
	Logger       *log.Logger

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Server is the HTTP tool API server.
type Server struct {
	httpServer *http.Server

	orchestrator OrchestratorPort
	reader       ReaderPort
	logs         LogPort
	docs         DocsPort
	auditor      AuditPort
	metrics      *metrics.Metrics
	authMW       *auth.Middleware
	logger       *log.Logger

	startTime    time.Time
	readTimeout  time.Duration
	writeTimeout time.Duration
	idleTimeout  time.Duration
}

// NewServer creates an API server.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Server{
		orchestrator: opts.Orchestrator,
		reader:       opts.Reader,
		logs:         opts.Logs,
		docs:         opts.Docs,
		auditor:      opts.Audit,
		metrics:      opts.Metrics,
		authMW:       opts.Auth,
		logger:       logger,
		startTime:    time.Now(),
		readTimeout:  opts.ReadTimeout,
		writeTimeout: opts.WriteTimeout,
		idleTimeout:  opts.IdleTimeout,
	}
}

// Start serves on addr until Stop is called.
func (s *Server) Start(addr string) error {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  s.readTimeout,
		WriteTimeout: s.writeTimeout,
		IdleTimeout:  s.idleTimeout,
	}

	s.logger.Printf("api: listening on %s", addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop gracefully stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	return nil
}
