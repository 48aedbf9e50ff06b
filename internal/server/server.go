// Package server exposes the scanner's state over a headless HTTP API:
// pools, opportunities, verifier counters, scan control, and archives.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/qajybay/offchain-arbitrage/internal/server/handler"
	"github.com/qajybay/offchain-arbitrage/internal/server/middleware"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health        *handler.HealthHandler
	Pools         *handler.PoolHandler
	Opportunities *handler.OpportunityHandler
	Scan          *handler.ScanHandler
	Verifier      *handler.VerifierHandler
	Archives      *handler.ArchiveHandler
}

// Server is the HTTP API server for the arbitrage scanner.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux
// and the middleware chain (auth, logging, CORS) applied.
func NewServer(cfg Config, handlers Handlers, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check (no auth required beyond the shared chain).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Pool endpoints.
	mux.HandleFunc("GET /api/pools", handlers.Pools.ListPools)
	mux.HandleFunc("GET /api/pools/stats", handlers.Pools.PoolStats)
	mux.HandleFunc("GET /api/pools/{address}", handlers.Pools.GetPool)

	// Opportunity endpoints.
	mux.HandleFunc("GET /api/opportunities", handlers.Opportunities.ListActive)
	mux.HandleFunc("GET /api/opportunities/recent", handlers.Opportunities.ListRecent)
	mux.HandleFunc("GET /api/opportunities/stats", handlers.Opportunities.StatusCounts)
	mux.HandleFunc("GET /api/opportunities/{id}", handlers.Opportunities.GetOpportunity)

	// Scan control.
	mux.HandleFunc("POST /api/scan", handlers.Scan.TriggerScan)
	mux.HandleFunc("GET /api/scan/status", handlers.Scan.ScanStatus)

	// Verifier observability and failover control.
	mux.HandleFunc("GET /api/verifier/stats", handlers.Verifier.GetStats)
	mux.HandleFunc("POST /api/verifier/reset", handlers.Verifier.ResetToPrimary)

	// Cold-storage archives.
	mux.HandleFunc("GET /api/archives", handlers.Archives.ListArchives)

	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey)(h)
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger.With(slog.String("component", "server")),
	}
}

// Handler returns the fully wired handler chain, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
