// Package api exposes the HTTP surface: policy upload, regulation
// analysis, direct search, and health probes.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/arcalabs/arca/internal/log"
	"github.com/arcalabs/arca/internal/pipeline"
	"github.com/arcalabs/arca/internal/policy"
)

// Server shutdown and connection tunables.
const (
	DefaultShutdownTimeout = 10 * time.Second
	readHeaderTimeout      = 5 * time.Second
)

// DocumentStore is the corpus surface the handlers consume.
// *policy.Store satisfies it.
type DocumentStore interface {
	Add(ctx context.Context, text, filename, tenantID string) error
	Search(ctx context.Context, query, tenantID string, topK int) ([]policy.Match, error)
}

// Analyzer runs the compliance pipeline. *pipeline.Pipeline satisfies it.
type Analyzer interface {
	Run(ctx context.Context, regulationText, tenantID, dateOfLaw string) (pipeline.Report, error)
}

// Config contains server construction parameters.
type Config struct {
	Addr     string
	Logger   log.Logger
	Store    DocumentStore
	Analyzer Analyzer

	// Ready reports backend readiness for the /ready probe. Nil means
	// always ready.
	Ready func(ctx context.Context) error

	CORSOrigins    []string
	TrustProxy     bool
	RatePerSecond  float64
	RateBurst      int
	MaxUploadBytes int64
	SearchTopK     int
}

// Server is the ARCA HTTP server.
type Server struct {
	cfg     Config
	logger  log.Logger
	mux     *http.ServeMux
	handler http.Handler
}

// NewServer creates a server with all routes configured.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Store == nil {
		return nil, errors.New("document store is required")
	}
	if cfg.Analyzer == nil {
		return nil, errors.New("analyzer is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewNop()
	}
	if cfg.SearchTopK <= 0 {
		cfg.SearchTopK = 5
	}

	s := &Server{cfg: cfg, logger: cfg.Logger, mux: http.NewServeMux()}

	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /ready", s.handleReady)
	s.mux.HandleFunc("POST /api/policies", s.handleUploadPolicy)
	s.mux.HandleFunc("POST /api/analyze", s.handleAnalyze)
	s.mux.HandleFunc("GET /api/search", s.handleSearch)

	// Recovery -> logging -> CORS -> rate limit -> body cap -> routes.
	var handler http.Handler = s.mux
	handler = maxBodyMiddleware(cfg.MaxUploadBytes)(handler)
	if cfg.RatePerSecond > 0 {
		rl := newRateLimiter(cfg.RatePerSecond, cfg.RateBurst)
		handler = rateLimitMiddleware(rl, cfg.TrustProxy, cfg.Logger)(handler)
	}
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(cfg.Logger)(handler)
	handler = recoveryMiddleware(cfg.Logger)(handler)
	s.handler = handler

	return s, nil
}

// ServeHTTP implements http.Handler. Health probes bypass the middleware
// stack so orchestrator checks are never rate limited.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/health" || r.URL.Path == "/ready" {
		s.mux.ServeHTTP(w, r)
		return
	}
	s.handler.ServeHTTP(w, r)
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	s.logger.Info("http server stopped")
	return <-errCh
}
