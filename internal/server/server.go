// Package server provides the HTTP API for the resume builder: typesetting
// sources, compilation, live preview, and saved resumes.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/resume-builder/internal/db"
	"github.com/jonathan/resume-builder/internal/livepreview"
	"github.com/jonathan/resume-builder/internal/observability"
	"github.com/jonathan/resume-builder/internal/server/ratelimit"
	"github.com/jonathan/resume-builder/internal/sources"
	"github.com/jonathan/resume-builder/internal/templates"
	"github.com/jonathan/resume-builder/internal/types"
	"go.uber.org/zap"
)

// Compiler is the server-side compile path.
type Compiler interface {
	RenderPDF(ctx context.Context, data types.FormattedData, templateID string) ([]byte, error)
	RenderSVG(ctx context.Context, data types.FormattedData, templateID string) ([]byte, error)
}

// Store persists profiles and resumes.
type Store interface {
	CreateProfile(ctx context.Context, in db.ProfileInput) (*db.Profile, error)
	GetProfile(ctx context.Context, id uuid.UUID) (*db.Profile, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, in db.ProfileInput) (*db.Profile, error)
	DeleteProfile(ctx context.Context, id uuid.UUID) error
	CreateResume(ctx context.Context, profileID uuid.UUID, in db.ResumeInput) (*db.Resume, error)
	GetResume(ctx context.Context, id uuid.UUID) (*db.Resume, error)
	ListResumes(ctx context.Context, profileID uuid.UUID) ([]db.Resume, error)
	UpdateResume(ctx context.Context, id uuid.UUID, in db.ResumeInput) (*db.Resume, error)
	SetResumePublic(ctx context.Context, id uuid.UUID, public bool) error
	DeleteResume(ctx context.Context, id uuid.UUID) error
}

var _ Store = (*db.DB)(nil)

// Thumbnailer rasterizes one SVG page to PNG.
type Thumbnailer interface {
	RenderPNG(ctx context.Context, svg string) ([]byte, error)
}

// Config wires the server's collaborators. Registry, Sources and Compiler
// are required; the rest switch their endpoints off when nil.
type Config struct {
	Port           int
	AllowedOrigins []string

	Registry *templates.Registry
	Sources  sources.Reader
	Compiler Compiler

	Store       Store
	Share       *ShareService
	Thumbnails  Thumbnailer
	Preview     livepreview.PreviewRenderer
	Debounce    time.Duration
	RateLimit   *ratelimit.Config
	Metrics     *observability.Collector
	Logger      *zap.Logger
	HealthCheck func(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	httpServer  *http.Server
	handler     http.Handler
	registry    *templates.Registry
	sources     sources.Reader
	compiler    Compiler
	store       Store
	share       *ShareService
	thumbnails  Thumbnailer
	preview     livepreview.PreviewRenderer
	debounce    time.Duration
	rateLimiter *ratelimit.Limiter
	metrics     *observability.Collector
	logger      *zap.Logger
	origins     map[string]bool
	healthCheck func(ctx context.Context) error
}

// New creates a new server instance
func New(cfg Config) (*Server, error) {
	if cfg.Registry == nil || cfg.Sources == nil || cfg.Compiler == nil {
		return nil, errors.New("server: registry, sources and compiler are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		registry:    cfg.Registry,
		sources:     cfg.Sources,
		compiler:    cfg.Compiler,
		store:       cfg.Store,
		share:       cfg.Share,
		thumbnails:  cfg.Thumbnails,
		preview:     cfg.Preview,
		debounce:    cfg.Debounce,
		rateLimiter: ratelimit.NewLimiter(cfg.RateLimit),
		metrics:     cfg.Metrics,
		logger:      logger,
		origins:     make(map[string]bool, len(cfg.AllowedOrigins)),
		healthCheck: cfg.HealthCheck,
	}
	for _, o := range cfg.AllowedOrigins {
		s.origins[o] = true
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	// Typesetting sources
	mux.HandleFunc("GET /api/templates", s.handleListTemplates)
	mux.HandleFunc("GET /api/templates/{templateId}", s.handleGetTemplate)
	mux.HandleFunc("GET /api/libraries/{libraryName}/{fileName}", s.handleGetLibraryFile)

	// Compilation
	mux.HandleFunc("POST /api/compile/pdf", s.handleCompilePDF)
	mux.HandleFunc("POST /api/compile/svg", s.handleCompileSVG)
	mux.HandleFunc("GET /api/preview/ws", s.handlePreviewSocket)

	// Profiles and resumes
	mux.HandleFunc("POST /api/profiles", s.handleCreateProfile)
	mux.HandleFunc("GET /api/profiles/{id}", s.handleGetProfile)
	mux.HandleFunc("PUT /api/profiles/{id}", s.handleUpdateProfile)
	mux.HandleFunc("DELETE /api/profiles/{id}", s.handleDeleteProfile)
	mux.HandleFunc("GET /api/profiles/{id}/resumes", s.handleListResumes)
	mux.HandleFunc("POST /api/profiles/{id}/resumes", s.handleCreateResume)
	mux.HandleFunc("GET /api/resumes/{id}", s.handleGetResume)
	mux.HandleFunc("PUT /api/resumes/{id}", s.handleUpdateResume)
	mux.HandleFunc("DELETE /api/resumes/{id}", s.handleDeleteResume)
	mux.HandleFunc("GET /api/resumes/{id}/pdf", s.handleResumePDF)
	mux.HandleFunc("GET /api/resumes/{id}/thumbnail.png", s.handleResumeThumbnail)
	mux.HandleFunc("POST /api/resumes/{id}/share", s.handleShareResume)
	mux.HandleFunc("GET /r/{token}", s.handleSharedResume)

	s.handler = s.withRateLimit(s.withLogging(s.withCORS(mux)))
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second, // Cold typst compiles can be slow
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Handler returns the fully wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", zap.String("addr", ln.Addr().String()))
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		s.rateLimiter.Stop()
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := s.httpServer.Shutdown(shutdownCtx)
	s.rateLimiter.Stop()
	if err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.healthCheck != nil {
		if err := s.healthCheck(r.Context()); err != nil {
			s.logger.Warn("health check failed", zap.Error(err))
			s.jsonResponse(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode JSON response", zap.Error(err))
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}
