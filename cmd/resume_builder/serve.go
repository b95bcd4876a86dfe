package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonathan/resume-builder/internal/compiler"
	"github.com/jonathan/resume-builder/internal/config"
	"github.com/jonathan/resume-builder/internal/db"
	"github.com/jonathan/resume-builder/internal/livepreview"
	"github.com/jonathan/resume-builder/internal/observability"
	"github.com/jonathan/resume-builder/internal/server"
	"github.com/jonathan/resume-builder/internal/server/ratelimit"
	"github.com/jonathan/resume-builder/internal/thumbnail"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  `Start an HTTP server that serves typesetting sources, compiles resumes to PDF and SVG, and streams live previews.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides server.port)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()
	if servePort > 0 {
		a.cfg.Server.Port = servePort
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.useSourceCache(ctx); err != nil {
		return err
	}
	if err := a.registry.Validate(a.sources); err != nil {
		return err
	}

	metrics := observability.NewCollector()
	cache, err := a.artifactCache(ctx)
	if err != nil {
		return err
	}
	adapter := a.adapter(cache, compiler.NewMetrics(observability.Namespace, metrics.Registry()))

	preview, err := a.previewRenderer(ctx)
	if err != nil {
		return err
	}

	cfg := server.Config{
		Port:           a.cfg.Server.Port,
		AllowedOrigins: a.cfg.Server.AllowedOrigins,
		Registry:       a.registry,
		Sources:        a.sources,
		Compiler:       adapter,
		Preview:        preview,
		Debounce:       a.cfg.Preview.Debounce,
		RateLimit:      rateLimitConfig(a.cfg.RateLimit),
		Metrics:        metrics,
		Logger:         a.logger,
	}

	if a.cfg.Database.URL != "" {
		database, err := db.Connect(ctx, a.cfg.Database.URL)
		if err != nil {
			return err
		}
		defer database.Close()
		if err := database.Migrate(ctx); err != nil {
			return err
		}
		cfg.Store = database
		cfg.HealthCheck = database.Ping
	} else {
		a.logger.Info("No database configured; profile and resume endpoints are disabled")
	}

	if a.cfg.SharingEnabled() {
		if cfg.Share, err = server.NewShareService(a.cfg.Share); err != nil {
			return err
		}
	}

	if a.cfg.Thumbnail.Enabled {
		if !thumbnail.Available() {
			return errors.New("thumbnails are enabled but no Chrome or Chromium binary was found")
		}
		t := a.cfg.Thumbnail
		cfg.Thumbnails = thumbnail.New(t.Timeout, t.Width, t.Height, a.logger)
	}

	srv, err := server.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	return srv.Start(ctx)
}

// previewRenderer builds the shared live renderer. Its readiness signal
// closes once the typst binary answers a version probe, so the server can
// accept connections while the engine is still being checked.
func (a *app) previewRenderer(ctx context.Context) (*livepreview.Renderer, error) {
	baseURL := a.cfg.Server.BaseURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("http://127.0.0.1:%d", a.cfg.Server.Port)
	}

	ready := make(chan struct{})
	go func() {
		version, err := a.engine.Probe(ctx)
		if err != nil {
			a.logger.Error("Typesetting engine unavailable; live preview will time out", zap.Error(err))
			return
		}
		a.logger.Info("Typesetting engine ready", zap.String("version", version))
		close(ready)
	}()

	return livepreview.NewRenderer(livepreview.RendererConfig{
		BaseURL:     baseURL,
		Engine:      a.engine,
		Ready:       ready,
		InitTimeout: a.cfg.Preview.InitTimeout,
		CacheSize:   a.cfg.Preview.CacheSize,
		Registry:    a.registry,
		Logger:      a.logger,
	})
}

// rateLimitConfig applies the configured defaults on top of the built-in
// endpoint tiers.
func rateLimitConfig(rl config.RateLimitConfig) *ratelimit.Config {
	cfg := ratelimit.DefaultConfig()
	cfg.Enabled = rl.Enabled
	if rl.Limit > 0 {
		cfg.DefaultLimit = rl.Limit
	}
	if rl.Window > 0 {
		cfg.DefaultWindow = rl.Window
	}
	cfg.Whitelist = ratelimit.ParseIPList(rl.Whitelist)
	cfg.Blacklist = ratelimit.ParseIPList(rl.Blacklist)
	return cfg
}
