package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonathan/resume-builder/internal/artifacts"
	"github.com/jonathan/resume-builder/internal/compiler"
	"github.com/jonathan/resume-builder/internal/config"
	"github.com/jonathan/resume-builder/internal/observability"
	"github.com/jonathan/resume-builder/internal/sources"
	"github.com/jonathan/resume-builder/internal/templates"
	"go.uber.org/zap"
)

// app holds the collaborators every command builds the same way.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	registry *templates.Registry
	store    *sources.Store
	sources  sources.Reader
	engine   *compiler.TypstEngine
	cleanup  []func()
}

// newApp loads configuration and builds the logger, registry and sources.
func newApp() (*app, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := observability.NewLogger(cfg.Debug)
	if err != nil {
		return nil, err
	}

	registry, err := loadRegistry(cfg.Sources.RegistryFile)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}

	store := sources.NewStore(cfg.Sources.TemplatesDir, cfg.Sources.LibrariesDir)
	a := &app{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		store:    store,
		sources:  store,
		engine:   compiler.NewTypstEngine(cfg.Compiler.Binary, cfg.Compiler.Timeout, logger),
	}
	return a, nil
}

func loadRegistry(path string) (*templates.Registry, error) {
	if path == "" {
		return templates.DefaultRegistry(), nil
	}
	return templates.LoadRegistry(path)
}

// useSourceCache puts the LRU in front of the file store, optionally
// purging it on file changes until ctx is done.
func (a *app) useSourceCache(ctx context.Context) error {
	cached, err := sources.NewCachedStore(a.store, a.cfg.Sources.CacheSize, a.logger)
	if err != nil {
		return err
	}
	if a.cfg.Sources.Watch {
		if err := cached.Watch(ctx); err != nil {
			return err
		}
	}
	a.sources = cached
	return nil
}

// artifactCache returns Redis when configured, the in-process LRU otherwise.
func (a *app) artifactCache(ctx context.Context) (artifacts.Cache, error) {
	if a.cfg.Cache.RedisURL == "" {
		return artifacts.NewMemoryCache(a.cfg.Cache.Capacity)
	}

	rc, err := artifacts.NewRedisCache(a.cfg.Cache.RedisURL, a.cfg.Cache.TTL)
	if err != nil {
		return nil, err
	}
	if err := rc.Ping(ctx); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("redis cache unavailable: %w", err)
	}
	a.cleanup = append(a.cleanup, func() { _ = rc.Close() })
	a.logger.Info("Using Redis artifact cache")
	return rc, nil
}

// adapter builds the server compile path.
func (a *app) adapter(cache artifacts.Cache, metrics *compiler.Metrics) *compiler.Adapter {
	opts := []compiler.Option{compiler.WithLogger(a.logger)}
	if cache != nil {
		opts = append(opts, compiler.WithCache(cache))
	}
	if metrics != nil {
		opts = append(opts, compiler.WithMetrics(metrics))
	}
	return compiler.NewAdapter(a.registry, a.sources, a.engine, opts...)
}

// validationProblems flattens a registry validation error into lines.
func validationProblems(err error) []string {
	if err == nil {
		return nil
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		if joined, ok := e.(interface{ Unwrap() []error }); ok {
			var out []string
			for _, inner := range joined.Unwrap() {
				out = append(out, inner.Error())
			}
			return out
		}
	}
	return []string{err.Error()}
}

func (a *app) close() {
	for i := len(a.cleanup) - 1; i >= 0; i-- {
		a.cleanup[i]()
	}
	_ = a.logger.Sync()
}
