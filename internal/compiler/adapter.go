package compiler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonathan/resume-builder/internal/artifacts"
	"github.com/jonathan/resume-builder/internal/sources"
	"github.com/jonathan/resume-builder/internal/templates"
	"github.com/jonathan/resume-builder/internal/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Output formats.
const (
	FormatPDF = "pdf"
	FormatSVG = "svg"
)

// Adapter is the server-side compile path: it resolves a template, reads its
// sources from disk and drives the engine. Each call is one attempt.
type Adapter struct {
	registry *templates.Registry
	sources  sources.Reader
	engine   Engine
	cache    artifacts.Cache
	metrics  *Metrics
	logger   *zap.Logger
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithCache enables the PDF artifact cache.
func WithCache(c artifacts.Cache) Option {
	return func(a *Adapter) { a.cache = c }
}

// WithMetrics records compilation metrics.
func WithMetrics(m *Metrics) Option {
	return func(a *Adapter) { a.metrics = m }
}

// WithLogger sets the logger used for failure details.
func WithLogger(l *zap.Logger) Option {
	return func(a *Adapter) { a.logger = l }
}

// NewAdapter creates an adapter.
func NewAdapter(registry *templates.Registry, src sources.Reader, engine Engine, opts ...Option) *Adapter {
	a := &Adapter{
		registry: registry,
		sources:  src,
		engine:   engine,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// RenderPDF compiles data with the given template to PDF bytes. Cached PDFs
// are keyed by every source text and input of the job, so editing a template
// or library misses the cache.
func (a *Adapter) RenderPDF(ctx context.Context, data types.FormattedData, templateID string) ([]byte, error) {
	start := time.Now()

	job, err := a.prepare(ctx, templateID, data)
	if err != nil {
		return nil, a.fail(FormatPDF, templateID, start, err)
	}

	var key string
	if a.cache != nil {
		key = job.cacheKey(FormatPDF)
		pdf, ok, err := a.cache.Get(ctx, key)
		if err != nil {
			a.logger.Warn("Artifact cache read failed", zap.Error(err))
		}
		if ok {
			a.metrics.cacheHit(FormatPDF)
			return pdf, nil
		}
	}

	pdf, err := a.engine.CompilePDF(ctx, job)
	if err != nil {
		return nil, a.fail(FormatPDF, templateID, start, err)
	}
	a.metrics.observe(FormatPDF, start, nil)

	if a.cache != nil {
		if err := a.cache.Set(ctx, key, pdf); err != nil {
			a.logger.Warn("Artifact cache write failed", zap.Error(err))
		}
	}
	return pdf, nil
}

// RenderSVG compiles data with the given template to one continuous SVG.
func (a *Adapter) RenderSVG(ctx context.Context, data types.FormattedData, templateID string) ([]byte, error) {
	start := time.Now()

	job, err := a.prepare(ctx, templateID, data)
	if err != nil {
		return nil, a.fail(FormatSVG, templateID, start, err)
	}

	svg, err := a.engine.CompileSVG(ctx, job)
	if err != nil {
		return nil, a.fail(FormatSVG, templateID, start, err)
	}
	a.metrics.observe(FormatSVG, start, nil)
	return svg, nil
}

// prepare resolves the template and reads its three sources concurrently.
func (a *Adapter) prepare(ctx context.Context, templateID string, data types.FormattedData) (Job, error) {
	library, err := a.registry.Library(templateID)
	if err != nil {
		return Job{}, err
	}

	files := templates.LibraryFiles()
	texts := make([]string, len(files))
	var document string

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		text, err := a.sources.ReadTemplate(templateID)
		if err != nil {
			return fmt.Errorf("failed to read template %q: %w", templateID, err)
		}
		document = text
		return nil
	})
	for i, name := range files {
		g.Go(func() error {
			text, err := a.sources.ReadLibrary(library, name)
			if err != nil {
				return fmt.Errorf("failed to read library file %s/%s: %w", library, name, err)
			}
			texts[i] = text
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Job{}, err
	}

	lib := make(map[string]string, len(files))
	for i, name := range files {
		lib[name] = texts[i]
	}
	return BuildJob(document, lib, data)
}

func (a *Adapter) fail(format, templateID string, start time.Time, cause error) error {
	a.metrics.observe(format, start, cause)

	fields := []zap.Field{
		zap.String("format", format),
		zap.String("template_id", templateID),
		zap.Error(cause),
	}
	var ee *EngineError
	if errors.As(cause, &ee) && ee.Stderr != "" {
		fields = append(fields, zap.String("stderr", ee.Stderr))
	}
	a.logger.Error("Resume compilation failed", fields...)

	return &CompilationError{Format: format, TemplateID: templateID, Cause: cause}
}
