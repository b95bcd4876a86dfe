package livepreview

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jonathan/resume-builder/internal/compiler"
	"github.com/jonathan/resume-builder/internal/formatting"
	"github.com/jonathan/resume-builder/internal/pagesplit"
	"github.com/jonathan/resume-builder/internal/templates"
	"github.com/jonathan/resume-builder/internal/types"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultInitTimeout bounds the wait for the engine's ready signal.
	DefaultInitTimeout = 30 * time.Second
	// DefaultCacheSize bounds the template and library caches.
	DefaultCacheSize = 32
	// sourceFetchTimeout bounds a shared template or library load.
	sourceFetchTimeout = 30 * time.Second

	maxSourceBytes = 1 << 20
)

// State is the renderer lifecycle.
type State int

const (
	Uninitialized State = iota
	Initializing
	Ready
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initializing:
		return "initializing"
	case Ready:
		return "ready"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// RendererConfig holds the renderer's collaborators.
type RendererConfig struct {
	// BaseURL is the origin serving /api/templates and /api/libraries.
	BaseURL string
	Engine  compiler.Engine
	// Ready is closed once the engine can compile. A nil channel means the
	// engine is ready immediately.
	Ready       <-chan struct{}
	InitTimeout time.Duration
	CacheSize   int
	HTTPClient  *http.Client
	Registry    *templates.Registry
	Logger      *zap.Logger
}

// RenderRequest is one preview render.
type RenderRequest struct {
	FormData   types.FormData `json:"formData"`
	TemplateID string         `json:"templateId"`
}

// LibrarySources is the result of loading a template's library. Files that
// could not be fetched are listed in Missing instead of failing the load.
type LibrarySources struct {
	Library string
	Files   map[string]string
	Missing []string
}

// Complete reports whether every library file was loaded.
func (l LibrarySources) Complete() bool {
	return len(l.Missing) == 0
}

// Renderer fetches typesetting sources over HTTP and compiles form data to
// SVG page fragments. One instance is shared by every preview session.
type Renderer struct {
	baseURL     string
	engine      compiler.Engine
	ready       <-chan struct{}
	initTimeout time.Duration
	client      *http.Client
	registry    *templates.Registry
	logger      *zap.Logger

	mu    sync.Mutex
	state State
	init  singleflight.Group

	fetches   singleflight.Group
	templates *lru.Cache[string, string]
	libraries *lru.Cache[string, LibrarySources]
	breaker   *gobreaker.CircuitBreaker
}

// NewRenderer creates a renderer in the Uninitialized state.
func NewRenderer(cfg RendererConfig) (*Renderer, error) {
	if cfg.Engine == nil {
		return nil, errors.New("renderer requires an engine")
	}
	if cfg.BaseURL == "" {
		return nil, errors.New("renderer requires a source base URL")
	}
	if cfg.Registry == nil {
		cfg.Registry = templates.DefaultRegistry()
	}
	if cfg.InitTimeout <= 0 {
		cfg.InitTimeout = DefaultInitTimeout
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultCacheSize
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	ready := cfg.Ready
	if ready == nil {
		closed := make(chan struct{})
		close(closed)
		ready = closed
	}

	tplCache, err := lru.New[string, string](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create template cache: %w", err)
	}
	libCache, err := lru.New[string, LibrarySources](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create library cache: %w", err)
	}

	r := &Renderer{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		engine:      cfg.Engine,
		ready:       ready,
		initTimeout: cfg.InitTimeout,
		client:      cfg.HTTPClient,
		registry:    cfg.Registry,
		logger:      cfg.Logger,
		templates:   tplCache,
		libraries:   libCache,
	}
	r.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "preview-sources",
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.8
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			r.logger.Warn("Source fetch circuit breaker changed state",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
		IsSuccessful: func(err error) bool {
			// A 4xx is a definitive answer from a healthy server.
			var fe *FetchError
			if errors.As(err, &fe) && fe.ClientError() {
				return true
			}
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
	return r, nil
}

// State returns the lifecycle state.
func (r *Renderer) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Renderer) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

// Initialize waits for the engine's ready signal. It returns immediately
// once Ready, and concurrent callers share a single wait. The shared wait is
// bounded only by the init timeout; a caller whose ctx ends stops waiting
// without affecting the others. On timeout the renderer returns to
// Uninitialized so a later call can retry.
func (r *Renderer) Initialize(ctx context.Context) error {
	if r.State() == Ready {
		return nil
	}

	_, err := await(ctx, &r.init, "init", func() (any, error) {
		if r.State() == Ready {
			return nil, nil
		}
		r.setState(Initializing)

		timer := time.NewTimer(r.initTimeout)
		defer timer.Stop()

		select {
		case <-r.ready:
			r.setState(Ready)
			r.logger.Info("Preview renderer ready")
			return nil, nil
		case <-timer.C:
			r.setState(Uninitialized)
			return nil, ErrInitTimeout
		}
	})
	return err
}

// LoadTemplate returns a template's document source, fetching it on a cache
// miss. Concurrent misses for one id share a single fetch.
func (r *Renderer) LoadTemplate(ctx context.Context, templateID string) (string, error) {
	if text, ok := r.templates.Get(templateID); ok {
		return text, nil
	}

	v, err := await(ctx, &r.fetches, "template:"+templateID, func() (any, error) {
		fetchCtx, cancel := detached(ctx)
		defer cancel()

		text, err := r.fetch(fetchCtx, r.baseURL+"/api/templates/"+url.PathEscape(templateID))
		if err != nil {
			return nil, err
		}
		r.templates.Add(templateID, text)
		return text, nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to load template %q: %w", templateID, err)
	}
	return v.(string), nil
}

// LoadLibrary fetches both library files of a template's library. A file
// that cannot be fetched is reported in Missing; only complete results are
// cached.
func (r *Renderer) LoadLibrary(ctx context.Context, templateID string) (LibrarySources, error) {
	library, err := r.registry.Library(templateID)
	if err != nil {
		return LibrarySources{}, err
	}
	if cached, ok := r.libraries.Get(library); ok {
		return cached, nil
	}

	v, err := await(ctx, &r.fetches, "library:"+library, func() (any, error) {
		fetchCtx, cancel := detached(ctx)
		defer cancel()

		files := templates.LibraryFiles()
		texts := make([]string, len(files))
		failures := make([]error, len(files))

		var g errgroup.Group
		for i, name := range files {
			g.Go(func() error {
				u := r.baseURL + "/api/libraries/" + url.PathEscape(library) + "/" + url.PathEscape(name)
				texts[i], failures[i] = r.fetch(fetchCtx, u)
				return nil
			})
		}
		_ = g.Wait()
		if err := fetchCtx.Err(); err != nil {
			return nil, err
		}

		result := LibrarySources{Library: library, Files: make(map[string]string, len(files))}
		for i, name := range files {
			if failures[i] != nil {
				r.logger.Warn("Library file unavailable",
					zap.String("library", library),
					zap.String("file", name),
					zap.Error(failures[i]))
				result.Missing = append(result.Missing, name)
				continue
			}
			result.Files[name] = texts[i]
		}
		if result.Complete() {
			r.libraries.Add(library, result)
		}
		return result, nil
	})
	if err != nil {
		return LibrarySources{}, fmt.Errorf("failed to load library %q: %w", library, err)
	}
	return v.(LibrarySources), nil
}

// RenderToSVG compiles req to SVG page fragments. The trailing overflow
// fragment of the continuous document is dropped.
func (r *Renderer) RenderToSVG(ctx context.Context, req RenderRequest) ([]string, error) {
	if r.State() != Ready {
		return nil, ErrNotInitialized
	}

	document, err := r.LoadTemplate(ctx, req.TemplateID)
	if err != nil {
		return nil, err
	}
	lib, err := r.LoadLibrary(ctx, req.TemplateID)
	if err != nil {
		return nil, err
	}
	if !lib.Complete() {
		return nil, &MissingLibraryFilesError{Library: lib.Library, Files: lib.Missing}
	}

	job, err := compiler.BuildJob(document, lib.Files, formatting.Format(req.FormData))
	if err != nil {
		return nil, &RenderError{Message: "failed to prepare sources", Cause: err}
	}

	svg, err := r.engine.CompileSVG(ctx, job)
	if err != nil {
		return nil, &RenderError{Message: "svg compilation failed", Cause: err}
	}
	return pagesplit.DropTrailing(pagesplit.Split(string(svg))), nil
}

// await runs fn once per key across concurrent callers and waits for its
// result or for ctx to end, whichever comes first.
func await(ctx context.Context, g *singleflight.Group, key string, fn func() (any, error)) (any, error) {
	select {
	case res := <-g.DoChan(key, fn):
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// detached derives a context for work shared by several callers. It keeps
// ctx's values but not its cancellation.
func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), sourceFetchTimeout)
}

// fetch GETs u through the circuit breaker and returns the body text.
func (r *Renderer) fetch(ctx context.Context, u string) (string, error) {
	v, err := r.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		resp, err := r.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxSourceBytes))
			return nil, &FetchError{URL: u, Status: resp.StatusCode}
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxSourceBytes))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", u, err)
		}
		return string(body), nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}
