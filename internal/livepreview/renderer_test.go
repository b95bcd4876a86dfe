package livepreview

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonathan/resume-builder/internal/compiler"
	"github.com/jonathan/resume-builder/internal/pagesplit"
	"github.com/jonathan/resume-builder/internal/templates"
	"github.com/jonathan/resume-builder/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sourceServer serves template and library sources like the resume API.
type sourceServer struct {
	*httptest.Server
	templates map[string]string
	libraries map[string]map[string]string
	hits      atomic.Int32
	gate      chan struct{}
}

func newSourceServer(t *testing.T) *sourceServer {
	t.Helper()
	s := &sourceServer{
		templates: map[string]string{"modern": "#import \"lib/lib.typ\": *"},
		libraries: map[string]map[string]string{
			"basic-resume": {
				templates.LibraryEntryFile: "#import \"resume.typ\": *",
				templates.LibraryImplFile:  "#let resume(data) = []",
			},
		},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/templates/{templateId}", func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		if s.gate != nil {
			<-s.gate
		}
		text, ok := s.templates[r.PathValue("templateId")]
		if !ok {
			http.Error(w, `{"error":"Template not found"}`, http.StatusNotFound)
			return
		}
		fmt.Fprint(w, text)
	})
	mux.HandleFunc("GET /api/libraries/{libraryName}/{fileName}", func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		text, ok := s.libraries[r.PathValue("libraryName")][r.PathValue("fileName")]
		if !ok {
			http.Error(w, `{"error":"Invalid library or file name"}`, http.StatusBadRequest)
			return
		}
		fmt.Fprint(w, text)
	})
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

type svgEngine struct {
	mu   sync.Mutex
	svg  string
	err  error
	jobs []compiler.Job
}

func (e *svgEngine) CompilePDF(context.Context, compiler.Job) ([]byte, error) {
	return nil, errors.New("not supported")
}

func (e *svgEngine) CompileSVG(_ context.Context, job compiler.Job) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.jobs = append(e.jobs, job)
	return []byte(e.svg), e.err
}

func newTestRenderer(t *testing.T, srv *sourceServer, engine compiler.Engine, ready <-chan struct{}) *Renderer {
	t.Helper()
	r, err := NewRenderer(RendererConfig{
		BaseURL:     srv.URL,
		Engine:      engine,
		Ready:       ready,
		InitTimeout: 200 * time.Millisecond,
		HTTPClient:  srv.Client(),
	})
	require.NoError(t, err)
	return r
}

func closedChan() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

func TestNewRenderer_RequiresCollaborators(t *testing.T) {
	_, err := NewRenderer(RendererConfig{BaseURL: "http://localhost"})
	assert.Error(t, err)
	_, err = NewRenderer(RendererConfig{Engine: &svgEngine{}})
	assert.Error(t, err)
}

func TestRenderer_InitializeWaitsForReady(t *testing.T) {
	srv := newSourceServer(t)
	ready := make(chan struct{})
	r := newTestRenderer(t, srv, &svgEngine{}, ready)
	assert.Equal(t, Uninitialized, r.State())

	var wg sync.WaitGroup
	errs := make([]error, 5)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = r.Initialize(context.Background())
		}()
	}

	assert.Eventually(t, func() bool { return r.State() == Initializing }, time.Second, 5*time.Millisecond)
	close(ready)
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, Ready, r.State())
	assert.NoError(t, r.Initialize(context.Background()), "initialize is idempotent")
}

func TestRenderer_InitializeTimeout(t *testing.T) {
	srv := newSourceServer(t)
	ready := make(chan struct{})
	r := newTestRenderer(t, srv, &svgEngine{}, ready)

	err := r.Initialize(context.Background())
	assert.True(t, errors.Is(err, ErrInitTimeout))
	assert.Equal(t, Uninitialized, r.State())

	close(ready)
	require.NoError(t, r.Initialize(context.Background()))
	assert.Equal(t, Ready, r.State())
}

func TestRenderer_InitializeCancelled(t *testing.T) {
	srv := newSourceServer(t)
	r := newTestRenderer(t, srv, &svgEngine{}, make(chan struct{}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, r.Initialize(ctx), context.Canceled)

	// The shared wait still runs to its own timeout.
	assert.Eventually(t, func() bool { return r.State() == Uninitialized }, time.Second, 5*time.Millisecond)
}

func TestRenderer_InitializeSurvivesOneCallerLeaving(t *testing.T) {
	srv := newSourceServer(t)
	ready := make(chan struct{})
	r := newTestRenderer(t, srv, &svgEngine{}, ready)

	leaving, leave := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	errB := make(chan error, 1)
	go func() { errA <- r.Initialize(leaving) }()
	require.Eventually(t, func() bool { return r.State() == Initializing }, time.Second, 5*time.Millisecond)
	go func() { errB <- r.Initialize(context.Background()) }()

	leave()
	assert.ErrorIs(t, <-errA, context.Canceled)
	assert.Equal(t, Initializing, r.State(), "one caller leaving does not reset the wait")

	close(ready)
	assert.NoError(t, <-errB)
	assert.Equal(t, Ready, r.State())
}

func TestRenderer_NilReadyIsImmediatelyReady(t *testing.T) {
	srv := newSourceServer(t)
	r := newTestRenderer(t, srv, &svgEngine{}, nil)
	require.NoError(t, r.Initialize(context.Background()))
	assert.Equal(t, Ready, r.State())
}

func TestRenderer_RenderBeforeInitialize(t *testing.T) {
	srv := newSourceServer(t)
	r := newTestRenderer(t, srv, &svgEngine{}, make(chan struct{}))

	_, err := r.RenderToSVG(context.Background(), RenderRequest{TemplateID: "modern"})
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestRenderer_LoadTemplateCaches(t *testing.T) {
	srv := newSourceServer(t)
	r := newTestRenderer(t, srv, &svgEngine{}, nil)
	ctx := context.Background()

	first, err := r.LoadTemplate(ctx, "modern")
	require.NoError(t, err)
	second, err := r.LoadTemplate(ctx, "modern")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.EqualValues(t, 1, srv.hits.Load())
}

func TestRenderer_LoadTemplateCoalescesConcurrentMisses(t *testing.T) {
	srv := newSourceServer(t)
	srv.gate = make(chan struct{})
	r := newTestRenderer(t, srv, &svgEngine{}, nil)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.LoadTemplate(context.Background(), "modern")
			assert.NoError(t, err)
		}()
	}
	assert.Eventually(t, func() bool { return srv.hits.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(srv.gate)
	wg.Wait()

	assert.EqualValues(t, 1, srv.hits.Load())
}

func TestRenderer_LoadTemplateSurvivesOneCallerLeaving(t *testing.T) {
	srv := newSourceServer(t)
	srv.gate = make(chan struct{})
	r := newTestRenderer(t, srv, &svgEngine{}, nil)

	leaving, leave := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := r.LoadTemplate(leaving, "modern")
		errA <- err
	}()
	require.Eventually(t, func() bool { return srv.hits.Load() == 1 }, time.Second, 5*time.Millisecond)

	type result struct {
		text string
		err  error
	}
	resB := make(chan result, 1)
	go func() {
		text, err := r.LoadTemplate(context.Background(), "modern")
		resB <- result{text, err}
	}()

	leave()
	assert.ErrorIs(t, <-errA, context.Canceled)

	close(srv.gate)
	got := <-resB
	require.NoError(t, got.err)
	assert.Equal(t, srv.templates["modern"], got.text)
	assert.EqualValues(t, 1, srv.hits.Load(), "the fetch was shared, not restarted")
}

func TestRenderer_LoadTemplateNotFound(t *testing.T) {
	srv := newSourceServer(t)
	r := newTestRenderer(t, srv, &svgEngine{}, nil)

	_, err := r.LoadTemplate(context.Background(), "missing")
	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, http.StatusNotFound, fe.Status)
}

func TestRenderer_LoadLibrary(t *testing.T) {
	srv := newSourceServer(t)
	r := newTestRenderer(t, srv, &svgEngine{}, nil)
	ctx := context.Background()

	lib, err := r.LoadLibrary(ctx, "modern")
	require.NoError(t, err)
	assert.True(t, lib.Complete())
	assert.Equal(t, "basic-resume", lib.Library)
	assert.Len(t, lib.Files, 2)

	_, err = r.LoadLibrary(ctx, "modern")
	require.NoError(t, err)
	assert.EqualValues(t, 2, srv.hits.Load(), "complete library is cached")

	_, err = r.LoadLibrary(ctx, "fancy")
	assert.ErrorIs(t, err, templates.ErrUnknownTemplate)
}

func TestRenderer_LoadLibraryReportsMissingFiles(t *testing.T) {
	srv := newSourceServer(t)
	delete(srv.libraries["basic-resume"], templates.LibraryImplFile)
	r := newTestRenderer(t, srv, &svgEngine{}, nil)
	ctx := context.Background()

	lib, err := r.LoadLibrary(ctx, "modern")
	require.NoError(t, err)
	assert.False(t, lib.Complete())
	assert.Equal(t, []string{templates.LibraryImplFile}, lib.Missing)
	assert.Contains(t, lib.Files, templates.LibraryEntryFile)

	_, err = r.LoadLibrary(ctx, "modern")
	require.NoError(t, err)
	assert.EqualValues(t, 4, srv.hits.Load(), "partial library is not cached")

	require.NoError(t, r.Initialize(ctx))
	_, err = r.RenderToSVG(ctx, RenderRequest{TemplateID: "modern"})
	var missing *MissingLibraryFilesError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "basic-resume", missing.Library)
}

func TestRenderer_RenderToSVG(t *testing.T) {
	srv := newSourceServer(t)
	height := pagesplit.PageHeight*2 + 15
	engine := &svgEngine{svg: fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="605" height="%g"><g/></svg>`, height)}
	r := newTestRenderer(t, srv, engine, nil)
	ctx := context.Background()
	require.NoError(t, r.Initialize(ctx))

	form := types.FormData{
		PersonalInfo: types.PersonalInfo{FirstName: "Ada"},
		Experience: []types.Experience{
			{Company: "Engines", Position: "Programmer", StartDate: types.NewDate(1843, time.July, 1)},
		},
	}
	pages, err := r.RenderToSVG(ctx, RenderRequest{FormData: form, TemplateID: "modern"})
	require.NoError(t, err)
	assert.Len(t, pages, 2, "trailing overflow fragment dropped")

	require.Len(t, engine.jobs, 1)
	job := engine.jobs[0]
	assert.Equal(t, srv.templates["modern"], job.Sources[compiler.MainPath])
	assert.Contains(t, job.Sources, compiler.LibraryPath(templates.LibraryImplFile))
	assert.True(t, strings.Contains(job.Inputs[compiler.DataInput], `"startDate":"1843-07-01"`))
}

func TestRenderer_RenderEngineFailure(t *testing.T) {
	srv := newSourceServer(t)
	r := newTestRenderer(t, srv, &svgEngine{err: errors.New("boom")}, nil)
	ctx := context.Background()
	require.NoError(t, r.Initialize(ctx))

	_, err := r.RenderToSVG(ctx, RenderRequest{TemplateID: "modern"})
	var re *RenderError
	assert.True(t, errors.As(err, &re))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "uninitialized", Uninitialized.String())
	assert.Equal(t, "initializing", Initializing.String())
	assert.Equal(t, "ready", Ready.String())
}
