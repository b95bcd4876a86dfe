package compiler

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/jonathan/resume-builder/internal/artifacts"
	"github.com/jonathan/resume-builder/internal/sources"
	"github.com/jonathan/resume-builder/internal/templates"
	"github.com/jonathan/resume-builder/internal/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSources struct {
	templates map[string]string
	libraries map[string]map[string]string
}

func (f *fakeSources) ReadTemplate(id string) (string, error) {
	text, ok := f.templates[id]
	if !ok {
		return "", sources.ErrNotFound
	}
	return text, nil
}

func (f *fakeSources) ReadLibrary(lib, name string) (string, error) {
	text, ok := f.libraries[lib][name]
	if !ok {
		return "", sources.ErrNotFound
	}
	return text, nil
}

func newFakeSources() *fakeSources {
	return &fakeSources{
		templates: map[string]string{"modern": "#import \"lib/lib.typ\": *\n= Modern"},
		libraries: map[string]map[string]string{
			"basic-resume": {
				templates.LibraryEntryFile: "#import \"resume.typ\": *",
				templates.LibraryImplFile:  "#let resume(data) = data",
			},
		},
	}
}

type fakeEngine struct {
	mu    sync.Mutex
	jobs  []Job
	pdf   []byte
	svg   []byte
	err   error
	calls int
}

func (f *fakeEngine) CompilePDF(_ context.Context, job Job) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.jobs = append(f.jobs, job)
	return f.pdf, f.err
}

func (f *fakeEngine) CompileSVG(_ context.Context, job Job) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.jobs = append(f.jobs, job)
	return f.svg, f.err
}

func sampleData() types.FormattedData {
	return types.FormattedData{
		PersonalInfo: types.PersonalInfo{FirstName: "Ada", LastName: "Lovelace"},
		Experience: []types.FormattedExperience{
			{Company: "Analytical Engines", Position: "Programmer", StartDate: "1843-01-01"},
		},
	}
}

func TestAdapter_RenderPDF_BuildsVirtualTree(t *testing.T) {
	engine := &fakeEngine{pdf: []byte("%PDF-1.7")}
	a := NewAdapter(templates.DefaultRegistry(), newFakeSources(), engine)

	pdf, err := a.RenderPDF(context.Background(), sampleData(), "modern")
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.7"), pdf)

	require.Len(t, engine.jobs, 1)
	job := engine.jobs[0]
	assert.Equal(t, MainPath, job.MainPath)
	assert.Equal(t, "#import \"lib/lib.typ\": *\n= Modern", job.Sources["/main.typ"])
	assert.Equal(t, "#import \"resume.typ\": *", job.Sources["/lib/lib.typ"])
	assert.Equal(t, "#let resume(data) = data", job.Sources["/lib/resume.typ"])
	assert.Len(t, job.Sources, 3)

	var decoded types.FormattedData
	require.NoError(t, json.Unmarshal([]byte(job.Inputs[DataInput]), &decoded))
	assert.Equal(t, "Ada", decoded.PersonalInfo.FirstName)
	assert.Equal(t, "1843-01-01", decoded.Experience[0].StartDate)
}

func TestAdapter_RenderSVG(t *testing.T) {
	engine := &fakeEngine{svg: []byte("<svg/>")}
	a := NewAdapter(templates.DefaultRegistry(), newFakeSources(), engine)

	svg, err := a.RenderSVG(context.Background(), sampleData(), "modern")
	require.NoError(t, err)
	assert.Equal(t, []byte("<svg/>"), svg)
}

func TestAdapter_Failures(t *testing.T) {
	tests := []struct {
		name       string
		templateID string
		src        func() *fakeSources
		engineErr  error
		wantCause  error
	}{
		{
			name:       "unknown template",
			templateID: "fancy",
			src:        newFakeSources,
			wantCause:  templates.ErrUnknownTemplate,
		},
		{
			name:       "missing document source",
			templateID: "modern",
			src: func() *fakeSources {
				s := newFakeSources()
				delete(s.templates, "modern")
				return s
			},
			wantCause: sources.ErrNotFound,
		},
		{
			name:       "missing library file",
			templateID: "modern",
			src: func() *fakeSources {
				s := newFakeSources()
				delete(s.libraries["basic-resume"], templates.LibraryImplFile)
				return s
			},
			wantCause: sources.ErrNotFound,
		},
		{
			name:       "engine failure",
			templateID: "modern",
			src:        newFakeSources,
			engineErr:  &EngineError{Message: "typst compilation failed", Stderr: "error: unknown variable"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := &fakeEngine{err: tt.engineErr}
			a := NewAdapter(templates.DefaultRegistry(), tt.src(), engine)

			_, err := a.RenderPDF(context.Background(), sampleData(), tt.templateID)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrCompilationFailed))

			var ce *CompilationError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, FormatPDF, ce.Format)
			if tt.wantCause != nil {
				assert.True(t, errors.Is(err, tt.wantCause))
				assert.Zero(t, engine.calls, "engine must not run when preparation fails")
			}
		})
	}
}

func TestAdapter_PDFCache(t *testing.T) {
	cache, err := artifacts.NewMemoryCache(4)
	require.NoError(t, err)
	engine := &fakeEngine{pdf: []byte("%PDF")}
	reg := prometheus.NewRegistry()
	metrics := NewMetrics("test", reg)
	a := NewAdapter(templates.DefaultRegistry(), newFakeSources(), engine, WithCache(cache), WithMetrics(metrics))

	ctx := context.Background()
	_, err = a.RenderPDF(ctx, sampleData(), "modern")
	require.NoError(t, err)
	_, err = a.RenderPDF(ctx, sampleData(), "modern")
	require.NoError(t, err)
	assert.Equal(t, 1, engine.calls)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.cacheHits))

	other := sampleData()
	other.PersonalInfo.FirstName = "Grace"
	_, err = a.RenderPDF(ctx, other, "modern")
	require.NoError(t, err)
	assert.Equal(t, 2, engine.calls)
}

func TestAdapter_PDFCacheMissesAfterSourceEdit(t *testing.T) {
	cache, err := artifacts.NewMemoryCache(8)
	require.NoError(t, err)
	engine := &fakeEngine{pdf: []byte("%PDF")}
	src := newFakeSources()
	a := NewAdapter(templates.DefaultRegistry(), src, engine, WithCache(cache))
	ctx := context.Background()

	_, err = a.RenderPDF(ctx, sampleData(), "modern")
	require.NoError(t, err)

	src.templates["modern"] += "\n= Edited"
	_, err = a.RenderPDF(ctx, sampleData(), "modern")
	require.NoError(t, err)
	assert.Equal(t, 2, engine.calls, "template edit invalidates the cached PDF")

	src.libraries["basic-resume"][templates.LibraryImplFile] = "#let resume(data) = [changed]"
	_, err = a.RenderPDF(ctx, sampleData(), "modern")
	require.NoError(t, err)
	assert.Equal(t, 3, engine.calls, "library edit invalidates the cached PDF")

	_, err = a.RenderPDF(ctx, sampleData(), "modern")
	require.NoError(t, err)
	assert.Equal(t, 3, engine.calls, "unchanged sources hit the cache")
}

func TestJob_CacheKey(t *testing.T) {
	job, err := BuildJob("doc", map[string]string{
		templates.LibraryEntryFile: "entry",
		templates.LibraryImplFile:  "impl",
	}, sampleData())
	require.NoError(t, err)

	same, err := BuildJob("doc", map[string]string{
		templates.LibraryImplFile:  "impl",
		templates.LibraryEntryFile: "entry",
	}, sampleData())
	require.NoError(t, err)
	assert.Equal(t, job.cacheKey(FormatPDF), same.cacheKey(FormatPDF))
	assert.NotEqual(t, job.cacheKey(FormatPDF), job.cacheKey(FormatSVG))

	swapped, err := BuildJob("doc", map[string]string{
		templates.LibraryEntryFile: "impl",
		templates.LibraryImplFile:  "entry",
	}, sampleData())
	require.NoError(t, err)
	assert.NotEqual(t, job.cacheKey(FormatPDF), swapped.cacheKey(FormatPDF))
}

func TestAdapter_FailuresAreNotCached(t *testing.T) {
	cache, err := artifacts.NewMemoryCache(4)
	require.NoError(t, err)
	engine := &fakeEngine{err: &EngineError{Message: "boom"}}
	a := NewAdapter(templates.DefaultRegistry(), newFakeSources(), engine, WithCache(cache))

	_, err = a.RenderPDF(context.Background(), sampleData(), "modern")
	require.Error(t, err)
	assert.Zero(t, cache.Len())
}

func TestMetrics_Outcomes(t *testing.T) {
	metrics := NewMetrics("test", prometheus.NewRegistry())
	engine := &fakeEngine{svg: []byte("<svg/>")}
	a := NewAdapter(templates.DefaultRegistry(), newFakeSources(), engine, WithMetrics(metrics))

	_, _ = a.RenderSVG(context.Background(), sampleData(), "modern")
	_, _ = a.RenderSVG(context.Background(), sampleData(), "unknown")

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.compilations.WithLabelValues(FormatSVG, "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.compilations.WithLabelValues(FormatSVG, "failure")))
}

func TestBuildJob_MissingLibraryFile(t *testing.T) {
	_, err := BuildJob("doc", map[string]string{templates.LibraryEntryFile: "x"}, nil)
	assert.Error(t, err)
}
