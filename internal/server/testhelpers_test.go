package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/resume-builder/internal/compiler"
	"github.com/jonathan/resume-builder/internal/config"
	"github.com/jonathan/resume-builder/internal/db"
	"github.com/jonathan/resume-builder/internal/livepreview"
	"github.com/jonathan/resume-builder/internal/server/ratelimit"
	"github.com/jonathan/resume-builder/internal/sources"
	"github.com/jonathan/resume-builder/internal/templates"
	"github.com/jonathan/resume-builder/internal/types"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// fakeCompiler records what it was asked to compile.
type fakeCompiler struct {
	mu       sync.Mutex
	pdf      []byte
	svg      []byte
	err      error
	lastData types.FormattedData
	lastID   string
	calls    int
}

func (f *fakeCompiler) RenderPDF(_ context.Context, data types.FormattedData, templateID string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastData, f.lastID = data, templateID
	if f.err != nil {
		return nil, f.err
	}
	return f.pdf, nil
}

func (f *fakeCompiler) RenderSVG(_ context.Context, data types.FormattedData, templateID string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastData, f.lastID = data, templateID
	if f.err != nil {
		return nil, f.err
	}
	return f.svg, nil
}

// memStore is an in-memory Store.
type memStore struct {
	mu       sync.Mutex
	profiles map[uuid.UUID]*db.Profile
	resumes  map[uuid.UUID]*db.Resume
	failWith error
}

func newMemStore() *memStore {
	return &memStore{
		profiles: make(map[uuid.UUID]*db.Profile),
		resumes:  make(map[uuid.UUID]*db.Resume),
	}
}

func (m *memStore) CreateProfile(_ context.Context, in db.ProfileInput) (*db.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	now := time.Now()
	p := &db.Profile{ID: uuid.New(), Name: in.Name, Email: in.Email, FormData: in.FormData, CreatedAt: now, UpdatedAt: now}
	m.profiles[p.ID] = p
	cp := *p
	return &cp, nil
}

func (m *memStore) GetProfile(_ context.Context, id uuid.UUID) (*db.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	p, ok := m.profiles[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) UpdateProfile(_ context.Context, id uuid.UUID, in db.ProfileInput) (*db.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	p.Name, p.Email, p.FormData, p.UpdatedAt = in.Name, in.Email, in.FormData, time.Now()
	cp := *p
	return &cp, nil
}

func (m *memStore) DeleteProfile(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.profiles[id]; !ok {
		return db.ErrNotFound
	}
	delete(m.profiles, id)
	for rid, r := range m.resumes {
		if r.ProfileID == id {
			delete(m.resumes, rid)
		}
	}
	return nil
}

func (m *memStore) CreateResume(_ context.Context, profileID uuid.UUID, in db.ResumeInput) (*db.Resume, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.profiles[profileID]; !ok {
		return nil, db.ErrNotFound
	}
	now := time.Now()
	r := &db.Resume{ID: uuid.New(), ProfileID: profileID, Title: in.Title, TemplateID: in.TemplateID, FormData: in.FormData, CreatedAt: now, UpdatedAt: now}
	m.resumes[r.ID] = r
	cp := *r
	return &cp, nil
}

func (m *memStore) GetResume(_ context.Context, id uuid.UUID) (*db.Resume, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.resumes[id]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (m *memStore) ListResumes(_ context.Context, profileID uuid.UUID) ([]db.Resume, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []db.Resume{}
	for _, r := range m.resumes {
		if r.ProfileID == profileID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *memStore) UpdateResume(_ context.Context, id uuid.UUID, in db.ResumeInput) (*db.Resume, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.resumes[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	r.Title, r.TemplateID, r.FormData, r.UpdatedAt = in.Title, in.TemplateID, in.FormData, time.Now()
	cp := *r
	return &cp, nil
}

func (m *memStore) SetResumePublic(_ context.Context, id uuid.UUID, public bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.resumes[id]
	if !ok {
		return db.ErrNotFound
	}
	r.IsPublic = public
	return nil
}

func (m *memStore) DeleteResume(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.resumes[id]; !ok {
		return db.ErrNotFound
	}
	delete(m.resumes, id)
	return nil
}

type fakeThumbnailer struct {
	lastSVG string
	err     error
}

func (f *fakeThumbnailer) RenderPNG(_ context.Context, svg string) ([]byte, error) {
	f.lastSVG = svg
	if f.err != nil {
		return nil, f.err
	}
	return []byte("\x89PNG fake"), nil
}

// stubPreview renders one page naming the first name.
type stubPreview struct{}

func (stubPreview) Initialize(context.Context) error { return nil }

func (stubPreview) RenderToSVG(_ context.Context, req livepreview.RenderRequest) ([]string, error) {
	if req.TemplateID == "broken" {
		return nil, errors.New("render failed")
	}
	return []string{"<svg>" + req.FormData.PersonalInfo.FirstName + "</svg>"}, nil
}

type testEnv struct {
	server   *Server
	compiler *fakeCompiler
	store    *memStore
	thumbs   *fakeThumbnailer
}

type envOption func(*Config)

func withoutStore() envOption { return func(c *Config) { c.Store = nil } }

func withRateLimit(rl *ratelimit.Config) envOption { return func(c *Config) { c.RateLimit = rl } }

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	share, err := NewShareService(config.ShareConfig{Secret: testSecret, ExpirationHours: 1})
	require.NoError(t, err)

	env := &testEnv{
		compiler: &fakeCompiler{pdf: []byte("%PDF-1.7 fake"), svg: []byte(`<svg xmlns="http://www.w3.org/2000/svg" width="595.276" height="841.89"></svg>`)},
		store:    newMemStore(),
		thumbs:   &fakeThumbnailer{},
	}
	cfg := Config{
		Port:           0,
		AllowedOrigins: []string{"http://localhost:3000"},
		Registry:       templates.DefaultRegistry(),
		Sources:        sources.NewStore("../../sources/templates", "../../sources/libraries"),
		Compiler:       env.compiler,
		Store:          env.store,
		Share:          share,
		Thumbnails:     env.thumbs,
		Preview:        stubPreview{},
		Debounce:       20 * time.Millisecond,
		RateLimit:      &ratelimit.Config{Enabled: false},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	s, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(s.rateLimiter.Stop)
	env.server = s
	return env
}

func (e *testEnv) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		_ = json.NewEncoder(&buf).Encode(b)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.RemoteAddr = "192.0.2.1:1234"
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), "body: %s", w.Body.String())
	return v
}

func errorBody(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	return decodeBody[map[string]any](t, w)["error"].(string)
}

// compileErr mimics the adapter's generic failure.
func compileErr(cause error) error {
	return &compiler.CompilationError{Format: compiler.FormatPDF, TemplateID: "modern", Cause: cause}
}
