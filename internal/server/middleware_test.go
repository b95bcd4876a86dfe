package server

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/jonathan/resume-builder/internal/observability"
	"github.com/jonathan/resume-builder/internal/server/ratelimit"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCORS_AllowedOrigin(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/templates", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(w, req)

	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Values("Vary"), "Origin")
}

func TestCORS_DisallowedOrigin(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/templates", nil)
	req.Header.Set("Origin", "https://evil.example")
	w := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_Wildcard(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.AllowedOrigins = []string{"*"} })

	req := httptest.NewRequest(http.MethodOptions, "/api/compile/pdf", nil)
	req.Header.Set("Origin", "https://anywhere.example")
	w := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://anywhere.example", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Zero(t, env.compiler.calls, "preflight does not reach the handler")
}

func TestRateLimit_Exceeded(t *testing.T) {
	env := newTestEnv(t, withRateLimit(&ratelimit.Config{
		Enabled:         true,
		DefaultLimit:    2,
		DefaultWindow:   time.Minute,
		CleanupInterval: time.Minute,
	}))

	for i := 0; i < 2; i++ {
		w := env.do(http.MethodGet, "/api/templates", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	}

	w := env.do(http.MethodGet, "/api/templates", nil)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	retry, err := strconv.Atoi(w.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, retry, 1)
	assert.Equal(t, "rate_limit_exceeded", errorBody(t, w))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
}

func TestRateLimit_HealthIsExempt(t *testing.T) {
	env := newTestEnv(t, withRateLimit(&ratelimit.Config{
		Enabled:         true,
		DefaultLimit:    1,
		DefaultWindow:   time.Minute,
		CleanupInterval: time.Minute,
	}))

	for i := 0; i < 5; i++ {
		w := env.do(http.MethodGet, "/health", nil)
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestLogging_RecordsRouteMetrics(t *testing.T) {
	metrics := observability.NewCollector()
	env := newTestEnv(t, func(c *Config) { c.Metrics = metrics })

	env.do(http.MethodGet, "/api/templates/modern", nil)
	env.do(http.MethodGet, "/api/templates/classic", nil)
	env.do(http.MethodGet, "/nowhere", nil)

	assert.Equal(t, float64(2), testutil.ToFloat64(
		metrics.HTTPRequests.WithLabelValues("GET", "GET /api/templates/{templateId}", "200")))
	assert.Equal(t, float64(1), testutil.ToFloat64(
		metrics.HTTPRequests.WithLabelValues("GET", "unmatched", "404")))

	w := env.do(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "resume_builder_http_request_duration_seconds")
}
