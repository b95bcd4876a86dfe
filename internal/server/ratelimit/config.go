package ratelimit

import (
	"net/http"
	"strings"
	"time"
)

// EndpointConfig is the token bucket rule for one route and method.
// A Path ending in "/" also covers every path beneath it.
type EndpointConfig struct {
	Path   string
	Method string
	Limit  int // requests per Window
	Window time.Duration
	Burst  int // zero means Limit
}

// DefaultConfig returns an enabled configuration with the default limits.
func DefaultConfig() *Config {
	return &Config{
		Enabled:         true,
		DefaultLimit:    1000,
		DefaultWindow:   time.Minute,
		CleanupInterval: 5 * time.Minute,
		Whitelist:       map[string]bool{},
		Blacklist:       map[string]bool{},
		EndpointConfigs: DefaultEndpointConfigs(),
	}
}

// DefaultEndpointConfigs returns the built-in per-route rules. Compiles and
// artifact downloads start the typesetting engine and are the tightest;
// profile and resume writes come next. Template source reads fall through
// to the default limit and /health is never limited.
func DefaultEndpointConfigs() []EndpointConfig {
	perMinute := func(path, method string, limit, burst int) EndpointConfig {
		return EndpointConfig{Path: path, Method: method, Limit: limit, Window: time.Minute, Burst: burst}
	}

	rules := []EndpointConfig{
		perMinute("/api/compile/pdf", http.MethodPost, 60, 5),
		perMinute("/api/compile/svg", http.MethodPost, 60, 5),
		perMinute("/api/resumes/", http.MethodGet, 120, 10),
		perMinute("/r/", http.MethodGet, 120, 10),
		perMinute("/api/profiles", http.MethodPost, 100, 10),
	}
	for _, prefix := range []string{"/api/profiles/", "/api/resumes/"} {
		for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete} {
			rules = append(rules, perMinute(prefix, method, 100, 10))
		}
	}
	return rules
}

// ParseIPList parses a comma-separated list of IP addresses into a map.
func ParseIPList(list string) map[string]bool {
	result := make(map[string]bool)
	for _, ip := range strings.Split(list, ",") {
		ip = strings.TrimSpace(ip)
		if ip != "" {
			result[ip] = true
		}
	}
	return result
}
