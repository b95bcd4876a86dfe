package ratelimit

import "strings"

// unlimited is returned for routes that are never throttled.
var unlimited = EndpointConfig{Path: "/health", Method: "GET"}

// MatchEndpoint picks the rule for a request. An exact path wins; otherwise
// the longest rule ending in "/" that prefixes path is used, so "/r/" covers
// "/r/{token}". A nil result means the default limit applies.
func MatchEndpoint(path string, method string, rules []EndpointConfig) *EndpointConfig {
	if path == unlimited.Path && method == unlimited.Method {
		rule := unlimited
		return &rule
	}

	var best *EndpointConfig
	for i := range rules {
		rule := &rules[i]
		if rule.Method != method {
			continue
		}
		if rule.Path == path {
			return rule
		}
		if !strings.HasSuffix(rule.Path, "/") || !strings.HasPrefix(path, rule.Path) {
			continue
		}
		if best == nil || len(rule.Path) > len(best.Path) {
			best = rule
		}
	}
	return best
}
