package ratelimit

import "strings"

// MatchEndpoint resolves the tier for a path and method. Exact path
// matches win over prefix matches (configs whose path ends in "/"); nil
// means the caller should fall back to the default limit. The health
// check is always unmetered so probes never get throttled.
func MatchEndpoint(path string, method string, configs []EndpointConfig) *EndpointConfig {
	if path == "/health" && method == "GET" {
		return &EndpointConfig{}
	}

	for i := range configs {
		if configs[i].Method == method && configs[i].Path == path {
			return &configs[i]
		}
	}
	for i := range configs {
		if configs[i].Method == method &&
			strings.HasSuffix(configs[i].Path, "/") &&
			strings.HasPrefix(path, configs[i].Path) {
			return &configs[i]
		}
	}
	return nil
}
