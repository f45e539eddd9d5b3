package shared

import "strings"

// MatchRoute reports whether path matches any of the configured patterns.
// A pattern is either an exact path or a prefix wildcard such as
// "/api/public/*", which matches every path under that prefix.
func MatchRoute(patterns []string, path string) bool {
	for _, pattern := range patterns {
		if pattern == "" {
			continue
		}
		if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
			if path == prefix || strings.HasPrefix(path, prefix+"/") {
				return true
			}
			continue
		}
		if path == pattern {
			return true
		}
	}
	return false
}
