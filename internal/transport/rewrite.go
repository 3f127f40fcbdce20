// Package transport wires every outgoing portal API call with the
// session's authorization context: canonical base URL and API prefix,
// bearer token, active hospital scope and a correlation id. It also
// watches responses for the two boundary failures (401, 403) that demand
// a navigation side effect.
package transport

import "strings"

// DefaultAPIPrefix is the canonical API path prefix.
const DefaultAPIPrefix = "/api"

// localizationAssetsPrefix marks static translation bundles that must
// never be rewritten or decorated.
const localizationAssetsPrefix = "/assets/i18n/"

// RewritePath normalizes a relative request path under the API prefix.
// A single leading occurrence of the prefix is stripped case-insensitively
// before the canonical prefix is prepended, so already-prefixed paths come
// out identical to bare ones. Prefix matches only whole leading segments:
// "/apix/..." is left alone.
func RewritePath(prefix, path string) string {
	if prefix == "" {
		prefix = DefaultAPIPrefix
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if hasPrefixFold(path, prefix) {
		rest := path[len(prefix):]
		if rest == "" || strings.HasPrefix(rest, "/") {
			path = rest
		}
	}
	if path == "" {
		return prefix
	}
	return prefix + path
}

// IsLocalizationAsset reports whether the path addresses a static
// translation bundle, which passes through unmodified.
func IsLocalizationAsset(path string) bool {
	return hasPrefixFold(path, localizationAssetsPrefix)
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
