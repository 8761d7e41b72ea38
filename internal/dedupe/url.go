package dedupe

import (
	"net/url"
	"sort"
	"strings"
)

// Query parameters that carry tracking state, not identity. Two links
// to the same event routinely differ only in these.
var trackingParams = map[string]bool{
	"ref":        true,
	"fbclid":     true,
	"gclid":      true,
	"mc_cid":     true,
	"mc_eid":     true,
	"mtm_source": true,
}

// NormalizeURL reduces an event URL to its identity-relevant form:
// scheme-insensitive, www-insensitive, no trailing slash, tracking
// query parameters removed, remaining parameters sorted.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		// Not parseable as an absolute URL; fall back to string cleanup.
		s := strings.ToLower(raw)
		s = strings.TrimPrefix(s, "https://")
		s = strings.TrimPrefix(s, "http://")
		s = strings.TrimPrefix(s, "www.")
		return strings.TrimRight(s, "/")
	}

	host := strings.ToLower(strings.TrimPrefix(u.Host, "www."))
	path := strings.TrimRight(u.Path, "/")

	query := u.Query()
	for param := range query {
		if trackingParams[param] || strings.HasPrefix(param, "utm_") {
			query.Del(param)
		}
	}

	normalized := host + strings.ToLower(path)
	if len(query) > 0 {
		keys := make([]string, 0, len(query))
		for k := range query {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]string, 0, len(keys))
		for _, k := range keys {
			for _, v := range query[k] {
				pairs = append(pairs, k+"="+v)
			}
		}
		normalized += "?" + strings.Join(pairs, "&")
	}
	return normalized
}
