package cache

import (
	"net/url"
	"sort"
	"strings"
)

// Tracking and share parameters that never change which playlist a URL
// points at. Stripping them keeps cache keys stable across share links.
var trackingParams = map[string]struct{}{
	"si":           {},
	"utm_source":   {},
	"utm_medium":   {},
	"utm_campaign": {},
	"utm_term":     {},
	"utm_content":  {},
	"nd":           {},
	"ls":           {},
	"app":          {},
	"at":           {},
	"itscg":        {},
	"itsct":        {},
}

// CanonicalURL normalizes a playlist URL for use inside a cache key:
// lowercase scheme and host, tracking parameters removed, remaining query
// parameters sorted, trailing slash dropped. Non-URL input (a bare Spotify
// playlist ID) is returned unchanged.
func CanonicalURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return raw
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.Path = strings.TrimRight(u.Path, "/")

	q := u.Query()
	for k := range q {
		if _, drop := trackingParams[strings.ToLower(k)]; drop {
			q.Del(k)
		}
	}
	u.RawQuery = sortedEncode(q)

	return u.String()
}

// sortedEncode is url.Values.Encode with deterministic ordering of repeated
// values as well as keys.
func sortedEncode(q url.Values) string {
	if len(q) == 0 {
		return ""
	}
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		vals := append([]string(nil), q[k]...)
		sort.Strings(vals)
		for _, v := range vals {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(k))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String()
}
