// Package dedup decides whether an incoming article has been seen before,
// either under the same canonical URL or as identical content republished
// under a different one.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// tracking params stripped during URL canonicalization.
var trackingParams = map[string]bool{
	"source":   true,
	"ref":      true,
	"campaign": true,
}

func isTrackingParam(key string) bool {
	return strings.HasPrefix(key, "utm_") || trackingParams[key]
}

// NormalizeURL canonicalizes an article URL so that tracking-decorated
// variants of the same page collapse to one key: the scheme, host and path
// are lowercased, utm_*/source/ref/campaign query params are dropped,
// remaining params are re-encoded in sorted order with their original case
// (query values can be case-sensitive identifiers), and the fragment and any
// trailing slash on the path are removed. An unparseable URL is returned
// trimmed and lowercased rather than rejected, so it still dedups against
// itself.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.ToLower(raw)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	q := u.Query()
	for key := range q {
		if isTrackingParam(strings.ToLower(key)) {
			q.Del(key)
		}
	}
	u.RawQuery = encodeSorted(q)

	u.Path = strings.ToLower(u.Path)
	u.Path = strings.TrimSuffix(u.Path, "/")

	return u.String()
}

// encodeSorted renders query params with keys in lexicographic order so the
// canonical form does not depend on map iteration.
func encodeSorted(q url.Values) string {
	if len(q) == 0 {
		return ""
	}
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		vals := q[k]
		sort.Strings(vals)
		for _, v := range vals {
			if sb.Len() > 0 {
				sb.WriteByte('&')
			}
			sb.WriteString(url.QueryEscape(k))
			sb.WriteByte('=')
			sb.WriteString(url.QueryEscape(v))
		}
	}
	return sb.String()
}

// HashContent returns the hex SHA-256 of the article body with all runs of
// whitespace collapsed to single spaces, so reflows and trailing newlines do
// not defeat cross-URL duplicate detection.
func HashContent(content string) string {
	normalized := strings.Join(strings.Fields(content), " ")
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}
