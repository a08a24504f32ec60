package domain

import (
	"net/url"
	"strings"
)

// NormalizeURL lowercases scheme and host, drops the fragment and trailing slash.
// Unparseable input is returned trimmed.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.TrimSuffix(raw, "/")
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""
	return strings.TrimSuffix(u.String(), "/")
}

// MatchKey is the normalized URL without its scheme, the form ledgers compare on.
func MatchKey(raw string) string {
	n := NormalizeURL(raw)
	if i := strings.Index(n, "://"); i >= 0 {
		n = n[i+3:]
	}
	return n
}

// URLsMatch is the ledger match rule: equal match keys, or either key
// contains the other. Protocol and query differences still match.
func URLsMatch(a, b string) bool {
	ka, kb := MatchKey(a), MatchKey(b)
	if ka == "" || kb == "" {
		return false
	}
	return ka == kb || strings.Contains(ka, kb) || strings.Contains(kb, ka)
}
