package parser

import (
	"net/url"
	"strings"
)

// resolveURL resolves a potentially relative href against a base URL.
func resolveURL(baseURL, href string) string {
	base, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return ""
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

// siteRoot returns scheme://host of raw, or raw itself when it has no host.
func siteRoot(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return strings.TrimRight(raw, "/")
	}
	return u.Scheme + "://" + u.Host
}

// sameSite reports whether candidate lives on root's host or one of its subdomains.
func sameSite(root, candidate string) bool {
	r, err := url.Parse(root)
	if err != nil {
		return false
	}
	c, err := url.Parse(candidate)
	if err != nil {
		return false
	}
	rh := strings.TrimPrefix(strings.ToLower(r.Hostname()), "www.")
	ch := strings.TrimPrefix(strings.ToLower(c.Hostname()), "www.")
	return ch == rh || strings.HasSuffix(ch, "."+rh)
}
