// Package urlutils resolves and validates the links scraped from source pages.
package urlutils

import (
	"net/url"
	"strings"
)

// IsHTTPURL reports whether s is an absolute http or https URL with a host
func IsHTTPURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

// ResolveURL resolves ref against baseURL. Absolute refs are returned unchanged.
func ResolveURL(baseURL, ref string) (string, error) {
	rel, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	if rel.IsAbs() {
		return ref, nil
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(rel).String(), nil
}

// ResolveLink turns an href found on a page into an absolute item link.
// Fragment-only, script and mail links are rejected, as is anything that
// does not end up as an http(s) URL.
func ResolveLink(baseURL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}

	lower := strings.ToLower(href)
	for _, prefix := range []string{"javascript:", "mailto:", "tel:", "data:"} {
		if strings.HasPrefix(lower, prefix) {
			return "", false
		}
	}

	resolved, err := ResolveURL(baseURL, href)
	if err != nil || !IsHTTPURL(resolved) {
		return "", false
	}
	return resolved, true
}
