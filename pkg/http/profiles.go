package http

import (
	"fmt"
	"strings"
)

// Profile names a set of request headers sent with a fetch
type Profile string

// Header profiles. Some sites reject anything that does not look like a browser.
const (
	ProfileGenericBot Profile = "generic-bot"
	ProfileBrowser    Profile = "browser-like"
)

const (
	// GenericUserAgent identifies the service honestly to sites that accept bots
	GenericUserAgent = "eurofeeds/1.0 (RSS aggregator compatible)"
	// BrowserUserAgent mimics a desktop Chrome
	BrowserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// acceptEncoding lists only the encodings ReadBody can decode
const acceptEncoding = "gzip, deflate"

// ParseProfile converts a configuration string to a Profile. Empty means "select by host".
func ParseProfile(s string) (Profile, error) {
	switch Profile(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return "", nil
	case ProfileGenericBot:
		return ProfileGenericBot, nil
	case ProfileBrowser:
		return ProfileBrowser, nil
	default:
		return "", fmt.Errorf("unknown header profile %q", s)
	}
}

func profileHeaders(p Profile) map[string]string {
	if p == ProfileBrowser {
		return map[string]string{
			"User-Agent":                BrowserUserAgent,
			"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,image/apng,*/*;q=0.8",
			"Accept-Language":           "en-US,en;q=0.9",
			"Accept-Encoding":           acceptEncoding,
			"Cache-Control":             "no-cache",
			"Pragma":                    "no-cache",
			"Sec-Fetch-Dest":            "document",
			"Sec-Fetch-Mode":            "navigate",
			"Sec-Fetch-Site":            "same-origin",
			"Sec-Fetch-User":            "?1",
			"Upgrade-Insecure-Requests": "1",
		}
	}

	return map[string]string{
		"User-Agent":      GenericUserAgent,
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language": "en-US,en;q=0.9",
		"Accept-Encoding": acceptEncoding,
	}
}

// hostMatches reports whether host equals domain or is a subdomain of it
func hostMatches(host, domain string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	domain = strings.ToLower(strings.TrimPrefix(domain, "."))
	return host == domain || strings.HasSuffix(host, "."+domain)
}
