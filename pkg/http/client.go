package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

var errRedirectLimit = errors.New("redirect limit reached")

// ClientConfig represents HTTP client configuration
type ClientConfig struct {
	Timeout      time.Duration
	MaxRedirects int
	MaxBodySize  int64
	HostInterval time.Duration
	UserAgent    string
	BrowserHosts []string
	Headers      map[string]string
}

// DefaultConfig returns default HTTP client configuration
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		Timeout:      15 * time.Second,
		MaxRedirects: 5,
		MaxBodySize:  5 << 20,
		HostInterval: time.Second,
		BrowserHosts: []string{"consilium.europa.eu", "nato.int"},
		Headers:      make(map[string]string),
	}
}

// FetchOptions tunes a single fetch
type FetchOptions struct {
	// Profile selects the header set; empty selects by host
	Profile Profile
	// Referer is sent with the browser-like profile only
	Referer string
}

// Client fetches pages with header profiles, size and redirect limits, and per-host spacing
type Client struct {
	client *http.Client
	config *ClientConfig

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewClient creates a new HTTP client with the given configuration
func NewClient(config *ClientConfig) *Client {
	if config == nil {
		config = DefaultConfig()
	}

	c := &Client{
		config:   config,
		limiters: make(map[string]*rate.Limiter),
	}
	c.client = &http.Client{
		CheckRedirect: c.checkRedirect,
	}

	return c
}

func (c *Client) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) > c.config.MaxRedirects {
		return fmt.Errorf("%w after %d hops", errRedirectLimit, len(via)-1)
	}
	return nil
}

// ProfileFor returns the header profile used for host when none is requested explicitly
func (c *Client) ProfileFor(host string) Profile {
	for _, domain := range c.config.BrowserHosts {
		if hostMatches(host, domain) {
			return ProfileBrowser
		}
	}
	return ProfileGenericBot
}

// Fetch retrieves rawURL and returns its body as UTF-8 text.
// Every failure is returned as a *FetchError.
func (c *Client) Fetch(ctx context.Context, rawURL string, opts FetchOptions) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", &FetchError{Kind: KindNetwork, URL: rawURL, Err: fmt.Errorf("invalid URL")}
	}

	if err := c.wait(ctx, u.Hostname()); err != nil {
		return "", classifyTransportError(rawURL, err)
	}

	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", &FetchError{Kind: KindNetwork, URL: rawURL, Err: err}
	}

	profile := opts.Profile
	if profile == "" {
		profile = c.ProfileFor(u.Hostname())
	}
	c.applyHeaders(req, profile, opts.Referer)

	slog.Debug("Fetching page", "url", rawURL, "profile", profile)
	start := time.Now()

	resp, err := c.client.Do(req)
	if err != nil {
		return "", classifyTransportError(rawURL, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Debug("Failed to close response body", "url", rawURL, "error", closeErr)
		}
	}()

	if err := EnsureSuccess(resp); err != nil {
		// Drain a little so the connection can be reused
		_, _ = io.CopyN(io.Discard, resp.Body, 4096)
		return "", classifyTransportError(rawURL, err)
	}

	body, err := ReadBody(resp, c.config.MaxBodySize)
	if err != nil {
		return "", classifyTransportError(rawURL, err)
	}

	slog.Debug("Fetched page", "url", rawURL, "status", resp.StatusCode, "bytes", len(body), "duration", time.Since(start))
	return body, nil
}

func (c *Client) applyHeaders(req *http.Request, profile Profile, referer string) {
	for key, value := range profileHeaders(profile) {
		req.Header.Set(key, value)
	}

	if profile == ProfileBrowser {
		if referer != "" {
			req.Header.Set("Referer", referer)
		}
	} else if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	for key, value := range c.config.Headers {
		req.Header.Set(key, value)
	}
}

// wait blocks until the per-host limiter admits a request
func (c *Client) wait(ctx context.Context, host string) error {
	if c.config.HostInterval <= 0 {
		return nil
	}

	c.mu.Lock()
	limiter, ok := c.limiters[strings.ToLower(host)]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(c.config.HostInterval), 1)
		c.limiters[strings.ToLower(host)] = limiter
	}
	c.mu.Unlock()

	return limiter.Wait(ctx)
}
