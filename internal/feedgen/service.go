// Package feedgen turns provider output into cached feed documents, substituting
// fallback items when a source fails or yields nothing.
package feedgen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lepinkainen/eurofeeds/internal/metrics"
	"github.com/lepinkainen/eurofeeds/pkg/cache"
	"github.com/lepinkainen/eurofeeds/pkg/extract"
	"github.com/lepinkainen/eurofeeds/pkg/feed"
	httputil "github.com/lepinkainen/eurofeeds/pkg/http"
	"github.com/lepinkainen/eurofeeds/pkg/providers"
)

// ErrUnknownFeed is returned for keys with no registered provider
var ErrUnknownFeed = errors.New("unknown feed")

// Outcome labels how a served document was produced
type Outcome string

const (
	OutcomeLive          Outcome = "live"
	OutcomeStatic        Outcome = "static"
	OutcomeFallbackEmpty Outcome = "fallback_empty"
	OutcomeFallbackError Outcome = "fallback_error"
	OutcomeCached        Outcome = "cached"
)

// Fallback reports whether documents with this outcome carry placeholder items
func (o Outcome) Fallback() bool {
	return o == OutcomeFallbackEmpty || o == OutcomeFallbackError
}

// Service serves rendered feeds by key
type Service struct {
	registry *providers.ProviderRegistry
	cache    *cache.FeedCache
	renderer *feed.Renderer
	metrics  metrics.Recorder
	selfURL  func(key string) string
	now      func() time.Time
}

// Option configures a Service
type Option func(*Service)

// WithMetrics records outcomes and render durations
func WithMetrics(m metrics.Recorder) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithSelfURL sets how the public URL of a feed is derived from its key
func WithSelfURL(fn func(key string) string) Option {
	return func(s *Service) {
		s.selfURL = fn
	}
}

// WithClock replaces the time source used to date fallback items
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a feed service
func NewService(registry *providers.ProviderRegistry, c *cache.FeedCache, renderer *feed.Renderer, opts ...Option) *Service {
	s := &Service{
		registry: registry,
		cache:    c,
		renderer: renderer,
		metrics:  metrics.Nop{},
		selfURL:  func(key string) string { return "/" + key },
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SelfURL returns the public URL of the feed with the given key
func (s *Service) SelfURL(key string) string {
	return s.selfURL(key)
}

// Renderer returns the renderer used for documents and error documents
func (s *Service) Renderer() *feed.Renderer {
	return s.renderer
}

// CacheExpiry returns how long served documents stay fresh
func (s *Service) CacheExpiry() time.Duration {
	return s.cache.Expiry()
}

// Feed returns the document for key in the requested format. Source failures are
// served as fallback documents; only unknown keys and render failures are errors.
func (s *Service) Feed(ctx context.Context, key string, format feed.Format) (*feed.Rendered, error) {
	info, err := s.registry.Get(key)
	if err != nil {
		if errors.Is(err, providers.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", key, ErrUnknownFeed)
		}
		return nil, err
	}

	doc, cached, err := s.cache.GetOrRender(ctx, cacheKey(key, format), func(ctx context.Context) (*feed.Rendered, error) {
		return s.render(ctx, info.Provider, format)
	})
	if err != nil {
		return nil, err
	}

	if cached {
		s.metrics.RecordFeedOutcome(key, string(OutcomeCached), len(doc.Items))
		slog.Debug("Serving cached feed", "feed", key, "format", format, "generated", doc.Generated)
	}
	return doc, nil
}

// Generate renders key bypassing the cache and returns the outcome
func (s *Service) Generate(ctx context.Context, key string, format feed.Format) (*feed.Rendered, Outcome, error) {
	info, err := s.registry.Get(key)
	if err != nil {
		if errors.Is(err, providers.ErrNotFound) {
			return nil, "", fmt.Errorf("%s: %w", key, ErrUnknownFeed)
		}
		return nil, "", err
	}

	return s.build(ctx, info.Provider, format)
}

// Items fetches the items a feed would carry, fallbacks included, without rendering
func (s *Service) Items(ctx context.Context, key string) ([]feed.Item, providers.Metadata, error) {
	info, err := s.registry.Get(key)
	if err != nil {
		if errors.Is(err, providers.ErrNotFound) {
			return nil, providers.Metadata{}, fmt.Errorf("%s: %w", key, ErrUnknownFeed)
		}
		return nil, providers.Metadata{}, err
	}

	p := info.Provider
	items, _, ch := s.collect(ctx, p)
	meta := p.Metadata()
	meta.Channel = ch
	if meta.MaxItems > 0 && len(items) > meta.MaxItems {
		items = items[:meta.MaxItems]
	}
	return items, meta, nil
}

func (s *Service) render(ctx context.Context, p providers.FeedProvider, format feed.Format) (*feed.Rendered, error) {
	doc, _, err := s.build(ctx, p, format)
	return doc, err
}

func (s *Service) build(ctx context.Context, p providers.FeedProvider, format feed.Format) (*feed.Rendered, Outcome, error) {
	start := time.Now()
	meta := p.Metadata()

	items, outcome, ch := s.collect(ctx, p)

	doc, err := s.renderer.RenderFormat(format, ch, items, s.selfURL(meta.Key), meta.MaxItems)
	if err != nil {
		slog.Error("Failed to render feed", "feed", meta.Key, "format", format, "error", err)
		return nil, outcome, fmt.Errorf("feed %s: %w", meta.Key, err)
	}
	doc.Fallback = outcome.Fallback()

	elapsed := time.Since(start)
	s.metrics.RecordRenderDuration(elapsed)
	s.metrics.RecordFeedOutcome(meta.Key, string(outcome), len(doc.Items))

	slog.Info("Generated feed",
		"feed", meta.Key,
		"format", format,
		"outcome", outcome,
		"items", len(doc.Items),
		"duration_ms", elapsed.Milliseconds())

	return doc, outcome, nil
}

// collect fetches items from p and applies the fallback policy
func (s *Service) collect(ctx context.Context, p providers.FeedProvider) ([]feed.Item, Outcome, feed.Channel) {
	meta := p.Metadata()
	ch := meta.Channel
	now := s.now()

	items, err := fetchItems(ctx, p)
	if err == nil && len(items) == 0 {
		err = extract.ErrExtractionEmpty
	}

	switch {
	case errors.Is(err, extract.ErrExtractionEmpty):
		slog.Warn("Feed source yielded no items, serving fallback", "feed", meta.Key, "reason", err)
		items = fallbackItems(p, now)
		if len(items) == 0 {
			items = []feed.Item{placeholderItem(meta, now)}
		}
		return items, OutcomeFallbackEmpty, ch

	case err != nil:
		slog.Warn("Feed source failed, serving fallback", "feed", meta.Key, "error", err)
		ch.Description = organization(meta) + " RSS feed - Scraping error encountered"
		items = append([]feed.Item{errorItem(meta, err, now)}, fallbackItems(p, now)...)
		return items, OutcomeFallbackError, ch

	case meta.Kind == providers.KindStatic:
		return items, OutcomeStatic, ch

	default:
		return items, OutcomeLive, ch
	}
}

// fetchItems calls the provider, converting a panic into an error. Renders run
// on singleflight goroutines where no HTTP recovery middleware can see them.
func fetchItems(ctx context.Context, p providers.FeedProvider) (items []feed.Item, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("Provider panicked", "feed", p.Metadata().Key, "panic", rec)
			items, err = nil, fmt.Errorf("provider panic: %v", rec)
		}
	}()
	return p.FetchItems(ctx)
}

func fallbackItems(p providers.FeedProvider, now time.Time) []feed.Item {
	fp, ok := p.(providers.FallbackProvider)
	if !ok {
		return nil
	}
	return fp.FallbackItems(now)
}

func errorItem(meta providers.Metadata, err error, now time.Time) feed.Item {
	org := organization(meta)

	reason := err.Error()
	var fe *httputil.FetchError
	if errors.As(err, &fe) {
		reason = fe.Reason()
	}

	return feed.Item{
		Title:       org + " - Scraping Error Detected",
		Link:        sourceLink(meta),
		Description: fmt.Sprintf("%s live scraping encountered an error: %s. Please check the official website manually.", org, reason),
		Category:    org + " Error",
		Published:   now.UTC(),
	}
}

func placeholderItem(meta providers.Metadata, now time.Time) feed.Item {
	org := organization(meta)

	return feed.Item{
		Title:       org + " - No Items Found",
		Link:        sourceLink(meta),
		Description: fmt.Sprintf("No items could be extracted from the %s website. Visit the official page for the latest updates.", org),
		Category:    org + " System",
		Published:   now.UTC(),
	}
}

func organization(meta providers.Metadata) string {
	if meta.Organization != "" {
		return meta.Organization
	}
	org, _, _ := strings.Cut(meta.Key, "/")
	return strings.ToUpper(org)
}

func sourceLink(meta providers.Metadata) string {
	if meta.SourceURL != "" {
		return meta.SourceURL
	}
	return meta.Channel.Link
}

// cacheKey keeps formats of one feed apart; RSS uses the bare key
func cacheKey(key string, format feed.Format) string {
	if format == feed.RSS || format == "" {
		return key
	}
	return key + "#" + string(format)
}
