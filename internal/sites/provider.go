package sites

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lepinkainen/eurofeeds/internal/metrics"
	"github.com/lepinkainen/eurofeeds/pkg/extract"
	"github.com/lepinkainen/eurofeeds/pkg/feed"
	httputil "github.com/lepinkainen/eurofeeds/pkg/http"
	"github.com/lepinkainen/eurofeeds/pkg/providers"
)

// Fetcher retrieves a page as UTF-8 text
type Fetcher interface {
	Fetch(ctx context.Context, url string, opts httputil.FetchOptions) (string, error)
}

// ScrapeProvider fetches a site's sources and extracts items from the first one that answers
type ScrapeProvider struct {
	providers.BaseProvider

	sources   []string
	rule      extract.Rule
	options   httputil.FetchOptions
	fetcher   Fetcher
	extractor *extract.Extractor
	metrics   metrics.Recorder
}

// FetchItems tries each source in order. The error of the last source is
// returned when none can be fetched.
func (p *ScrapeProvider) FetchItems(ctx context.Context) ([]feed.Item, error) {
	key := p.Meta.Key

	var lastErr error
	for _, source := range p.sources {
		start := time.Now()
		raw, err := p.fetcher.Fetch(ctx, source, p.options)
		p.metrics.RecordFetch(key, err, time.Since(start))
		if err != nil {
			slog.Warn("Source fetch failed", "feed", key, "url", source, "error", err)
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}

		var items []feed.Item
		if p.Meta.Kind == providers.KindFeed {
			items = p.extractor.ExtractFeed(raw, &p.rule)
		} else {
			items = p.extractor.Extract(raw, &p.rule)
		}

		slog.Info("Extracted items", "feed", key, "url", source, "items", len(items), "bytes", len(raw))
		return items, nil
	}

	if lastErr == nil {
		lastErr = errors.New("no sources configured")
	}
	return nil, lastErr
}

// StaticProvider serves configured items without any network access
type StaticProvider struct {
	providers.BaseProvider

	items []providers.StaticItem
	now   func() time.Time
}

// FetchItems returns the configured items dated relative to now
func (p *StaticProvider) FetchItems(context.Context) ([]feed.Item, error) {
	now := p.now()
	items := make([]feed.Item, len(p.items))
	for i, s := range p.items {
		items[i] = s.At(now)
		if items[i].Category == "" {
			items[i].Category = p.Meta.Channel.Category
		}
	}
	return items, nil
}

// Dependencies are the shared services providers are built with
type Dependencies struct {
	Fetcher   Fetcher
	Extractor *extract.Extractor
	Metrics   metrics.Recorder
	Now       func() time.Time
}

// NewProvider builds the provider for a validated definition
func NewProvider(d Definition, deps Dependencies) (providers.FeedProvider, error) {
	if deps.Metrics == nil {
		deps.Metrics = metrics.Nop{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	base := providers.BaseProvider{Meta: d.Metadata(), Fallback: d.Fallback}

	switch d.Kind {
	case providers.KindStatic:
		return &StaticProvider{BaseProvider: base, items: d.Items, now: deps.Now}, nil
	case providers.KindHTML, providers.KindFeed:
		if deps.Fetcher == nil || deps.Extractor == nil {
			return nil, fmt.Errorf("site %s: fetcher and extractor are required", d.Key())
		}
		profile, err := httputil.ParseProfile(d.Profile)
		if err != nil {
			return nil, fmt.Errorf("site %s: %w", d.Key(), err)
		}
		return &ScrapeProvider{
			BaseProvider: base,
			sources:      d.Sources,
			rule:         d.Rule,
			options:      httputil.FetchOptions{Profile: profile, Referer: d.Referer},
			fetcher:      deps.Fetcher,
			extractor:    deps.Extractor,
			metrics:      deps.Metrics,
		}, nil
	default:
		return nil, fmt.Errorf("site %s: unknown kind %q", d.Key(), d.Kind)
	}
}

// Register builds a provider for every definition and adds it to registry
func Register(registry *providers.ProviderRegistry, defs []Definition, deps Dependencies) error {
	for _, d := range defs {
		p, err := NewProvider(d, deps)
		if err != nil {
			return err
		}
		if err := registry.Register(p, d.Description); err != nil {
			return err
		}
	}

	slog.Debug("Registered sites", "count", len(defs))
	return nil
}
