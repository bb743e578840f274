package main

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/lepinkainen/eurofeeds/internal/config"
	"github.com/lepinkainen/eurofeeds/internal/feedgen"
	"github.com/lepinkainen/eurofeeds/internal/metrics"
	"github.com/lepinkainen/eurofeeds/internal/sites"
	"github.com/lepinkainen/eurofeeds/pkg/cache"
	"github.com/lepinkainen/eurofeeds/pkg/extract"
	"github.com/lepinkainen/eurofeeds/pkg/feed"
	httputil "github.com/lepinkainen/eurofeeds/pkg/http"
	"github.com/lepinkainen/eurofeeds/pkg/providers"
)

// app holds the wired components shared by every command
type app struct {
	config    *config.Config
	registry  *providers.ProviderRegistry
	service   *feedgen.Service
	renderer  *feed.Renderer
	gatherer  *prometheus.Registry
	collector *metrics.Collector
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(reg)

	defs, err := sites.Load(ctx, sites.LoadOptions{
		Path:     cfg.Sites.Path,
		URL:      cfg.Sites.URL,
		Language: cfg.Feed.Language,
	})
	if err != nil {
		return nil, err
	}

	registry := providers.NewProviderRegistry()
	err = sites.Register(registry, defs, sites.Dependencies{
		Fetcher:   httputil.NewClient(cfg.ClientConfig()),
		Extractor: extract.New(),
		Metrics:   collector,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register sites: %w", err)
	}

	if cfg.Feed.TemplateDir != "" {
		feed.SetTemplateOverrideFS(os.DirFS(cfg.Feed.TemplateDir))
	}
	renderer, err := feed.NewRenderer(cfg.Feed.Generator, feed.WithCreator(cfg.Feed.Creator))
	if err != nil {
		return nil, fmt.Errorf("failed to load feed template: %w", err)
	}

	feedCache := cache.New(cfg.Cache.Expiry, cache.WithFallbackCaching(cfg.Cache.CacheFallback))
	metrics.RegisterCacheSize(reg, feedCache.Len)

	service := feedgen.NewService(registry, feedCache, renderer,
		feedgen.WithMetrics(collector),
		feedgen.WithSelfURL(cfg.SelfURL),
	)

	return &app{
		config:    cfg,
		registry:  registry,
		service:   service,
		renderer:  renderer,
		gatherer:  reg,
		collector: collector,
	}, nil
}
