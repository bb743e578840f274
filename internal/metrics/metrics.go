// Package metrics collects and exposes Prometheus metrics.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httputil "github.com/lepinkainen/eurofeeds/pkg/http"
)

// Recorder is the metrics interface used by the site providers, the feed
// service and the HTTP layer.
type Recorder interface {
	RecordFetch(feedKey string, err error, duration time.Duration)
	RecordFeedOutcome(feedKey, outcome string, items int)
	RecordRenderDuration(duration time.Duration)
	RecordHTTPStatus(statusCode int)
}

// Collector records metrics into Prometheus.
type Collector struct {
	fetches        *prometheus.CounterVec
	fetchLatency   prometheus.Histogram
	outcomes       *prometheus.CounterVec
	itemsServed    *prometheus.CounterVec
	renderDuration prometheus.Histogram
	httpStatus     *prometheus.CounterVec
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eurofeeds_fetch_total",
			Help: "Source page fetches by feed and result",
		}, []string{"feed", "result"}),
		fetchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "eurofeeds_fetch_latency_seconds",
			Help:    "Source page fetch latency in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eurofeeds_feed_outcome_total",
			Help: "Feed requests by feed and outcome (live, static, fallback_empty, fallback_error, cached)",
		}, []string{"feed", "outcome"}),
		itemsServed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eurofeeds_items_rendered_total",
			Help: "Items written into rendered documents",
		}, []string{"feed"}),
		renderDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "eurofeeds_render_duration_seconds",
			Help:    "Time spent producing a feed document on a cache miss",
			Buckets: prometheus.DefBuckets,
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eurofeeds_http_status_total",
			Help: "HTTP responses by status code",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.fetches,
		c.fetchLatency,
		c.outcomes,
		c.itemsServed,
		c.renderDuration,
		c.httpStatus,
	)

	return c
}

// RegisterCacheSize exposes the number of stored feed documents as a gauge read at scrape time
func RegisterCacheSize(reg prometheus.Registerer, size func() int) {
	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "eurofeeds_cache_entries",
		Help: "Rendered feed documents held in the cache",
	}, func() float64 {
		return float64(size())
	}))
}

// RecordFetch records one source fetch. The result label is "ok" or the fetch error kind.
func (c *Collector) RecordFetch(feedKey string, err error, duration time.Duration) {
	c.fetches.WithLabelValues(feedKey, fetchResult(err)).Inc()
	c.fetchLatency.Observe(duration.Seconds())
}

// RecordFeedOutcome records how a feed request was answered
func (c *Collector) RecordFeedOutcome(feedKey, outcome string, items int) {
	c.outcomes.WithLabelValues(feedKey, outcome).Inc()
	if items > 0 {
		c.itemsServed.WithLabelValues(feedKey).Add(float64(items))
	}
}

// RecordRenderDuration records the time spent on a cache miss
func (c *Collector) RecordRenderDuration(duration time.Duration) {
	c.renderDuration.Observe(duration.Seconds())
}

// RecordHTTPStatus records a response status code
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

func fetchResult(err error) string {
	if err == nil {
		return "ok"
	}
	var fe *httputil.FetchError
	if errors.As(err, &fe) {
		return fe.Kind.String()
	}
	return "error"
}

// Handler returns the HTTP handler for Prometheus scrapes.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop discards everything. It is used by one-shot CLI commands and tests.
type Nop struct{}

func (Nop) RecordFetch(string, error, time.Duration) {}
func (Nop) RecordFeedOutcome(string, string, int)    {}
func (Nop) RecordRenderDuration(time.Duration)       {}
func (Nop) RecordHTTPStatus(int)                     {}
