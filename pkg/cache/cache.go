// Package cache keeps rendered feed documents in memory for a fixed time.
package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/lepinkainen/eurofeeds/pkg/feed"
)

// DefaultExpiry is how long a rendered document stays fresh
const DefaultExpiry = 30 * time.Minute

// RenderFunc produces a document on a cache miss
type RenderFunc func(ctx context.Context) (*feed.Rendered, error)

type entry struct {
	doc     *feed.Rendered
	expires time.Time
}

// FeedCache maps feed keys to rendered documents. Concurrent misses for the same
// key share a single render.
type FeedCache struct {
	mu      sync.Mutex
	entries map[string]entry
	group   singleflight.Group

	expiry        time.Duration
	cacheFallback bool
	now           func() time.Time
}

// Option configures a FeedCache
type Option func(*FeedCache)

// WithClock replaces the time source used for expiry
func WithClock(now func() time.Time) Option {
	return func(c *FeedCache) {
		c.now = now
	}
}

// WithFallbackCaching controls whether fallback documents are stored
func WithFallbackCaching(enabled bool) Option {
	return func(c *FeedCache) {
		c.cacheFallback = enabled
	}
}

// New creates a cache whose entries live for expiry. Non-positive expiry uses DefaultExpiry.
func New(expiry time.Duration, opts ...Option) *FeedCache {
	if expiry <= 0 {
		expiry = DefaultExpiry
	}

	c := &FeedCache{
		entries: make(map[string]entry),
		expiry:  expiry,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Expiry returns the configured entry lifetime
func (c *FeedCache) Expiry() time.Duration {
	return c.expiry
}

// Get returns the fresh document stored under key
func (c *FeedCache) Get(key string) (*feed.Rendered, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !c.now().Before(e.expires) {
		delete(c.entries, key)
		return nil, false
	}
	return e.doc, true
}

// Put stores doc under key, replacing any previous entry
func (c *FeedCache) Put(key string, doc *feed.Rendered) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{doc: doc, expires: c.now().Add(c.expiry)}
}

// GetOrRender returns the cached document for key or renders and stores a new one.
// cached reports whether the document came from the cache. A failed render leaves
// no entry behind. The render runs detached from ctx so one caller giving up does
// not fail the others waiting on it.
func (c *FeedCache) GetOrRender(ctx context.Context, key string, render RenderFunc) (doc *feed.Rendered, cached bool, err error) {
	if doc, ok := c.Get(key); ok {
		slog.Debug("Cache hit", "key", key)
		return doc, true, nil
	}

	renderCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		if doc, ok := c.Get(key); ok {
			return doc, nil
		}

		doc, err := render(renderCtx)
		if err != nil {
			c.Invalidate(key)
			return nil, err
		}

		if doc.Fallback && !c.cacheFallback {
			slog.Debug("Not caching fallback document", "key", key)
			return doc, nil
		}
		c.Put(key, doc)
		return doc, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		return res.Val.(*feed.Rendered), false, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

// Invalidate removes the entry for key
func (c *FeedCache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Len returns the number of stored entries, fresh or not
func (c *FeedCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
