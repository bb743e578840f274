// Package providers defines feed sources and the registry they are looked up in.
package providers

import (
	"context"
	"time"

	"github.com/lepinkainen/eurofeeds/pkg/feed"
)

// Kind tells how a provider obtains its items
type Kind string

const (
	KindHTML   Kind = "html"
	KindFeed   Kind = "feed"
	KindStatic Kind = "static"
)

// Metadata describes the feed a provider produces
type Metadata struct {
	// Key is "organization/feed-name"
	Key string
	// Organization is the display name used in diagnostics, e.g. "EEAS"
	Organization string
	Kind         Kind
	Channel      feed.Channel
	MaxItems     int
	// SourceURL is the primary page scraped, linked from error items
	SourceURL string
}

// FeedProvider defines the interface for a feed source.
type FeedProvider interface {
	Metadata() Metadata
	FetchItems(ctx context.Context) ([]feed.Item, error)
}

// FallbackProvider is implemented by providers with placeholder items for
// when the source is unreachable or yields nothing.
type FallbackProvider interface {
	FallbackItems(now time.Time) []feed.Item
}

// StaticItem is a configured item dated relative to the render time
type StaticItem struct {
	Title       string `yaml:"title" json:"title"`
	Link        string `yaml:"link" json:"link"`
	Description string `yaml:"description" json:"description"`
	Category    string `yaml:"category" json:"category"`
	AgeDays     int    `yaml:"age_days" json:"age_days"`
	AgeHours    int    `yaml:"age_hours" json:"age_hours"`
}

// At materializes the item as of now
func (s StaticItem) At(now time.Time) feed.Item {
	description := s.Description
	if description == "" {
		description = s.Title
	}
	return feed.Item{
		Title:       s.Title,
		Link:        s.Link,
		Description: description,
		Category:    s.Category,
		Published:   now.Add(-time.Duration(s.AgeDays*24+s.AgeHours) * time.Hour).UTC(),
	}
}
