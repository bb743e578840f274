package providers

import (
	"time"

	"github.com/lepinkainen/eurofeeds/pkg/feed"
)

// BaseProvider provides the metadata and fallback handling shared by all providers
type BaseProvider struct {
	Meta     Metadata
	Fallback []StaticItem
}

// Metadata returns the provider's feed description
func (b *BaseProvider) Metadata() Metadata {
	return b.Meta
}

// FallbackItems returns the configured placeholder items, or nil when there are none
func (b *BaseProvider) FallbackItems(now time.Time) []feed.Item {
	if len(b.Fallback) == 0 {
		return nil
	}

	items := make([]feed.Item, len(b.Fallback))
	for i, s := range b.Fallback {
		items[i] = s.At(now)
		if items[i].Category == "" {
			items[i].Category = b.Meta.Channel.Category
		}
	}
	return items
}
