package feed

import (
	"fmt"
	"io"
	"time"

	"github.com/gorilla/feeds"
)

// buildFeed converts channel metadata and items into a gorilla/feeds document
func buildFeed(ch Channel, items []Item, guids []string, selfURL string, now time.Time) *feeds.Feed {
	f := &feeds.Feed{
		Title:       ch.Title,
		Link:        &feeds.Link{Href: ch.Link},
		Description: ch.Description,
		Id:          selfURL,
		Created:     now,
		Updated:     now,
	}

	for i, item := range items {
		f.Items = append(f.Items, &feeds.Item{
			Title:       item.Title,
			Link:        &feeds.Link{Href: item.Link},
			Description: item.Description,
			Id:          guids[i],
			Created:     item.Published,
			Updated:     item.Published,
		})
	}

	return f
}

// writeAlternate serializes f in one of the non-template formats
func writeAlternate(w io.Writer, format Format, f *feeds.Feed) error {
	switch format {
	case Atom:
		return f.WriteAtom(w)
	case JSON:
		return f.WriteJSON(w)
	default:
		return fmt.Errorf("unsupported feed type: %s", format)
	}
}
