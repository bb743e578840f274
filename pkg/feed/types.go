package feed

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Item represents a feed item
type Item struct {
	Title       string
	Link        string
	Description string
	Category    string
	Published   time.Time
}

// Valid reports whether the item carries the fields every RSS consumer requires.
// Characters dropped during serialization do not count.
func (i Item) Valid() bool {
	return visible(i.Title) && visible(i.Link)
}

func visible(s string) bool {
	return strings.TrimSpace(StripInvalidXML(s)) != ""
}

// Channel holds the channel-level metadata of a feed
type Channel struct {
	Title       string
	Link        string
	Description string
	Language    string
	Category    string
}

// Format represents the type of feed to generate
type Format string

const (
	RSS  Format = "rss"
	Atom Format = "atom"
	JSON Format = "json"
)

// ParseFormat converts a query or flag value to a Format. Empty means RSS.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", RSS:
		return RSS, nil
	case Atom:
		return Atom, nil
	case JSON:
		return JSON, nil
	default:
		return "", fmt.Errorf("unsupported feed format: %s", s)
	}
}

// ContentType returns the HTTP content type for the format
func (f Format) ContentType() string {
	switch f {
	case Atom:
		return "application/atom+xml; charset=utf-8"
	case JSON:
		return "application/feed+json; charset=utf-8"
	default:
		return "application/rss+xml; charset=utf-8"
	}
}

// Rendered is a serialized feed. It is not modified after Render returns it.
type Rendered struct {
	Channel   Channel
	SelfURL   string
	Generated time.Time
	Items     []Item
	GUIDs     []string
	Format    Format
	Body      []byte
	// Fallback marks documents built from placeholder items instead of live content
	Fallback bool
}

// ContentType returns the HTTP content type of the body
func (r *Rendered) ContentType() string {
	return r.Format.ContentType()
}

// ErrInvalidItem is wrapped by RenderError when an item lacks a title or link
var ErrInvalidItem = errors.New("item is missing title or link")

// RenderError reports a feed that could not be serialized
type RenderError struct {
	Format Format
	Err    error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s feed: %v", e.Format, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}
