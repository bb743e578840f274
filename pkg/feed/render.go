package feed

import (
	"bytes"
	"fmt"
	"log/slog"
	"slices"
	"time"
)

const rssTemplate = "rss"

// DefaultGenerator is written to the channel generator element
const DefaultGenerator = "European RSS Generator"

// Renderer serializes items into feed documents
type Renderer struct {
	templates *TemplateGenerator
	generator string
	creator   string
	now       func() time.Time
}

// RendererOption configures a Renderer
type RendererOption func(*Renderer)

// WithClock replaces the time source used for channel timestamps
func WithClock(now func() time.Time) RendererOption {
	return func(r *Renderer) {
		r.now = now
	}
}

// WithCreator sets the dc:creator written on every RSS item
func WithCreator(creator string) RendererOption {
	return func(r *Renderer) {
		r.creator = creator
	}
}

// NewRenderer loads the RSS template and returns a ready Renderer
func NewRenderer(generator string, opts ...RendererOption) (*Renderer, error) {
	if generator == "" {
		generator = DefaultGenerator
	}

	tg := NewTemplateGenerator()
	if err := tg.LoadTemplate(rssTemplate); err != nil {
		return nil, err
	}

	r := &Renderer{
		templates: tg,
		generator: generator,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}

	return r, nil
}

// Render produces an RSS 2.0 document holding at most maxItems items.
// maxItems <= 0 keeps every item.
func (r *Renderer) Render(ch Channel, items []Item, selfURL string, maxItems int) (*Rendered, error) {
	return r.RenderFormat(RSS, ch, items, selfURL, maxItems)
}

// RenderFormat produces a document in the requested format
func (r *Renderer) RenderFormat(format Format, ch Channel, items []Item, selfURL string, maxItems int) (*Rendered, error) {
	if maxItems > 0 && len(items) > maxItems {
		items = items[:maxItems]
	}
	items = slices.Clone(items)

	now := r.now().UTC()
	for i := range items {
		if !items[i].Valid() {
			return nil, &RenderError{Format: format, Err: fmt.Errorf("item %d: %w", i, ErrInvalidItem)}
		}
		if items[i].Published.IsZero() {
			items[i].Published = now
		}
	}
	guids := itemGUIDs(items)

	var buf bytes.Buffer
	var err error
	switch format {
	case RSS:
		err = r.renderRSS(&buf, ch, items, guids, selfURL, now)
	case Atom, JSON:
		err = writeAlternate(&buf, format, buildFeed(ch, items, guids, selfURL, now))
	default:
		err = fmt.Errorf("unsupported feed type: %s", format)
	}
	if err != nil {
		return nil, &RenderError{Format: format, Err: err}
	}

	slog.Debug("Rendered feed", "format", format, "title", ch.Title, "items", len(items), "bytes", buf.Len())

	return &Rendered{
		Channel:   ch,
		SelfURL:   selfURL,
		Generated: now,
		Items:     items,
		GUIDs:     guids,
		Format:    format,
		Body:      buf.Bytes(),
	}, nil
}

func (r *Renderer) renderRSS(buf *bytes.Buffer, ch Channel, items []Item, guids []string, selfURL string, now time.Time) error {
	if ch.Language == "" {
		ch.Language = "en-us"
	}

	data := &TemplateData{
		Channel:   ch,
		SelfURL:   selfURL,
		Generator: r.generator,
		Updated:   now,
		Items:     make([]TemplateItem, len(items)),
	}
	for i, item := range items {
		data.Items[i] = TemplateItem{Item: item, GUID: guids[i], Creator: r.creator}
	}

	return r.templates.GenerateFromTemplate(rssTemplate, data, buf)
}

// ErrorDocument returns a minimal valid RSS document describing message.
// It never fails; the body is never empty.
func (r *Renderer) ErrorDocument(selfURL, message string) []byte {
	now := r.now().UTC()
	ch := Channel{
		Title:       "Feed temporarily unavailable",
		Link:        selfURL,
		Description: "The feed could not be generated",
		Language:    "en-us",
	}
	item := Item{
		Title:       "Feed generation failed",
		Link:        selfURL,
		Description: message,
		Published:   now,
	}

	doc, err := r.Render(ch, []Item{item}, selfURL, 1)
	if err == nil {
		return doc.Body
	}

	slog.Error("Failed to render error document, using static form", "error", err)
	return []byte(minimalErrorDocument(selfURL, message, now))
}

func minimalErrorDocument(selfURL, message string, now time.Time) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:atom="http://www.w3.org/2005/Atom">
  <channel>
    <title>Feed temporarily unavailable</title>
    <link>%[1]s</link>
    <description>%[2]s</description>
    <lastBuildDate>%[3]s</lastBuildDate>
    <atom:link href="%[1]s" rel="self" type="application/rss+xml"/>
  </channel>
</rss>
`, EscapeXML(selfURL), EscapeXML(message), formatTime(now))
}
