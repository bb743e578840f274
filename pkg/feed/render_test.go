package feed

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"
)

var fixedNow = time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := NewRenderer("", WithClock(func() time.Time { return fixedNow }))
	if err != nil {
		t.Fatalf("NewRenderer() error = %v", err)
	}
	return r
}

func testChannel() Channel {
	return Channel{
		Title:       "EEAS - Press Material",
		Link:        "https://www.eeas.europa.eu/eeas/press-material_en",
		Description: "Latest EEAS press releases",
		Language:    "en-us",
	}
}

func makeItems(n int) []Item {
	items := make([]Item, n)
	for i := range items {
		items[i] = Item{
			Title:       fmt.Sprintf("Statement by the High Representative number %d", i),
			Link:        fmt.Sprintf("https://www.eeas.europa.eu/eeas/statement-%d_en", i),
			Description: fmt.Sprintf("Description %d", i),
			Category:    "EEAS Press",
			Published:   fixedNow.Add(-time.Duration(i) * time.Hour),
		}
	}
	return items
}

// assertWellFormed walks every token so malformed XML fails the test
func assertWellFormed(t *testing.T, body []byte) {
	t.Helper()
	dec := xml.NewDecoder(strings.NewReader(string(body)))
	for {
		_, err := dec.Token()
		if err == io.EOF {
			return
		}
		if err != nil {
			t.Fatalf("document is not well-formed: %v\n%s", err, body)
		}
	}
}

func parseFeed(t *testing.T, body []byte) *gofeed.Feed {
	t.Helper()
	parsed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		t.Fatalf("gofeed could not parse output: %v\n%s", err, body)
	}
	return parsed
}

func TestRenderer_Render_ItemCountAndOrder(t *testing.T) {
	tests := []struct {
		name     string
		items    int
		maxItems int
		want     int
	}{
		{"empty", 0, 20, 0},
		{"fewer than max", 3, 20, 3},
		{"exactly max", 20, 20, 20},
		{"truncated", 25, 20, 20},
		{"nato cap", 30, 15, 15},
		{"no cap", 30, 0, 30},
	}

	r := newTestRenderer(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items := makeItems(tt.items)
			doc, err := r.Render(testChannel(), items, "https://feeds.example.org/eeas/press-material", tt.maxItems)
			if err != nil {
				t.Fatalf("Render() error = %v", err)
			}

			assertWellFormed(t, doc.Body)
			parsed := parseFeed(t, doc.Body)

			if len(parsed.Items) != tt.want {
				t.Fatalf("parsed %d items, want %d", len(parsed.Items), tt.want)
			}
			if len(doc.Items) != tt.want {
				t.Errorf("Rendered.Items has %d items, want %d", len(doc.Items), tt.want)
			}
			for i, item := range parsed.Items {
				if item.Title != items[i].Title {
					t.Errorf("item %d title = %q, want %q", i, item.Title, items[i].Title)
				}
				if item.Link != items[i].Link {
					t.Errorf("item %d link = %q, want %q", i, item.Link, items[i].Link)
				}
			}
		})
	}
}

func TestRenderer_Render_ChannelElements(t *testing.T) {
	r := newTestRenderer(t)
	ch := testChannel()
	ch.Category = "European Institutions"

	doc, err := r.Render(ch, makeItems(1), "https://feeds.example.org/eeas/press-material", 20)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	body := string(doc.Body)

	wants := []string{
		`<rss version="2.0" xmlns:atom="http://www.w3.org/2005/Atom"`,
		"<title>EEAS - Press Material</title>",
		"<link>https://www.eeas.europa.eu/eeas/press-material_en</link>",
		"<description>Latest EEAS press releases</description>",
		"<language>en-us</language>",
		"<pubDate>Thu, 15 Oct 2026 09:30:00 GMT</pubDate>",
		"<lastBuildDate>Thu, 15 Oct 2026 09:30:00 GMT</lastBuildDate>",
		"<generator>European RSS Generator</generator>",
		"<category>European Institutions</category>",
		`<atom:link href="https://feeds.example.org/eeas/press-material" rel="self" type="application/rss+xml"/>`,
		"<category>EEAS Press</category>",
		`<guid isPermaLink="false">`,
	}
	for _, want := range wants {
		if !strings.Contains(body, want) {
			t.Errorf("output missing %q", want)
		}
	}

	parsed := parseFeed(t, doc.Body)
	if parsed.Language != "en-us" {
		t.Errorf("parsed language = %q, want en-us", parsed.Language)
	}
	if parsed.Items[0].PublishedParsed == nil || !parsed.Items[0].PublishedParsed.Equal(fixedNow) {
		t.Errorf("parsed pubDate = %v, want %v", parsed.Items[0].PublishedParsed, fixedNow)
	}
}

func TestRenderer_Render_Escaping(t *testing.T) {
	r := newTestRenderer(t)
	items := []Item{{
		Title:       `Tom & Jerry <script> "quoted" 'single'`,
		Link:        "https://www.eca.europa.eu/en/news?a=1&b=2",
		Description: `<p>Inline <b>HTML</b> with ]]> inside & more</p>`,
		Category:    "ECA <News>",
		Published:   fixedNow,
	}}

	doc, err := r.Render(testChannel(), items, "https://feeds.example.org/eca/news?x=1&y=2", 20)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	assertWellFormed(t, doc.Body)
	body := string(doc.Body)

	if !strings.Contains(body, "<title>Tom &amp; Jerry &lt;script&gt; &quot;quoted&quot; &apos;single&apos;</title>") {
		t.Errorf("title not escaped:\n%s", body)
	}
	if !strings.Contains(body, "<link>https://www.eca.europa.eu/en/news?a=1&amp;b=2</link>") {
		t.Errorf("link not escaped:\n%s", body)
	}
	if !strings.Contains(body, "<category>ECA &lt;News&gt;</category>") {
		t.Errorf("category not escaped:\n%s", body)
	}

	var decoded struct {
		Channel struct {
			Items []struct {
				Title       string `xml:"title"`
				Link        string `xml:"link"`
				Description string `xml:"description"`
			} `xml:"item"`
		} `xml:"channel"`
	}
	if err := xml.Unmarshal(doc.Body, &decoded); err != nil {
		t.Fatalf("xml.Unmarshal() error = %v", err)
	}
	got := decoded.Channel.Items[0]
	if got.Title != items[0].Title {
		t.Errorf("decoded title = %q, want %q", got.Title, items[0].Title)
	}
	if got.Link != items[0].Link {
		t.Errorf("decoded link = %q, want %q", got.Link, items[0].Link)
	}
	if got.Description != items[0].Description {
		t.Errorf("decoded description = %q, want %q", got.Description, items[0].Description)
	}
}

func TestRenderer_Render_DescriptionAlwaysCDATA(t *testing.T) {
	r := newTestRenderer(t)
	items := []Item{
		{Title: "Plain", Link: "https://a.example/1", Description: "plain text", Published: fixedNow},
		{Title: "Markup", Link: "https://a.example/2", Description: "<em>markup</em>", Published: fixedNow},
	}

	doc, err := r.Render(testChannel(), items, "https://feeds.example.org/x/y", 20)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	body := string(doc.Body)

	for _, want := range []string{
		"<description><![CDATA[plain text]]></description>",
		"<description><![CDATA[<em>markup</em>]]></description>",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestRenderer_Render_GUIDs(t *testing.T) {
	r := newTestRenderer(t)
	const link = "https://www.consilium.europa.eu/en/press/press-releases/2026/10/14/sanctions/"

	t.Run("same link different description", func(t *testing.T) {
		items := []Item{
			{Title: "Sanctions adopted", Link: link, Description: "First version", Published: fixedNow},
			{Title: "Sanctions adopted", Link: link, Description: "Updated version", Published: fixedNow},
		}
		doc, err := r.Render(testChannel(), items, "https://feeds.example.org/consilium/press-releases", 20)
		if err != nil {
			t.Fatalf("Render() error = %v", err)
		}

		parsed := parseFeed(t, doc.Body)
		if len(parsed.Items) != 2 {
			t.Fatalf("parsed %d items, want 2", len(parsed.Items))
		}
		if parsed.Items[0].GUID == "" || parsed.Items[1].GUID == "" {
			t.Fatalf("empty guid: %q, %q", parsed.Items[0].GUID, parsed.Items[1].GUID)
		}
		if parsed.Items[0].GUID == parsed.Items[1].GUID {
			t.Errorf("guids are equal: %q", parsed.Items[0].GUID)
		}
		if !strings.HasPrefix(parsed.Items[0].GUID, link) {
			t.Errorf("guid %q is not derived from link", parsed.Items[0].GUID)
		}
	})

	t.Run("exact duplicates", func(t *testing.T) {
		item := Item{Title: "Same", Link: link, Description: "Same", Published: fixedNow}
		doc, err := r.Render(testChannel(), []Item{item, item, item}, "https://feeds.example.org/a/b", 20)
		if err != nil {
			t.Fatalf("Render() error = %v", err)
		}

		seen := make(map[string]bool)
		for _, guid := range doc.GUIDs {
			if seen[guid] {
				t.Errorf("duplicate guid %q", guid)
			}
			seen[guid] = true
		}
	})

	t.Run("stable for unchanged content", func(t *testing.T) {
		items := makeItems(3)
		first, err := r.Render(testChannel(), items, "https://feeds.example.org/a/b", 20)
		if err != nil {
			t.Fatalf("Render() error = %v", err)
		}
		second, err := r.Render(testChannel(), items, "https://feeds.example.org/a/b", 20)
		if err != nil {
			t.Fatalf("Render() error = %v", err)
		}
		for i := range first.GUIDs {
			if first.GUIDs[i] != second.GUIDs[i] {
				t.Errorf("guid %d changed between renders: %q vs %q", i, first.GUIDs[i], second.GUIDs[i])
			}
		}
	})

	t.Run("changed content changes guid", func(t *testing.T) {
		before := []Item{{Title: "Draft", Link: link, Description: "v1", Published: fixedNow}}
		after := []Item{{Title: "Draft", Link: link, Description: "v2", Published: fixedNow}}

		a, _ := r.Render(testChannel(), before, "https://feeds.example.org/a/b", 20)
		b, _ := r.Render(testChannel(), after, "https://feeds.example.org/a/b", 20)
		if a.GUIDs[0] == b.GUIDs[0] {
			t.Errorf("guid did not change with content: %q", a.GUIDs[0])
		}
	})
}

func TestRenderer_Render_Deterministic(t *testing.T) {
	r := newTestRenderer(t)
	items := makeItems(10)

	first, err := r.Render(testChannel(), items, "https://feeds.example.org/a/b", 20)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	second, err := r.Render(testChannel(), items, "https://feeds.example.org/a/b", 20)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	if string(first.Body) != string(second.Body) {
		t.Error("identical inputs produced different output")
	}
}

func TestRenderer_Render_InvalidItem(t *testing.T) {
	r := newTestRenderer(t)

	tests := []struct {
		name string
		item Item
	}{
		{"missing title", Item{Link: "https://a.example/"}},
		{"blank title", Item{Title: "   ", Link: "https://a.example/"}},
		{"missing link", Item{Title: "Title"}},
		{"title of control characters", Item{Title: "\x01\x02", Link: "https://a.example/"}},
		{"title of invalid utf-8", Item{Title: "\xff\xfe", Link: "https://a.example/"}},
		{"link of control characters", Item{Title: "Title", Link: "\x00\x1f"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Render(testChannel(), []Item{tt.item}, "https://feeds.example.org/a/b", 20)

			var renderErr *RenderError
			if !errors.As(err, &renderErr) {
				t.Fatalf("Render() error = %v, want *RenderError", err)
			}
			if !errors.Is(err, ErrInvalidItem) {
				t.Errorf("errors.Is(err, ErrInvalidItem) = false for %v", err)
			}
		})
	}
}

func TestRenderer_Render_ZeroPublishedUsesNow(t *testing.T) {
	r := newTestRenderer(t)
	doc, err := r.Render(testChannel(), []Item{{Title: "T", Link: "https://a.example/"}}, "https://feeds.example.org/a/b", 20)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !doc.Items[0].Published.Equal(fixedNow) {
		t.Errorf("Published = %v, want %v", doc.Items[0].Published, fixedNow)
	}
}

func TestRenderer_RenderFormat_Alternates(t *testing.T) {
	r := newTestRenderer(t)
	items := makeItems(4)

	tests := []struct {
		format   Format
		feedType string
	}{
		{Atom, "atom"},
		{JSON, "json"},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			doc, err := r.RenderFormat(tt.format, testChannel(), items, "https://feeds.example.org/a/b", 3)
			if err != nil {
				t.Fatalf("RenderFormat() error = %v", err)
			}
			if doc.Format != tt.format {
				t.Errorf("Format = %q, want %q", doc.Format, tt.format)
			}

			parsed := parseFeed(t, doc.Body)
			if parsed.FeedType != tt.feedType {
				t.Errorf("FeedType = %q, want %q", parsed.FeedType, tt.feedType)
			}
			if len(parsed.Items) != 3 {
				t.Fatalf("parsed %d items, want 3", len(parsed.Items))
			}
			for i, item := range parsed.Items {
				if item.Title != items[i].Title {
					t.Errorf("item %d title = %q, want %q", i, item.Title, items[i].Title)
				}
			}
		})
	}

	if _, err := r.RenderFormat(Format("opml"), testChannel(), items, "", 3); err == nil {
		t.Error("RenderFormat(opml) should fail")
	}
}

func TestRenderer_ErrorDocument(t *testing.T) {
	r := newTestRenderer(t)

	t.Run("templated", func(t *testing.T) {
		body := r.ErrorDocument("https://feeds.example.org/eeas/press-material", "upstream <broken> & down")
		assertWellFormed(t, body)

		parsed := parseFeed(t, body)
		if len(parsed.Items) != 1 {
			t.Fatalf("parsed %d items, want 1", len(parsed.Items))
		}
		if !strings.Contains(parsed.Items[0].Description, "upstream <broken> & down") {
			t.Errorf("description = %q, want the error message", parsed.Items[0].Description)
		}
	})

	t.Run("static form without self link", func(t *testing.T) {
		body := r.ErrorDocument("", "no link & nothing")
		if len(body) == 0 {
			t.Fatal("ErrorDocument() returned an empty body")
		}
		assertWellFormed(t, body)
		parseFeed(t, body)
	})
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input   string
		want    Format
		wantErr bool
	}{
		{"", RSS, false},
		{"rss", RSS, false},
		{"ATOM", Atom, false},
		{"json", JSON, false},
		{"xml", "", true},
	}

	for _, tt := range tests {
		got, err := ParseFormat(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}

	if ct := RSS.ContentType(); ct != "application/rss+xml; charset=utf-8" {
		t.Errorf("RSS.ContentType() = %q", ct)
	}
}
