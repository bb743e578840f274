package extract

import (
	"html"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"

	"github.com/lepinkainen/eurofeeds/pkg/feed"
	"github.com/lepinkainen/eurofeeds/pkg/urlutils"
)

// Extractor applies rules to fetched documents. It is safe for concurrent use.
type Extractor struct {
	now    func() time.Time
	strict *bluemonday.Policy
	ugc    *bluemonday.Policy
}

// Option configures an Extractor
type Option func(*Extractor)

// WithClock replaces the time used for items without a parseable date
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) {
		e.now = now
	}
}

// New creates an Extractor
func New(opts ...Option) *Extractor {
	e := &Extractor{
		now:    time.Now,
		strict: bluemonday.StrictPolicy(),
		ugc:    bluemonday.UGCPolicy(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract parses raw HTML with rule and returns the items in document order.
// Malformed markup or a rule that matches nothing yields an empty result, never an error.
func (e *Extractor) Extract(raw string, rule *Rule) (items []feed.Item) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Extraction panicked", "panic", r, "base_url", rule.BaseURL)
			items = nil
		}
	}()

	rule, ok := e.ready(rule)
	if !ok {
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		slog.Warn("Failed to parse document", "error", err, "base_url", rule.BaseURL)
		return nil
	}

	now := e.now().UTC()
	for i := range rule.Strategies {
		st := &rule.Strategies[i]

		var found []feed.Item
		doc.FindMatcher(st.block).Each(func(_ int, block *goquery.Selection) {
			// only the outermost of nested matches counts
			if block.ParentsMatcher(st.block).Length() > 0 {
				return
			}
			if item, ok := e.buildItem(block, rule, st, now); ok {
				found = append(found, item)
			}
		})

		if len(found) > 0 {
			slog.Debug("Strategy matched", "strategy", st.Name, "items", len(found), "base_url", rule.BaseURL)
			if rule.Dedupe {
				found = dedupe(found)
			}
			return found
		}
	}

	slog.Debug("No strategy matched", "strategies", len(rule.Strategies), "base_url", rule.BaseURL)
	return nil
}

// ExtractFeed reads an RSS, Atom or JSON feed and maps its entries with the
// rule's cleanup settings. Unparseable input yields an empty result.
func (e *Extractor) ExtractFeed(raw string, rule *Rule) []feed.Item {
	rule, ok := e.ready(rule)
	if !ok {
		return nil
	}

	parsed, err := gofeed.NewParser().ParseString(raw)
	if err != nil {
		slog.Warn("Failed to parse upstream feed", "error", err, "base_url", rule.BaseURL)
		return nil
	}

	now := e.now().UTC()
	items := make([]feed.Item, 0, len(parsed.Items))
	for _, entry := range parsed.Items {
		title := e.plainText(entry.Title)
		if !titleLongEnough(title, rule.MinTitleLength) {
			continue
		}

		link, ok := urlutils.ResolveLink(rule.BaseURL, entry.Link)
		if !ok {
			continue
		}

		description := entry.Description
		if description == "" {
			description = entry.Content
		}

		item := feed.Item{
			Title:       title,
			Link:        link,
			Description: e.description(description, true, rule),
			Category:    rule.Category,
			Published:   now,
		}
		if item.Description == "" {
			item.Description = title
		}
		if len(entry.Categories) > 0 && strings.TrimSpace(entry.Categories[0]) != "" {
			item.Category = strings.TrimSpace(entry.Categories[0])
		}
		switch {
		case entry.PublishedParsed != nil:
			item.Published = entry.PublishedParsed.UTC()
		case entry.UpdatedParsed != nil:
			item.Published = entry.UpdatedParsed.UTC()
		}

		items = append(items, item)
	}

	if rule.Dedupe {
		items = dedupe(items)
	}
	return items
}

// ready returns a compiled rule, compiling a private copy when the caller has not
func (e *Extractor) ready(rule *Rule) (*Rule, bool) {
	if rule == nil {
		return nil, false
	}
	if rule.compiled {
		return rule, true
	}

	cp := *rule
	cp.Strategies = make([]Strategy, len(rule.Strategies))
	for i, st := range rule.Strategies {
		st.Title = append([]FieldRule(nil), st.Title...)
		st.Link = append([]FieldRule(nil), st.Link...)
		st.Date = append([]FieldRule(nil), st.Date...)
		st.Description = append([]FieldRule(nil), st.Description...)
		st.Category = append([]FieldRule(nil), st.Category...)
		cp.Strategies[i] = st
	}
	if err := cp.Compile(); err != nil {
		slog.Error("Invalid extraction rule", "error", err, "base_url", rule.BaseURL)
		return nil, false
	}
	return &cp, true
}

func (e *Extractor) buildItem(block *goquery.Selection, rule *Rule, st *Strategy, now time.Time) (feed.Item, bool) {
	title := firstValue(block, st.Title, "")
	if !titleLongEnough(title, rule.MinTitleLength) {
		return feed.Item{}, false
	}

	href := firstValue(block, st.Link, "href")
	if href == "" && len(st.Link) == 0 {
		href, _ = block.Attr("href")
	}
	if href == "" {
		href = st.DefaultLink
	}
	link, ok := urlutils.ResolveLink(rule.BaseURL, href)
	if !ok {
		return feed.Item{}, false
	}

	item := feed.Item{
		Title:     title,
		Link:      link,
		Category:  rule.Category,
		Published: now,
	}

	if rule.DescriptionHTML {
		item.Description = e.description(firstHTML(block, st.Description), true, rule)
	} else {
		item.Description = e.description(firstValue(block, st.Description, ""), false, rule)
	}
	if item.Description == "" {
		item.Description = title
	}

	if category := firstValue(block, st.Category, ""); category != "" {
		item.Category = category
	}

	for _, fr := range st.Date {
		text := fr.value(block, "")
		format := fr.Format
		if format == "" {
			format = rule.DateFormat
		}
		if t, ok := ParseDate(text, format); ok {
			item.Published = t
			break
		}
	}

	return item, true
}

// description cleans a description according to the rule. isHTML marks input that
// may contain markup.
func (e *Extractor) description(s string, isHTML bool, rule *Rule) string {
	if rule.DescriptionHTML {
		return strings.TrimSpace(e.ugc.Sanitize(s))
	}

	if isHTML {
		s = e.plainText(s)
	} else {
		s = collapseWhitespace(s)
	}
	if limit := rule.maxDescription(); limit > 0 {
		s = feed.Truncate(s, limit)
	}
	return s
}

// plainText strips all markup and decodes entities
func (e *Extractor) plainText(s string) string {
	return collapseWhitespace(html.UnescapeString(e.strict.Sanitize(s)))
}

// value reads the field from the first matching element that yields something
func (f *FieldRule) value(block *goquery.Selection, defaultAttr string) string {
	candidates := f.candidates(block)

	attr := f.Attr
	if attr == "" {
		attr = defaultAttr
	}

	var result string
	candidates.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var text string
		if attr != "" {
			v, ok := s.Attr(attr)
			if !ok {
				return true
			}
			text = strings.TrimSpace(feed.StripInvalidXML(v))
		} else {
			text = collapseWhitespace(s.Text())
		}

		if f.re != nil {
			m := f.re.FindStringSubmatch(text)
			if m == nil {
				return true
			}
			text = m[0]
			if len(m) > 1 {
				text = m[1]
			}
			text = collapseWhitespace(text)
		}

		if text == "" {
			return true
		}
		result = text
		return false
	})

	return result
}

// candidates returns the elements the rule reads from. Ancestor moves the search
// to the nearest enclosing element matching it.
func (f *FieldRule) candidates(block *goquery.Selection) *goquery.Selection {
	scope := block
	if f.ancestor != nil {
		scope = block.ParentsMatcher(f.ancestor).First()
	}
	if f.sel != nil {
		return scope.FindMatcher(f.sel)
	}
	return scope
}

func firstValue(block *goquery.Selection, rules []FieldRule, defaultAttr string) string {
	for i := range rules {
		if v := rules[i].value(block, defaultAttr); v != "" {
			return v
		}
	}
	return ""
}

// firstHTML returns the inner markup of the first element matched by rules
func firstHTML(block *goquery.Selection, rules []FieldRule) string {
	for i := range rules {
		fr := &rules[i]
		if fr.Attr != "" || fr.re != nil {
			if v := fr.value(block, ""); v != "" {
				return v
			}
			continue
		}

		s := fr.candidates(block).First()
		if s.Length() == 0 {
			continue
		}
		if markup, err := s.Html(); err == nil && strings.TrimSpace(markup) != "" {
			return markup
		}
	}
	return ""
}

func titleLongEnough(title string, minLen int) bool {
	if title == "" {
		return false
	}
	return len([]rune(title)) >= minLen
}

// collapseWhitespace also drops characters a feed cannot carry, so length checks
// see the text that will be served
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(feed.StripInvalidXML(s)), " ")
}

func dedupe(items []feed.Item) []feed.Item {
	seen := make(map[string]struct{}, len(items))
	out := items[:0]
	for _, item := range items {
		key := item.Link + "\x00" + item.Title + "\x00" + item.Description
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, item)
	}
	return out
}
