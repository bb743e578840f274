// Package preview shows feed items in an interactive terminal UI before they are published.
package preview

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/lepinkainen/eurofeeds/pkg/feed"
)

const (
	rule           = "═══════════════════════════════════════════════════════════════════════\n"
	maxTitleLength = 70
	maxDescription = 1000
)

var itemRegex = regexp.MustCompile(`(?s)<item>.*?</item>`)

// truncate shortens s to at most n runes, marking the cut with "..."
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n-3]) + "..."
}

// wrapText wraps text to the specified width, breaking at word boundaries
func wrapText(text string, width int) string {
	if width <= 0 {
		width = 70
	}

	var result strings.Builder
	lineLen := 0

	for _, word := range strings.Fields(text) {
		wordLen := utf8.RuneCountInString(word)

		if lineLen > 0 && lineLen+1+wordLen > width {
			result.WriteString("\n")
			lineLen = 0
		} else if lineLen > 0 {
			result.WriteString(" ")
			lineLen++
		}

		result.WriteString(word)
		lineLen += wordLen
	}

	return result.String()
}

// FormatCompactListItem formats a single feed item in compact list format
// Example: " 1. 2026-10-15 [EEAS Press] Statement by the High Representative"
func FormatCompactListItem(index int, item feed.Item) string {
	date := "----------"
	if !item.Published.IsZero() {
		date = item.Published.UTC().Format("2006-01-02")
	}

	category := ""
	if item.Category != "" {
		category = "[" + item.Category + "] "
	}

	return fmt.Sprintf("%2d. %s %s%s", index+1, date, category, truncate(item.Title, maxTitleLength))
}

// FormatDetailedItem formats a single feed item with all metadata
func FormatDetailedItem(item feed.Item, now time.Time) string {
	var b strings.Builder

	b.WriteString(rule)
	fmt.Fprintf(&b, "Title: %s\n", item.Title)
	fmt.Fprintf(&b, "Link: %s\n", item.Link)

	if item.Category != "" {
		fmt.Fprintf(&b, "Category: %s\n", item.Category)
	}

	if !item.Published.IsZero() {
		fmt.Fprintf(&b, "Published: %s (%s)\n", item.Published.UTC().Format(time.RFC1123Z), formatTimeAgo(item.Published, now))
	}

	if item.Description != "" && item.Description != item.Title {
		fmt.Fprintf(&b, "\nDescription:\n%s\n", wrapText(truncate(item.Description, maxDescription), 70))
	}

	b.WriteString(rule)

	return b.String()
}

// FormatXMLItem renders item through the RSS renderer and returns its <item> element
func FormatXMLItem(r *feed.Renderer, ch feed.Channel, selfURL string, item feed.Item) string {
	doc, err := r.Render(ch, []feed.Item{item}, selfURL, 1)
	if err != nil {
		return fmt.Sprintf("Error generating feed: %s", err)
	}

	match := itemRegex.Find(doc.Body)
	if match == nil {
		return "No item found in generated feed"
	}

	return wrapXMLContent(string(match), 80)
}

// wrapXMLContent breaks long lines at spaces or tag ends, keeping the XML intact
func wrapXMLContent(xml string, width int) string {
	var result strings.Builder

	for _, line := range strings.Split(xml, "\n") {
		for len(line) > width {
			breakPoint := width
			for i := width - 1; i > width-20 && i > 0; i-- {
				if line[i] == ' ' || line[i] == '>' {
					breakPoint = i + 1
					break
				}
			}
			result.WriteString(line[:breakPoint])
			result.WriteString("\n")
			line = line[breakPoint:]
		}
		if line != "" {
			result.WriteString(line)
			result.WriteString("\n")
		}
	}

	return result.String()
}

// formatTimeAgo formats t relative to now as a human-readable "X ago" string
func formatTimeAgo(t, now time.Time) string {
	duration := now.Sub(t)

	plural := func(n int, unit string) string {
		if n == 1 {
			return "1 " + unit + " ago"
		}
		return fmt.Sprintf("%d %ss ago", n, unit)
	}

	switch {
	case duration < time.Minute:
		return "just now"
	case duration < time.Hour:
		return plural(int(duration.Minutes()), "minute")
	case duration < 24*time.Hour:
		return plural(int(duration.Hours()), "hour")
	case duration < 7*24*time.Hour:
		return plural(int(duration.Hours()/24), "day")
	default:
		return t.Format("2006-01-02")
	}
}
