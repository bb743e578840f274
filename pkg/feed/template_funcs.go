package feed

import (
	"net/http"
	"strings"
	"text/template"
	"time"
	"unicode/utf8"
)

// TemplateFuncs returns a map of template helper functions
func TemplateFuncs() template.FuncMap {
	return template.FuncMap{
		"xmlEscape":  EscapeXML,
		"cdata":      CDATA,
		"formatTime": formatTime,
	}
}

var xmlReplacer = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

// EscapeXML escapes the five XML special characters and drops characters XML 1.0 cannot carry
func EscapeXML(s string) string {
	return xmlReplacer.Replace(StripInvalidXML(s))
}

// CDATA wraps s in a CDATA section. A literal "]]>" is split across two sections.
func CDATA(s string) string {
	s = strings.ReplaceAll(StripInvalidXML(s), "]]>", "]]]]><![CDATA[>")
	return "<![CDATA[" + s + "]]>"
}

// formatTime formats t for RSS date elements (RFC 1123, always GMT)
func formatTime(t time.Time) string {
	return t.UTC().Format(http.TimeFormat)
}

// Truncate shortens s to at most maxLen runes, marking the cut with "..."
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string([]rune(s)[:maxLen])
	}
	return strings.TrimSpace(string([]rune(s)[:maxLen-3])) + "..."
}

// StripInvalidXML drops invalid UTF-8 and the characters XML 1.0 cannot carry
func StripInvalidXML(s string) string {
	valid := true
	for _, r := range s {
		if !isXMLChar(r) {
			valid = false
			break
		}
	}
	if valid && utf8.ValidString(s) {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == utf8.RuneError || !isXMLChar(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isXMLChar(r rune) bool {
	return r == 0x09 || r == 0x0A || r == 0x0D ||
		(r >= 0x20 && r <= 0xD7FF) ||
		(r >= 0xE000 && r <= 0xFFFD) ||
		(r >= 0x10000 && r <= 0x10FFFF)
}
