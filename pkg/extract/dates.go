package extract

import (
	"regexp"
	"strings"
	"time"
)

// DateFormat names a site date convention. There is deliberately no "guess" format.
type DateFormat string

const (
	DateDMYDot        DateFormat = "dmy-dot"          // 25.12.2024
	DateDMYSlash      DateFormat = "dmy-slash"        // 25/12/2024
	DateDayMonthYear  DateFormat = "day-month-year"   // 25 December 2024
	DateDayMonDotYear DateFormat = "day-mon-dot-year" // 25 Dec. 2024
	DateISO8601       DateFormat = "iso8601"          // 2024-12-25T10:00:00Z, 2024-12-25
)

// Valid reports whether f is a known format
func (f DateFormat) Valid() bool {
	switch f {
	case DateDMYDot, DateDMYSlash, DateDayMonthYear, DateDayMonDotYear, DateISO8601:
		return true
	}
	return false
}

var (
	dmyDotRe   = regexp.MustCompile(`\d{1,2}\.\d{1,2}\.\d{4}`)
	dmySlashRe = regexp.MustCompile(`\d{1,2}/\d{1,2}/\d{4}`)
	dayMonthRe = regexp.MustCompile(`\d{1,2}\s+[A-Za-z]+\.?\s+\d{4}`)
	isoRe      = regexp.MustCompile(`\d{4}-\d{2}-\d{2}(?:[T ]\d{2}:\d{2}(?::\d{2}(?:\.\d+)?)?(?:Z|[+-]\d{2}:?\d{2})?)?`)
)

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseDate finds a date written in format inside text. Results are UTC.
func ParseDate(text string, format DateFormat) (time.Time, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, false
	}

	switch format {
	case DateDMYDot:
		return parseMatch(dmyDotRe, text, "2.1.2006")
	case DateDMYSlash:
		return parseMatch(dmySlashRe, text, "2/1/2006")
	case DateDayMonthYear:
		return parseMatch(dayMonthRe, text, "2 January 2006", "2 Jan 2006")
	case DateDayMonDotYear:
		m := dayMonthRe.FindString(text)
		if m == "" {
			return time.Time{}, false
		}
		return parseLayouts(normalizeMonthAbbrev(m), "2 Jan 2006", "2 January 2006")
	case DateISO8601:
		if t, ok := parseLayouts(text, isoLayouts...); ok {
			return t, true
		}
		return parseMatch(isoRe, text, isoLayouts...)
	}

	return time.Time{}, false
}

func parseMatch(re *regexp.Regexp, text string, layouts ...string) (time.Time, bool) {
	m := re.FindString(text)
	if m == "" {
		return time.Time{}, false
	}
	return parseLayouts(strings.Join(strings.Fields(m), " "), layouts...)
}

func parseLayouts(value string, layouts ...string) (time.Time, bool) {
	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// normalizeMonthAbbrev turns "3 Sept. 2024" into "3 Sep 2024"
func normalizeMonthAbbrev(s string) string {
	fields := strings.Fields(strings.ReplaceAll(s, ".", " "))
	if len(fields) != 3 {
		return s
	}
	month := fields[1]
	if len(month) > 3 && !isFullMonth(month) {
		month = month[:3]
	}
	return fields[0] + " " + month + " " + fields[2]
}

func isFullMonth(s string) bool {
	for m := time.January; m <= time.December; m++ {
		if strings.EqualFold(m.String(), s) {
			return true
		}
	}
	return false
}
