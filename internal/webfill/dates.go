package webfill

import (
	"regexp"
	"strings"
	"time"
)

const isoDateLayout = "2006-01-02"

var isoDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// dateLayouts are tried in order; slash dates read month first
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-1-2",
	"2006/01/02",
	"2006/1/2",
	"2006.01.02",
	"01/02/2006",
	"1/2/2006",
	"01-02-2006",
	"January 2, 2006",
	"January 2 2006",
	"Jan 2, 2006",
	"Jan 2 2006",
	"2 January 2006",
	"2 Jan 2006",
	"Monday, January 2, 2006",
	"Mon Jan 2 2006",
}

// NormalizeDate rewrites a parseable date as YYYY-MM-DD and returns
// anything else unchanged.
func NormalizeDate(s string) string {
	trimmed := strings.TrimSpace(s)
	if isoDatePattern.MatchString(trimmed) {
		return trimmed
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t.Format(isoDateLayout)
		}
	}
	return s
}
