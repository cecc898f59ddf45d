package extract

import (
	"regexp"
	"time"
)

// dateFormats covers the printed forms seen on Swiss, German and French
// receipts plus the ISO form most vendors emit for structured entities.
var dateFormats = []string{
	"2006-01-02",
	"02.01.2006",
	"02.01.06",
	"02/01/2006",
	"02-01-2006",
	"2006/01/02",
	"2006-01-02T15:04:05Z07:00",
}

var reTextDate = regexp.MustCompile(`\b(\d{1,2})[./](\d{1,2})[./](\d{2}|\d{4})\b`)

// ParseDate parses a date string against the known receipt formats. The zero
// time signals "unextractable"; the caller leaves the field unset.
func ParseDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, format := range dateFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// FindDateInText scans the raw transcript for the first dotted or slashed
// day-first date. Two-digit years resolve into the 2000s.
func FindDateInText(text string) time.Time {
	m := reTextDate.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}
	}
	candidate := m[1] + "." + m[2] + "." + m[3]
	if len(m[3]) == 2 {
		return ParseDate(candidate) // 02.01.06 layout
	}
	return ParseDate(candidate)
}
