package extract

import (
	"regexp"
	"strings"

	"github.com/spesenwerk/receipt-ocr-service/internal/models"
)

// Strategy attempts to derive one field's value from the raw payload. The
// boolean reports whether a usable value was found; strategies are pure.
type Strategy func(raw *models.RawOcrResult) (string, bool)

// firstMatch evaluates strategies in order and returns the first hit.
// Structured-entity strategies always come before regex-over-text ones: the
// entities carry vendor confidence scores, regex extraction carries none.
func firstMatch(raw *models.RawOcrResult, strategies []Strategy) (string, bool) {
	for _, strategy := range strategies {
		if value, ok := strategy(raw); ok {
			return value, true
		}
	}
	return "", false
}

// entity looks up the named structured entities in order and returns the
// first with a non-blank value.
func entity(names ...string) Strategy {
	return func(raw *models.RawOcrResult) (string, bool) {
		for _, name := range names {
			if e, ok := raw.Entities[name]; ok {
				if v := strings.TrimSpace(e.Value); v != "" {
					return v, true
				}
			}
		}
		return "", false
	}
}

// entityCleaned is entity with a cleaning function applied before the
// emptiness check, so an entity that cleans to nothing falls through to the
// next strategy.
func entityCleaned(clean func(string) string, names ...string) Strategy {
	inner := entity(names...)
	return func(raw *models.RawOcrResult) (string, bool) {
		v, ok := inner(raw)
		if !ok {
			return "", false
		}
		if cleaned := clean(v); cleaned != "" {
			return cleaned, true
		}
		return "", false
	}
}

// regexText runs the patterns over the raw transcript in order and returns
// the first capturing-group match.
func regexText(patterns ...*regexp.Regexp) Strategy {
	return func(raw *models.RawOcrResult) (string, bool) {
		for _, pattern := range patterns {
			if m := pattern.FindStringSubmatch(raw.Text); len(m) > 1 {
				if v := strings.TrimSpace(m[1]); v != "" {
					return v, true
				}
			}
		}
		return "", false
	}
}
