package extract

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var reAmountNoise = regexp.MustCompile(`(?i)(chf|eur|fr\.?|€|\*)`)

// ParseAmount parses a monetary token in whichever shape the vendor emitted:
// a JSON number, or a string in Swiss ("1'234.50"), German ("1.234,50"),
// French ("1 234,50") or English ("1,234.50") formatting. Returns false for
// anything that does not parse to a finite number.
func ParseAmount(v interface{}) (decimal.Decimal, bool) {
	switch val := v.(type) {
	case nil:
		return decimal.Zero, false
	case float64:
		return decimal.NewFromFloat(val), true
	case int:
		return decimal.NewFromInt(int64(val)), true
	case int64:
		return decimal.NewFromInt(val), true
	case json.Number:
		d, err := decimal.NewFromString(string(val))
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	case string:
		return parseAmountString(val)
	default:
		return decimal.Zero, false
	}
}

func parseAmountString(s string) (decimal.Decimal, bool) {
	s = reAmountNoise.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}

	// Swiss thousands apostrophe: 1'234.50
	s = strings.ReplaceAll(s, "'", "")
	s = strings.ReplaceAll(s, "’", "")

	// French thousands space: 1 234,50 (regular or narrow no-break space)
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, " ", "")

	hasComma := strings.Contains(s, ",")
	hasDot := strings.Contains(s, ".")

	switch {
	case hasComma && hasDot:
		// Whichever separator appears last is the decimal mark.
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case hasComma:
		// Lone comma: decimal mark when followed by 1-2 digits (German
		// convention), thousands separator otherwise.
		idx := strings.LastIndex(s, ",")
		if digits := len(s) - idx - 1; digits >= 1 && digits <= 2 && strings.Count(s, ",") == 1 {
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// ParseQuantity parses a line-item quantity; returns 1 when the vendor gave
// nothing usable, since a detected item without a quantity signal is a single
// purchase.
func ParseQuantity(v interface{}) decimal.Decimal {
	d, ok := ParseAmount(v)
	if !ok || !d.IsPositive() {
		return decimal.NewFromInt(1)
	}
	return d
}
