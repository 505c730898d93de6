// Generic scan primitives used by the extraction passes. All of them are
// total: a miss is reported as an empty string, empty slice, or ok=false,
// never as a panic or error.

package patterns

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// FindFirst returns the first match of re in text, or "" if there is none.
func FindFirst(re *regexp.Regexp, text string) string {
	return FindFirstGroup(re, text, 0)
}

// FindFirstGroup returns the requested capture group of the first match,
// or "" when there is no match or the group does not exist.
func FindFirstGroup(re *regexp.Regexp, text string, group int) string {
	m := re.FindStringSubmatch(text)
	if m == nil || group < 0 || group >= len(m) {
		return ""
	}
	return m[group]
}

// FindAll returns every non-overlapping match of re in text in
// left-to-right order. When the pattern declares exactly one capture
// group, the group text is returned instead of the whole match; the
// address pattern depends on this to strip the trailing ZIP code.
func FindAll(re *regexp.Regexp, text string) []string {
	matches := re.FindAllStringSubmatch(text, -1)
	if matches == nil {
		return nil
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if re.NumSubexp() >= 1 {
			out = append(out, m[1])
		} else {
			out = append(out, m[0])
		}
	}
	return out
}

// amountReplacer strips the formatting characters found in matched
// amounts: currency sign, space grouping, and the per-mile suffix.
var amountReplacer = strings.NewReplacer("$", "", " ", "", "/mi", "")

// ParseAmount normalizes a matched currency string to a fixed-point
// decimal. A comma is treated as a thousands separator when a decimal
// point is also present ("$1,234.56" -> 1234.56) and as a decimal comma
// otherwise ("$45,00/mi" -> 45.00). Malformed input reports ok=false.
func ParseAmount(raw string) (decimal.Decimal, bool) {
	return ParseAmountWith(raw, amountReplacer)
}

// ParseAmountWith is ParseAmount with a caller-supplied substitution set.
func ParseAmountWith(raw string, repl *strings.Replacer) (decimal.Decimal, bool) {
	if raw == "" {
		return decimal.Decimal{}, false
	}
	cleaned := repl.Replace(raw)
	if strings.Contains(cleaned, ",") {
		if strings.Contains(cleaned, ".") {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", ".")
		}
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}
