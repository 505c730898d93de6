// Package fields models each field extractor as an independent, named
// unit: a pattern, a position-selection rule over its matches, an
// optional cleanup step, and a sentinel default. The segmentation engine
// composes these passes; keeping them separate makes the first-vs-last-
// vs-second-to-last policy per field auditable and testable on its own.
package fields

import (
	"regexp"

	"load_parser/internal/patterns"
)

// Pick selects one value from an ordered match list. It reports ok=false
// when the list does not carry the position it needs.
type Pick func(matches []string) (string, bool)

// First selects the first match.
func First(matches []string) (string, bool) {
	if len(matches) == 0 {
		return "", false
	}
	return matches[0], true
}

// Second selects the second match. With fewer than two matches it is a
// miss: the single match belongs to the pickup side of the pair.
func Second(matches []string) (string, bool) {
	if len(matches) < 2 {
		return "", false
	}
	return matches[1], true
}

// Last selects the final match, provided at least two exist. Regions may
// contain incidental matches between the real pair, so the last one is
// the drop-off candidate.
func Last(matches []string) (string, bool) {
	if len(matches) < 2 {
		return "", false
	}
	return matches[len(matches)-1], true
}

// SecondToLast selects the second-to-last match, provided at least two
// exist. Used for drop-off times, where a trailing unrelated date token
// sometimes follows the real one. With exactly two matches this selects
// the first; that is the intended policy, not an off-by-one.
func SecondToLast(matches []string) (string, bool) {
	if len(matches) < 2 {
		return "", false
	}
	return matches[len(matches)-2], true
}

// Field is one named extraction pass.
type Field struct {
	Name    string
	Pattern *regexp.Regexp
	Pick    Pick
	Clean   func(string) string // optional post-processing of the picked value
	Default string              // sentinel substituted on any miss
}

// Extract applies the pass to a text region. A pattern miss, a position
// miss, or a value that cleans down to the empty string all yield the
// sentinel default.
func (f Field) Extract(text string) string {
	v, ok := f.Pick(patterns.FindAll(f.Pattern, text))
	if !ok {
		return f.Default
	}
	if f.Clean != nil {
		v = f.Clean(v)
	}
	if v == "" {
		return f.Default
	}
	return v
}
