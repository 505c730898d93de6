// Package dates reconstructs absolute, zoned timestamps from the partial
// time strings found in load postings, e.g. "Wed, 19 Apr, 09:04 EDT".
//
// The source text never carries a year, so the reference time's calendar
// year is attached. This is a deliberate approximation: a late-December
// pickup parsed in early January silently gets the wrong year. Callers
// that care pass an explicit reference via Resolve instead of ResolveNow.
package dates

import (
	"regexp"
	"strings"
	"time"

	"load_parser/internal/patterns"
)

// layout of the cleaned remainder once the timezone abbreviation and the
// optional weekday prefix are stripped, e.g. "19 Apr, 09:04".
const layout = "2 Jan, 15:04"

var (
	tzAbbrRe      = regexp.MustCompile(`\b(EDT|CDT|MDT|PDT)\b`)
	weekdayPrefix = regexp.MustCompile(`^\w{3},\s*`)
)

// ResolveNow reconstructs raw against the current calendar year.
func ResolveNow(raw string) (time.Time, bool) {
	return Resolve(raw, time.Now())
}

// Resolve reconstructs a zoned timestamp from raw, attaching ref's
// calendar year. It reports ok=false when the timezone abbreviation is
// unknown, the remainder does not parse, or the zone cannot be loaded;
// it never guesses a timezone. Callers substitute the zero time.Time.
func Resolve(raw string, ref time.Time) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}

	m := tzAbbrRe.FindStringSubmatch(raw)
	if m == nil {
		return time.Time{}, false
	}
	abbr := m[1]

	zone, ok := patterns.TimezoneMap[abbr]
	if !ok {
		return time.Time{}, false
	}

	clean := strings.TrimSpace(strings.ReplaceAll(raw, abbr, ""))
	clean = weekdayPrefix.ReplaceAllString(clean, "")

	naive, err := time.Parse(layout, clean)
	if err != nil {
		return time.Time{}, false
	}

	loc, err := time.LoadLocation(zone)
	if err != nil {
		return time.Time{}, false
	}

	return time.Date(ref.Year(), naive.Month(), naive.Day(), naive.Hour(), naive.Minute(), 0, 0, loc), true
}
