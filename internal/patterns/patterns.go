// Package patterns provides the fixed regex table and scan helpers for
// load text parsing. The table is data, not behavior: the regex choices
// encode the accepted input grammar and are relied on for output parity,
// so change them only together with the extractor tests.
package patterns

import "regexp"

// Core patterns applied across trip and leg regions.
var (
	// TripIDPattern matches shipment-level trip ids: literal "T-" prefix
	// plus nine alphanumerics, e.g. "T-12ABC345D".
	TripIDPattern = regexp.MustCompile(`\bT-[A-Z0-9]{9}\b`)

	// LegIDPattern matches leg ids: a leading digit plus eight
	// alphanumerics, e.g. "1ABCD2345". Deliberately the same length class
	// as a trip id minus the prefix letter; the segmentation split-point
	// heuristic leans on the digit-vs-letter asymmetry, so this matcher
	// must stay distinct from TripIDPattern.
	LegIDPattern = regexp.MustCompile(`\b[0-9][A-Z0-9]{8}\b`)

	// FacilityPattern matches facility codes: three letters plus one or
	// two alphanumerics, e.g. "PSP1", "TUS5". Used for both trip and leg
	// regions.
	FacilityPattern = regexp.MustCompile(`\b[A-Z]{3}[A-Z0-9]{1,2}\b`)

	// TripTimePattern matches a combined date+time+timezone token with an
	// optional leading weekday, e.g. "Wed, 19 Apr, 09:04 EDT".
	TripTimePattern = regexp.MustCompile(`(?:\w{3}, )?\d{1,2} \w{3}, [\d:,]+ [A-Z]{3}`)

	// PricePattern matches currency amounts with optional space/comma
	// grouping, e.g. "$4,520.90", "$1 234,56".
	PricePattern = regexp.MustCompile(`\$\d+(?:[ ,]\d+)*(?:[.,]\d+)?`)

	// RatePerMilePattern matches per-mile rates, e.g. "$2.15/mi".
	RatePerMilePattern = regexp.MustCompile(`\$\d+\.\d+/mi`)

	// DistancePattern captures a distance in miles, e.g. "620 mi".
	DistancePattern = regexp.MustCompile(`(\d+)\s*mi`)

	// SimplePricePattern matches plain amounts inside leg regions, where
	// PricePattern would over-match across grouping separators.
	SimplePricePattern = regexp.MustCompile(`\$\d+[,\.]?\d*`)

	// AddressPattern captures a trailing "City, ST" fragment followed by a
	// ZIP code. The character class spans whitespace including newlines,
	// so leg extraction keeps only the last line of the capture.
	AddressPattern = regexp.MustCompile(`([A-Za-z\s]+,\s*[A-Z]{2})\s*\d{5}`)

	// DriverPattern captures the line immediately following the
	// "Assign driver" label.
	DriverPattern = regexp.MustCompile(`Assign driver\s*\n(.*)`)
)

// Literal anchors used by segmentation.
const (
	// LegSplitMarker delimits consecutive leg blocks in raw text.
	LegSplitMarker = "Drop-off instructions"

	// AssignDriverMarker is the fallback header/body split anchor when no
	// second leg id occurrence exists.
	AssignDriverMarker = "Assign driver"
)

// TimezoneMap maps the four US daylight-savings abbreviations seen in
// load postings to IANA region identifiers. Abbreviations outside this
// table fail date reconstruction rather than guessing a zone.
var TimezoneMap = map[string]string{
	"EDT": "America/New_York",
	"CDT": "America/Chicago",
	"MDT": "America/Denver",
	"PDT": "America/Los_Angeles",
}
