// Package extractor implements the load text segmentation and extraction
// engine: one raw text blob in, one trip with its ordered legs out.
//
// The engine is a pure, synchronous computation with no shared state; it
// is safe to call concurrently. A field that fails to match degrades to
// its sentinel default, never to an error. The only hard failure is
// empty input.
package extractor

import (
	"errors"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"load_parser/internal/dates"
	"load_parser/internal/fields"
	"load_parser/internal/load"
	"load_parser/internal/patterns"
)

// ErrEmptyText is the only caller-visible parse failure: no input at all.
var ErrEmptyText = errors.New("no text provided for parsing")

// splitSearchOffset skips a leg-id-shaped token embedded in the text's
// very first line when looking for the header/body split point. The trip
// header is assumed to contain at most one incidental leg-id token before
// the real leg blocks begin.
const splitSearchOffset = 5

type config struct {
	dispatcherID *int64
	ref          time.Time
}

// Option adjusts a single parse call.
type Option func(*config)

// WithDispatcher attaches an opaque dispatcher reference to the trip.
// The engine never parses it from text.
func WithDispatcher(id int64) Option {
	return func(c *config) { c.dispatcherID = &id }
}

// WithReferenceTime sets the reference used to attach a calendar year to
// parsed timestamps. Defaults to time.Now; fixing it makes parses of
// year-ambiguous text reproducible.
func WithReferenceTime(t time.Time) Option {
	return func(c *config) { c.ref = t }
}

// The extraction passes, one named unit per field. Trip and leg regions
// share the facility and driver passes; addresses differ in cleanup
// because a leg's address capture may span preceding lines.
var (
	pickUpFacilityField = fields.Field{
		Name: "pick_up_facility_id", Pattern: patterns.FacilityPattern,
		Pick: fields.First, Default: load.UnknownFacility,
	}
	dropOffFacilityField = fields.Field{
		Name: "drop_off_facility_id", Pattern: patterns.FacilityPattern,
		Pick: fields.Second, Default: load.UnknownFacility,
	}
	tripPickUpAddressField = fields.Field{
		Name: "pick_up_address", Pattern: patterns.AddressPattern,
		Pick: fields.First, Clean: strings.TrimSpace, Default: load.UnknownAddress,
	}
	tripDropOffAddressField = fields.Field{
		Name: "drop_off_address", Pattern: patterns.AddressPattern,
		Pick: fields.Last, Clean: strings.TrimSpace, Default: load.UnknownAddress,
	}
	legPickUpAddressField = fields.Field{
		Name: "pick_up_address", Pattern: patterns.AddressPattern,
		Pick: fields.First, Clean: lastLine, Default: load.UnknownAddress,
	}
	legDropOffAddressField = fields.Field{
		Name: "drop_off_address", Pattern: patterns.AddressPattern,
		Pick: fields.Second, Clean: lastLine, Default: load.UnknownAddress,
	}
	driverField = fields.Field{
		Name: "assigned_driver", Pattern: patterns.DriverPattern,
		Pick: fields.First, Clean: strings.TrimSpace, Default: "",
	}
	rateField = fields.Field{
		Name: "rate", Pattern: patterns.PricePattern, Pick: fields.First,
	}
	ratePerMileField = fields.Field{
		Name: "rate_per_mile", Pattern: patterns.RatePerMilePattern, Pick: fields.First,
	}
	fuelSurChargeField = fields.Field{
		Name: "fuel_sur_charge", Pattern: patterns.SimplePricePattern, Pick: fields.First,
	}
	distanceField = fields.Field{
		Name: "distance", Pattern: patterns.DistancePattern, Pick: fields.First,
	}
)

// Parse extracts one trip and its ordered legs from raw load text.
// It returns ErrEmptyText when the input is empty or whitespace-only;
// every other input yields a non-nil result, with per-field misses
// degraded to sentinel defaults.
func Parse(text string, opts ...Option) (*load.ParsedLoad, error) {
	cfg := config{ref: time.Now()}
	for _, o := range opts {
		o(&cfg)
	}

	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	splitPoint := findSplitPoint(text)
	header := text[:splitPoint]
	tail := text[splitPoint:]

	blocks := strings.Split(tail, patterns.LegSplitMarker)

	result := &load.ParsedLoad{
		Trip: extractTrip(header, text, cfg),
		Legs: []load.Leg{},
	}

	// The boundary marker frequently does not precede the very first leg:
	// the pre-marker block is a leg exactly when it carries a leg id.
	if patterns.FindFirst(patterns.LegIDPattern, blocks[0]) != "" {
		result.Legs = append(result.Legs, extractLeg(blocks[0], cfg))
	}
	for _, block := range blocks[1:] {
		if strings.TrimSpace(block) == "" {
			continue
		}
		// Re-prefix the marker so position-sensitive address captures
		// still see the text shape they matched against upstream.
		result.Legs = append(result.Legs, extractLeg(patterns.LegSplitMarker+"\n"+block, cfg))
	}

	return result, nil
}

// findSplitPoint locates the boundary between the trip header region and
// the leg blocks. Ladder: offset of the second leg-id occurrence, then
// the "Assign driver" label, then the whole text as header (degraded but
// non-fatal).
func findSplitPoint(text string) int {
	legIDs := patterns.FindAll(patterns.LegIDPattern, text)
	if len(legIDs) > 1 && len(text) > splitSearchOffset {
		if idx := strings.Index(text[splitSearchOffset:], legIDs[1]); idx >= 0 {
			return idx + splitSearchOffset
		}
	}

	if idx := strings.Index(text, patterns.AssignDriverMarker); idx >= 0 {
		return idx
	}

	log.Printf("extractor: no reliable split point (second leg id or %q marker); treating entire text as trip header", patterns.AssignDriverMarker)
	return len(text)
}

func extractTrip(header, fullText string, cfg config) load.Trip {
	// Trip id and the time list are resolved against the full original
	// text: both routinely appear after the computed split point. The id
	// falls back to a leg-id-shaped token when no trip id matches.
	tripID := patterns.FindFirst(patterns.TripIDPattern, header)
	if tripID == "" {
		tripID = patterns.FindFirst(patterns.LegIDPattern, fullText)
	}
	if tripID == "" {
		tripID = load.UnknownTripID
	}

	times := patterns.FindAll(patterns.TripTimePattern, fullText)
	pickUpStr, pickUp, dropOffStr, dropOff := resolveTimes(times, cfg.ref)

	// The driver block sits past the split point whenever "Assign driver"
	// itself was the split anchor, so the header miss falls back to the
	// full text.
	driver := driverField.Extract(header)
	if driver == "" {
		driver = driverField.Extract(fullText)
	}

	return load.Trip{
		TripID:            tripID,
		PickUpFacilityID:  pickUpFacilityField.Extract(header),
		DropOffFacilityID: dropOffFacilityField.Extract(header),
		PickUpAddress:     tripPickUpAddressField.Extract(header),
		DropOffAddress:    tripDropOffAddressField.Extract(header),
		PickUpTime:        pickUp,
		DropOffTime:       dropOff,
		PickUpTimeStr:     pickUpStr,
		DropOffTimeStr:    dropOffStr,
		Rate:              amountOrZero(rateField.Extract(header)),
		RatePerMile:       amountOrZero(ratePerMileField.Extract(header)),
		Distance:          distanceOrZero(distanceField.Extract(header)),
		AssignedDriver:    driver,
		IsTeamLoad:        false,
		DispatcherID:      cfg.dispatcherID,
	}
}

func extractLeg(text string, cfg config) load.Leg {
	legID := patterns.FindFirst(patterns.LegIDPattern, text)
	if legID == "" {
		legID = load.UnknownLegID
	}

	times := patterns.FindAll(patterns.TripTimePattern, text)
	pickUpStr, pickUp, dropOffStr, dropOff := resolveTimes(times, cfg.ref)

	return load.Leg{
		LegID:             legID,
		PickUpFacilityID:  pickUpFacilityField.Extract(text),
		DropOffFacilityID: dropOffFacilityField.Extract(text),
		PickUpAddress:     legPickUpAddressField.Extract(text),
		DropOffAddress:    legDropOffAddressField.Extract(text),
		PickUpTime:        pickUp,
		DropOffTime:       dropOff,
		PickUpTimeStr:     pickUpStr,
		DropOffTimeStr:    dropOffStr,
		FuelSurCharge:     amountOrZero(fuelSurChargeField.Extract(text)),
		Distance:          distanceOrZero(distanceField.Extract(text)),
		AssignedDriver:    driverField.Extract(text),
	}
}

// resolveTimes applies the first / second-to-last policy to the ordered
// time-token list and reconstructs both ends. Misses degrade to the
// UNKNOWN_TIME sentinel and the zero time.Time.
func resolveTimes(times []string, ref time.Time) (pickUpStr string, pickUp time.Time, dropOffStr string, dropOff time.Time) {
	pickUpStr = load.UnknownTime
	dropOffStr = load.UnknownTime

	if first, ok := fields.First(times); ok {
		pickUpStr = first
		if t, ok := dates.Resolve(first, ref); ok {
			pickUp = t
		}
	}
	if secondToLast, ok := fields.SecondToLast(times); ok {
		dropOffStr = secondToLast
		if t, ok := dates.Resolve(secondToLast, ref); ok {
			dropOff = t
		}
	}
	return
}

func amountOrZero(raw string) decimal.Decimal {
	d, ok := patterns.ParseAmount(raw)
	if !ok {
		return decimal.Zero
	}
	return d
}

func distanceOrZero(raw string) float64 {
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return float64(n)
}

// lastLine keeps only the final line of a capture that spanned preceding
// text, then trims it.
func lastLine(s string) string {
	if idx := strings.LastIndexByte(s, '\n'); idx >= 0 {
		s = s[idx+1:]
	}
	return strings.TrimSpace(s)
}
