package extractor

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"load_parser/internal/load"
)

// refTime pins the calendar year attached to parsed timestamps.
var refTime = time.Date(2023, time.March, 1, 0, 0, 0, 0, time.UTC)

func mustZone(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Fatalf("load location %s: %v", name, err)
	}
	return loc
}

const tripOnlyText = `T-12ABC345D
PSP1
Palm Springs, CA 92262
TUS5
Tucson, AZ 85747
$4,520.90
$2.15/mi
2100 mi
Wed, 19 Apr, 09:04 EDT
Thu, 20 Apr, 18:30 CDT
Assign driver
John Smith`

const multiLegText = `Trip T-56DEF789G
$3,100.00
$1.55/mi
620 mi
Assign driver
Maria Lopez
Drop-off instructions
1ABCD2345
ABQ1
Albuquerque, NM 87121
FLG2
Flagstaff, AZ 86001
Mon, 5 Jun, 08:00 MDT
Mon, 5 Jun, 14:30 MDT
$120.50
310 mi
Drop-off instructions
2EFGH6789
FLG2
Flagstaff, AZ 86001
PHX7
Phoenix, AZ 85043
Mon, 5 Jun, 16:00 PDT
Tue, 6 Jun, 02:15 PDT
Updated Tue, 6 Jun, 04:00 PDT
$480.25
310 mi`

func TestParse_TripOnly(t *testing.T) {
	p, err := Parse(tripOnlyText, WithReferenceTime(refTime))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	trip := p.Trip
	if trip.TripID != "T-12ABC345D" {
		t.Errorf("TripID = %q, want %q", trip.TripID, "T-12ABC345D")
	}
	if trip.PickUpFacilityID != "PSP1" {
		t.Errorf("PickUpFacilityID = %q, want %q", trip.PickUpFacilityID, "PSP1")
	}
	if trip.DropOffFacilityID != "TUS5" {
		t.Errorf("DropOffFacilityID = %q, want %q", trip.DropOffFacilityID, "TUS5")
	}
	if trip.PickUpAddress != "Palm Springs, CA" {
		t.Errorf("PickUpAddress = %q, want %q", trip.PickUpAddress, "Palm Springs, CA")
	}
	if trip.DropOffAddress != "Tucson, AZ" {
		t.Errorf("DropOffAddress = %q, want %q", trip.DropOffAddress, "Tucson, AZ")
	}

	if trip.PickUpTimeStr != "Wed, 19 Apr, 09:04 EDT" {
		t.Errorf("PickUpTimeStr = %q", trip.PickUpTimeStr)
	}
	wantPickUp := time.Date(2023, time.April, 19, 9, 4, 0, 0, mustZone(t, "America/New_York"))
	if !trip.PickUpTime.Equal(wantPickUp) {
		t.Errorf("PickUpTime = %v, want %v", trip.PickUpTime, wantPickUp)
	}
	// With exactly two time tokens the second-to-last is the first: the
	// drop-off mirrors the pickup rather than shifting to the last token.
	if trip.DropOffTimeStr != trip.PickUpTimeStr {
		t.Errorf("DropOffTimeStr = %q, want pickup %q", trip.DropOffTimeStr, trip.PickUpTimeStr)
	}
	if !trip.DropOffTime.Equal(trip.PickUpTime) {
		t.Errorf("DropOffTime = %v, want %v", trip.DropOffTime, trip.PickUpTime)
	}

	if want := decimal.RequireFromString("4520.90"); !trip.Rate.Equal(want) {
		t.Errorf("Rate = %s, want %s", trip.Rate, want)
	}
	if want := decimal.RequireFromString("2.15"); !trip.RatePerMile.Equal(want) {
		t.Errorf("RatePerMile = %s, want %s", trip.RatePerMile, want)
	}
	if trip.Distance != 2100 {
		t.Errorf("Distance = %v, want 2100", trip.Distance)
	}
	if trip.AssignedDriver != "John Smith" {
		t.Errorf("AssignedDriver = %q, want %q", trip.AssignedDriver, "John Smith")
	}
	if trip.IsTeamLoad {
		t.Error("IsTeamLoad should be false")
	}
	if trip.DispatcherID != nil {
		t.Errorf("DispatcherID = %v, want nil", *trip.DispatcherID)
	}

	if len(p.Legs) != 0 {
		t.Errorf("expected no legs, got %d", len(p.Legs))
	}
	if missing := p.MissingFields(); len(missing) != 0 {
		t.Errorf("MissingFields = %v, want none", missing)
	}
}

func TestParse_MultiLeg(t *testing.T) {
	p, err := Parse(multiLegText, WithReferenceTime(refTime))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	trip := p.Trip
	if trip.TripID != "T-56DEF789G" {
		t.Errorf("TripID = %q, want %q", trip.TripID, "T-56DEF789G")
	}
	if want := decimal.RequireFromString("3100.00"); !trip.Rate.Equal(want) {
		t.Errorf("Rate = %s, want %s", trip.Rate, want)
	}
	if want := decimal.RequireFromString("1.55"); !trip.RatePerMile.Equal(want) {
		t.Errorf("RatePerMile = %s, want %s", trip.RatePerMile, want)
	}
	if trip.Distance != 620 {
		t.Errorf("Distance = %v, want 620", trip.Distance)
	}
	if trip.AssignedDriver != "Maria Lopez" {
		t.Errorf("AssignedDriver = %q, want %q", trip.AssignedDriver, "Maria Lopez")
	}

	// The trip header here carries only pricing and the driver; location
	// fields degrade to their sentinels.
	if trip.PickUpFacilityID != load.UnknownFacility || trip.DropOffFacilityID != load.UnknownFacility {
		t.Errorf("facilities = %q/%q, want sentinels", trip.PickUpFacilityID, trip.DropOffFacilityID)
	}
	if trip.PickUpAddress != load.UnknownAddress || trip.DropOffAddress != load.UnknownAddress {
		t.Errorf("addresses = %q/%q, want sentinels", trip.PickUpAddress, trip.DropOffAddress)
	}

	// Trip times span the whole text: first token for pickup, second-to-
	// last (of five) for drop-off.
	if trip.PickUpTimeStr != "Mon, 5 Jun, 08:00 MDT" {
		t.Errorf("PickUpTimeStr = %q", trip.PickUpTimeStr)
	}
	if trip.DropOffTimeStr != "Tue, 6 Jun, 02:15 PDT" {
		t.Errorf("DropOffTimeStr = %q", trip.DropOffTimeStr)
	}

	if len(p.Legs) != 2 {
		t.Fatalf("expected 2 legs, got %d", len(p.Legs))
	}

	leg1 := p.Legs[0]
	if leg1.LegID != "1ABCD2345" {
		t.Errorf("leg1 LegID = %q, want %q", leg1.LegID, "1ABCD2345")
	}
	if leg1.PickUpFacilityID != "ABQ1" || leg1.DropOffFacilityID != "FLG2" {
		t.Errorf("leg1 facilities = %q/%q, want ABQ1/FLG2", leg1.PickUpFacilityID, leg1.DropOffFacilityID)
	}
	if leg1.PickUpAddress != "Albuquerque, NM" {
		t.Errorf("leg1 PickUpAddress = %q, want %q", leg1.PickUpAddress, "Albuquerque, NM")
	}
	if leg1.DropOffAddress != "Flagstaff, AZ" {
		t.Errorf("leg1 DropOffAddress = %q, want %q", leg1.DropOffAddress, "Flagstaff, AZ")
	}
	if leg1.PickUpTimeStr != "Mon, 5 Jun, 08:00 MDT" {
		t.Errorf("leg1 PickUpTimeStr = %q", leg1.PickUpTimeStr)
	}
	if leg1.DropOffTimeStr != leg1.PickUpTimeStr {
		t.Errorf("leg1 DropOffTimeStr = %q, want pickup with two tokens", leg1.DropOffTimeStr)
	}
	wantLeg1PickUp := time.Date(2023, time.June, 5, 8, 0, 0, 0, mustZone(t, "America/Denver"))
	if !leg1.PickUpTime.Equal(wantLeg1PickUp) {
		t.Errorf("leg1 PickUpTime = %v, want %v", leg1.PickUpTime, wantLeg1PickUp)
	}
	if want := decimal.RequireFromString("120.50"); !leg1.FuelSurCharge.Equal(want) {
		t.Errorf("leg1 FuelSurCharge = %s, want %s", leg1.FuelSurCharge, want)
	}
	if leg1.Distance != 310 {
		t.Errorf("leg1 Distance = %v, want 310", leg1.Distance)
	}
	if leg1.AssignedDriver != "" {
		t.Errorf("leg1 AssignedDriver = %q, want empty", leg1.AssignedDriver)
	}

	leg2 := p.Legs[1]
	if leg2.LegID != "2EFGH6789" {
		t.Errorf("leg2 LegID = %q, want %q", leg2.LegID, "2EFGH6789")
	}
	if leg2.PickUpFacilityID != "FLG2" || leg2.DropOffFacilityID != "PHX7" {
		t.Errorf("leg2 facilities = %q/%q, want FLG2/PHX7", leg2.PickUpFacilityID, leg2.DropOffFacilityID)
	}
	if leg2.PickUpAddress != "Flagstaff, AZ" {
		t.Errorf("leg2 PickUpAddress = %q, want %q", leg2.PickUpAddress, "Flagstaff, AZ")
	}
	if leg2.DropOffAddress != "Phoenix, AZ" {
		t.Errorf("leg2 DropOffAddress = %q, want %q", leg2.DropOffAddress, "Phoenix, AZ")
	}
	// Three time tokens: the trailing update line is skipped by the
	// second-to-last rule.
	if leg2.PickUpTimeStr != "Mon, 5 Jun, 16:00 PDT" {
		t.Errorf("leg2 PickUpTimeStr = %q", leg2.PickUpTimeStr)
	}
	if leg2.DropOffTimeStr != "Tue, 6 Jun, 02:15 PDT" {
		t.Errorf("leg2 DropOffTimeStr = %q", leg2.DropOffTimeStr)
	}
	wantLeg2DropOff := time.Date(2023, time.June, 6, 2, 15, 0, 0, mustZone(t, "America/Los_Angeles"))
	if !leg2.DropOffTime.Equal(wantLeg2DropOff) {
		t.Errorf("leg2 DropOffTime = %v, want %v", leg2.DropOffTime, wantLeg2DropOff)
	}
	if want := decimal.RequireFromString("480.25"); !leg2.FuelSurCharge.Equal(want) {
		t.Errorf("leg2 FuelSurCharge = %s, want %s", leg2.FuelSurCharge, want)
	}
}

func TestParse_EmptyText(t *testing.T) {
	for _, text := range []string{"", "   ", " \n\t "} {
		p, err := Parse(text)
		if err != ErrEmptyText {
			t.Errorf("Parse(%q) err = %v, want ErrEmptyText", text, err)
		}
		if p != nil {
			t.Errorf("Parse(%q) = %v, want nil", text, p)
		}
	}
}

func TestParse_NoSplitAnchors(t *testing.T) {
	// No second leg id and no driver label: the whole text is treated as
	// the trip header and whatever matches is still extracted.
	p, err := Parse("Load from PSP1 to TUS5 for $500.00", WithReferenceTime(refTime))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if p.Trip.TripID != load.UnknownTripID {
		t.Errorf("TripID = %q, want sentinel", p.Trip.TripID)
	}
	if p.Trip.PickUpFacilityID != "PSP1" || p.Trip.DropOffFacilityID != "TUS5" {
		t.Errorf("facilities = %q/%q, want PSP1/TUS5", p.Trip.PickUpFacilityID, p.Trip.DropOffFacilityID)
	}
	if want := decimal.RequireFromString("500.00"); !p.Trip.Rate.Equal(want) {
		t.Errorf("Rate = %s, want %s", p.Trip.Rate, want)
	}
	if len(p.Legs) != 0 {
		t.Errorf("expected no legs, got %d", len(p.Legs))
	}
}

func TestParse_LegIDFallbackForTripID(t *testing.T) {
	// A posting with a bare leg id and no T- trip id adopts the leg id
	// as the trip identity rather than the sentinel.
	p, err := Parse("Shipment 1ABCD2345 for $500.00", WithReferenceTime(refTime))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if p.Trip.TripID != "1ABCD2345" {
		t.Errorf("TripID = %q, want %q", p.Trip.TripID, "1ABCD2345")
	}
}

func TestParse_DispatcherOption(t *testing.T) {
	p, err := Parse(tripOnlyText, WithDispatcher(7), WithReferenceTime(refTime))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if p.Trip.DispatcherID == nil || *p.Trip.DispatcherID != 7 {
		t.Errorf("DispatcherID = %v, want 7", p.Trip.DispatcherID)
	}
}

func TestParse_Deterministic(t *testing.T) {
	for _, text := range []string{tripOnlyText, multiLegText} {
		first, err := Parse(text, WithReferenceTime(refTime))
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}
		second, err := Parse(text, WithReferenceTime(refTime))
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}

		a, err := json.Marshal(first)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		b, err := json.Marshal(second)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		if !bytes.Equal(a, b) {
			t.Errorf("repeated parse differs:\n%s\n%s", a, b)
		}
	}
}
