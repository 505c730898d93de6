package load

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestMissingFields_Complete(t *testing.T) {
	p := &ParsedLoad{
		Trip: Trip{
			TripID:            "T-12ABC345D",
			PickUpFacilityID:  "PSP1",
			DropOffFacilityID: "TUS5",
			PickUpAddress:     "Palm Springs, CA",
			DropOffAddress:    "Tucson, AZ",
			PickUpTime:        time.Now(),
			DropOffTime:       time.Now(),
			PickUpTimeStr:     "Wed, 19 Apr, 09:04 EDT",
			DropOffTimeStr:    "Thu, 20 Apr, 18:30 CDT",
			Rate:              decimal.RequireFromString("4520.90"),
			RatePerMile:       decimal.RequireFromString("2.15"),
			Distance:          2100,
			AssignedDriver:    "John Smith",
		},
	}

	if missing := p.MissingFields(); len(missing) != 0 {
		t.Errorf("MissingFields = %v, want none", missing)
	}
}

func TestMissingFields_AllSentinels(t *testing.T) {
	p := &ParsedLoad{
		Trip: Trip{
			TripID:            UnknownTripID,
			PickUpFacilityID:  UnknownFacility,
			DropOffFacilityID: UnknownFacility,
			PickUpAddress:     UnknownAddress,
			DropOffAddress:    UnknownAddress,
			PickUpTimeStr:     UnknownTime,
			DropOffTimeStr:    UnknownTime,
		},
	}

	missing := p.MissingFields()
	want := map[string]bool{
		"trip_id": true, "pick_up_facility_id": true, "drop_off_facility_id": true,
		"pick_up_address": true, "drop_off_address": true,
		"pick_up_time_str": true, "drop_off_time_str": true,
		"rate": true, "rate_per_mile": true, "distance": true, "assigned_driver": true,
	}
	if len(missing) != len(want) {
		t.Fatalf("MissingFields = %v, want %d entries", missing, len(want))
	}
	for _, f := range missing {
		if !want[f] {
			t.Errorf("unexpected missing field %q", f)
		}
	}
}
