// Package load defines the trip and leg records produced by parsing
// free-text load postings. Both types are pure output values; persistence
// identity is assigned by the storage layer, never here.
package load

import (
	"time"

	"github.com/shopspring/decimal"
)

// Sentinel values substituted when a field's pattern fails to match.
// Downstream consumers must treat these as "unparsed", not "absent":
// several of them are matched on literally by reporting queries.
const (
	UnknownTripID   = "UNKNOWN_TRIP_ID"
	UnknownLegID    = "UNKNOWN_LEG_ID"
	UnknownFacility = "UNKNOWN_FACILITY"
	UnknownAddress  = "UNKNOWN_ADDRESS"
	UnknownTime     = "UNKNOWN_TIME"
)

// Trip is one shipment-level record extracted from a load posting.
// Unparseable timestamps are the zero time.Time; money fields are zero
// decimals on a miss.
type Trip struct {
	TripID            string          `json:"trip_id"`
	PickUpFacilityID  string          `json:"pick_up_facility_id"`
	DropOffFacilityID string          `json:"drop_off_facility_id"`
	PickUpAddress     string          `json:"pick_up_address"`
	DropOffAddress    string          `json:"drop_off_address"`
	PickUpTime        time.Time       `json:"pick_up_time"`
	DropOffTime       time.Time       `json:"drop_off_time"`
	PickUpTimeStr     string          `json:"pick_up_time_str"`
	DropOffTimeStr    string          `json:"drop_off_time_str"`
	Rate              decimal.Decimal `json:"rate"`
	RatePerMile       decimal.Decimal `json:"rate_per_mile"`
	Distance          float64         `json:"distance"`
	AssignedDriver    string          `json:"assigned_driver,omitempty"`

	// IsTeamLoad is never inferred from text; it is always false at parse
	// time and flipped later by dispatch tooling.
	IsTeamLoad bool `json:"is_team_load"`

	// DispatcherID is an opaque caller-supplied reference, not parsed.
	DispatcherID *int64 `json:"dispatcher_id,omitempty"`
}

// Leg is a single pickup-to-dropoff movement within a trip. A leg's
// identity is its own leg id, independent of the parent trip id.
type Leg struct {
	LegID             string          `json:"leg_id"`
	PickUpFacilityID  string          `json:"pick_up_facility_id"`
	DropOffFacilityID string          `json:"drop_off_facility_id"`
	PickUpAddress     string          `json:"pick_up_address"`
	DropOffAddress    string          `json:"drop_off_address"`
	PickUpTime        time.Time       `json:"pick_up_time"`
	DropOffTime       time.Time       `json:"drop_off_time"`
	PickUpTimeStr     string          `json:"pick_up_time_str"`
	DropOffTimeStr    string          `json:"drop_off_time_str"`
	FuelSurCharge     decimal.Decimal `json:"fuel_sur_charge"`
	Distance          float64         `json:"distance"`
	AssignedDriver    string          `json:"assigned_driver,omitempty"`
}

// ParsedLoad is the result of one parse call: the trip header plus its
// legs in input order. Leg order is load-bearing for downstream leg
// numbering and must never be re-sorted.
type ParsedLoad struct {
	Trip Trip  `json:"tripInfo"`
	Legs []Leg `json:"legs"`
}

// MissingFields lists the trip-level fields that ended up at their
// sentinel default. Used for parse-quality reporting.
func (p *ParsedLoad) MissingFields() []string {
	var missing []string
	t := p.Trip
	if t.TripID == UnknownTripID {
		missing = append(missing, "trip_id")
	}
	if t.PickUpFacilityID == UnknownFacility {
		missing = append(missing, "pick_up_facility_id")
	}
	if t.DropOffFacilityID == UnknownFacility {
		missing = append(missing, "drop_off_facility_id")
	}
	if t.PickUpAddress == UnknownAddress {
		missing = append(missing, "pick_up_address")
	}
	if t.DropOffAddress == UnknownAddress {
		missing = append(missing, "drop_off_address")
	}
	if t.PickUpTimeStr == UnknownTime {
		missing = append(missing, "pick_up_time_str")
	}
	if t.DropOffTimeStr == UnknownTime {
		missing = append(missing, "drop_off_time_str")
	}
	if t.Rate.IsZero() {
		missing = append(missing, "rate")
	}
	if t.RatePerMile.IsZero() {
		missing = append(missing, "rate_per_mile")
	}
	if t.Distance == 0 {
		missing = append(missing, "distance")
	}
	if t.AssignedDriver == "" {
		missing = append(missing, "assigned_driver")
	}
	return missing
}
