package dates

import (
	"testing"
	"time"
)

func mustLoad(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Fatalf("load location %s: %v", name, err)
	}
	return loc
}

func TestResolve(t *testing.T) {
	ref := time.Date(2023, time.January, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		raw  string
		zone string
		want time.Time
	}{
		{"Wed, 19 Apr, 09:04 EDT", "America/New_York", time.Time{}},
		{"Thu, 20 Apr, 18:30 CDT", "America/Chicago", time.Time{}},
		{"Mon, 5 Jun, 08:00 MDT", "America/Denver", time.Time{}},
		{"Tue, 6 Jun, 02:15 PDT", "America/Los_Angeles", time.Time{}},
	}
	tests[0].want = time.Date(2023, time.April, 19, 9, 4, 0, 0, mustLoad(t, "America/New_York"))
	tests[1].want = time.Date(2023, time.April, 20, 18, 30, 0, 0, mustLoad(t, "America/Chicago"))
	tests[2].want = time.Date(2023, time.June, 5, 8, 0, 0, 0, mustLoad(t, "America/Denver"))
	tests[3].want = time.Date(2023, time.June, 6, 2, 15, 0, 0, mustLoad(t, "America/Los_Angeles"))

	for _, tt := range tests {
		got, ok := Resolve(tt.raw, ref)
		if !ok {
			t.Errorf("Resolve(%q) failed", tt.raw)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("Resolve(%q) = %v, want %v", tt.raw, got, tt.want)
		}
		if got.Location().String() != tt.zone {
			t.Errorf("Resolve(%q) zone = %s, want %s", tt.raw, got.Location(), tt.zone)
		}
	}
}

func TestResolve_NoWeekdayPrefix(t *testing.T) {
	ref := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	got, ok := Resolve("19 Apr, 09:04 EDT", ref)
	if !ok {
		t.Fatal("Resolve failed")
	}
	want := time.Date(2024, time.April, 19, 9, 4, 0, 0, mustLoad(t, "America/New_York"))
	if !got.Equal(want) {
		t.Errorf("Resolve = %v, want %v", got, want)
	}
}

func TestResolve_AttachesReferenceYear(t *testing.T) {
	raw := "Wed, 19 Apr, 09:04 EDT"
	for _, year := range []int{2021, 2026} {
		ref := time.Date(year, time.August, 1, 0, 0, 0, 0, time.UTC)
		got, ok := Resolve(raw, ref)
		if !ok {
			t.Fatalf("Resolve failed for year %d", year)
		}
		if got.Year() != year {
			t.Errorf("Resolve year = %d, want %d", got.Year(), year)
		}
	}
}

func TestResolve_Failures(t *testing.T) {
	ref := time.Now()
	tests := []string{
		"",
		"19 Apr, 09:04 XYZ", // unknown timezone abbreviation
		"19 Apr, 09:04",     // no timezone at all
		"Apr EDT",           // nothing to parse once the abbreviation is stripped
	}
	for _, raw := range tests {
		if got, ok := Resolve(raw, ref); ok {
			t.Errorf("Resolve(%q) = %v, want failure", raw, got)
		}
	}
}
