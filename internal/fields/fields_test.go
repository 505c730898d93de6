package fields

import (
	"strings"
	"testing"

	"load_parser/internal/patterns"
)

func TestPickFunctions(t *testing.T) {
	tests := []struct {
		name    string
		pick    Pick
		matches []string
		want    string
		ok      bool
	}{
		{"First empty", First, nil, "", false},
		{"First one", First, []string{"a"}, "a", true},
		{"First many", First, []string{"a", "b", "c"}, "a", true},

		{"Second empty", Second, nil, "", false},
		{"Second one", Second, []string{"a"}, "", false},
		{"Second two", Second, []string{"a", "b"}, "b", true},
		{"Second many", Second, []string{"a", "b", "c"}, "b", true},

		{"Last one", Last, []string{"a"}, "", false},
		{"Last two", Last, []string{"a", "b"}, "b", true},
		{"Last many", Last, []string{"a", "b", "c"}, "c", true},

		{"SecondToLast one", SecondToLast, []string{"a"}, "", false},
		{"SecondToLast two", SecondToLast, []string{"a", "b"}, "a", true},
		{"SecondToLast many", SecondToLast, []string{"a", "b", "c", "d"}, "c", true},
	}

	for _, tt := range tests {
		got, ok := tt.pick(tt.matches)
		if ok != tt.ok || got != tt.want {
			t.Errorf("%s: got (%q, %v), want (%q, %v)", tt.name, got, ok, tt.want, tt.ok)
		}
	}
}

func TestField_Extract(t *testing.T) {
	f := Field{
		Name:    "drop_off_facility_id",
		Pattern: patterns.FacilityPattern,
		Pick:    Second,
		Default: "UNKNOWN_FACILITY",
	}

	if got := f.Extract("from PSP1 to TUS5"); got != "TUS5" {
		t.Errorf("Extract = %q, want %q", got, "TUS5")
	}
	if got := f.Extract("from PSP1 only"); got != "UNKNOWN_FACILITY" {
		t.Errorf("Extract on position miss = %q, want sentinel", got)
	}
	if got := f.Extract("no codes"); got != "UNKNOWN_FACILITY" {
		t.Errorf("Extract on pattern miss = %q, want sentinel", got)
	}
}

func TestField_ExtractCleanToEmpty(t *testing.T) {
	// A value that cleans down to nothing is a miss, not an empty field.
	f := Field{
		Name:    "assigned_driver",
		Pattern: patterns.DriverPattern,
		Pick:    First,
		Clean:   strings.TrimSpace,
		Default: "NOBODY",
	}

	if got := f.Extract("Assign driver\n   "); got != "NOBODY" {
		t.Errorf("Extract = %q, want default on blank capture", got)
	}
	if got := f.Extract("Assign driver\n  Maria Lopez  "); got != "Maria Lopez" {
		t.Errorf("Extract = %q, want %q", got, "Maria Lopez")
	}
}
