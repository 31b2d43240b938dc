package assign

import (
	"testing"
	"time"
)

func TestParseTimeOfDay(t *testing.T) {
	cases := []struct {
		in      string
		want    TimeOfDay
		wantErr bool
	}{
		{"00:00", 0, false},
		{"09:30", 9*60 + 30, false},
		{"15:04", 15*60 + 4, false},
		{"23:59", 23*60 + 59, false},
		{"24:00", 0, true},
		{"25:00", 0, true},
		{"12:60", 0, true},
		{"noon", 0, true},
		{"", 0, true},
	}

	for _, c := range cases {
		got, err := ParseTimeOfDay(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("ParseTimeOfDay(%q): expected error, got %v", c.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseTimeOfDay(%q): unexpected error: %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("ParseTimeOfDay(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestTimeOfDayString(t *testing.T) {
	if s := MustTimeOfDay("09:05").String(); s != "09:05" {
		t.Errorf("String() = %q, want %q", s, "09:05")
	}
	if s := TimeOfDay(0).String(); s != "00:00" {
		t.Errorf("String() = %q, want %q", s, "00:00")
	}
}

func TestDay_TruncatesToUTCMidnight(t *testing.T) {
	in := time.Date(2026, 3, 14, 16, 45, 12, 999, time.UTC)
	got := Day(in)
	want := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Day(%v) = %v, want %v", in, got, want)
	}
}

func TestResponseExpired(t *testing.T) {
	assignedAt := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	r := AssignmentRequest{
		Status:           StatusAssigned,
		AssignedAt:       &assignedAt,
		ResponseDeadline: 2 * time.Hour,
	}

	if r.ResponseExpired(assignedAt.Add(1 * time.Hour)) {
		t.Error("deadline not yet passed, expected not expired")
	}
	if !r.ResponseExpired(assignedAt.Add(2*time.Hour + time.Second)) {
		t.Error("deadline passed, expected expired")
	}

	// No assignment timestamp means nothing to expire.
	r.AssignedAt = nil
	if r.ResponseExpired(assignedAt.Add(48 * time.Hour)) {
		t.Error("unassigned request should never be expired")
	}
}

func TestHasDeclined(t *testing.T) {
	r := AssignmentRequest{DeclinedBy: []AssistantID{"a1", "a2"}}
	if !r.HasDeclined("a1") {
		t.Error("expected a1 to be recorded as declined")
	}
	if r.HasDeclined("a3") {
		t.Error("a3 never declined")
	}
}
