package scheduling

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseClockTime(t *testing.T) {
	tests := []struct {
		in      string
		want    ClockTime
		wantErr bool
	}{
		{"00:00", 0, false},
		{"09:30", 570, false},
		{"23:59", 1439, false},
		{"24:00", 0, true},
		{"12:60", 0, true},
		{"9:30", 0, true},
		{"0930", 0, true},
		{"ab:cd", 0, true},
		{"+9:00", 0, true},
		{"09:+5", 0, true},
		{"-1:00", 0, true},
		{" 9:00", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseClockTime(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error for %q, got %v", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
			if got.String() != tt.in {
				t.Errorf("round trip: expected %s, got %s", tt.in, got)
			}
		})
	}
}

func TestParseWeekday(t *testing.T) {
	for in, want := range map[string]Weekday{
		"monday":  Monday,
		"Mon":     Monday,
		" FRI ":   Friday,
		"sunday":  Sunday,
		"Thu":     Thursday,
		"saturda": "",
		"xyz":     "",
	} {
		got, err := ParseWeekday(in)
		if want == "" {
			if err == nil {
				t.Errorf("expected error for %q", in)
			}
			continue
		}
		if err != nil || got != want {
			t.Errorf("ParseWeekday(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
}

func TestDate(t *testing.T) {
	if monday.Weekday() != Monday {
		t.Errorf("expected 2025-03-03 to be a monday, got %s", monday.Weekday())
	}
	if got := NewDate(2025, time.February, 30); got != NewDate(2025, time.March, 2) {
		t.Errorf("expected normalization to 2025-03-02, got %s", got)
	}
	if !monday.Before(tuesday) || !tuesday.After(monday) || monday.AddDays(1) != tuesday {
		t.Error("date ordering is broken")
	}
	if _, err := ParseDate("2025-13-01"); err == nil {
		t.Error("expected error for month 13")
	}
	if (Date{}).String() != "" {
		t.Error("zero date must render empty")
	}
}

func TestJSONEncoding(t *testing.T) {
	b := Booking{DoctorID: "d1", Date: monday, Time: clock("09:30"), PatientRef: "p"}
	raw, err := json.Marshal(b)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	_ = json.Unmarshal(raw, &m)
	if m["date"] != "2025-03-03" || m["time"] != "09:30" {
		t.Errorf("unexpected wire format: %s", raw)
	}

	var back Booking
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Date != monday || back.Time != clock("09:30") {
		t.Errorf("unexpected decode %+v", back)
	}

	var ct ClockTime
	if err := json.Unmarshal([]byte(`570`), &ct); err == nil {
		t.Error("numeric times must be rejected")
	}
}

func TestWindowOverlaps(t *testing.T) {
	w := Window{Start: clock("09:00"), End: clock("10:00")}
	tests := []struct {
		name string
		o    Window
		want bool
	}{
		{"identical", w, true},
		{"inside", Window{Start: clock("09:15"), End: clock("09:45")}, true},
		{"straddles start", Window{Start: clock("08:30"), End: clock("09:30")}, true},
		{"adjacent before", Window{Start: clock("08:00"), End: clock("09:00")}, false},
		{"adjacent after", Window{Start: clock("10:00"), End: clock("11:00")}, false},
		{"disjoint", Window{Start: clock("14:00"), End: clock("15:00")}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := w.Overlaps(tt.o); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
			if got := tt.o.Overlaps(w); got != tt.want {
				t.Errorf("overlap must be symmetric")
			}
		})
	}
}

func TestScheduleCovers(t *testing.T) {
	s := mondayMorning("d1")
	to := NewDate(2025, time.March, 31)
	s.ValidTo = &to

	if !s.Covers(NewDate(2025, time.January, 1)) || !s.Covers(to) {
		t.Error("validity bounds are inclusive")
	}
	if s.Covers(NewDate(2024, time.December, 31)) || s.Covers(to.AddDays(1)) {
		t.Error("dates outside validity must not be covered")
	}
}
