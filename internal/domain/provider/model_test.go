package provider

import (
	"testing"
	"time"
)

func TestClockTimeMinutes(t *testing.T) {
	cases := []struct {
		in   ClockTime
		want int
	}{
		{"00:00", 0},
		{"09:00", 540},
		{"09:15", 555},
		{"17:00", 1020},
		{"23:59", 1439},
	}
	for _, tc := range cases {
		got, err := tc.in.Minutes()
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.in, err)
		}
		if got != tc.want {
			t.Errorf("%s: expected %d, got %d", tc.in, tc.want, got)
		}
	}
}

func TestClockTimeMinutes_Invalid(t *testing.T) {
	for _, in := range []ClockTime{"", "9am", "25:00", "12:60", "noon"} {
		if _, err := in.Minutes(); err == nil {
			t.Errorf("%q: expected error", in)
		}
	}
}

func TestWeeklyScheduleForWeekday(t *testing.T) {
	ws := WeeklySchedule{
		"monday": {Start: "08:00", End: "12:00"},
	}
	hours, ok := ws.ForWeekday(time.Monday)
	if !ok {
		t.Fatal("expected monday entry")
	}
	if hours.Start != "08:00" || hours.End != "12:00" {
		t.Errorf("unexpected hours: %+v", hours)
	}
	if _, ok := ws.ForWeekday(time.Tuesday); ok {
		t.Error("expected no tuesday entry")
	}
}

func TestWeeklyScheduleValidate(t *testing.T) {
	ws := WeeklySchedule{
		"monday":  {Start: "09:00", End: "17:00"},
		"tuesday": {Start: "08:00", End: "12:00", Break: &BreakWindow{Start: "10:00", End: "10:30"}},
	}
	if err := ws.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestWeeklyScheduleValidate_BadWeekday(t *testing.T) {
	ws := WeeklySchedule{"funday": {Start: "09:00", End: "17:00"}}
	if err := ws.Validate(); err == nil {
		t.Error("expected error for unknown weekday")
	}
}

func TestWeeklyScheduleValidate_StartAfterEnd(t *testing.T) {
	ws := WeeklySchedule{"monday": {Start: "17:00", End: "09:00"}}
	if err := ws.Validate(); err == nil {
		t.Error("expected error for inverted hours")
	}
}

func TestWeeklyScheduleValidate_BadBreak(t *testing.T) {
	ws := WeeklySchedule{"monday": {
		Start: "09:00", End: "17:00",
		Break: &BreakWindow{Start: "13:00", End: "12:00"},
	}}
	if err := ws.Validate(); err == nil {
		t.Error("expected error for inverted break")
	}
}

func TestProviderFullName(t *testing.T) {
	title := "Dr."
	p := &Provider{FirstName: "Sarah", LastName: "Chen", Title: &title}
	if got := p.FullName(); got != "Dr. Sarah Chen" {
		t.Errorf("expected 'Dr. Sarah Chen', got %q", got)
	}
	p.Title = nil
	if got := p.FullName(); got != "Sarah Chen" {
		t.Errorf("expected 'Sarah Chen', got %q", got)
	}
}
