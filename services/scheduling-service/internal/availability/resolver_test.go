package availability

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"
)

// 2026-01-26 is a Monday.
var monday = civil.Date{Year: 2026, Month: time.January, Day: 26}

func TestResolveWindows_RulesForWeekdayInOrder(t *testing.T) {
	rules := []AvailabilityRule{
		{Weekday: time.Monday, StartMinute: 13 * 60, EndMinute: 17 * 60, Available: true},
		{Weekday: time.Tuesday, StartMinute: 9 * 60, EndMinute: 12 * 60, Available: true},
		{Weekday: time.Monday, StartMinute: 9 * 60, EndMinute: 12 * 60, Available: true},
		{Weekday: time.Monday, StartMinute: 18 * 60, EndMinute: 19 * 60, Available: false},
	}
	got := ResolveWindows(monday, rules, nil)
	if len(got) != 2 {
		t.Fatalf("expected 2 windows, got %d", len(got))
	}
	if got[0] != (Window{StartMinute: 13 * 60, EndMinute: 17 * 60}) {
		t.Fatalf("unexpected first window %+v", got[0])
	}
	if got[1] != (Window{StartMinute: 9 * 60, EndMinute: 12 * 60}) {
		t.Fatalf("unexpected second window %+v", got[1])
	}
}

func TestResolveWindows_OverlappingRulesAreKept(t *testing.T) {
	rules := []AvailabilityRule{
		{Weekday: time.Monday, StartMinute: 9 * 60, EndMinute: 12 * 60, Available: true},
		{Weekday: time.Monday, StartMinute: 11 * 60, EndMinute: 13 * 60, Available: true},
	}
	if got := ResolveWindows(monday, rules, nil); len(got) != 2 {
		t.Fatalf("expected overlapping rules to stay separate, got %d windows", len(got))
	}
}

func TestResolveWindows_UnavailableOverride(t *testing.T) {
	rules := []AvailabilityRule{{Weekday: time.Monday, StartMinute: 9 * 60, EndMinute: 12 * 60, Available: true}}
	override := &SchedulingOverride{Date: monday, Unavailable: true}
	if got := ResolveWindows(monday, rules, override); len(got) != 0 {
		t.Fatalf("expected no windows, got %+v", got)
	}
}

func TestResolveWindows_CustomHoursOverride(t *testing.T) {
	rules := []AvailabilityRule{
		{Weekday: time.Monday, StartMinute: 9 * 60, EndMinute: 12 * 60, Available: true},
		{Weekday: time.Monday, StartMinute: 13 * 60, EndMinute: 17 * 60, Available: true},
	}
	override := &SchedulingOverride{Date: monday, StartMinute: 7 * 60, EndMinute: 8 * 60}
	got := ResolveWindows(monday, rules, override)
	if len(got) != 1 || got[0] != (Window{StartMinute: 7 * 60, EndMinute: 8 * 60}) {
		t.Fatalf("expected the override window only, got %+v", got)
	}
}

func TestResolveWindows_OverrideForAnotherDateIgnored(t *testing.T) {
	rules := []AvailabilityRule{{Weekday: time.Monday, StartMinute: 9 * 60, EndMinute: 12 * 60, Available: true}}
	override := &SchedulingOverride{Date: monday.AddDays(7), Unavailable: true}
	if got := ResolveWindows(monday, rules, override); len(got) != 1 {
		t.Fatalf("expected rules to apply, got %+v", got)
	}
}
