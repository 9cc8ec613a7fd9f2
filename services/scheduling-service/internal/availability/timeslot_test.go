package availability

import (
	"errors"
	"testing"
	"time"
)

func at(hour, minute int) time.Time {
	return time.Date(2026, 1, 26, hour, minute, 0, 0, time.UTC)
}

func mustSlot(t *testing.T, start, end time.Time, before, after time.Duration) TimeSlot {
	t.Helper()
	s, err := NewBufferedTimeSlot(start, end, before, after)
	if err != nil {
		t.Fatalf("NewBufferedTimeSlot: %v", err)
	}
	return s
}

func TestNewTimeSlot_RejectsEmptyAndInverted(t *testing.T) {
	if _, err := NewTimeSlot(at(9, 0), at(9, 0)); !errors.Is(err, ErrInvalidInterval) {
		t.Fatalf("expected ErrInvalidInterval for empty interval, got %v", err)
	}
	if _, err := NewTimeSlot(at(10, 0), at(9, 0)); !errors.Is(err, ErrInvalidInterval) {
		t.Fatalf("expected ErrInvalidInterval for inverted interval, got %v", err)
	}
	if _, err := NewBufferedTimeSlot(at(9, 0), at(10, 0), -time.Minute, 0); !errors.Is(err, ErrInvalidInterval) {
		t.Fatalf("expected ErrInvalidInterval for negative buffer, got %v", err)
	}
}

func TestTimeSlot_OverlapsIsHalfOpen(t *testing.T) {
	a := mustSlot(t, at(9, 0), at(9, 30), 0, 0)
	b := mustSlot(t, at(9, 30), at(10, 0), 0, 0)
	if a.Overlaps(b, false) || b.Overlaps(a, false) {
		t.Fatal("adjacent slots must not overlap")
	}
	c := mustSlot(t, at(9, 29), at(9, 45), 0, 0)
	if !a.Overlaps(c, false) || !c.Overlaps(a, false) {
		t.Fatal("expected overlap")
	}
}

func TestTimeSlot_OverlapsWithBuffer(t *testing.T) {
	a := mustSlot(t, at(9, 0), at(9, 30), 0, 15*time.Minute)
	b := mustSlot(t, at(9, 40), at(10, 0), 0, 0)
	if a.Overlaps(b, false) {
		t.Fatal("raw intervals should not overlap")
	}
	if !a.Overlaps(b, true) {
		t.Fatal("trailing buffer should reach into the next slot")
	}

	c := mustSlot(t, at(9, 40), at(10, 0), 5*time.Minute, 0)
	d := mustSlot(t, at(9, 0), at(9, 36), 0, 0)
	if !c.Overlaps(d, true) {
		t.Fatal("leading buffer should reach back into the previous slot")
	}
}

func TestTimeSlot_EqualIgnoresBuffers(t *testing.T) {
	a := mustSlot(t, at(9, 0), at(9, 30), 0, 0)
	b := mustSlot(t, at(9, 0), at(9, 30), 10*time.Minute, 15*time.Minute)
	if !a.Equal(a) {
		t.Fatal("Equal must be reflexive")
	}
	if !a.Equal(b) || !b.Equal(a) {
		t.Fatal("Equal must ignore buffers and be symmetric")
	}

	// Same instant in another zone is still the same slot.
	loc := time.FixedZone("UTC+2", 2*60*60)
	c := mustSlot(t, at(9, 0).In(loc), at(9, 30).In(loc), 0, 0)
	if !a.Equal(c) {
		t.Fatal("Equal must compare instants, not wall clocks")
	}

	d := mustSlot(t, at(9, 0), at(9, 31), 0, 0)
	if a.Equal(d) {
		t.Fatal("different end must not be equal")
	}
}

func TestTimeSlot_OccupiedSpan(t *testing.T) {
	s := mustSlot(t, at(9, 0), at(9, 30), 10*time.Minute, 15*time.Minute)
	if !s.OccupiedStart().Equal(at(8, 50)) || !s.OccupiedEnd().Equal(at(9, 45)) {
		t.Fatalf("unexpected occupied span %s - %s", s.OccupiedStart(), s.OccupiedEnd())
	}
	if s.Duration() != 30*time.Minute {
		t.Fatalf("expected 30m duration, got %s", s.Duration())
	}
}
