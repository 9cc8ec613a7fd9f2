package availability

import (
	"fmt"
	"time"
)

// ValidateBooking gates creation of a meeting. available must be computed at
// validation time; the first failing check wins.
func ValidateBooking(now time.Time, mt MeetingType, start, end time.Time, proposed TimeSlot, available []TimeSlot) error {
	if !mt.Active {
		return fmt.Errorf("%w: %s", ErrMeetingTypeInactive, mt.ID)
	}
	if start.Before(now) {
		return ErrPastBooking
	}
	if earliest := mt.EarliestStart(now); start.Before(earliest) {
		return fmt.Errorf("%w: earliest start is %s", ErrInsufficientNotice, earliest.Format(time.RFC3339))
	}
	if latest := mt.LatestStart(now); start.After(latest) {
		return fmt.Errorf("%w: latest start is %s", ErrTooFarInAdvance, latest.Format(time.RFC3339))
	}
	if got := end.Sub(start); got != mt.Duration() {
		return fmt.Errorf("%w: got %s, want %s", ErrDurationMismatch, got, mt.Duration())
	}
	if !containsSlot(available, proposed) {
		return ErrSlotUnavailable
	}
	return nil
}

// ValidateReschedule checks a new time for an existing meeting. Activity and
// duration were settled by the original booking.
func ValidateReschedule(now time.Time, newStart, newEnd time.Time, available []TimeSlot) error {
	proposed, err := NewTimeSlot(newStart, newEnd)
	if err != nil {
		return err
	}
	if newStart.Before(now) {
		return ErrPastBooking
	}
	if !containsSlot(available, proposed) {
		return ErrSlotUnavailable
	}
	return nil
}

func containsSlot(available []TimeSlot, proposed TimeSlot) bool {
	for _, s := range available {
		if s.Equal(proposed) {
			return true
		}
	}
	return false
}
