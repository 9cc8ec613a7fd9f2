package availability

import (
	"time"

	"cloud.google.com/go/civil"
)

type AvailabilityRequest struct {
	MeetingType MeetingType
	Date        civil.Date
	Rules       []AvailabilityRule
	Override    *SchedulingOverride
	Busy        []BusyPeriod
	// Location is the host timezone. Nil means UTC.
	Location *time.Location
	Now      time.Time
}

// CalculateAvailableSlots returns the bookable slots for req.Date in generation
// order. Every returned slot starts inside [now+notice, now+max advance], the
// same bounds ValidateBooking enforces. Dates that lie wholly outside them
// short-circuit to no slots before any window is resolved.
func CalculateAvailableSlots(req AvailabilityRequest) ([]TimeSlot, error) {
	mt := req.MeetingType
	if err := mt.Validate(); err != nil {
		return nil, err
	}

	earliest := mt.EarliestStart(req.Now)
	latest := mt.LatestStart(req.Now)
	dayStart, dayEnd := DayBounds(req.Date, req.Location)
	if !dayEnd.After(earliest) {
		return nil, nil
	}
	if dayStart.After(latest) {
		return nil, nil
	}

	windows := ResolveWindows(req.Date, req.Rules, req.Override)
	candidates := GenerateSlots(req.Date, windows, mt, req.Location)

	slots := make([]TimeSlot, 0, len(candidates))
	for _, s := range candidates {
		if s.start.Before(earliest) || s.start.After(latest) {
			continue
		}
		if HasConflict(s, req.Busy, true) {
			continue
		}
		slots = append(slots, s)
	}
	return slots, nil
}
