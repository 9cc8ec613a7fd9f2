package availability

import (
	"time"

	"cloud.google.com/go/civil"
)

// GenerateSlots walks each window and emits fixed-length candidates every slot
// interval. A candidate's occupied span, buffers included, always fits inside
// its window. Output keeps window order and is not re-sorted.
func GenerateSlots(date civil.Date, windows []Window, mt MeetingType, loc *time.Location) []TimeSlot {
	if loc == nil {
		loc = time.UTC
	}
	duration := mt.Duration()
	step := mt.SlotInterval()
	if duration <= 0 || step <= 0 {
		return nil
	}
	before, after := mt.BufferBefore(), mt.BufferAfter()

	var slots []TimeSlot
	for _, w := range windows {
		if w.EndMinute <= w.StartMinute {
			continue
		}
		windowStart := atMinute(date, w.StartMinute, loc)
		windowEnd := atMinute(date, w.EndMinute, loc)
		lastStart := windowEnd.Add(-duration - after)
		for t := windowStart.Add(before); !t.After(lastStart); t = t.Add(step) {
			slots = append(slots, TimeSlot{
				start:        t,
				end:          t.Add(duration),
				bufferBefore: before,
				bufferAfter:  after,
			})
		}
	}
	return slots
}

// atMinute anchors a minute-of-day to date on the local wall clock, so a DST
// shift earlier in the day does not move 09:00 to 10:00.
func atMinute(date civil.Date, minute int, loc *time.Location) time.Time {
	return time.Date(date.Year, date.Month, date.Day, 0, minute, 0, 0, loc)
}

// DayBounds returns local midnight at the start of date and of the following day.
func DayBounds(date civil.Date, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	return atMinute(date, 0, loc), atMinute(date.AddDays(1), 0, loc)
}
