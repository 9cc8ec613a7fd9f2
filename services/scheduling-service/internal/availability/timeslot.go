package availability

import (
	"fmt"
	"time"
)

// TimeSlot is an immutable half-open interval [start, end) with optional buffer
// margins that the host also needs free around it.
type TimeSlot struct {
	start        time.Time
	end          time.Time
	bufferBefore time.Duration
	bufferAfter  time.Duration
}

func NewTimeSlot(start, end time.Time) (TimeSlot, error) {
	return NewBufferedTimeSlot(start, end, 0, 0)
}

func NewBufferedTimeSlot(start, end time.Time, bufferBefore, bufferAfter time.Duration) (TimeSlot, error) {
	if !end.After(start) {
		return TimeSlot{}, fmt.Errorf("%w: start=%s end=%s", ErrInvalidInterval, start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	if bufferBefore < 0 || bufferAfter < 0 {
		return TimeSlot{}, fmt.Errorf("%w: negative buffer", ErrInvalidInterval)
	}
	return TimeSlot{start: start, end: end, bufferBefore: bufferBefore, bufferAfter: bufferAfter}, nil
}

func (s TimeSlot) Start() time.Time            { return s.start }
func (s TimeSlot) End() time.Time              { return s.end }
func (s TimeSlot) BufferBefore() time.Duration { return s.bufferBefore }
func (s TimeSlot) BufferAfter() time.Duration  { return s.bufferAfter }
func (s TimeSlot) Duration() time.Duration     { return s.end.Sub(s.start) }

// OccupiedStart is the start expanded by the leading buffer.
func (s TimeSlot) OccupiedStart() time.Time { return s.start.Add(-s.bufferBefore) }

// OccupiedEnd is the end expanded by the trailing buffer.
func (s TimeSlot) OccupiedEnd() time.Time { return s.end.Add(s.bufferAfter) }

// Overlaps reports whether the two slots intersect. With includeBuffer each slot
// is first widened by its own buffers.
func (s TimeSlot) Overlaps(other TimeSlot, includeBuffer bool) bool {
	aStart, aEnd := s.start, s.end
	bStart, bEnd := other.start, other.end
	if includeBuffer {
		aStart, aEnd = s.OccupiedStart(), s.OccupiedEnd()
		bStart, bEnd = other.OccupiedStart(), other.OccupiedEnd()
	}
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// Equal compares start and end instants only; buffers are ignored.
func (s TimeSlot) Equal(other TimeSlot) bool {
	return s.start.Equal(other.start) && s.end.Equal(other.end)
}

func (s TimeSlot) String() string {
	return s.start.Format(time.RFC3339) + "/" + s.end.Format(time.RFC3339)
}
