package availability

import (
	"fmt"
	"time"

	"cloud.google.com/go/civil"
)

// MinutesPerDay is the largest valid minute-of-day; it marks the end of a day.
const MinutesPerDay = 24 * 60

// MeetingType is the bookable template a host publishes: length, buffers and
// how far ahead it may be booked.
type MeetingType struct {
	ID                  string
	DurationMinutes     int
	BufferBeforeMinutes int
	BufferAfterMinutes  int
	MinNoticeHours      int
	MaxAdvanceDays      int
	SlotIntervalMinutes int
	Active              bool
}

// Validate reports ErrInvalidMeetingType for non-positive lengths or negative limits.
func (m MeetingType) Validate() error {
	switch {
	case m.DurationMinutes <= 0:
		return fmt.Errorf("%w: duration must be positive", ErrInvalidMeetingType)
	case m.SlotIntervalMinutes <= 0:
		return fmt.Errorf("%w: slot interval must be positive", ErrInvalidMeetingType)
	case m.BufferBeforeMinutes < 0 || m.BufferAfterMinutes < 0:
		return fmt.Errorf("%w: buffers must not be negative", ErrInvalidMeetingType)
	case m.MinNoticeHours < 0 || m.MaxAdvanceDays < 0:
		return fmt.Errorf("%w: notice and advance limits must not be negative", ErrInvalidMeetingType)
	}
	return nil
}

func (m MeetingType) Duration() time.Duration {
	return time.Duration(m.DurationMinutes) * time.Minute
}

func (m MeetingType) BufferBefore() time.Duration {
	return time.Duration(m.BufferBeforeMinutes) * time.Minute
}

func (m MeetingType) BufferAfter() time.Duration {
	return time.Duration(m.BufferAfterMinutes) * time.Minute
}

func (m MeetingType) SlotInterval() time.Duration {
	return time.Duration(m.SlotIntervalMinutes) * time.Minute
}

func (m MeetingType) MinNotice() time.Duration {
	return time.Duration(m.MinNoticeHours) * time.Hour
}

// EarliestStart is the first instant a slot may start when evaluated at now.
func (m MeetingType) EarliestStart(now time.Time) time.Time {
	return now.Add(m.MinNotice())
}

// LatestStart is the last instant a slot may start when evaluated at now.
func (m MeetingType) LatestStart(now time.Time) time.Time {
	return now.AddDate(0, 0, m.MaxAdvanceDays)
}

// AvailabilityRule is a recurring weekly window. Minutes are counted from local midnight.
type AvailabilityRule struct {
	Weekday     time.Weekday
	StartMinute int
	EndMinute   int
	Available   bool
}

// SchedulingOverride replaces every rule for Date. When Unavailable is false the
// host is open for exactly [StartMinute, EndMinute).
type SchedulingOverride struct {
	Date        civil.Date
	Unavailable bool
	StartMinute int
	EndMinute   int
}

// Window is an open range of minutes from local midnight on one date.
type Window struct {
	StartMinute int
	EndMinute   int
}

// BusyPeriod is an instant range the host is already committed to.
type BusyPeriod struct {
	Start time.Time
	End   time.Time
}
