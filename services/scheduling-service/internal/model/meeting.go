package model

import (
	"errors"
	"time"
)

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

var ErrInvalidTransition = errors.New("invalid meeting status transition")

// CanTransition reports whether a meeting in s may move to next. Only scheduled
// meetings move, and cancelled and completed are terminal.
func (s Status) CanTransition(next Status) bool {
	return s == StatusScheduled && (next == StatusCancelled || next == StatusCompleted)
}

type ScheduledMeeting struct {
	ID            string
	MeetingTypeID string
	HostID        string
	AttendeeName  string
	AttendeeEmail string
	AttendeePhone string
	StartTime     time.Time
	EndTime       time.Time
	// Buffers are copied from the meeting type at booking time, so later edits
	// to the type do not move what the meeting already occupies.
	BufferBefore time.Duration
	BufferAfter  time.Duration
	Timezone     string
	Status       Status
	Notes        string
	Answers      map[string]string
	// ManagementToken is only populated on the meeting returned from a booking;
	// storage keeps its hash.
	ManagementToken string
	CancelledAt     *time.Time
	CancelReason    string
	CompletedAt     *time.Time
	CreatedAt       time.Time
}

// OccupiedStart and OccupiedEnd bound the meeting together with its buffers.
// No two scheduled meetings of one host may have overlapping occupied spans.
func (m ScheduledMeeting) OccupiedStart() time.Time { return m.StartTime.Add(-m.BufferBefore) }
func (m ScheduledMeeting) OccupiedEnd() time.Time   { return m.EndTime.Add(m.BufferAfter) }

func (m *ScheduledMeeting) Cancel(at time.Time, reason string) error {
	if !m.Status.CanTransition(StatusCancelled) {
		return ErrInvalidTransition
	}
	m.Status = StatusCancelled
	m.CancelledAt = &at
	m.CancelReason = reason
	return nil
}

func (m *ScheduledMeeting) Complete(at time.Time) error {
	if !m.Status.CanTransition(StatusCompleted) {
		return ErrInvalidTransition
	}
	m.Status = StatusCompleted
	m.CompletedAt = &at
	return nil
}
