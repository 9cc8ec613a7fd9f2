package booking

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/civil"
	"github.com/relaycrm/scheduling/services/scheduling-service/internal/availability"
	"github.com/relaycrm/scheduling/services/scheduling-service/internal/model"
	"github.com/relaycrm/scheduling/services/scheduling-service/internal/outbox"
)

var ErrNotFound = errors.New("not found")

// HostMeetingType is a meeting type together with the host that owns it.
type HostMeetingType struct {
	HostID       string
	HostTimezone string
	Type         availability.MeetingType
}

// Schedules reads the inputs of an availability computation.
type Schedules interface {
	MeetingType(ctx context.Context, meetingTypeID string) (HostMeetingType, error)
	// Schedule returns the host's rules for the weekday of date and the override
	// for exactly that date, if any.
	Schedule(ctx context.Context, hostID string, date civil.Date) ([]availability.AvailabilityRule, *availability.SchedulingOverride, error)
	// BusyPeriods returns scheduled meetings and imported calendar blocks that
	// intersect [from, to). excludeMeetingID, when set, is left out.
	BusyPeriods(ctx context.Context, hostID string, from, to time.Time, excludeMeetingID string) ([]availability.BusyPeriod, error)
}

// Tx is a unit of work that holds the host's booking lock.
type Tx interface {
	Schedules
	MeetingByID(ctx context.Context, meetingID string) (model.ScheduledMeeting, error)
	MeetingForUpdate(ctx context.Context, tokenHash string) (model.ScheduledMeeting, error)
	// InsertMeeting returns availability.ErrSlotUnavailable when the store's
	// overlap constraint rejects the row.
	InsertMeeting(ctx context.Context, m *model.ScheduledMeeting, tokenHash string) (string, error)
	UpdateMeetingTimes(ctx context.Context, meetingID string, start, end time.Time) error
	CancelMeeting(ctx context.Context, meetingID string, at time.Time, reason string) error
	LockIdempotencyKey(ctx context.Context, hostID, key string) (meetingID string, exists bool, err error)
	FinalizeIdempotency(ctx context.Context, hostID, key, meetingID string) error
	InsertEvent(ctx context.Context, evt outbox.Event) error
}

// Store is the persistence collaborator. InHostTx must serialize every call for
// the same host and commit only when fn returns nil.
type Store interface {
	Schedules
	HostForToken(ctx context.Context, tokenHash string) (string, error)
	InHostTx(ctx context.Context, hostID string, fn func(ctx context.Context, tx Tx) error) error
}
