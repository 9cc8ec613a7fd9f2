package outbox

// Event is a meeting lifecycle event staged in the same transaction as the
// change that caused it. The Kafka topic equals EventType.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

const (
	AggregateMeeting = "scheduled_meeting"

	EventMeetingScheduled   = "scheduling.meeting.scheduled.v1"
	EventMeetingRescheduled = "scheduling.meeting.rescheduled.v1"
	EventMeetingCancelled   = "scheduling.meeting.cancelled.v1"
	EventMeetingCompleted   = "scheduling.meeting.completed.v1"
)
