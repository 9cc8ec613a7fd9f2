package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/relaycrm/scheduling/services/scheduling-service/internal/model"
)

// MeetingEvent builds a lifecycle event for m. extra keys are merged into the
// payload and win over the standard ones.
func MeetingEvent(eventType string, m model.ScheduledMeeting, extra map[string]any) (Event, error) {
	payload := map[string]any{
		"meeting_id":      m.ID,
		"meeting_type_id": m.MeetingTypeID,
		"host_id":         m.HostID,
		"attendee_name":   m.AttendeeName,
		"attendee_email":  m.AttendeeEmail,
		"attendee_phone":  m.AttendeePhone,
		"start_time":      m.StartTime.UTC().Format(time.RFC3339),
		"end_time":        m.EndTime.UTC().Format(time.RFC3339),
		"timezone":        m.Timezone,
		"status":          string(m.Status),
	}
	for k, v := range extra {
		payload[k] = v
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("build %s payload: %w", eventType, err)
	}
	return Event{
		AggregateType: AggregateMeeting,
		AggregateID:   m.ID,
		EventType:     eventType,
		Payload:       body,
	}, nil
}
