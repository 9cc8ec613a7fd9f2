package storage

import (
	"context"
	"time"

	"cloud.google.com/go/civil"
	"github.com/relaycrm/scheduling/services/scheduling-service/internal/availability"
	"github.com/relaycrm/scheduling/services/scheduling-service/internal/booking"
)

func meetingType(ctx context.Context, q querier, id string) (booking.HostMeetingType, error) {
	var hm booking.HostMeetingType
	mt := &hm.Type
	err := q.QueryRow(ctx, `
		SELECT mt.id::text, mt.host_id::text, h.timezone,
			mt.duration_minutes, mt.buffer_before_minutes, mt.buffer_after_minutes,
			mt.min_notice_hours, mt.max_advance_days, mt.slot_interval_minutes, mt.active
		FROM meeting_types mt
		JOIN hosts h ON h.id = mt.host_id
		WHERE mt.id::text = $1
	`, id).Scan(
		&mt.ID,
		&hm.HostID,
		&hm.HostTimezone,
		&mt.DurationMinutes,
		&mt.BufferBeforeMinutes,
		&mt.BufferAfterMinutes,
		&mt.MinNoticeHours,
		&mt.MaxAdvanceDays,
		&mt.SlotIntervalMinutes,
		&mt.Active,
	)
	if err != nil {
		return booking.HostMeetingType{}, translate(err)
	}
	return hm, nil
}

// schedule loads the rules for date's weekday in their stored order and the
// override for date, if any.
func schedule(ctx context.Context, q querier, hostID string, date civil.Date) ([]availability.AvailabilityRule, *availability.SchedulingOverride, error) {
	weekday := date.In(time.UTC).Weekday()
	rows, err := q.Query(ctx, `
		SELECT weekday, start_minute, end_minute, available
		FROM availability_rules
		WHERE host_id::text = $1 AND weekday = $2
		ORDER BY position ASC, id ASC
	`, hostID, int(weekday))
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var rules []availability.AvailabilityRule
	for rows.Next() {
		var (
			rule availability.AvailabilityRule
			day  int
		)
		if err := rows.Scan(&day, &rule.StartMinute, &rule.EndMinute, &rule.Available); err != nil {
			return nil, nil, err
		}
		rule.Weekday = time.Weekday(day)
		rules = append(rules, rule)
	}
	if rows.Err() != nil {
		return nil, nil, rows.Err()
	}

	var (
		override    availability.SchedulingOverride
		startMinute *int
		endMinute   *int
	)
	err = q.QueryRow(ctx, `
		SELECT unavailable, start_minute, end_minute
		FROM scheduling_overrides
		WHERE host_id::text = $1 AND override_date = $2::date
	`, hostID, date.String()).Scan(&override.Unavailable, &startMinute, &endMinute)
	if IsNotFound(err) {
		return rules, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	override.Date = date
	if startMinute != nil {
		override.StartMinute = *startMinute
	}
	if endMinute != nil {
		override.EndMinute = *endMinute
	}
	return rules, &override, nil
}

// busyPeriods merges scheduled meetings and imported calendar blocks that
// intersect [from, to). Meetings contribute their occupied span, buffers
// included.
func busyPeriods(ctx context.Context, q querier, hostID string, from, to time.Time, excludeMeetingID string) ([]availability.BusyPeriod, error) {
	rows, err := q.Query(ctx, `
		SELECT occupied_start, occupied_end
		FROM scheduled_meetings
		WHERE host_id::text = $1
			AND status = 'scheduled'
			AND occupied_start < $3
			AND occupied_end > $2
			AND id::text <> $4
		UNION ALL
		SELECT start_time, end_time
		FROM external_busy_blocks
		WHERE host_id::text = $1
			AND start_time < $3
			AND end_time > $2
		ORDER BY 1 ASC
	`, hostID, from, to, excludeMeetingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var busy []availability.BusyPeriod
	for rows.Next() {
		var b availability.BusyPeriod
		if err := rows.Scan(&b.Start, &b.End); err != nil {
			return nil, err
		}
		busy = append(busy, b)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return busy, nil
}
