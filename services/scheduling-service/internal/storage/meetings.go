package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/relaycrm/scheduling/services/scheduling-service/internal/availability"
	"github.com/relaycrm/scheduling/services/scheduling-service/internal/booking"
	"github.com/relaycrm/scheduling/services/scheduling-service/internal/model"
	"github.com/relaycrm/scheduling/services/scheduling-service/internal/outbox"
)

// hostTx implements booking.Tx over a transaction that holds the host lock.
type hostTx struct {
	tx     pgx.Tx
	outbox *outbox.Repository
}

var _ booking.Tx = (*hostTx)(nil)

const meetingColumns = `
	id::text, meeting_type_id::text, host_id::text, attendee_name, attendee_email,
	COALESCE(attendee_phone, ''), start_time, end_time,
	buffer_before_minutes, buffer_after_minutes, timezone, status,
	COALESCE(notes, ''), answers, cancelled_at, COALESCE(cancel_reason, ''),
	completed_at, created_at`

func scanMeeting(row pgx.Row) (model.ScheduledMeeting, error) {
	var (
		m                         model.ScheduledMeeting
		status                    string
		answers                   []byte
		bufferBefore, bufferAfter int
	)
	err := row.Scan(
		&m.ID,
		&m.MeetingTypeID,
		&m.HostID,
		&m.AttendeeName,
		&m.AttendeeEmail,
		&m.AttendeePhone,
		&m.StartTime,
		&m.EndTime,
		&bufferBefore,
		&bufferAfter,
		&m.Timezone,
		&status,
		&m.Notes,
		&answers,
		&m.CancelledAt,
		&m.CancelReason,
		&m.CompletedAt,
		&m.CreatedAt,
	)
	if err != nil {
		return model.ScheduledMeeting{}, err
	}
	m.Status = model.Status(status)
	m.BufferBefore = time.Duration(bufferBefore) * time.Minute
	m.BufferAfter = time.Duration(bufferAfter) * time.Minute
	if len(answers) > 0 {
		if err := json.Unmarshal(answers, &m.Answers); err != nil {
			return model.ScheduledMeeting{}, fmt.Errorf("decode answers for %s: %w", m.ID, err)
		}
	}
	return m, nil
}

func (t *hostTx) MeetingType(ctx context.Context, meetingTypeID string) (booking.HostMeetingType, error) {
	return meetingType(ctx, t.tx, meetingTypeID)
}

func (t *hostTx) Schedule(ctx context.Context, hostID string, date civil.Date) ([]availability.AvailabilityRule, *availability.SchedulingOverride, error) {
	return schedule(ctx, t.tx, hostID, date)
}

func (t *hostTx) BusyPeriods(ctx context.Context, hostID string, from, to time.Time, excludeMeetingID string) ([]availability.BusyPeriod, error) {
	return busyPeriods(ctx, t.tx, hostID, from, to, excludeMeetingID)
}

func (t *hostTx) MeetingByID(ctx context.Context, meetingID string) (model.ScheduledMeeting, error) {
	m, err := scanMeeting(t.tx.QueryRow(ctx, `SELECT `+meetingColumns+`
		FROM scheduled_meetings
		WHERE id::text = $1
	`, meetingID))
	return m, translate(err)
}

func (t *hostTx) MeetingForUpdate(ctx context.Context, tokenHash string) (model.ScheduledMeeting, error) {
	m, err := scanMeeting(t.tx.QueryRow(ctx, `SELECT `+meetingColumns+`
		FROM scheduled_meetings
		WHERE management_token_hash = $1
		FOR UPDATE
	`, tokenHash))
	return m, translate(err)
}

func (t *hostTx) InsertMeeting(ctx context.Context, m *model.ScheduledMeeting, tokenHash string) (string, error) {
	answers, err := json.Marshal(m.Answers)
	if err != nil {
		return "", fmt.Errorf("encode answers: %w", err)
	}
	id := uuid.NewString()
	_, err = t.tx.Exec(ctx, `
		INSERT INTO scheduled_meetings
			(id, meeting_type_id, host_id, attendee_name, attendee_email, attendee_phone,
			 start_time, end_time, buffer_before_minutes, buffer_after_minutes,
			 occupied_start, occupied_end, timezone, status, notes, answers,
			 management_token_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9, $10, $11, $12,
			$13, $14, NULLIF($15, ''), $16, $17, $18)
	`, id, m.MeetingTypeID, m.HostID, m.AttendeeName, m.AttendeeEmail, m.AttendeePhone,
		m.StartTime, m.EndTime, int(m.BufferBefore/time.Minute), int(m.BufferAfter/time.Minute),
		m.OccupiedStart(), m.OccupiedEnd(), m.Timezone, string(m.Status), m.Notes, answers,
		tokenHash, m.CreatedAt)
	if err != nil {
		return "", translate(err)
	}
	return id, nil
}

func (t *hostTx) UpdateMeetingTimes(ctx context.Context, meetingID string, start, end time.Time) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE scheduled_meetings
		SET start_time = $2,
			end_time = $3,
			occupied_start = $2::timestamptz - make_interval(mins => buffer_before_minutes),
			occupied_end = $3::timestamptz + make_interval(mins => buffer_after_minutes),
			updated_at = now()
		WHERE id::text = $1
	`, meetingID, start, end)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return booking.ErrNotFound
	}
	return nil
}

func (t *hostTx) CancelMeeting(ctx context.Context, meetingID string, at time.Time, reason string) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE scheduled_meetings
		SET status = 'cancelled', cancelled_at = $2, cancel_reason = NULLIF($3, ''), updated_at = now()
		WHERE id::text = $1 AND status = 'scheduled'
	`, meetingID, at, reason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrInvalidTransition
	}
	return nil
}

func (t *hostTx) LockIdempotencyKey(ctx context.Context, hostID, key string) (string, bool, error) {
	meetingID, err := selectIdempotencyForUpdate(ctx, t.tx, hostID, key)
	if err == nil {
		return meetingID, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", false, err
	}

	_, err = t.tx.Exec(ctx, `
		INSERT INTO booking_idempotency_keys (host_id, idempotency_key)
		VALUES ($1, $2)
		ON CONFLICT (host_id, idempotency_key) DO NOTHING
	`, hostID, key)
	if err != nil {
		return "", false, err
	}

	meetingID, err = selectIdempotencyForUpdate(ctx, t.tx, hostID, key)
	if err != nil {
		return "", false, err
	}
	return meetingID, false, nil
}

func (t *hostTx) FinalizeIdempotency(ctx context.Context, hostID, key, meetingID string) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE booking_idempotency_keys
		SET meeting_id = $3, updated_at = now()
		WHERE host_id::text = $1 AND idempotency_key = $2
	`, hostID, key, meetingID)
	return err
}

func (t *hostTx) InsertEvent(ctx context.Context, evt outbox.Event) error {
	return t.outbox.Insert(ctx, t.tx, evt)
}

func selectIdempotencyForUpdate(ctx context.Context, tx pgx.Tx, hostID, key string) (string, error) {
	var meetingID string
	err := tx.QueryRow(ctx, `
		SELECT COALESCE(meeting_id::text, '')
		FROM booking_idempotency_keys
		WHERE host_id::text = $1 AND idempotency_key = $2
		FOR UPDATE
	`, hostID, key).Scan(&meetingID)
	return meetingID, err
}
