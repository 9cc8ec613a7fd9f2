package storage

import (
	"context"
	"time"

	"github.com/relaycrm/scheduling/services/scheduling-service/internal/model"
	"github.com/relaycrm/scheduling/services/scheduling-service/internal/outbox"
)

// CompleteEnded moves up to limit scheduled meetings whose end is at or before
// now to completed, staging a completed event for each. Rows locked by another
// worker are skipped.
func (s *Store) CompleteEnded(ctx context.Context, now time.Time, limit int) ([]model.ScheduledMeeting, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `SELECT `+meetingColumns+`
		FROM scheduled_meetings
		WHERE status = 'scheduled' AND end_time <= $1
		ORDER BY end_time ASC
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`, now, limit)
	if err != nil {
		return nil, err
	}
	var due []model.ScheduledMeeting
	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		due = append(due, m)
	}
	rows.Close()
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	completed := make([]model.ScheduledMeeting, 0, len(due))
	for _, m := range due {
		if err := m.Complete(now); err != nil {
			return nil, err
		}
		if _, err := tx.Exec(ctx, `
			UPDATE scheduled_meetings
			SET status = 'completed', completed_at = $2, updated_at = now()
			WHERE id::text = $1
		`, m.ID, now); err != nil {
			return nil, err
		}
		evt, err := outbox.MeetingEvent(outbox.EventMeetingCompleted, m, map[string]any{
			"completed_at": now.UTC().Format(time.RFC3339),
		})
		if err != nil {
			return nil, err
		}
		if err := s.outbox.Insert(ctx, tx, evt); err != nil {
			return nil, err
		}
		completed = append(completed, m)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return completed, nil
}
