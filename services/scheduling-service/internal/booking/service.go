package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/relaycrm/scheduling/services/scheduling-service/internal/availability"
	"github.com/relaycrm/scheduling/services/scheduling-service/internal/model"
	"github.com/relaycrm/scheduling/services/scheduling-service/internal/outbox"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Service turns availability queries and booking requests into store calls.
// Every admission re-validates against slots computed inside the host's
// transaction, so two requests racing for one slot cannot both commit.
type Service struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
	tracer trace.Tracer
}

func NewService(store Store, logger *slog.Logger, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:  store,
		logger: logger,
		now:    now,
		tracer: otel.Tracer("booking"),
	}
}

type BookRequest struct {
	MeetingTypeID  string
	StartTime      time.Time
	EndTime        time.Time
	AttendeeName   string
	AttendeeEmail  string
	AttendeePhone  string
	Timezone       string
	Notes          string
	Answers        map[string]string
	IdempotencyKey string
}

type BookResult struct {
	Meeting model.ScheduledMeeting
	// Replayed is set when the idempotency key matched an earlier booking. The
	// management token is not recoverable in that case.
	Replayed bool
}

// AvailableSlots lists the open slots of a meeting type on date, in the host's
// timezone. Inactive meeting types have none.
func (s *Service) AvailableSlots(ctx context.Context, meetingTypeID string, date civil.Date) ([]availability.TimeSlot, *time.Location, error) {
	ctx, span := s.tracer.Start(ctx, "booking.AvailableSlots", trace.WithAttributes(
		attribute.String("meeting_type_id", meetingTypeID),
		attribute.String("date", date.String()),
	))
	defer span.End()

	hm, err := s.store.MeetingType(ctx, meetingTypeID)
	if err != nil {
		return nil, nil, endSpan(span, err)
	}
	loc := s.location(hm.HostTimezone)
	if !hm.Type.Active {
		return nil, loc, nil
	}
	slots, err := s.slotsFor(ctx, s.store, hm, date, loc, s.now(), "")
	if err != nil {
		return nil, nil, endSpan(span, err)
	}
	span.SetAttributes(attribute.Int("slots", len(slots)))
	return slots, loc, nil
}

func (s *Service) Book(ctx context.Context, req BookRequest) (BookResult, error) {
	ctx, span := s.tracer.Start(ctx, "booking.Book", trace.WithAttributes(
		attribute.String("meeting_type_id", req.MeetingTypeID),
	))
	defer span.End()

	proposed, err := availability.NewTimeSlot(req.StartTime, req.EndTime)
	if err != nil {
		return BookResult{}, endSpan(span, err)
	}
	hm, err := s.store.MeetingType(ctx, req.MeetingTypeID)
	if err != nil {
		return BookResult{}, endSpan(span, err)
	}
	span.SetAttributes(attribute.String("host_id", hm.HostID))

	var result BookResult
	err = s.store.InHostTx(ctx, hm.HostID, func(ctx context.Context, tx Tx) error {
		now := s.now()

		if req.IdempotencyKey != "" {
			meetingID, exists, err := tx.LockIdempotencyKey(ctx, hm.HostID, req.IdempotencyKey)
			if err != nil {
				return fmt.Errorf("lock idempotency key: %w", err)
			}
			if exists && meetingID != "" {
				m, err := tx.MeetingByID(ctx, meetingID)
				if err != nil {
					return err
				}
				result = BookResult{Meeting: m, Replayed: true}
				return nil
			}
		}

		// Re-read the meeting type so a deactivation or edit committed since the
		// caller's lookup is honoured.
		fresh, err := tx.MeetingType(ctx, req.MeetingTypeID)
		if err != nil {
			return err
		}
		loc := s.location(fresh.HostTimezone)
		date := civil.DateOf(req.StartTime.In(loc))
		available, err := s.slotsFor(ctx, tx, fresh, date, loc, now, "")
		if err != nil {
			return err
		}
		if err := availability.ValidateBooking(now, fresh.Type, req.StartTime, req.EndTime, proposed, available); err != nil {
			return err
		}

		token := NewManagementToken()
		m := model.ScheduledMeeting{
			MeetingTypeID: fresh.Type.ID,
			HostID:        fresh.HostID,
			AttendeeName:  strings.TrimSpace(req.AttendeeName),
			AttendeeEmail: strings.TrimSpace(req.AttendeeEmail),
			AttendeePhone: strings.TrimSpace(req.AttendeePhone),
			StartTime:     req.StartTime.UTC(),
			EndTime:       req.EndTime.UTC(),
			BufferBefore:  fresh.Type.BufferBefore(),
			BufferAfter:   fresh.Type.BufferAfter(),
			Timezone:      req.Timezone,
			Status:        model.StatusScheduled,
			Notes:         req.Notes,
			Answers:       req.Answers,
			CreatedAt:     now.UTC(),
		}
		if m.Timezone == "" {
			m.Timezone = loc.String()
		}
		id, err := tx.InsertMeeting(ctx, &m, HashToken(token))
		if err != nil {
			return err
		}
		m.ID = id
		m.ManagementToken = token

		if err := s.emit(ctx, tx, outbox.EventMeetingScheduled, m, nil); err != nil {
			return err
		}
		if req.IdempotencyKey != "" {
			if err := tx.FinalizeIdempotency(ctx, hm.HostID, req.IdempotencyKey, id); err != nil {
				return fmt.Errorf("finalize idempotency key: %w", err)
			}
		}
		result = BookResult{Meeting: m}
		return nil
	})
	if err != nil {
		if errors.Is(err, availability.ErrSlotUnavailable) {
			s.logger.Info("booking rejected: slot unavailable", "host_id", hm.HostID, "start", req.StartTime.UTC().Format(time.RFC3339))
		}
		return BookResult{}, endSpan(span, err)
	}
	if !result.Replayed {
		s.logger.Info("meeting scheduled", "meeting_id", result.Meeting.ID, "host_id", hm.HostID, "start", result.Meeting.StartTime.Format(time.RFC3339))
	}
	return result, nil
}

// Reschedule moves a scheduled meeting to a new slot. The meeting's own
// interval does not block the move.
func (s *Service) Reschedule(ctx context.Context, token string, newStart, newEnd time.Time) (model.ScheduledMeeting, error) {
	ctx, span := s.tracer.Start(ctx, "booking.Reschedule")
	defer span.End()

	tokenHash := HashToken(token)
	hostID, err := s.store.HostForToken(ctx, tokenHash)
	if err != nil {
		return model.ScheduledMeeting{}, endSpan(span, err)
	}

	var out model.ScheduledMeeting
	err = s.store.InHostTx(ctx, hostID, func(ctx context.Context, tx Tx) error {
		now := s.now()
		m, err := tx.MeetingForUpdate(ctx, tokenHash)
		if err != nil {
			return err
		}
		if m.Status != model.StatusScheduled {
			return fmt.Errorf("%w: meeting is %s", model.ErrInvalidTransition, m.Status)
		}
		hm, err := tx.MeetingType(ctx, m.MeetingTypeID)
		if err != nil {
			return err
		}
		loc := s.location(hm.HostTimezone)
		available, err := s.slotsFor(ctx, tx, hm, civil.DateOf(newStart.In(loc)), loc, now, m.ID)
		if err != nil {
			return err
		}
		if err := availability.ValidateReschedule(now, newStart, newEnd, available); err != nil {
			return err
		}

		previous := map[string]any{
			"previous_start_time": m.StartTime.UTC().Format(time.RFC3339),
			"previous_end_time":   m.EndTime.UTC().Format(time.RFC3339),
		}
		m.StartTime = newStart.UTC()
		m.EndTime = newEnd.UTC()
		if err := tx.UpdateMeetingTimes(ctx, m.ID, m.StartTime, m.EndTime); err != nil {
			return err
		}
		if err := s.emit(ctx, tx, outbox.EventMeetingRescheduled, m, previous); err != nil {
			return err
		}
		out = m
		return nil
	})
	if err != nil {
		return model.ScheduledMeeting{}, endSpan(span, err)
	}
	s.logger.Info("meeting rescheduled", "meeting_id", out.ID, "host_id", hostID, "start", out.StartTime.Format(time.RFC3339))
	return out, nil
}

// Cancel is idempotent: cancelling a cancelled meeting returns it unchanged.
func (s *Service) Cancel(ctx context.Context, token, reason string) (model.ScheduledMeeting, error) {
	ctx, span := s.tracer.Start(ctx, "booking.Cancel")
	defer span.End()

	tokenHash := HashToken(token)
	hostID, err := s.store.HostForToken(ctx, tokenHash)
	if err != nil {
		return model.ScheduledMeeting{}, endSpan(span, err)
	}

	var out model.ScheduledMeeting
	err = s.store.InHostTx(ctx, hostID, func(ctx context.Context, tx Tx) error {
		m, err := tx.MeetingForUpdate(ctx, tokenHash)
		if err != nil {
			return err
		}
		if m.Status == model.StatusCancelled {
			out = m
			return nil
		}
		now := s.now().UTC()
		if err := m.Cancel(now, strings.TrimSpace(reason)); err != nil {
			return fmt.Errorf("%w: meeting is %s", err, m.Status)
		}
		if err := tx.CancelMeeting(ctx, m.ID, now, m.CancelReason); err != nil {
			return err
		}
		extra := map[string]any{
			"cancelled_at": now.Format(time.RFC3339),
			"reason":       m.CancelReason,
		}
		if err := s.emit(ctx, tx, outbox.EventMeetingCancelled, m, extra); err != nil {
			return err
		}
		out = m
		return nil
	})
	if err != nil {
		return model.ScheduledMeeting{}, endSpan(span, err)
	}
	return out, nil
}

func (s *Service) slotsFor(ctx context.Context, src Schedules, hm HostMeetingType, date civil.Date, loc *time.Location, now time.Time, excludeMeetingID string) ([]availability.TimeSlot, error) {
	rules, override, err := src.Schedule(ctx, hm.HostID, date)
	if err != nil {
		return nil, fmt.Errorf("load schedule: %w", err)
	}
	// Buffers can reach past midnight, so busy periods are read for the day
	// widened by them.
	dayStart, dayEnd := availability.DayBounds(date, loc)
	from := dayStart.Add(-hm.Type.BufferBefore())
	to := dayEnd.Add(hm.Type.BufferAfter())
	busy, err := src.BusyPeriods(ctx, hm.HostID, from, to, excludeMeetingID)
	if err != nil {
		return nil, fmt.Errorf("load busy periods: %w", err)
	}
	return availability.CalculateAvailableSlots(availability.AvailabilityRequest{
		MeetingType: hm.Type,
		Date:        date,
		Rules:       rules,
		Override:    override,
		Busy:        busy,
		Location:    loc,
		Now:         now,
	})
}

func (s *Service) location(tz string) *time.Location {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		s.logger.Warn("unknown host timezone; using UTC", "timezone", tz, "err", err)
		return time.UTC
	}
	return loc
}

func (s *Service) emit(ctx context.Context, tx Tx, eventType string, m model.ScheduledMeeting, extra map[string]any) error {
	evt, err := outbox.MeetingEvent(eventType, m, extra)
	if err != nil {
		return err
	}
	return tx.InsertEvent(ctx, evt)
}

func endSpan(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
