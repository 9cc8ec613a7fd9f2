package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/relaycrm/scheduling/services/scheduling-service/internal/availability"
	"github.com/relaycrm/scheduling/services/scheduling-service/internal/booking"
	"github.com/relaycrm/scheduling/services/scheduling-service/internal/model"
)

// Booker is the part of booking.Service the public endpoints use.
type Booker interface {
	AvailableSlots(ctx context.Context, meetingTypeID string, date civil.Date) ([]availability.TimeSlot, *time.Location, error)
	Book(ctx context.Context, req booking.BookRequest) (booking.BookResult, error)
	Reschedule(ctx context.Context, token string, newStart, newEnd time.Time) (model.ScheduledMeeting, error)
	Cancel(ctx context.Context, token, reason string) (model.ScheduledMeeting, error)
}

type SchedulingHandler struct {
	booker Booker
	logger *slog.Logger
}

func NewSchedulingHandler(booker Booker, logger *slog.Logger) *SchedulingHandler {
	return &SchedulingHandler{booker: booker, logger: logger}
}

// Register mounts the public endpoints on mux.
func (h *SchedulingHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/public/slots", h.Slots)
	mux.HandleFunc("/api/v1/public/book", h.Book)
	mux.HandleFunc("/api/v1/public/reschedule", h.Reschedule)
	mux.HandleFunc("/api/v1/public/cancel", h.Cancel)
}

type slotItem struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type slotsResponse struct {
	MeetingTypeID string     `json:"meeting_type_id"`
	Date          string     `json:"date"`
	Timezone      string     `json:"timezone"`
	Slots         []slotItem `json:"slots"`
}

type bookRequest struct {
	MeetingTypeID string            `json:"meeting_type_id"`
	StartTime     string            `json:"start_time"`
	EndTime       string            `json:"end_time"`
	AttendeeName  string            `json:"attendee_name"`
	AttendeeEmail string            `json:"attendee_email"`
	AttendeePhone string            `json:"attendee_phone"`
	Timezone      string            `json:"timezone"`
	Notes         string            `json:"notes"`
	Answers       map[string]string `json:"answers"`
}

type meetingResponse struct {
	MeetingID       string `json:"meeting_id"`
	ManagementToken string `json:"management_token,omitempty"`
	Status          string `json:"status"`
	StartTime       string `json:"start_time"`
	EndTime         string `json:"end_time"`
	CancelledAt     string `json:"cancelled_at,omitempty"`
}

type rescheduleRequest struct {
	ManagementToken string `json:"management_token"`
	StartTime       string `json:"start_time"`
	EndTime         string `json:"end_time"`
}

type cancelRequest struct {
	ManagementToken string `json:"management_token"`
	Reason          string `json:"reason"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (h *SchedulingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeStatus(w, http.StatusMethodNotAllowed, "method not allowed", "method_not_allowed")
		return
	}
	meetingTypeID := strings.TrimSpace(r.URL.Query().Get("meeting_type_id"))
	if meetingTypeID == "" {
		writeStatus(w, http.StatusBadRequest, "meeting_type_id required", "bad_request")
		return
	}
	date, err := civil.ParseDate(strings.TrimSpace(r.URL.Query().Get("date")))
	if err != nil {
		writeStatus(w, http.StatusBadRequest, "date must be YYYY-MM-DD", "bad_request")
		return
	}

	slots, loc, err := h.booker.AvailableSlots(r.Context(), meetingTypeID, date)
	if err != nil {
		h.writeError(w, err)
		return
	}
	resp := slotsResponse{
		MeetingTypeID: meetingTypeID,
		Date:          date.String(),
		Timezone:      loc.String(),
		Slots:         make([]slotItem, 0, len(slots)),
	}
	for _, s := range slots {
		resp.Slots = append(resp.Slots, slotItem{
			StartTime: s.Start().UTC().Format(time.RFC3339),
			EndTime:   s.End().UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *SchedulingHandler) Book(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeStatus(w, http.StatusMethodNotAllowed, "method not allowed", "method_not_allowed")
		return
	}
	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeStatus(w, http.StatusBadRequest, "invalid json body", "bad_request")
		return
	}
	req.MeetingTypeID = strings.TrimSpace(req.MeetingTypeID)
	req.AttendeeName = strings.TrimSpace(req.AttendeeName)
	req.AttendeeEmail = strings.TrimSpace(req.AttendeeEmail)
	if req.MeetingTypeID == "" || req.AttendeeName == "" || req.AttendeeEmail == "" {
		writeStatus(w, http.StatusBadRequest, "meeting_type_id, attendee_name and attendee_email required", "bad_request")
		return
	}
	start, end, ok := parseInterval(w, req.StartTime, req.EndTime)
	if !ok {
		return
	}
	if req.Timezone != "" {
		if _, err := time.LoadLocation(req.Timezone); err != nil {
			writeStatus(w, http.StatusBadRequest, "unknown timezone", "bad_request")
			return
		}
	}

	res, err := h.booker.Book(r.Context(), booking.BookRequest{
		MeetingTypeID:  req.MeetingTypeID,
		StartTime:      start,
		EndTime:        end,
		AttendeeName:   req.AttendeeName,
		AttendeeEmail:  req.AttendeeEmail,
		AttendeePhone:  req.AttendeePhone,
		Timezone:       req.Timezone,
		Notes:          req.Notes,
		Answers:        req.Answers,
		IdempotencyKey: strings.TrimSpace(r.Header.Get("Idempotency-Key")),
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	code := http.StatusCreated
	if res.Replayed {
		code = http.StatusOK
	}
	writeJSON(w, code, toMeetingResponse(res.Meeting))
}

func (h *SchedulingHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeStatus(w, http.StatusMethodNotAllowed, "method not allowed", "method_not_allowed")
		return
	}
	var req rescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeStatus(w, http.StatusBadRequest, "invalid json body", "bad_request")
		return
	}
	req.ManagementToken = strings.TrimSpace(req.ManagementToken)
	if req.ManagementToken == "" {
		writeStatus(w, http.StatusBadRequest, "management_token required", "bad_request")
		return
	}
	start, end, ok := parseInterval(w, req.StartTime, req.EndTime)
	if !ok {
		return
	}

	m, err := h.booker.Reschedule(r.Context(), req.ManagementToken, start, end)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMeetingResponse(m))
}

func (h *SchedulingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeStatus(w, http.StatusMethodNotAllowed, "method not allowed", "method_not_allowed")
		return
	}
	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeStatus(w, http.StatusBadRequest, "invalid json body", "bad_request")
		return
	}
	req.ManagementToken = strings.TrimSpace(req.ManagementToken)
	if req.ManagementToken == "" {
		writeStatus(w, http.StatusBadRequest, "management_token required", "bad_request")
		return
	}

	m, err := h.booker.Cancel(r.Context(), req.ManagementToken, req.Reason)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMeetingResponse(m))
}

// parseInterval writes a 400 and returns false when either bound is not RFC3339.
// Ordering is left to the service so it reports ErrInvalidInterval.
func parseInterval(w http.ResponseWriter, rawStart, rawEnd string) (time.Time, time.Time, bool) {
	start, err := time.Parse(time.RFC3339, strings.TrimSpace(rawStart))
	if err != nil {
		writeStatus(w, http.StatusBadRequest, "invalid start_time", "bad_request")
		return time.Time{}, time.Time{}, false
	}
	end, err := time.Parse(time.RFC3339, strings.TrimSpace(rawEnd))
	if err != nil {
		writeStatus(w, http.StatusBadRequest, "invalid end_time", "bad_request")
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

func toMeetingResponse(m model.ScheduledMeeting) meetingResponse {
	resp := meetingResponse{
		MeetingID:       m.ID,
		ManagementToken: m.ManagementToken,
		Status:          string(m.Status),
		StartTime:       m.StartTime.UTC().Format(time.RFC3339),
		EndTime:         m.EndTime.UTC().Format(time.RFC3339),
	}
	if m.CancelledAt != nil {
		resp.CancelledAt = m.CancelledAt.UTC().Format(time.RFC3339)
	}
	return resp
}

var errorStatuses = []struct {
	err    error
	status int
	code   string
}{
	{availability.ErrInvalidInterval, http.StatusBadRequest, "invalid_interval"},
	{availability.ErrMeetingTypeInactive, http.StatusUnprocessableEntity, "meeting_type_inactive"},
	{availability.ErrPastBooking, http.StatusUnprocessableEntity, "past_booking"},
	{availability.ErrInsufficientNotice, http.StatusUnprocessableEntity, "insufficient_notice"},
	{availability.ErrTooFarInAdvance, http.StatusUnprocessableEntity, "too_far_in_advance"},
	{availability.ErrDurationMismatch, http.StatusUnprocessableEntity, "duration_mismatch"},
	{availability.ErrInvalidMeetingType, http.StatusUnprocessableEntity, "invalid_meeting_type"},
	{availability.ErrSlotUnavailable, http.StatusConflict, "slot_unavailable"},
	{model.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
	{booking.ErrNotFound, http.StatusNotFound, "not_found"},
}

func (h *SchedulingHandler) writeError(w http.ResponseWriter, err error) {
	for _, e := range errorStatuses {
		if errors.Is(err, e.err) {
			writeStatus(w, e.status, err.Error(), e.code)
			return
		}
	}
	h.logger.Error("request failed", "err", err)
	writeStatus(w, http.StatusInternalServerError, "internal error", "internal")
}

func writeStatus(w http.ResponseWriter, code int, msg, errCode string) {
	writeJSON(w, code, errorResponse{Error: msg, Code: errCode})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
