package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/relaycrm/scheduling/services/scheduling-service/internal/availability"
	"github.com/relaycrm/scheduling/services/scheduling-service/internal/booking"
	"github.com/relaycrm/scheduling/services/scheduling-service/internal/model"
)

type fakeBooker struct {
	slots      []availability.TimeSlot
	loc        *time.Location
	err        error
	gotDate    civil.Date
	gotBook    booking.BookRequest
	replayed   bool
	gotToken   string
	gotReason  string
	cancelledM model.ScheduledMeeting
}

func (f *fakeBooker) AvailableSlots(_ context.Context, _ string, date civil.Date) ([]availability.TimeSlot, *time.Location, error) {
	f.gotDate = date
	return f.slots, f.loc, f.err
}

func (f *fakeBooker) Book(_ context.Context, req booking.BookRequest) (booking.BookResult, error) {
	f.gotBook = req
	if f.err != nil {
		return booking.BookResult{}, f.err
	}
	return booking.BookResult{
		Meeting: model.ScheduledMeeting{
			ID:              "mtg-1",
			ManagementToken: "tok",
			Status:          model.StatusScheduled,
			StartTime:       req.StartTime,
			EndTime:         req.EndTime,
		},
		Replayed: f.replayed,
	}, nil
}

func (f *fakeBooker) Reschedule(_ context.Context, token string, start, end time.Time) (model.ScheduledMeeting, error) {
	f.gotToken = token
	if f.err != nil {
		return model.ScheduledMeeting{}, f.err
	}
	return model.ScheduledMeeting{ID: "mtg-1", Status: model.StatusScheduled, StartTime: start, EndTime: end}, nil
}

func (f *fakeBooker) Cancel(_ context.Context, token, reason string) (model.ScheduledMeeting, error) {
	f.gotToken = token
	f.gotReason = reason
	return f.cancelledM, f.err
}

func newTestMux(b *fakeBooker) *http.ServeMux {
	mux := http.NewServeMux()
	NewSchedulingHandler(b, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(mux)
	return mux
}

func do(t *testing.T, mux http.Handler, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rw := httptest.NewRecorder()
	mux.ServeHTTP(rw, req)
	return rw
}

func decodeError(t *testing.T, rw *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	if err := json.NewDecoder(rw.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return resp
}

func TestSlots_ReturnsUTCSlots(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*3600)
	start := time.Date(2026, 1, 26, 10, 0, 0, 0, tokyo)
	slot, err := availability.NewTimeSlot(start, start.Add(30*time.Minute))
	if err != nil {
		t.Fatalf("slot: %v", err)
	}
	b := &fakeBooker{slots: []availability.TimeSlot{slot}, loc: tokyo}

	rw := do(t, newTestMux(b), http.MethodGet, "/api/v1/public/slots?meeting_type_id=intro&date=2026-01-26", "", nil)
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rw.Code, rw.Body.String())
	}
	var resp slotsResponse
	if err := json.NewDecoder(rw.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Slots) != 1 || resp.Slots[0].StartTime != "2026-01-26T01:00:00Z" {
		t.Fatalf("unexpected slots: %+v", resp.Slots)
	}
	if resp.Timezone != "JST" {
		t.Fatalf("expected JST, got %q", resp.Timezone)
	}
	if b.gotDate != (civil.Date{Year: 2026, Month: time.January, Day: 26}) {
		t.Fatalf("unexpected date %s", b.gotDate)
	}
}

func TestSlots_EmptyListIsArray(t *testing.T) {
	b := &fakeBooker{loc: time.UTC}
	rw := do(t, newTestMux(b), http.MethodGet, "/api/v1/public/slots?meeting_type_id=intro&date=2026-01-26", "", nil)
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}
	if !strings.Contains(rw.Body.String(), `"slots":[]`) {
		t.Fatalf("expected empty array, got %s", rw.Body.String())
	}
}

func TestSlots_BadRequests(t *testing.T) {
	mux := newTestMux(&fakeBooker{loc: time.UTC})
	for _, target := range []string{
		"/api/v1/public/slots?date=2026-01-26",
		"/api/v1/public/slots?meeting_type_id=intro&date=26-01-2026",
	} {
		if rw := do(t, mux, http.MethodGet, target, "", nil); rw.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", target, rw.Code)
		}
	}
	if rw := do(t, mux, http.MethodPost, "/api/v1/public/slots", "", nil); rw.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rw.Code)
	}
}

const bookBody = `{"meeting_type_id":"intro","start_time":"2026-01-26T10:00:00Z","end_time":"2026-01-26T10:30:00Z","attendee_name":"Ada","attendee_email":"ada@example.com"}`

func TestBook_Created(t *testing.T) {
	b := &fakeBooker{}
	rw := do(t, newTestMux(b), http.MethodPost, "/api/v1/public/book", bookBody, map[string]string{"Idempotency-Key": " k1 "})
	if rw.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rw.Code, rw.Body.String())
	}
	var resp meetingResponse
	if err := json.NewDecoder(rw.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.MeetingID != "mtg-1" || resp.ManagementToken != "tok" || resp.Status != "scheduled" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if b.gotBook.IdempotencyKey != "k1" {
		t.Fatalf("expected trimmed idempotency key, got %q", b.gotBook.IdempotencyKey)
	}
}

func TestBook_ReplayIsOK(t *testing.T) {
	b := &fakeBooker{replayed: true}
	rw := do(t, newTestMux(b), http.MethodPost, "/api/v1/public/book", bookBody, nil)
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}
}

func TestBook_MissingFields(t *testing.T) {
	rw := do(t, newTestMux(&fakeBooker{}), http.MethodPost, "/api/v1/public/book", `{"meeting_type_id":"intro"}`, nil)
	if rw.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rw.Code)
	}
}

func TestBook_ErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{availability.ErrInvalidInterval, http.StatusBadRequest, "invalid_interval"},
		{fmt.Errorf("%w: intro", availability.ErrMeetingTypeInactive), http.StatusUnprocessableEntity, "meeting_type_inactive"},
		{availability.ErrPastBooking, http.StatusUnprocessableEntity, "past_booking"},
		{fmt.Errorf("%w: earliest", availability.ErrInsufficientNotice), http.StatusUnprocessableEntity, "insufficient_notice"},
		{availability.ErrTooFarInAdvance, http.StatusUnprocessableEntity, "too_far_in_advance"},
		{availability.ErrDurationMismatch, http.StatusUnprocessableEntity, "duration_mismatch"},
		{availability.ErrSlotUnavailable, http.StatusConflict, "slot_unavailable"},
		{booking.ErrNotFound, http.StatusNotFound, "not_found"},
		{errors.New("db down"), http.StatusInternalServerError, "internal"},
	}
	for _, tc := range cases {
		rw := do(t, newTestMux(&fakeBooker{err: tc.err}), http.MethodPost, "/api/v1/public/book", bookBody, nil)
		if rw.Code != tc.status {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.status, rw.Code)
		}
		if got := decodeError(t, rw); got.Code != tc.code {
			t.Fatalf("%v: expected code %q, got %q", tc.err, tc.code, got.Code)
		}
	}
}

func TestBook_InternalErrorHidesDetail(t *testing.T) {
	rw := do(t, newTestMux(&fakeBooker{err: errors.New("pq: password leaked")}), http.MethodPost, "/api/v1/public/book", bookBody, nil)
	if strings.Contains(rw.Body.String(), "password") {
		t.Fatalf("internal error detail leaked: %s", rw.Body.String())
	}
}

func TestReschedule(t *testing.T) {
	b := &fakeBooker{}
	body := `{"management_token":"tok","start_time":"2026-01-26T11:00:00Z","end_time":"2026-01-26T11:30:00Z"}`
	rw := do(t, newTestMux(b), http.MethodPost, "/api/v1/public/reschedule", body, nil)
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rw.Code, rw.Body.String())
	}
	if b.gotToken != "tok" {
		t.Fatalf("expected token tok, got %q", b.gotToken)
	}

	bad := `{"management_token":"tok","start_time":"11am","end_time":"2026-01-26T11:30:00Z"}`
	if rw := do(t, newTestMux(b), http.MethodPost, "/api/v1/public/reschedule", bad, nil); rw.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rw.Code)
	}
}

func TestCancel(t *testing.T) {
	at := time.Date(2026, 1, 26, 8, 0, 0, 0, time.UTC)
	b := &fakeBooker{cancelledM: model.ScheduledMeeting{ID: "mtg-1", Status: model.StatusCancelled, CancelledAt: &at}}
	rw := do(t, newTestMux(b), http.MethodPost, "/api/v1/public/cancel", `{"management_token":"tok","reason":"ill"}`, nil)
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}
	var resp meetingResponse
	if err := json.NewDecoder(rw.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "cancelled" || resp.CancelledAt != "2026-01-26T08:00:00Z" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if b.gotReason != "ill" {
		t.Fatalf("expected reason ill, got %q", b.gotReason)
	}

	b.err = model.ErrInvalidTransition
	if rw := do(t, newTestMux(b), http.MethodPost, "/api/v1/public/cancel", `{"management_token":"tok"}`, nil); rw.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rw.Code)
	}
	if rw := do(t, newTestMux(b), http.MethodPost, "/api/v1/public/cancel", `{}`, nil); rw.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rw.Code)
	}
}
