package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"example.com/reservation/internal/auth"
	"example.com/reservation/internal/domain"
)

type stubService struct {
	booking      *domain.Booking
	promoted     *domain.Booking
	err          error
	lastInput    domain.CheckInInput
	lastMemberID string
}

func (s *stubService) CreateBooking(_ context.Context, tenantID, memberID, sessionID string) (*domain.Booking, error) {
	s.lastMemberID = memberID
	if s.err != nil {
		return nil, s.err
	}
	return s.booking, nil
}

func (s *stubService) CancelBooking(_ context.Context, tenantID, bookingID, memberID string) (*domain.Booking, *domain.Booking, error) {
	if s.err != nil {
		return nil, nil, s.err
	}
	return s.booking, s.promoted, nil
}

func (s *stubService) CheckIn(_ context.Context, tenantID string, input domain.CheckInInput) (*domain.Booking, error) {
	s.lastInput = input
	if s.err != nil {
		return nil, s.err
	}
	return s.booking, nil
}

type stubReads struct {
	booking    *domain.Booking
	session    *domain.Session
	venue      *domain.Venue
	bookings   []domain.Booking
	next       *domain.Cursor
	attendance []domain.AttendanceLogEntry
	lastLimit  int
}

func (s *stubReads) GetBooking(context.Context, string, string) (*domain.Booking, error) {
	return s.booking, nil
}

func (s *stubReads) GetSession(context.Context, string, string) (*domain.Session, error) {
	return s.session, nil
}

func (s *stubReads) GetVenue(context.Context, string, string) (*domain.Venue, error) {
	return s.venue, nil
}

func (s *stubReads) ListByMember(_ context.Context, _ string, _ string, _ *domain.Cursor, limit int) ([]domain.Booking, *domain.Cursor, error) {
	s.lastLimit = limit
	return s.bookings, s.next, nil
}

func (s *stubReads) ListAttendance(context.Context, string, string) ([]domain.AttendanceLogEntry, error) {
	return s.attendance, nil
}

func authedRequest(method, target, body string, scopes ...string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	scopeSet := map[string]struct{}{}
	for _, s := range scopes {
		scopeSet[s] = struct{}{}
	}
	claims := &auth.Claims{
		Subject:   "alice",
		TenantID:  "tenant-1",
		Scopes:    scopeSet,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	return req.WithContext(auth.WithClaims(req.Context(), claims))
}

func sampleBooking(status domain.BookingStatus) *domain.Booking {
	return &domain.Booking{
		ID:        "bk-1",
		TenantID:  "tenant-1",
		MemberID:  "alice",
		SessionID: "sess-1",
		Status:    status,
		QRToken:   "bk-1|nonce|sig",
		BookedAt:  time.Date(2026, time.March, 8, 9, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2026, time.March, 8, 9, 0, 0, 0, time.UTC),
	}
}

func TestCreateBookingSuccess(t *testing.T) {
	svc := &stubService{booking: sampleBooking(domain.StatusConfirmed)}
	handler := NewHandler(svc, &stubReads{})

	req := authedRequest(http.MethodPost, "/v1/bookings", `{"session_id":"sess-1"}`, auth.ScopeBookingsWrite)
	rr := httptest.NewRecorder()
	handler.bookings(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rr.Code, rr.Body.String())
	}
	var resp CreateBookingResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Booking.ID != "bk-1" || resp.Booking.Status != "confirmed" {
		t.Fatalf("unexpected booking view %+v", resp.Booking)
	}
	if len(resp.QRPNG) == 0 {
		t.Fatal("expected rendered QR bytes")
	}
}

func TestCreateBookingRequiresScope(t *testing.T) {
	handler := NewHandler(&stubService{}, &stubReads{})

	req := authedRequest(http.MethodPost, "/v1/bookings", `{"session_id":"sess-1"}`, auth.ScopeBookingsRead)
	rr := httptest.NewRecorder()
	handler.bookings(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", rr.Code)
	}
}

func TestCreateBookingRequiresAuth(t *testing.T) {
	handler := NewHandler(&stubService{}, &stubReads{})

	req := httptest.NewRequest(http.MethodPost, "/v1/bookings", strings.NewReader(`{"session_id":"sess-1"}`))
	rr := httptest.NewRecorder()
	handler.bookings(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rr.Code)
	}
}

func TestCreateBookingValidation(t *testing.T) {
	handler := NewHandler(&stubService{}, &stubReads{})

	req := authedRequest(http.MethodPost, "/v1/bookings", `{}`, auth.ScopeBookingsWrite)
	rr := httptest.NewRecorder()
	handler.bookings(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rr.Code)
	}
}

func TestCreateBookingForAnotherMemberRequiresAdmin(t *testing.T) {
	svc := &stubService{booking: sampleBooking(domain.StatusConfirmed)}
	handler := NewHandler(svc, &stubReads{})

	req := authedRequest(http.MethodPost, "/v1/bookings", `{"member_id":"bob","session_id":"sess-1"}`, auth.ScopeBookingsWrite)
	rr := httptest.NewRecorder()
	handler.bookings(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d: %s", rr.Code, rr.Body.String())
	}
	if svc.lastMemberID != "" {
		t.Fatalf("engine must not be reached, got member %q", svc.lastMemberID)
	}
}

func TestCreateBookingForAnotherMemberAsStaff(t *testing.T) {
	svc := &stubService{booking: sampleBooking(domain.StatusConfirmed)}
	handler := NewHandler(svc, &stubReads{})

	req := authedRequest(http.MethodPost, "/v1/bookings", `{"member_id":"bob","session_id":"sess-1"}`,
		auth.ScopeBookingsWrite, auth.ScopeBookingsAdmin)
	rr := httptest.NewRecorder()
	handler.bookings(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rr.Code, rr.Body.String())
	}
	if svc.lastMemberID != "bob" {
		t.Fatalf("expected booking for bob got %q", svc.lastMemberID)
	}
}

func TestCreateBookingErrorMapping(t *testing.T) {
	cases := []struct {
		err      error
		status   int
		wantType string
	}{
		{domain.ErrNoActiveMembership, http.StatusForbidden, "no_active_membership"},
		{domain.ErrMembershipExpired, http.StatusForbidden, "membership_expired"},
		{domain.ErrNoCreditsRemaining, http.StatusForbidden, "no_credits_remaining"},
		{domain.ErrAlreadyBooked, http.StatusBadRequest, "already_booked"},
		{domain.ErrSessionNotFound, http.StatusNotFound, "session_not_found"},
	}

	for _, tc := range cases {
		handler := NewHandler(&stubService{err: tc.err}, &stubReads{})
		req := authedRequest(http.MethodPost, "/v1/bookings", `{"session_id":"sess-1"}`, auth.ScopeBookingsWrite)
		rr := httptest.NewRecorder()
		handler.bookings(rr, req)

		if rr.Code != tc.status {
			t.Fatalf("%v: expected %d got %d", tc.err, tc.status, rr.Code)
		}
		var body map[string]string
		if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode error body: %v", err)
		}
		if body["type"] != tc.wantType {
			t.Fatalf("%v: expected type %q got %q", tc.err, tc.wantType, body["type"])
		}
	}
}

func TestCancelBookingReportsPromotion(t *testing.T) {
	svc := &stubService{
		booking:  sampleBooking(domain.StatusCancelled),
		promoted: &domain.Booking{ID: "bk-2", MemberID: "bob", Status: domain.StatusConfirmed},
	}
	handler := NewHandler(svc, &stubReads{})

	req := authedRequest(http.MethodPost, "/v1/bookings/bk-1/cancel", "", auth.ScopeBookingsWrite)
	rr := httptest.NewRecorder()
	handler.bookingByID(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
	var resp CancelBookingResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Promoted {
		t.Fatal("expected promoted=true")
	}
	if resp.Booking.Status != "cancelled" {
		t.Fatalf("unexpected status %s", resp.Booking.Status)
	}
}

func TestCheckInGeofenceFailure(t *testing.T) {
	svc := &stubService{err: domain.ErrLocationAnomaly}
	handler := NewHandler(svc, &stubReads{})

	req := authedRequest(http.MethodPost, "/v1/checkins",
		`{"token":"bk-1|nonce|sig","location":{"lat":40.01,"lng":-74.0}}`, auth.ScopeCheckInsWrite)
	rr := httptest.NewRecorder()
	handler.checkIn(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", rr.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["type"] != "location_anomaly" {
		t.Fatalf("unexpected type %q", body["type"])
	}
	if svc.lastInput.Location == nil || svc.lastInput.Location.Lat != 40.01 {
		t.Fatalf("location not forwarded: %+v", svc.lastInput)
	}
}

func TestCheckInWindowFailure(t *testing.T) {
	handler := NewHandler(&stubService{err: domain.ErrOutsideCheckInWindow}, &stubReads{})

	req := authedRequest(http.MethodPost, "/v1/checkins", `{"token":"bk-1|nonce|sig"}`, auth.ScopeCheckInsWrite)
	rr := httptest.NewRecorder()
	handler.checkIn(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rr.Code)
	}
}

func TestCheckInRequiresToken(t *testing.T) {
	handler := NewHandler(&stubService{}, &stubReads{})

	req := authedRequest(http.MethodPost, "/v1/checkins", `{}`, auth.ScopeCheckInsWrite)
	rr := httptest.NewRecorder()
	handler.checkIn(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rr.Code)
	}
}

func TestManualCheckInForcesOverride(t *testing.T) {
	svc := &stubService{booking: sampleBooking(domain.StatusCheckedIn)}
	handler := NewHandler(svc, &stubReads{})

	req := authedRequest(http.MethodPost, "/v1/checkins/manual", `{"booking_id":"bk-1"}`, auth.ScopeCheckInsWrite)
	rr := httptest.NewRecorder()
	handler.manualCheckIn(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
	if !svc.lastInput.Override || svc.lastInput.StaffID != "alice" || svc.lastInput.BookingID != "bk-1" {
		t.Fatalf("unexpected input %+v", svc.lastInput)
	}
}

func TestGetBookingNotFound(t *testing.T) {
	handler := NewHandler(&stubService{}, &stubReads{})

	req := authedRequest(http.MethodGet, "/v1/bookings/bk-404", "", auth.ScopeBookingsRead)
	rr := httptest.NewRecorder()
	handler.bookingByID(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rr.Code)
	}
}

func TestListBookingsRequiresMemberID(t *testing.T) {
	handler := NewHandler(&stubService{}, &stubReads{})

	req := authedRequest(http.MethodGet, "/v1/bookings", "", auth.ScopeBookingsRead)
	rr := httptest.NewRecorder()
	handler.bookings(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rr.Code)
	}
}

func TestListBookingsCapsPageSize(t *testing.T) {
	reads := &stubReads{}
	handler := NewHandler(&stubService{}, reads)

	req := authedRequest(http.MethodGet, "/v1/bookings?member_id=alice&limit=1000000", "", auth.ScopeBookingsRead)
	rr := httptest.NewRecorder()
	handler.bookings(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
	if reads.lastLimit != maxPageSize {
		t.Fatalf("expected limit clamped to %d got %d", maxPageSize, reads.lastLimit)
	}
}

func TestListBookingsReturnsCursor(t *testing.T) {
	reads := &stubReads{
		bookings: []domain.Booking{*sampleBooking(domain.StatusConfirmed)},
		next:     &domain.Cursor{BookedAt: time.Date(2026, time.March, 8, 9, 0, 0, 0, time.UTC), ID: "bk-1"},
	}
	handler := NewHandler(&stubService{}, reads)

	req := authedRequest(http.MethodGet, "/v1/bookings?member_id=alice&limit=1", "", auth.ScopeBookingsRead)
	rr := httptest.NewRecorder()
	handler.bookings(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
	var resp ListBookingsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Items) != 1 || resp.NextCursor == "" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestRenderQRReturnsPNG(t *testing.T) {
	reads := &stubReads{booking: sampleBooking(domain.StatusConfirmed)}
	handler := NewHandler(&stubService{}, reads)

	req := authedRequest(http.MethodGet, "/v1/bookings/bk-1/qr", "", auth.ScopeBookingsRead)
	rr := httptest.NewRecorder()
	handler.bookingByID(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "image/png" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if !strings.HasPrefix(rr.Body.String(), "\x89PNG") {
		t.Fatal("body is not a PNG")
	}
}

func TestListAttendance(t *testing.T) {
	lat, lng := 40.0017986, -74.0
	dist := 200.0
	reads := &stubReads{attendance: []domain.AttendanceLogEntry{
		{
			EntryID:        1,
			BookingID:      "bk-1",
			SessionID:      "sess-1",
			Outcome:        domain.OutcomeSuccess,
			ReportedLat:    &lat,
			ReportedLng:    &lng,
			DistanceMeters: &dist,
			OccurredAt:     time.Date(2026, time.March, 9, 9, 50, 0, 0, time.UTC),
		},
	}}
	handler := NewHandler(&stubService{}, reads)

	req := authedRequest(http.MethodGet, "/v1/sessions/sess-1/attendance", "", auth.ScopeCheckInsWrite)
	rr := httptest.NewRecorder()
	handler.sessionSubresource(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
	var resp ListAttendanceResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Items) != 1 {
		t.Fatalf("expected one entry got %d", len(resp.Items))
	}
	entry := resp.Items[0]
	if entry.Outcome != "SUCCESS" || entry.Location == nil || entry.Location.Lat != lat {
		t.Fatalf("unexpected entry %+v", entry)
	}
}
