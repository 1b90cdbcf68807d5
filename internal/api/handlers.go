// Package api exposes HTTP handlers for the reservation service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"example.com/reservation/internal/auth"
	"example.com/reservation/internal/domain"
	"example.com/reservation/internal/persistence"
	"example.com/reservation/internal/qr"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ReservationService is the engine surface the handlers drive.
type ReservationService interface {
	CreateBooking(ctx context.Context, tenantID, memberID, sessionID string) (*domain.Booking, error)
	CancelBooking(ctx context.Context, tenantID, bookingID, memberID string) (*domain.Booking, *domain.Booking, error)
	CheckIn(ctx context.Context, tenantID string, input domain.CheckInInput) (*domain.Booking, error)
}

// BookingReads covers the query paths behind GET endpoints.
type BookingReads interface {
	GetBooking(ctx context.Context, tenantID, bookingID string) (*domain.Booking, error)
	GetSession(ctx context.Context, tenantID, sessionID string) (*domain.Session, error)
	GetVenue(ctx context.Context, tenantID, venueID string) (*domain.Venue, error)
	ListByMember(ctx context.Context, tenantID, memberID string, cursor *domain.Cursor, limit int) ([]domain.Booking, *domain.Cursor, error)
	ListAttendance(ctx context.Context, tenantID, sessionID string) ([]domain.AttendanceLogEntry, error)
}

// Handler coordinates HTTP requests with the reservation engine.
type Handler struct {
	service ReservationService
	reads   BookingReads
}

// NewHandler builds a Handler.
func NewHandler(service ReservationService, reads BookingReads) *Handler {
	return &Handler{service: service, reads: reads}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/bookings", h.bookings)
	mux.HandleFunc("/v1/bookings/", h.bookingByID)
	mux.HandleFunc("/v1/checkins", h.checkIn)
	mux.HandleFunc("/v1/checkins/manual", h.manualCheckIn)
	mux.HandleFunc("/v1/sessions/", h.sessionSubresource)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) bookings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createBooking(w, r)
	case http.MethodGet:
		h.listBookings(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) bookingByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/bookings/")
	id, sub, _ := strings.Cut(rest, "/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing booking id")
		return
	}

	switch {
	case sub == "" && r.Method == http.MethodGet:
		h.getBooking(w, r, id)
	case sub == "cancel" && r.Method == http.MethodPost:
		h.cancelBooking(w, r, id)
	case sub == "qr" && r.Method == http.MethodGet:
		h.renderQR(w, r, id)
	case sub == "pass" && r.Method == http.MethodGet:
		h.renderPass(w, r, id)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) sessionSubresource(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/sessions/")
	id, sub, _ := strings.Cut(rest, "/")
	if id == "" || sub != "attendance" || r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	h.listAttendance(w, r, id)
}

func (h *Handler) createBooking(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeBookingsWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope bookings:write required")
		return
	}

	var req CreateBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	memberID := req.MemberID
	if memberID == "" {
		memberID = claims.Subject
	}
	if memberID != claims.Subject && !claims.HasScope(auth.ScopeBookingsAdmin) {
		writeError(w, http.StatusForbidden, "forbidden", "booking for another member requires bookings:admin")
		return
	}

	booking, err := h.service.CreateBooking(r.Context(), claims.TenantID, memberID, req.SessionID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	png, err := qr.RenderPNG(booking.QRToken, 256)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, CreateBookingResponse{
		Booking: toBookingView(*booking),
		QRPNG:   png,
	})
}

func (h *Handler) cancelBooking(w http.ResponseWriter, r *http.Request, id string) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeBookingsWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope bookings:write required")
		return
	}

	cancelled, promoted, err := h.service.CancelBooking(r.Context(), claims.TenantID, id, claims.Subject)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, CancelBookingResponse{
		Booking:  toBookingView(*cancelled),
		Promoted: promoted != nil,
	})
}

func (h *Handler) getBooking(w http.ResponseWriter, r *http.Request, id string) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeBookingsRead) && !claims.HasScope(auth.ScopeBookingsWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope bookings:read required")
		return
	}

	booking, err := h.reads.GetBooking(r.Context(), claims.TenantID, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	if booking == nil {
		writeError(w, http.StatusNotFound, "not_found", "booking not found")
		return
	}
	writeJSON(w, http.StatusOK, toBookingView(*booking))
}

func (h *Handler) listBookings(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeBookingsRead) && !claims.HasScope(auth.ScopeBookingsWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope bookings:read required")
		return
	}

	memberID := r.URL.Query().Get("member_id")
	if memberID == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "missing member_id parameter")
		return
	}

	limit := defaultPageSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	cursor, err := persistence.DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid cursor")
		return
	}

	bookings, next, err := h.reads.ListByMember(r.Context(), claims.TenantID, memberID, cursor, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	items := make([]BookingView, 0, len(bookings))
	for _, b := range bookings {
		items = append(items, toBookingView(b))
	}
	writeJSON(w, http.StatusOK, ListBookingsResponse{
		Items:      items,
		NextCursor: persistence.EncodeCursor(next),
	})
}

func (h *Handler) renderQR(w http.ResponseWriter, r *http.Request, id string) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeBookingsRead) && !claims.HasScope(auth.ScopeBookingsWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope bookings:read required")
		return
	}

	booking, err := h.reads.GetBooking(r.Context(), claims.TenantID, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	if booking == nil {
		writeError(w, http.StatusNotFound, "not_found", "booking not found")
		return
	}

	size := 256
	if raw := r.URL.Query().Get("size"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 1024 {
			size = parsed
		}
	}

	png, err := qr.RenderPNG(booking.QRToken, size)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

func (h *Handler) renderPass(w http.ResponseWriter, r *http.Request, id string) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeBookingsRead) && !claims.HasScope(auth.ScopeBookingsWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope bookings:read required")
		return
	}

	booking, err := h.reads.GetBooking(r.Context(), claims.TenantID, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	if booking == nil {
		writeError(w, http.StatusNotFound, "not_found", "booking not found")
		return
	}

	session, err := h.reads.GetSession(r.Context(), claims.TenantID, booking.SessionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	pass := qr.Pass{
		MemberID: booking.MemberID,
		Token:    booking.QRToken,
	}
	if session != nil {
		pass.ClassName = session.ClassName
		pass.StartsAt = session.StartsAt
		if session.VenueID != "" {
			if venue, err := h.reads.GetVenue(r.Context(), claims.TenantID, session.VenueID); err == nil && venue != nil {
				pass.VenueName = venue.Name
			}
		}
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment; filename=pass-"+booking.ID+".pdf")
	w.WriteHeader(http.StatusOK)
	if err := qr.RenderPass(w, pass); err != nil {
		// Headers are already sent; all we can do is log through the server.
		return
	}
}

func (h *Handler) checkIn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeCheckInsWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope checkins:write required")
		return
	}

	var req CheckInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if strings.TrimSpace(req.Token) == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "token is required")
		return
	}

	input := domain.CheckInInput{
		Token:    req.Token,
		Location: req.Location,
		Override: req.Override,
	}
	if req.Override {
		input.StaffID = claims.Subject
	}

	booking, err := h.service.CheckIn(r.Context(), claims.TenantID, input)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingView(*booking))
}

// manualCheckIn lets staff check a member in by booking id. The geofence is
// always bypassed; the time window still applies.
func (h *Handler) manualCheckIn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeCheckInsWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope checkins:write required")
		return
	}

	var req ManualCheckInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if strings.TrimSpace(req.BookingID) == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "booking_id is required")
		return
	}

	booking, err := h.service.CheckIn(r.Context(), claims.TenantID, domain.CheckInInput{
		BookingID: req.BookingID,
		StaffID:   claims.Subject,
		Override:  true,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingView(*booking))
}

func (h *Handler) listAttendance(w http.ResponseWriter, r *http.Request, sessionID string) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeCheckInsWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope checkins:write required")
		return
	}

	entries, err := h.reads.ListAttendance(r.Context(), claims.TenantID, sessionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	items := make([]AttendanceView, 0, len(entries))
	for _, e := range entries {
		items = append(items, toAttendanceView(e))
	}
	writeJSON(w, http.StatusOK, ListAttendanceResponse{Items: items})
}

// writeDomainError maps engine errors onto the HTTP taxonomy: eligibility and
// geofence failures are 403, conflicts 400, lookups 404. The detail is the
// error message itself so staff see the computed distance on an anomaly.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNoActiveMembership):
		writeError(w, http.StatusForbidden, "no_active_membership", err.Error())
	case errors.Is(err, domain.ErrMembershipExpired):
		writeError(w, http.StatusForbidden, "membership_expired", err.Error())
	case errors.Is(err, domain.ErrNoCreditsRemaining):
		writeError(w, http.StatusForbidden, "no_credits_remaining", err.Error())
	case errors.Is(err, domain.ErrAlreadyBooked):
		writeError(w, http.StatusBadRequest, "already_booked", err.Error())
	case errors.Is(err, domain.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "session_not_found", err.Error())
	case errors.Is(err, domain.ErrBookingNotFound):
		writeError(w, http.StatusNotFound, "booking_not_found", err.Error())
	case errors.Is(err, domain.ErrInvalidCheckIn):
		writeError(w, http.StatusNotFound, "invalid_checkin", err.Error())
	case errors.Is(err, domain.ErrOutsideCheckInWindow):
		writeError(w, http.StatusBadRequest, "outside_checkin_window", err.Error())
	case errors.Is(err, domain.ErrLocationAnomaly):
		writeError(w, http.StatusForbidden, "location_anomaly", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
