package api

import (
	"errors"
	"strings"
	"time"

	"example.com/reservation/internal/domain"
	"example.com/reservation/internal/geo"
)

// CreateBookingRequest is the payload for POST /v1/bookings. MemberID is
// optional; when empty the booking is created for the token subject.
type CreateBookingRequest struct {
	MemberID  string `json:"member_id,omitempty"`
	SessionID string `json:"session_id"`
}

// Validate checks required fields.
func (r CreateBookingRequest) Validate() error {
	if strings.TrimSpace(r.SessionID) == "" {
		return errors.New("session_id is required")
	}
	return nil
}

// CheckInRequest is the payload for POST /v1/checkins.
type CheckInRequest struct {
	Token    string     `json:"token"`
	Location *geo.Point `json:"location,omitempty"`
	Override bool       `json:"override,omitempty"`
}

// ManualCheckInRequest is the payload for POST /v1/checkins/manual.
type ManualCheckInRequest struct {
	BookingID string `json:"booking_id"`
}

// BookingView is the wire representation of a booking.
type BookingView struct {
	ID        string    `json:"id"`
	MemberID  string    `json:"member_id"`
	SessionID string    `json:"session_id"`
	Status    string    `json:"status"`
	BookedAt  time.Time `json:"booked_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateBookingResponse carries the stored booking plus a rendered QR code.
// QRPNG is base64 in JSON.
type CreateBookingResponse struct {
	Booking BookingView `json:"booking"`
	QRPNG   []byte      `json:"qr_png"`
}

// CancelBookingResponse reports the cancelled booking and whether a
// waitlisted member took the freed seat.
type CancelBookingResponse struct {
	Booking  BookingView `json:"booking"`
	Promoted bool        `json:"promoted"`
}

// ListBookingsResponse is a cursor-paginated page of bookings.
type ListBookingsResponse struct {
	Items      []BookingView `json:"items"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

// AttendanceView is the wire representation of an attendance log entry.
type AttendanceView struct {
	EntryID        int64      `json:"entry_id"`
	BookingID      string     `json:"booking_id,omitempty"`
	SessionID      string     `json:"session_id"`
	Outcome        string     `json:"outcome"`
	DistanceMeters *float64   `json:"distance_meters,omitempty"`
	Location       *geo.Point `json:"location,omitempty"`
	StaffID        string     `json:"staff_id,omitempty"`
	OccurredAt     time.Time  `json:"occurred_at"`
}

// ListAttendanceResponse is the audit trail for one session.
type ListAttendanceResponse struct {
	Items []AttendanceView `json:"items"`
}

func toBookingView(b domain.Booking) BookingView {
	return BookingView{
		ID:        b.ID,
		MemberID:  b.MemberID,
		SessionID: b.SessionID,
		Status:    string(b.Status),
		BookedAt:  b.BookedAt,
		UpdatedAt: b.UpdatedAt,
	}
}

func toAttendanceView(e domain.AttendanceLogEntry) AttendanceView {
	view := AttendanceView{
		EntryID:        e.EntryID,
		BookingID:      e.BookingID,
		SessionID:      e.SessionID,
		Outcome:        string(e.Outcome),
		DistanceMeters: e.DistanceMeters,
		StaffID:        e.StaffID,
		OccurredAt:     e.OccurredAt,
	}
	if e.ReportedLat != nil && e.ReportedLng != nil {
		view.Location = &geo.Point{Lat: *e.ReportedLat, Lng: *e.ReportedLng}
	}
	return view
}
