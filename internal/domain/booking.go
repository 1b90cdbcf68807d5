// Package domain implements the class-session reservation engine: booking
// lifecycle, membership eligibility, waitlist promotion, and attendance
// verification.
package domain

import "time"

// BookingStatus is the lifecycle state of a reservation.
type BookingStatus string

const (
	StatusConfirmed  BookingStatus = "confirmed"
	StatusWaitlisted BookingStatus = "waitlisted"
	StatusCancelled  BookingStatus = "cancelled"
	StatusCheckedIn  BookingStatus = "checked_in"
)

// transition is a single allowed edge in the booking state machine.
type transition struct {
	from BookingStatus
	to   BookingStatus
}

// transitionTable enumerates every legal status change. CHECKED_IN is
// terminal and only reachable from CONFIRMED; a cancelled booking is
// reactivated through the reservation path, never mutated directly.
var transitionTable = []transition{
	{from: StatusConfirmed, to: StatusCancelled},
	{from: StatusWaitlisted, to: StatusCancelled},
	{from: StatusWaitlisted, to: StatusConfirmed},
	{from: StatusConfirmed, to: StatusCheckedIn},
	{from: StatusCancelled, to: StatusConfirmed},
	{from: StatusCancelled, to: StatusWaitlisted},
}

// CanTransition reports whether moving from s to next is a legal edge.
func (s BookingStatus) CanTransition(next BookingStatus) bool {
	for _, tr := range transitionTable {
		if tr.from == s && tr.to == next {
			return true
		}
	}
	return false
}

// Active reports whether the booking currently occupies or queues for a slot.
func (s BookingStatus) Active() bool {
	return s == StatusConfirmed || s == StatusWaitlisted
}

// Booking is the reservation record for one (member, session) pair. The pair
// is unique: cancelling and rebooking reuses the same record with a fresh
// token and timestamp.
type Booking struct {
	ID        string
	TenantID  string
	MemberID  string
	SessionID string
	Status    BookingStatus
	QRToken   string
	BookedAt  time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TransitionTo applies a status change, rejecting illegal edges.
func (b *Booking) TransitionTo(next BookingStatus, now time.Time) error {
	if !b.Status.CanTransition(next) {
		return ErrIllegalTransition
	}
	b.Status = next
	b.UpdatedAt = now
	return nil
}

// Session is a scheduled class occurrence. The engine reads capacity and
// schedule fields and mutates only EnrolledCount (through the store's
// conditional increment, never directly).
type Session struct {
	ID            string
	TenantID      string
	ClassName     string
	VenueID       string
	StartsAt      time.Time
	EndsAt        time.Time
	Capacity      int
	EnrolledCount int
	Cancelled     bool
}

// Venue carries the geolocation used by the check-in geofence. Latitude and
// Longitude are nil when the venue has no recorded coordinates.
type Venue struct {
	ID        string
	TenantID  string
	Name      string
	Latitude  *float64
	Longitude *float64
}

// PlanKind distinguishes time-bounded subscriptions from prepaid credit packs.
type PlanKind string

const (
	PlanSubscription PlanKind = "subscription"
	PlanCreditPack   PlanKind = "credit_pack"
)

// Membership is a member's entitlement record. At most one membership per
// member is active at any instant (enforced by a partial unique index).
type Membership struct {
	ID               string
	TenantID         string
	MemberID         string
	PlanKind         PlanKind
	Active           bool
	ExpiresAt        *time.Time
	CreditsRemaining int
	PlanChangedAt    time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// AttendanceOutcome classifies a check-in attempt for the audit log.
type AttendanceOutcome string

const (
	OutcomeSuccess          AttendanceOutcome = "SUCCESS"
	OutcomeInvalidWindow    AttendanceOutcome = "INVALID_WINDOW"
	OutcomeLocationMismatch AttendanceOutcome = "LOCATION_MISMATCH"
	OutcomeStaffOverride    AttendanceOutcome = "STAFF_OVERRIDE"
	OutcomeNotFound         AttendanceOutcome = "NOT_FOUND"
)

// AttendanceLogEntry is an immutable audit record of one check-in attempt.
// Entries are append-only and written for every attempt regardless of outcome.
type AttendanceLogEntry struct {
	EntryID        int64
	TenantID       string
	BookingID      string
	SessionID      string
	VenueID        string
	Outcome        AttendanceOutcome
	ReportedLat    *float64
	ReportedLng    *float64
	DistanceMeters *float64
	StaffID        string
	OccurredAt     time.Time
}

// NotificationKind labels the member-facing messages emitted by the engine.
type NotificationKind string

const (
	NotifyBookingConfirmed  NotificationKind = "booking.confirmed"
	NotifyBookingWaitlisted NotificationKind = "booking.waitlisted"
	NotifyBookingCancelled  NotificationKind = "booking.cancelled"
	NotifyBookingPromoted   NotificationKind = "booking.promoted"
	NotifyBookingCheckedIn  NotificationKind = "booking.checked_in"
)

// Notification is queued inside the engine's transaction and delivered to the
// external sink only after commit. Delivery failures never affect the booking.
type Notification struct {
	Kind      NotificationKind
	TenantID  string
	MemberID  string
	BookingID string
	SessionID string
	Message   string
}
