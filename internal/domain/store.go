package domain

import (
	"context"
	"time"
)

// Cursor models the pagination token for booking listings.
type Cursor struct {
	BookedAt time.Time
	ID       string
}

// Store opens transactional units of work against the backing database. Every
// mutating sequence in the engine runs inside a single transaction: a failure
// anywhere before commit leaves no partial writes.
type Store interface {
	// InTx runs fn inside one transaction scoped to the tenant. The
	// transaction commits when fn returns nil and rolls back otherwise.
	InTx(ctx context.Context, tenantID string, fn func(ctx context.Context, tx Tx) error) error
}

// Tx exposes the persistence operations available inside a transaction.
type Tx interface {
	// GetSession returns the session or nil when absent.
	GetSession(ctx context.Context, sessionID string) (*Session, error)

	// ReserveSeat atomically increments the session's enrolled count if and
	// only if enrolled_count < capacity, reporting whether a seat was taken.
	ReserveSeat(ctx context.Context, sessionID string) (bool, error)

	// ReleaseSeat atomically decrements the enrolled count. It fails if the
	// count is already zero, which would indicate a ledger bug.
	ReleaseSeat(ctx context.Context, sessionID string) error

	// ActiveMembership returns the member's active membership row-locked for
	// the remainder of the transaction, or nil when none is active.
	ActiveMembership(ctx context.Context, memberID string) (*Membership, error)

	// SaveMembership persists credit and activation changes.
	SaveMembership(ctx context.Context, m *Membership) error

	// FindBooking returns the booking for the (member, session) pair
	// row-locked, or nil when the pair has never booked.
	FindBooking(ctx context.Context, memberID, sessionID string) (*Booking, error)

	// GetBookingForMember returns the member's own booking by id, or nil.
	GetBookingForMember(ctx context.Context, bookingID, memberID string) (*Booking, error)

	// GetConfirmedBooking resolves a CONFIRMED booking by id, or nil.
	GetConfirmedBooking(ctx context.Context, bookingID string) (*Booking, error)

	// FindConfirmedByToken resolves a CONFIRMED booking by its verification
	// token, or nil.
	FindConfirmedByToken(ctx context.Context, token string) (*Booking, error)

	// CreateOrReactivateBooking inserts the booking, or reactivates the
	// existing cancelled record for the same (member, session) pair with the
	// new status, token, and timestamp. It returns ErrAlreadyBooked when a
	// non-cancelled record holds the pair, including under concurrent inserts.
	CreateOrReactivateBooking(ctx context.Context, b *Booking) (*Booking, error)

	// SaveBooking persists a status change on an existing booking.
	SaveBooking(ctx context.Context, b *Booking) error

	// WaitlistedInOrder returns the session's WAITLISTED bookings ordered by
	// booking timestamp ascending (ties broken by id), row-locked.
	WaitlistedInOrder(ctx context.Context, sessionID string) ([]*Booking, error)

	// GetVenue returns the venue or nil when absent.
	GetVenue(ctx context.Context, venueID string) (*Venue, error)

	// AppendAttendanceLog writes one immutable audit record.
	AppendAttendanceLog(ctx context.Context, entry *AttendanceLogEntry) error

	// EnqueueNotification records a member notification for post-commit
	// delivery by the outbox dispatcher.
	EnqueueNotification(ctx context.Context, n Notification) error
}
