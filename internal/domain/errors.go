package domain

import "errors"

var (
	// ErrNoActiveMembership is returned when a member has no active membership.
	ErrNoActiveMembership = errors.New("no active membership")
	// ErrMembershipExpired is returned when the active subscription is past its
	// expiration date; the membership is deactivated as a side effect.
	ErrMembershipExpired = errors.New("membership expired")
	// ErrNoCreditsRemaining is returned when a credit-pack membership has no
	// credits left to consume.
	ErrNoCreditsRemaining = errors.New("no credits remaining")
	// ErrAlreadyBooked is returned when a non-cancelled booking already exists
	// for the (member, session) pair.
	ErrAlreadyBooked = errors.New("member already booked for this session")
	// ErrSessionNotFound is returned when the session does not exist or has
	// been cancelled by the studio.
	ErrSessionNotFound = errors.New("session not found")
	// ErrBookingNotFound is returned when no cancellable booking belongs to the
	// caller. Re-cancelling an already-cancelled booking fails the same way.
	ErrBookingNotFound = errors.New("booking not found")
	// ErrInvalidCheckIn is returned when no confirmed booking matches the
	// presented token or booking id.
	ErrInvalidCheckIn = errors.New("no confirmed booking for check-in")
	// ErrOutsideCheckInWindow is returned when the attempt falls outside the
	// allowed window around the session.
	ErrOutsideCheckInWindow = errors.New("outside check-in window")
	// ErrLocationAnomaly is returned when the reported location is too far from
	// the venue; the wrapped message carries the computed distance so staff can
	// decide on an override.
	ErrLocationAnomaly = errors.New("location anomaly")
	// ErrIllegalTransition is returned when a status change is not an edge of
	// the booking state machine.
	ErrIllegalTransition = errors.New("illegal booking status transition")
)
