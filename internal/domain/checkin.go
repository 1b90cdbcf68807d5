package domain

import (
	"context"
	"fmt"

	"example.com/reservation/internal/geo"
	"example.com/reservation/internal/observability"
)

// CheckInInput describes one attendance attempt. Exactly one of Token or
// BookingID identifies the booking: members present their token, staff supply
// the booking id directly (which forces Override).
type CheckInInput struct {
	Token     string
	BookingID string
	Location  *geo.Point
	StaffID   string
	Override  bool
}

// CheckIn validates an attendance attempt against the session's time window
// and the venue geofence, moving the booking to CHECKED_IN on success. Every
// attempt, including failed ones, commits exactly one attendance_log entry:
// on a verification failure the transaction commits with only the audit row
// and the domain error is surfaced afterwards.
func (s *Service) CheckIn(ctx context.Context, tenantID string, input CheckInInput) (*Booking, error) {
	now := s.clock.Now()
	var (
		booking   *Booking
		verifyErr error
	)

	// A token that fails the offline signature check can never match a
	// stored booking, so the lookup is skipped and only the audit row is
	// written for it.
	tokenSigned := true
	if input.BookingID == "" {
		if _, err := s.tokens.Verify(input.Token); err != nil {
			tokenSigned = false
		}
	}

	err := s.store.InTx(ctx, tenantID, func(ctx context.Context, tx Tx) error {
		var err error
		switch {
		case input.BookingID != "":
			booking, err = tx.GetConfirmedBooking(ctx, input.BookingID)
		case tokenSigned:
			booking, err = tx.FindConfirmedByToken(ctx, input.Token)
		}
		if err != nil {
			return err
		}

		entry := &AttendanceLogEntry{
			TenantID:   tenantID,
			StaffID:    input.StaffID,
			OccurredAt: now,
		}
		if input.Location != nil {
			entry.ReportedLat = &input.Location.Lat
			entry.ReportedLng = &input.Location.Lng
		}

		if booking == nil {
			entry.BookingID = input.BookingID
			entry.Outcome = OutcomeNotFound
			verifyErr = ErrInvalidCheckIn
			return s.logAttempt(ctx, tx, entry)
		}

		entry.BookingID = booking.ID
		entry.SessionID = booking.SessionID

		session, err := tx.GetSession(ctx, booking.SessionID)
		if err != nil {
			return err
		}
		if session == nil {
			entry.Outcome = OutcomeNotFound
			verifyErr = ErrInvalidCheckIn
			return s.logAttempt(ctx, tx, entry)
		}
		entry.VenueID = session.VenueID

		opensAt := session.StartsAt.Add(-s.cfg.CheckInEarlyWindow)
		closesAt := session.EndsAt.Add(s.cfg.CheckInLateWindow)
		if now.Before(opensAt) || now.After(closesAt) {
			entry.Outcome = OutcomeInvalidWindow
			verifyErr = ErrOutsideCheckInWindow
			return s.logAttempt(ctx, tx, entry)
		}

		distance, err := s.venueDistance(ctx, tx, session, input.Location)
		if err != nil {
			return err
		}
		entry.DistanceMeters = distance

		if distance != nil && *distance > s.cfg.GeofenceRadiusMeters && !input.Override {
			entry.Outcome = OutcomeLocationMismatch
			verifyErr = fmt.Errorf("%w: reported location is %.0f m from the venue", ErrLocationAnomaly, *distance)
			return s.logAttempt(ctx, tx, entry)
		}

		if err := booking.TransitionTo(StatusCheckedIn, now); err != nil {
			return err
		}
		if err := tx.SaveBooking(ctx, booking); err != nil {
			return err
		}

		entry.Outcome = OutcomeSuccess
		if input.Override {
			entry.Outcome = OutcomeStaffOverride
		}
		if err := s.logAttempt(ctx, tx, entry); err != nil {
			return err
		}

		return tx.EnqueueNotification(ctx, Notification{
			Kind:      NotifyBookingCheckedIn,
			TenantID:  tenantID,
			MemberID:  booking.MemberID,
			BookingID: booking.ID,
			SessionID: booking.SessionID,
			Message:   fmt.Sprintf("Checked in to %s. Enjoy your class!", session.ClassName),
		})
	})
	if err != nil {
		return nil, err
	}
	if verifyErr != nil {
		return nil, verifyErr
	}
	return booking, nil
}

// venueDistance computes the great-circle distance between the reported
// location and the session's venue. It returns nil when either side has no
// coordinates, in which case the geofence does not apply.
func (s *Service) venueDistance(ctx context.Context, tx Tx, session *Session, reported *geo.Point) (*float64, error) {
	if reported == nil || session.VenueID == "" {
		return nil, nil
	}
	venue, err := tx.GetVenue(ctx, session.VenueID)
	if err != nil {
		return nil, err
	}
	if venue == nil || venue.Latitude == nil || venue.Longitude == nil {
		return nil, nil
	}
	d := geo.Distance(*reported, geo.Point{Lat: *venue.Latitude, Lng: *venue.Longitude})
	return &d, nil
}

func (s *Service) logAttempt(ctx context.Context, tx Tx, entry *AttendanceLogEntry) error {
	if err := tx.AppendAttendanceLog(ctx, entry); err != nil {
		return err
	}
	observability.RecordCheckInAttempt(string(entry.Outcome))
	return nil
}
