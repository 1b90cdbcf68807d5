package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"example.com/reservation/internal/domain"
)

// Read paths used by the API layer. Each runs in its own short transaction so
// the tenant id is pinned for row-level security, mirroring the write side.

// GetBooking retrieves a booking by id, or nil when absent.
func (r *Repository) GetBooking(ctx context.Context, tenantID, bookingID string) (*domain.Booking, error) {
	var booking *domain.Booking
	err := r.readTx(ctx, tenantID, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx,
			`SELECT `+bookingColumns+` FROM bookings WHERE tenant_id=$1 AND booking_id=$2`,
			tenantID, bookingID)
		var err error
		booking, err = scanBooking(row)
		return err
	})
	return booking, err
}

// GetSession retrieves a session by id, or nil when absent.
func (r *Repository) GetSession(ctx context.Context, tenantID, sessionID string) (*domain.Session, error) {
	var session *domain.Session
	err := r.readTx(ctx, tenantID, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx,
			`SELECT `+sessionColumns+` FROM sessions WHERE tenant_id=$1 AND session_id=$2`,
			tenantID, sessionID)
		var err error
		session, err = scanSession(row)
		return err
	})
	return session, err
}

// GetVenue retrieves a venue by id, or nil when absent.
func (r *Repository) GetVenue(ctx context.Context, tenantID, venueID string) (*domain.Venue, error) {
	var venue *domain.Venue
	err := r.readTx(ctx, tenantID, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx,
			`SELECT venue_id, tenant_id, name, latitude, longitude FROM venues
             WHERE tenant_id=$1 AND venue_id=$2`,
			tenantID, venueID)
		var v domain.Venue
		if err := row.Scan(&v.ID, &v.TenantID, &v.Name, &v.Latitude, &v.Longitude); err != nil {
			if err == pgx.ErrNoRows {
				return nil
			}
			return err
		}
		venue = &v
		return nil
	})
	return venue, err
}

// ListByMember returns the member's bookings newest first with cursor
// pagination.
func (r *Repository) ListByMember(ctx context.Context, tenantID, memberID string, cursor *domain.Cursor, limit int) ([]domain.Booking, *domain.Cursor, error) {
	args := []interface{}{tenantID, memberID, limit}
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE tenant_id=$1 AND member_id=$2`
	if cursor != nil {
		query += ` AND (booked_at, booking_id) < ($4, $5)`
		args = append(args, cursor.BookedAt, cursor.ID)
	}
	query += ` ORDER BY booked_at DESC, booking_id DESC LIMIT $3`

	var results []domain.Booking
	err := r.readTx(ctx, tenantID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		results = make([]domain.Booking, 0, limit)
		for rows.Next() {
			var b domain.Booking
			if err := rows.Scan(&b.ID, &b.TenantID, &b.MemberID, &b.SessionID, &b.Status, &b.QRToken, &b.BookedAt, &b.CreatedAt, &b.UpdatedAt); err != nil {
				return err
			}
			results = append(results, b)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, nil, err
	}

	var next *domain.Cursor
	if len(results) == limit {
		last := results[len(results)-1]
		next = &domain.Cursor{BookedAt: last.BookedAt, ID: last.ID}
	}
	return results, next, nil
}

// ListAttendance returns the audit records for one session in order of
// occurrence.
func (r *Repository) ListAttendance(ctx context.Context, tenantID, sessionID string) ([]domain.AttendanceLogEntry, error) {
	var entries []domain.AttendanceLogEntry
	err := r.readTx(ctx, tenantID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx,
			`SELECT entry_id, tenant_id, COALESCE(booking_id, ''), COALESCE(session_id, ''), COALESCE(venue_id, ''), outcome, reported_lat, reported_lng, distance_meters, COALESCE(staff_id, ''), occurred_at
             FROM attendance_log WHERE tenant_id=$1 AND session_id=$2
             ORDER BY occurred_at, entry_id`,
			tenantID, sessionID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var e domain.AttendanceLogEntry
			if err := rows.Scan(&e.EntryID, &e.TenantID, &e.BookingID, &e.SessionID, &e.VenueID, &e.Outcome, &e.ReportedLat, &e.ReportedLng, &e.DistanceMeters, &e.StaffID, &e.OccurredAt); err != nil {
				return err
			}
			entries = append(entries, e)
		}
		return rows.Err()
	})
	return entries, err
}

func (r *Repository) readTx(ctx context.Context, tenantID string, fn func(tx pgx.Tx) error) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT set_config('app.tenant_id', $1, true)", tenantID); err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
