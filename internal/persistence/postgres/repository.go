package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/reservation/internal/domain"
)

// Repository provides Postgres-backed persistence for the reservation engine.
// It implements domain.Store for transactional work and exposes the read
// paths used by the API layer.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// InTx implements domain.Store. The tenant id is pinned on the session for
// row-level security before fn runs; fn returning an error rolls everything
// back, leaving no partial counter updates, refunds, or booking writes.
func (r *Repository) InTx(ctx context.Context, tenantID string, fn func(ctx context.Context, tx domain.Tx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, "SELECT set_config('app.tenant_id', $1, true)", tenantID); err != nil {
		return err
	}

	if err = fn(ctx, &sqlTx{tx: tx, tenantID: tenantID}); err != nil {
		return err
	}

	err = tx.Commit(ctx)
	return err
}

// sqlTx implements domain.Tx on top of one pgx transaction.
type sqlTx struct {
	tx       pgx.Tx
	tenantID string
}

const sessionColumns = `session_id, tenant_id, class_name, COALESCE(venue_id, ''), starts_at, ends_at, capacity, enrolled_count, cancelled`

func (t *sqlTx) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	row := t.tx.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE tenant_id=$1 AND session_id=$2`,
		t.tenantID, sessionID)
	return scanSession(row)
}

func (t *sqlTx) ReserveSeat(ctx context.Context, sessionID string) (bool, error) {
	tag, err := t.tx.Exec(ctx,
		`UPDATE sessions SET enrolled_count = enrolled_count + 1, updated_at = NOW()
         WHERE tenant_id=$1 AND session_id=$2 AND enrolled_count < capacity`,
		t.tenantID, sessionID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (t *sqlTx) ReleaseSeat(ctx context.Context, sessionID string) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE sessions SET enrolled_count = enrolled_count - 1, updated_at = NOW()
         WHERE tenant_id=$1 AND session_id=$2 AND enrolled_count > 0`,
		t.tenantID, sessionID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("release on session %s would drop enrolled_count below zero", sessionID)
	}
	return nil
}

const membershipColumns = `membership_id, tenant_id, member_id, plan_kind, active, expires_at, COALESCE(credits_remaining, 0), plan_changed_at, created_at, updated_at`

func (t *sqlTx) ActiveMembership(ctx context.Context, memberID string) (*domain.Membership, error) {
	row := t.tx.QueryRow(ctx,
		`SELECT `+membershipColumns+` FROM memberships
         WHERE tenant_id=$1 AND member_id=$2 AND active FOR UPDATE`,
		t.tenantID, memberID)

	var m domain.Membership
	if err := row.Scan(&m.ID, &m.TenantID, &m.MemberID, &m.PlanKind, &m.Active, &m.ExpiresAt, &m.CreditsRemaining, &m.PlanChangedAt, &m.CreatedAt, &m.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

func (t *sqlTx) SaveMembership(ctx context.Context, m *domain.Membership) error {
	_, err := t.tx.Exec(ctx,
		`UPDATE memberships SET active=$3, credits_remaining=$4, updated_at=$5
         WHERE tenant_id=$1 AND membership_id=$2`,
		t.tenantID, m.ID, m.Active, m.CreditsRemaining, m.UpdatedAt)
	return err
}

const bookingColumns = `booking_id, tenant_id, member_id, session_id, status, qr_token, booked_at, created_at, updated_at`

func (t *sqlTx) FindBooking(ctx context.Context, memberID, sessionID string) (*domain.Booking, error) {
	row := t.tx.QueryRow(ctx,
		`SELECT `+bookingColumns+` FROM bookings
         WHERE tenant_id=$1 AND member_id=$2 AND session_id=$3 FOR UPDATE`,
		t.tenantID, memberID, sessionID)
	return scanBooking(row)
}

func (t *sqlTx) GetBookingForMember(ctx context.Context, bookingID, memberID string) (*domain.Booking, error) {
	row := t.tx.QueryRow(ctx,
		`SELECT `+bookingColumns+` FROM bookings
         WHERE tenant_id=$1 AND booking_id=$2 AND member_id=$3 FOR UPDATE`,
		t.tenantID, bookingID, memberID)
	return scanBooking(row)
}

func (t *sqlTx) GetConfirmedBooking(ctx context.Context, bookingID string) (*domain.Booking, error) {
	row := t.tx.QueryRow(ctx,
		`SELECT `+bookingColumns+` FROM bookings
         WHERE tenant_id=$1 AND booking_id=$2 AND status='confirmed' FOR UPDATE`,
		t.tenantID, bookingID)
	return scanBooking(row)
}

func (t *sqlTx) FindConfirmedByToken(ctx context.Context, token string) (*domain.Booking, error) {
	row := t.tx.QueryRow(ctx,
		`SELECT `+bookingColumns+` FROM bookings
         WHERE tenant_id=$1 AND qr_token=$2 AND status='confirmed' FOR UPDATE`,
		t.tenantID, token)
	return scanBooking(row)
}

// CreateOrReactivateBooking relies on the (tenant, member, session) unique
// constraint: a fresh pair inserts, a cancelled record is reactivated in
// place, and anything else (including a concurrent insert that won the race)
// reports ErrAlreadyBooked.
func (t *sqlTx) CreateOrReactivateBooking(ctx context.Context, b *domain.Booking) (*domain.Booking, error) {
	row := t.tx.QueryRow(ctx,
		`INSERT INTO bookings (booking_id, tenant_id, member_id, session_id, status, qr_token, booked_at, created_at, updated_at)
         VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
         ON CONFLICT (tenant_id, member_id, session_id) DO UPDATE
            SET status = EXCLUDED.status,
                qr_token = EXCLUDED.qr_token,
                booked_at = EXCLUDED.booked_at,
                updated_at = EXCLUDED.updated_at
            WHERE bookings.status = 'cancelled'
         RETURNING `+bookingColumns,
		b.ID, b.TenantID, b.MemberID, b.SessionID, b.Status, b.QRToken, b.BookedAt, b.CreatedAt, b.UpdatedAt)

	stored, err := scanBooking(row)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, domain.ErrAlreadyBooked
	}
	return stored, nil
}

func (t *sqlTx) SaveBooking(ctx context.Context, b *domain.Booking) error {
	_, err := t.tx.Exec(ctx,
		`UPDATE bookings SET status=$3, qr_token=$4, booked_at=$5, updated_at=$6
         WHERE tenant_id=$1 AND booking_id=$2`,
		t.tenantID, b.ID, b.Status, b.QRToken, b.BookedAt, b.UpdatedAt)
	return err
}

func (t *sqlTx) WaitlistedInOrder(ctx context.Context, sessionID string) ([]*domain.Booking, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT `+bookingColumns+` FROM bookings
         WHERE tenant_id=$1 AND session_id=$2 AND status='waitlisted'
         ORDER BY booked_at, booking_id
         FOR UPDATE`,
		t.tenantID, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var queue []*domain.Booking
	for rows.Next() {
		var b domain.Booking
		if err := rows.Scan(&b.ID, &b.TenantID, &b.MemberID, &b.SessionID, &b.Status, &b.QRToken, &b.BookedAt, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		queue = append(queue, &b)
	}
	return queue, rows.Err()
}

func (t *sqlTx) GetVenue(ctx context.Context, venueID string) (*domain.Venue, error) {
	row := t.tx.QueryRow(ctx,
		`SELECT venue_id, tenant_id, name, latitude, longitude FROM venues
         WHERE tenant_id=$1 AND venue_id=$2`,
		t.tenantID, venueID)

	var v domain.Venue
	if err := row.Scan(&v.ID, &v.TenantID, &v.Name, &v.Latitude, &v.Longitude); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &v, nil
}

func (t *sqlTx) AppendAttendanceLog(ctx context.Context, entry *domain.AttendanceLogEntry) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO attendance_log (tenant_id, booking_id, session_id, venue_id, outcome, reported_lat, reported_lng, distance_meters, staff_id, occurred_at)
         VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		t.tenantID,
		nullIfEmpty(entry.BookingID),
		nullIfEmpty(entry.SessionID),
		nullIfEmpty(entry.VenueID),
		entry.Outcome,
		entry.ReportedLat,
		entry.ReportedLng,
		entry.DistanceMeters,
		nullIfEmpty(entry.StaffID),
		entry.OccurredAt,
	)
	return err
}

func (t *sqlTx) EnqueueNotification(ctx context.Context, n domain.Notification) error {
	meta, ok := eventCatalog[n.Kind]
	if !ok {
		return fmt.Errorf("unknown notification kind: %s", n.Kind)
	}

	payload, err := json.Marshal(notificationPayload{
		Kind:       string(n.Kind),
		TenantID:   n.TenantID,
		MemberID:   n.MemberID,
		BookingID:  n.BookingID,
		SessionID:  n.SessionID,
		Message:    n.Message,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	dedupeKey := fmt.Sprintf("%s:%s:%d", n.BookingID, n.Kind, time.Now().UTC().UnixNano())

	_, err = t.tx.Exec(ctx,
		`INSERT INTO outbox (tenant_id, aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
         VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		n.TenantID,
		"booking",
		n.BookingID,
		string(n.Kind),
		meta.Topic,
		meta.SchemaSubject,
		fmt.Sprintf("%s:%s", n.TenantID, n.MemberID),
		payload,
		dedupeKey,
	)
	return err
}

// notificationPayload is the outbox event body consumed by the notifier.
type notificationPayload struct {
	Kind       string    `json:"kind"`
	TenantID   string    `json:"tenant_id"`
	MemberID   string    `json:"member_id"`
	BookingID  string    `json:"booking_id"`
	SessionID  string    `json:"session_id"`
	Message    string    `json:"message"`
	OccurredAt time.Time `json:"occurred_at"`
}

// EventMetadata describes how to route an outbox event.
type EventMetadata struct {
	Topic         string
	SchemaSubject string
}

var eventCatalog = map[domain.NotificationKind]EventMetadata{
	domain.NotifyBookingConfirmed:  {Topic: "booking_notifications", SchemaSubject: "booking_notifications-value"},
	domain.NotifyBookingWaitlisted: {Topic: "booking_notifications", SchemaSubject: "booking_notifications-value"},
	domain.NotifyBookingCancelled:  {Topic: "booking_notifications", SchemaSubject: "booking_notifications-value"},
	domain.NotifyBookingPromoted:   {Topic: "booking_notifications", SchemaSubject: "booking_notifications-value"},
	domain.NotifyBookingCheckedIn:  {Topic: "attendance_events", SchemaSubject: "attendance_events-value"},
}

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var b domain.Booking
	if err := row.Scan(&b.ID, &b.TenantID, &b.MemberID, &b.SessionID, &b.Status, &b.QRToken, &b.BookedAt, &b.CreatedAt, &b.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &b, nil
}

func scanSession(row pgx.Row) (*domain.Session, error) {
	var s domain.Session
	if err := row.Scan(&s.ID, &s.TenantID, &s.ClassName, &s.VenueID, &s.StartsAt, &s.EndsAt, &s.Capacity, &s.EnrolledCount, &s.Cancelled); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

func nullIfEmpty(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}
