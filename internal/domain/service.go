package domain

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"example.com/reservation/internal/observability"
)

// TokenIssuer mints and verifies the single-use verification credential
// stored on a booking. A fresh token is issued on every activation; Verify
// checks the signature offline and returns the embedded booking id.
type TokenIssuer interface {
	Issue(bookingID string) (string, error)
	Verify(token string) (string, error)
}

// Config captures the engine's tunable policy knobs.
type Config struct {
	// LateCancelWindow is the threshold below which a cancellation counts as
	// late: session start minus now < window.
	LateCancelWindow time.Duration
	// CheckInEarlyWindow is how long before session start check-in opens.
	CheckInEarlyWindow time.Duration
	// CheckInLateWindow is how long after session end check-in stays open.
	CheckInLateWindow time.Duration
	// GeofenceRadiusMeters is the maximum allowed distance between a reported
	// location and the venue.
	GeofenceRadiusMeters float64
	// PromoteWithoutCredits admits a waitlisted credit-pack member even at
	// zero remaining credits, logging a warning instead of skipping them.
	// When false the promoter walks the queue to the first member who can pay.
	PromoteWithoutCredits bool
}

// DefaultConfig returns the studio's standard policy.
func DefaultConfig() Config {
	return Config{
		LateCancelWindow:      2 * time.Hour,
		CheckInEarlyWindow:    15 * time.Minute,
		CheckInLateWindow:     30 * time.Minute,
		GeofenceRadiusMeters:  500,
		PromoteWithoutCredits: true,
	}
}

// Service orchestrates the reservation lifecycle: creation, cancellation with
// waitlist promotion and penalty handling, and attendance check-in.
type Service struct {
	store  Store
	tokens TokenIssuer
	clock  Clock
	cfg    Config
	logger *log.Logger
}

// NewService constructs a Service. A nil clock defaults to system time and a
// nil logger to the process logger.
func NewService(store Store, tokens TokenIssuer, clock Clock, cfg Config, logger *log.Logger) *Service {
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Service{store: store, tokens: tokens, clock: clock, cfg: cfg, logger: logger}
}

// CreateBooking admits a member into a session, confirming when a seat is
// free and waitlisting otherwise. The eligibility check, capacity decision,
// credit debit, and booking write commit atomically; the confirmation or
// waitlist notification is enqueued in the same transaction and delivered
// only after commit.
func (s *Service) CreateBooking(ctx context.Context, tenantID, memberID, sessionID string) (*Booking, error) {
	now := s.clock.Now()
	var (
		booking *Booking
		expired error
	)

	err := s.store.InTx(ctx, tenantID, func(ctx context.Context, tx Tx) error {
		membership, err := tx.ActiveMembership(ctx, memberID)
		if err != nil {
			return err
		}
		if eligErr := CheckEligibility(membership, now); eligErr != nil {
			if eligErr == ErrMembershipExpired {
				// The expiry deactivation must stick even though admission
				// fails, so the transaction commits and the error is
				// surfaced afterwards.
				if saveErr := tx.SaveMembership(ctx, membership); saveErr != nil {
					return saveErr
				}
				expired = eligErr
				return nil
			}
			return eligErr
		}

		existing, err := tx.FindBooking(ctx, memberID, sessionID)
		if err != nil {
			return err
		}
		if existing != nil && existing.Status != StatusCancelled {
			return ErrAlreadyBooked
		}

		session, err := tx.GetSession(ctx, sessionID)
		if err != nil {
			return err
		}
		if session == nil || session.Cancelled {
			return ErrSessionNotFound
		}

		confirmed, err := tx.ReserveSeat(ctx, sessionID)
		if err != nil {
			return err
		}
		status := StatusWaitlisted
		if confirmed {
			status = StatusConfirmed
		}

		if confirmed && DebitCredit(membership, now) {
			if err := tx.SaveMembership(ctx, membership); err != nil {
				return err
			}
		}

		// Rebooking after a cancellation reuses the original record, so the
		// token must be minted against the surviving booking id.
		bookingID := uuid.NewString()
		if existing != nil {
			bookingID = existing.ID
		}
		token, err := s.tokens.Issue(bookingID)
		if err != nil {
			return err
		}

		booking, err = tx.CreateOrReactivateBooking(ctx, &Booking{
			ID:        bookingID,
			TenantID:  tenantID,
			MemberID:  memberID,
			SessionID: sessionID,
			Status:    status,
			QRToken:   token,
			BookedAt:  now,
			CreatedAt: now,
			UpdatedAt: now,
		})
		if err != nil {
			return err
		}

		kind := NotifyBookingWaitlisted
		message := fmt.Sprintf("You are waitlisted for %s.", session.ClassName)
		if confirmed {
			kind = NotifyBookingConfirmed
			message = fmt.Sprintf("Your spot in %s is confirmed.", session.ClassName)
		}
		return tx.EnqueueNotification(ctx, Notification{
			Kind:      kind,
			TenantID:  tenantID,
			MemberID:  memberID,
			BookingID: booking.ID,
			SessionID: sessionID,
			Message:   message,
		})
	})
	if err != nil {
		return nil, err
	}
	if expired != nil {
		return nil, expired
	}

	observability.RecordBookingCreated(string(booking.Status))
	return booking, nil
}

// CancelBooking cancels the caller's own booking. Freed confirmed seats are
// released and backfilled from the waitlist in FIFO order; credit-pack
// members are refunded unless the cancellation was late and nobody took the
// slot. All of it commits as one transaction, and the promotion notification
// reaches the promoted member only after commit.
func (s *Service) CancelBooking(ctx context.Context, tenantID, bookingID, memberID string) (*Booking, *Booking, error) {
	now := s.clock.Now()
	var cancelled, promoted *Booking

	err := s.store.InTx(ctx, tenantID, func(ctx context.Context, tx Tx) error {
		booking, err := tx.GetBookingForMember(ctx, bookingID, memberID)
		if err != nil {
			return err
		}
		if booking == nil || !booking.Status.Active() {
			return ErrBookingNotFound
		}

		session, err := tx.GetSession(ctx, booking.SessionID)
		if err != nil {
			return err
		}
		if session == nil {
			return ErrSessionNotFound
		}

		isLate := session.StartsAt.Sub(now) < s.cfg.LateCancelWindow
		wasConfirmed := booking.Status == StatusConfirmed

		if err := booking.TransitionTo(StatusCancelled, now); err != nil {
			return err
		}
		if err := tx.SaveBooking(ctx, booking); err != nil {
			return err
		}
		cancelled = booking

		wasSlotFilled := false
		if wasConfirmed {
			if err := tx.ReleaseSeat(ctx, booking.SessionID); err != nil {
				return err
			}
			promoted, err = s.promote(ctx, tx, session, now)
			if err != nil {
				return err
			}
			wasSlotFilled = promoted != nil
		}

		if wasConfirmed {
			membership, err := tx.ActiveMembership(ctx, memberID)
			if err != nil {
				return err
			}
			if membership != nil && RefundCredit(membership, isLate, wasSlotFilled, now) {
				if err := tx.SaveMembership(ctx, membership); err != nil {
					return err
				}
			}
		}

		if err := tx.EnqueueNotification(ctx, Notification{
			Kind:      NotifyBookingCancelled,
			TenantID:  tenantID,
			MemberID:  memberID,
			BookingID: booking.ID,
			SessionID: booking.SessionID,
			Message:   fmt.Sprintf("Your booking for %s is cancelled.", session.ClassName),
		}); err != nil {
			return err
		}
		if promoted != nil {
			return tx.EnqueueNotification(ctx, Notification{
				Kind:      NotifyBookingPromoted,
				TenantID:  tenantID,
				MemberID:  promoted.MemberID,
				BookingID: promoted.ID,
				SessionID: promoted.SessionID,
				Message:   fmt.Sprintf("A spot opened up: you are confirmed for %s.", session.ClassName),
			})
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	observability.RecordCancellation(promoted != nil)
	return cancelled, promoted, nil
}

// promote confirms the earliest-queued waitlisted booking for the session, if
// any. It runs inside the cancelling transaction. A credit-pack member with
// no credits left is still admitted under the lenient policy; the forfeited
// debit is logged rather than blocking the promotion.
func (s *Service) promote(ctx context.Context, tx Tx, session *Session, now time.Time) (*Booking, error) {
	queue, err := tx.WaitlistedInOrder(ctx, session.ID)
	if err != nil {
		return nil, err
	}

	for _, candidate := range queue {
		membership, err := tx.ActiveMembership(ctx, candidate.MemberID)
		if err != nil {
			return nil, err
		}

		if membership != nil && membership.PlanKind == PlanCreditPack && membership.CreditsRemaining <= 0 {
			if !s.cfg.PromoteWithoutCredits {
				continue
			}
			s.logger.Printf("promoting member %s into session %s with zero credits remaining", candidate.MemberID, session.ID)
			observability.RecordZeroCreditPromotion()
		}

		taken, err := tx.ReserveSeat(ctx, session.ID)
		if err != nil {
			return nil, err
		}
		if !taken {
			return nil, nil
		}

		if membership != nil && DebitCredit(membership, now) {
			if err := tx.SaveMembership(ctx, membership); err != nil {
				return nil, err
			}
		}

		if err := candidate.TransitionTo(StatusConfirmed, now); err != nil {
			return nil, err
		}
		if err := tx.SaveBooking(ctx, candidate); err != nil {
			return nil, err
		}
		observability.RecordPromotion()
		return candidate, nil
	}
	return nil, nil
}
