package domain

import "time"

// CheckEligibility decides whether the membership may consume one session
// slot. A subscription past its expiration is deactivated in place; the
// caller must persist the change even though the check fails.
func CheckEligibility(m *Membership, now time.Time) error {
	if m == nil || !m.Active {
		return ErrNoActiveMembership
	}
	if m.PlanKind == PlanSubscription {
		if m.ExpiresAt != nil && m.ExpiresAt.Before(now) {
			m.Active = false
			m.UpdatedAt = now
			return ErrMembershipExpired
		}
		return nil
	}
	if m.CreditsRemaining <= 0 {
		return ErrNoCreditsRemaining
	}
	return nil
}

// DebitCredit consumes one credit from a pack plan. Subscriptions are a
// no-op. Returns whether a credit was actually taken.
func DebitCredit(m *Membership, now time.Time) bool {
	if m == nil || m.PlanKind != PlanCreditPack {
		return false
	}
	if m.CreditsRemaining <= 0 {
		return false
	}
	m.CreditsRemaining--
	m.UpdatedAt = now
	return true
}

// RefundCredit returns the single debited credit to a pack plan unless the
// cancellation was late and nobody backfilled the freed slot, in which case
// the credit is forfeited. A refund never exceeds the original debit of 1.
func RefundCredit(m *Membership, late, backfilled bool, now time.Time) bool {
	if m == nil || m.PlanKind != PlanCreditPack {
		return false
	}
	if late && !backfilled {
		return false
	}
	m.CreditsRemaining++
	m.UpdatedAt = now
	return true
}
