package domain

import (
	"errors"
	"testing"
	"time"
)

func TestCheckEligibility(t *testing.T) {
	now := time.Date(2026, time.March, 9, 12, 0, 0, 0, time.UTC)
	future := now.Add(24 * time.Hour)
	past := now.Add(-24 * time.Hour)

	t.Run("nil membership", func(t *testing.T) {
		if err := CheckEligibility(nil, now); !errors.Is(err, ErrNoActiveMembership) {
			t.Fatalf("want ErrNoActiveMembership got %v", err)
		}
	})

	t.Run("inactive membership", func(t *testing.T) {
		m := &Membership{PlanKind: PlanSubscription, Active: false}
		if err := CheckEligibility(m, now); !errors.Is(err, ErrNoActiveMembership) {
			t.Fatalf("want ErrNoActiveMembership got %v", err)
		}
	})

	t.Run("valid subscription", func(t *testing.T) {
		m := &Membership{PlanKind: PlanSubscription, Active: true, ExpiresAt: &future}
		if err := CheckEligibility(m, now); err != nil {
			t.Fatalf("unexpected error %v", err)
		}
	})

	t.Run("open-ended subscription", func(t *testing.T) {
		m := &Membership{PlanKind: PlanSubscription, Active: true}
		if err := CheckEligibility(m, now); err != nil {
			t.Fatalf("unexpected error %v", err)
		}
	})

	t.Run("expired subscription deactivates", func(t *testing.T) {
		m := &Membership{PlanKind: PlanSubscription, Active: true, ExpiresAt: &past}
		if err := CheckEligibility(m, now); !errors.Is(err, ErrMembershipExpired) {
			t.Fatalf("want ErrMembershipExpired got %v", err)
		}
		if m.Active {
			t.Fatal("expired membership left active")
		}
	})

	t.Run("pack with credits", func(t *testing.T) {
		m := &Membership{PlanKind: PlanCreditPack, Active: true, CreditsRemaining: 1}
		if err := CheckEligibility(m, now); err != nil {
			t.Fatalf("unexpected error %v", err)
		}
	})

	t.Run("empty pack", func(t *testing.T) {
		m := &Membership{PlanKind: PlanCreditPack, Active: true, CreditsRemaining: 0}
		if err := CheckEligibility(m, now); !errors.Is(err, ErrNoCreditsRemaining) {
			t.Fatalf("want ErrNoCreditsRemaining got %v", err)
		}
	})
}

func TestDebitAndRefundCredit(t *testing.T) {
	now := time.Date(2026, time.March, 9, 12, 0, 0, 0, time.UTC)

	t.Run("debit takes one credit", func(t *testing.T) {
		m := &Membership{PlanKind: PlanCreditPack, Active: true, CreditsRemaining: 2}
		if !DebitCredit(m, now) {
			t.Fatal("expected a debit")
		}
		if m.CreditsRemaining != 1 {
			t.Fatalf("credits %d", m.CreditsRemaining)
		}
	})

	t.Run("debit never goes negative", func(t *testing.T) {
		m := &Membership{PlanKind: PlanCreditPack, Active: true, CreditsRemaining: 0}
		if DebitCredit(m, now) {
			t.Fatal("debited an empty pack")
		}
		if m.CreditsRemaining != 0 {
			t.Fatalf("credits %d", m.CreditsRemaining)
		}
	})

	t.Run("subscription is a no-op", func(t *testing.T) {
		m := &Membership{PlanKind: PlanSubscription, Active: true}
		if DebitCredit(m, now) {
			t.Fatal("debited a subscription")
		}
		if RefundCredit(m, false, false, now) {
			t.Fatal("refunded a subscription")
		}
	})

	t.Run("early cancel refunds", func(t *testing.T) {
		m := &Membership{PlanKind: PlanCreditPack, Active: true, CreditsRemaining: 1}
		if !RefundCredit(m, false, false, now) {
			t.Fatal("expected a refund")
		}
		if m.CreditsRemaining != 2 {
			t.Fatalf("credits %d", m.CreditsRemaining)
		}
	})

	t.Run("late unfilled cancel forfeits", func(t *testing.T) {
		m := &Membership{PlanKind: PlanCreditPack, Active: true, CreditsRemaining: 1}
		if RefundCredit(m, true, false, now) {
			t.Fatal("refund despite forfeiture")
		}
	})

	t.Run("late backfilled cancel refunds", func(t *testing.T) {
		m := &Membership{PlanKind: PlanCreditPack, Active: true, CreditsRemaining: 1}
		if !RefundCredit(m, true, true, now) {
			t.Fatal("expected a refund")
		}
	})
}
