package billing

import (
	"fmt"
	"time"
)

// Transition methods implement the subscription state machine. Each method
// validates its precondition against the current record, mutates the record
// in place on success, and returns ErrNoChange when the target state is
// already reached or superseded. Callers apply transitions inside
// Store.Update so the precondition is always evaluated against the freshest
// state.

// StartTrial begins the one-and-only trial for a subscriber. The trial is
// consumed the moment it starts: TrialUsed flips to true and never resets.
func (s *Subscriber) StartTrial(now time.Time, trialDays int) error {
	if trialDays <= 0 {
		return ErrInvalidTrialDays
	}
	if s.Lifetime {
		return ErrNoChange
	}
	switch s.Status {
	case StatusTrial, StatusActive, StatusCanceling:
		// Provider retries of the same checkout event land here.
		return ErrNoChange
	case StatusNone:
		if s.TrialUsed {
			return ErrTrialAlreadyUsed
		}
	default:
		// expired/cancelled always means the trial was consumed earlier
		return ErrTrialAlreadyUsed
	}

	start := now.UTC()
	end := start.AddDate(0, 0, trialDays)
	s.Status = StatusTrial
	s.TrialStartedAt = &start
	s.TrialEndsAt = &end
	s.TrialUsed = true
	s.AutoRenew = true
	s.RenewalReminderSent = false
	s.touch(now)
	return nil
}

// Activate starts a paid year from now. Valid from none, trial, expired and
// cancelled; a replay against an already active record is a no-op.
func (s *Subscriber) Activate(now time.Time, tier int, pd PaymentDetails) error {
	if tier <= 0 {
		return ErrInvalidTier
	}
	if s.Lifetime {
		return ErrNoChange
	}
	switch s.Status {
	case StatusActive, StatusCanceling:
		return ErrNoChange
	case StatusNone, StatusTrial, StatusExpired, StatusCancelled:
	default:
		return fmt.Errorf("%w: activate from %s", ErrInvalidTransition, s.Status)
	}

	end := now.UTC().AddDate(1, 0, 0)
	s.Status = StatusActive
	s.Tier = tier
	s.SubscriptionEndsAt = &end
	s.clearTrial()
	s.AutoRenew = true
	s.RenewalReminderSent = false
	s.recordPayment(now, pd)
	s.touch(now)
	return nil
}

// ExtendRenewal extends an active subscription by exactly one year from now,
// not from the previous end date, so a lagging reconciliation run does not
// compound drift. Resets the reminder flag for the next cycle.
func (s *Subscriber) ExtendRenewal(now time.Time, pd PaymentDetails) error {
	if s.Lifetime {
		return ErrNoChange
	}
	if s.Status != StatusActive {
		return fmt.Errorf("%w: renew from %s", ErrInvalidTransition, s.Status)
	}

	end := now.UTC().AddDate(1, 0, 0)
	s.SubscriptionEndsAt = &end
	s.RenewalReminderSent = false
	s.recordPayment(now, pd)
	s.touch(now)
	return nil
}

// Expire ends the current trial or paid period. Lifetime members never
// expire; an already expired or cancelled record is left untouched.
func (s *Subscriber) Expire(now time.Time) error {
	if s.Lifetime {
		return ErrNoChange
	}
	switch s.Status {
	case StatusExpired, StatusCancelled:
		return ErrNoChange
	case StatusTrial:
		s.clearTrial()
	case StatusActive, StatusCanceling:
	default:
		return fmt.Errorf("%w: expire from %s", ErrInvalidTransition, s.Status)
	}

	s.Status = StatusExpired
	s.touch(now)
	return nil
}

// MarkCanceling pauses renewal while the remaining paid period runs out.
func (s *Subscriber) MarkCanceling(now time.Time) error {
	if s.Lifetime {
		return ErrNoChange
	}
	switch s.Status {
	case StatusCanceling:
		return ErrNoChange
	case StatusActive:
	default:
		return fmt.Errorf("%w: pause from %s", ErrInvalidTransition, s.Status)
	}

	s.Status = StatusCanceling
	s.AutoRenew = false
	s.touch(now)
	return nil
}

// Cancel terminates the subscription immediately.
func (s *Subscriber) Cancel(now time.Time) error {
	if s.Lifetime {
		return ErrNoChange
	}
	switch s.Status {
	case StatusCancelled:
		return ErrNoChange
	case StatusTrial:
		s.clearTrial()
	case StatusActive, StatusCanceling:
	default:
		return fmt.Errorf("%w: cancel from %s", ErrInvalidTransition, s.Status)
	}

	s.Status = StatusCancelled
	s.AutoRenew = false
	s.touch(now)
	return nil
}

// ApplyProviderStatus maps a provider-reported subscription status onto the
// local state machine. Lifetime members are never downgraded by this path.
func (s *Subscriber) ApplyProviderStatus(now time.Time, providerStatus string) error {
	if s.Lifetime {
		return ErrNoChange
	}
	switch providerStatus {
	case "ACTIVE":
		return s.resume(now)
	case "CANCELED":
		return s.Cancel(now)
	case "PAUSED":
		return s.MarkCanceling(now)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownProviderStatus, providerStatus)
	}
}

// resume re-enables renewal on a canceling subscription. A provider ACTIVE
// status for a record without a known end date cannot be applied locally
// because active requires an end date; it is reported as invalid instead of
// guessing one.
func (s *Subscriber) resume(now time.Time) error {
	switch s.Status {
	case StatusActive:
		return ErrNoChange
	case StatusCanceling:
	default:
		return fmt.Errorf("%w: resume from %s", ErrInvalidTransition, s.Status)
	}

	s.Status = StatusActive
	s.AutoRenew = true
	s.touch(now)
	return nil
}

// GrantLifetime is the administrative override that grants permanent paid
// access outside the normal trial/renewal cycle.
func (s *Subscriber) GrantLifetime(now time.Time) error {
	if s.Lifetime {
		return ErrAlreadyLifetime
	}

	s.Lifetime = true
	s.Status = StatusLifetime
	s.SubscriptionEndsAt = nil
	s.clearTrial()
	s.AutoRenew = false
	s.RenewalReminderSent = false
	s.touch(now)
	return nil
}

// RevokeLifetime removes lifetime access. The subscriber lands in expired
// and can start a new paid subscription through the usual checkout path.
func (s *Subscriber) RevokeLifetime(now time.Time) error {
	if !s.Lifetime {
		return ErrNotLifetime
	}

	s.Lifetime = false
	s.Status = StatusExpired
	s.touch(now)
	return nil
}

// MarkReminderSent records that the renewal reminder for the current paid
// period went out. Re-running the reminder sweep is a no-op until the period
// is extended and the flag resets.
func (s *Subscriber) MarkReminderSent(now time.Time) error {
	if s.RenewalReminderSent {
		return ErrNoChange
	}
	s.RenewalReminderSent = true
	s.touch(now)
	return nil
}

// RecordPaymentRefs stores provider references without recording a payment
// amount. Used when a trial checkout tokenizes a payment instrument that the
// conversion sweep will charge later.
func (s *Subscriber) RecordPaymentRefs(pd PaymentDetails) {
	if pd.CustomerRef != "" {
		s.PaymentCustomerRef = pd.CustomerRef
	}
	if pd.InstrumentRef != "" {
		s.PaymentInstrumentRef = pd.InstrumentRef
	}
	if pd.SubscriptionRef != "" {
		s.PaymentSubscriptionRef = pd.SubscriptionRef
	}
}

func (s *Subscriber) clearTrial() {
	s.TrialStartedAt = nil
	s.TrialEndsAt = nil
}

func (s *Subscriber) recordPayment(now time.Time, pd PaymentDetails) {
	s.RecordPaymentRefs(pd)
	if pd.Amount > 0 {
		paidAt := now.UTC()
		s.LastPaymentAmount = pd.Amount
		s.LastPaymentAt = &paidAt
	}
}

func (s *Subscriber) touch(now time.Time) {
	s.UpdatedAt = now.UTC()
}
