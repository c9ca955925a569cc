package billing

import (
	"time"

	"github.com/google/uuid"
)

// Subscriber is the per-user billing record. It is created implicitly with
// StatusNone when the account is created and mutated only through the
// transition methods in transitions.go plus the admin lifetime override.
type Subscriber struct {
	UserID uuid.UUID // primary key - one record per user
	Email  string    // notification recipient, copied from the account at creation

	Status Status
	Tier   int // annual price in whole currency units; 0 until first activation

	SubscriptionEndsAt *time.Time // set for active/canceling
	TrialStartedAt     *time.Time // set only while trialing
	TrialEndsAt        *time.Time // set only while trialing

	TrialUsed           bool // monotonic - never resets once true
	AutoRenew           bool
	RenewalReminderSent bool // reset whenever the paid period is extended
	Lifetime            bool // overrides all expiry logic

	PaymentCustomerRef     string // provider customer ID (ctm_xxx, cus_xxx)
	PaymentInstrumentRef   string // stored payment method, empty when none
	PaymentSubscriptionRef string // provider subscription ID

	LastPaymentAmount int // informational only
	LastPaymentAt     *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewSubscriber returns the implicit initial record for a freshly created
// user account.
func NewSubscriber(userID uuid.UUID, email string, now time.Time) *Subscriber {
	return &Subscriber{
		UserID:    userID,
		Email:     email,
		Status:    StatusNone,
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}
}

// IsTrialing reports whether the subscriber is in an unexpired trial at now.
func (s *Subscriber) IsTrialing(now time.Time) bool {
	return s.Status == StatusTrial && s.TrialEndsAt != nil && now.Before(*s.TrialEndsAt)
}

// IsPaidUp reports whether the subscriber has an unexpired paid period at now.
// Lifetime members are always paid up. Canceling does not count: pausing the
// subscription withdraws paid capabilities immediately.
func (s *Subscriber) IsPaidUp(now time.Time) bool {
	if s.Lifetime {
		return true
	}
	if s.Status != StatusActive {
		return false
	}
	return s.SubscriptionEndsAt != nil && now.Before(*s.SubscriptionEndsAt)
}

// HasStoredInstrument reports whether a charge against a stored payment
// method can be attempted.
func (s *Subscriber) HasStoredInstrument() bool {
	return s.PaymentInstrumentRef != ""
}

// Clone returns a deep copy of the record. Stores hand out clones so that
// callers never mutate shared state outside an Update.
func (s *Subscriber) Clone() *Subscriber {
	c := *s
	c.SubscriptionEndsAt = cloneTime(s.SubscriptionEndsAt)
	c.TrialStartedAt = cloneTime(s.TrialStartedAt)
	c.TrialEndsAt = cloneTime(s.TrialEndsAt)
	c.LastPaymentAt = cloneTime(s.LastPaymentAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
