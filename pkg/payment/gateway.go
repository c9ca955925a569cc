// Package payment wraps the external payment provider behind a minimal
// capability interface: create a customer, create a hosted checkout, and
// charge a stored payment instrument. The charge contract is idempotent on
// the provider side - each attempt carries a caller-generated idempotency
// key, and a retried request with the same key executes the charge at most
// once. Callers never replay an old key blindly; a deliberate retry is a new
// logical attempt with a fresh key taken after re-reading local state.
package payment

import (
	"context"
	"time"
)

// CheckoutKind distinguishes a free-trial checkout from a paid one.
type CheckoutKind string

const (
	CheckoutTrial CheckoutKind = "trial"
	CheckoutPaid  CheckoutKind = "paid"
)

// CheckoutRequest describes a hosted checkout session to create.
type CheckoutRequest struct {
	UserID     string       // internal user ID, round-tripped through provider metadata
	Email      string       // pre-fill billing email if known
	Kind       CheckoutKind // trial or paid
	PriceRef   string       // provider price identifier for paid checkouts
	SuccessURL string
	CancelURL  string
}

// CheckoutSession is a provider-hosted checkout the user is redirected to.
type CheckoutSession struct {
	URL       string
	SessionID string
	ExpiresAt time.Time
}

// ChargeRequest describes a charge against a stored payment instrument.
type ChargeRequest struct {
	IdempotencyKey string // caller-generated, fresh per attempt
	CustomerRef    string // provider customer ID
	InstrumentRef  string // stored payment method
	PriceRef       string // provider price identifier for the amount
	Amount         int    // whole currency units
	Description    string
}

// ChargeResult reports a successful charge.
type ChargeResult struct {
	TransactionRef string
	Amount         int
	ChargedAt      time.Time
}

// Gateway is the payment provider capability. Implementations must treat
// the context deadline as the per-call timeout; the engine never retries a
// failed call inside the gateway.
type Gateway interface {
	// CreateCustomer registers the user with the provider and returns the
	// provider's customer reference.
	CreateCustomer(ctx context.Context, userID, email string) (customerRef string, err error)

	// CreateCheckout creates a hosted checkout session.
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)

	// ChargeStoredInstrument charges a stored payment method. A decline is
	// reported as ErrChargeDeclined so callers can distinguish it from
	// transport failures.
	ChargeStoredInstrument(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
}
