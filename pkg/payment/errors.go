package payment

import "errors"

var (
	ErrMissingAPIKey      = errors.New("payment: provider API key is required")
	ErrInvalidEnvironment = errors.New("payment: invalid provider environment")
	ErrMissingCustomer    = errors.New("payment: customer reference is required")
	ErrMissingInstrument  = errors.New("payment: payment instrument reference is required")
	ErrMissingPrice       = errors.New("payment: price reference is required")
	ErrInvalidAmount      = errors.New("payment: charge amount must be positive")
	ErrMissingIdempotencyKey = errors.New("payment: idempotency key is required")

	// ErrChargeDeclined marks a charge the provider processed and refused
	// (insufficient funds, expired card). It is a business outcome, not a
	// transport failure, and is recovered locally by expiring the subscriber.
	ErrChargeDeclined = errors.New("payment: charge declined by provider")

	ErrNoCheckoutURL = errors.New("payment: no checkout URL returned from provider")
)
