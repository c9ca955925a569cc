package billing

import "errors"

var (
	// ErrNoChange signals that a transition found its target state already
	// reached or superseded. Callers treat it as an acknowledged no-op, and
	// Store.Update skips the write entirely.
	ErrNoChange = errors.New("billing: no state change")

	ErrSubscriberNotFound = errors.New("billing: subscriber not found")
	ErrSubscriberExists   = errors.New("billing: subscriber already exists")

	ErrInvalidTransition = errors.New("billing: invalid subscription state transition")
	ErrTrialAlreadyUsed  = errors.New("billing: trial already used")
	ErrAlreadySubscribed = errors.New("billing: user already has an active or trial subscription")
	ErrAlreadyLifetime   = errors.New("billing: user is already a lifetime member")
	ErrNotLifetime       = errors.New("billing: user is not a lifetime member")

	ErrUnknownTier           = errors.New("billing: unknown subscription tier")
	ErrInvalidTier           = errors.New("billing: subscription tier must be positive")
	ErrEmptyTierCatalog      = errors.New("billing: tier catalog has no tiers")
	ErrInvalidTrialDays      = errors.New("billing: trial duration must be positive")
	ErrCatalogNotLoaded      = errors.New("billing: failed to load tier catalog")
	ErrUnknownProviderStatus = errors.New("billing: unknown provider subscription status")
)
