package webhook

import "errors"

var (
	// ErrNotConfigured means the signing secret is missing. Verification is
	// never skipped - without a secret every event is rejected.
	ErrNotConfigured = errors.New("webhook: signing secret is not configured")

	// ErrBadSignature covers a missing, malformed or mismatched signature.
	ErrBadSignature = errors.New("webhook: signature verification failed")

	// ErrMalformedEvent covers bodies that cannot be parsed or events
	// missing required fields.
	ErrMalformedEvent = errors.New("webhook: malformed event")

	// ErrEmptyPayload is returned when the request body is empty.
	ErrEmptyPayload = errors.New("webhook: empty payload")
)
