package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Sign computes the hex-encoded HMAC-SHA256 of payload with the shared
// secret. Exposed for tests and for the provider-simulator tooling.
func Sign(secret string, payload []byte) (string, error) {
	if secret == "" {
		return "", ErrNotConfigured
	}
	if len(payload) == 0 {
		return "", ErrEmptyPayload
	}

	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Verify checks the provider signature over the raw body using a
// constant-time comparison. A missing secret fails closed with
// ErrNotConfigured; any signature problem is ErrBadSignature.
func Verify(secret string, payload []byte, signature string) error {
	if secret == "" {
		return ErrNotConfigured
	}
	if len(payload) == 0 {
		return ErrEmptyPayload
	}
	if signature == "" {
		return fmt.Errorf("%w: signature header is missing", ErrBadSignature)
	}

	expected, err := Sign(secret, payload)
	if err != nil {
		return err
	}

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return fmt.Errorf("%w: signature mismatch", ErrBadSignature)
	}
	return nil
}
