package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/sproutbook/billing/pkg/logger"
	"github.com/sproutbook/billing/pkg/webhook"
)

// signatureHeader carries the hex HMAC of the raw request body.
const signatureHeader = "X-Payment-Signature"

const maxWebhookBody = 1 << 20 // 1 MiB

// handleWebhook ingests a provider event. A non-2xx answer makes the
// provider redeliver, so only failures where a retry can help return one:
// verification and parse failures are final and answer 4xx, unknown users
// and stale events are acknowledged with 200.
func (h *Handler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		respondError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	outcome, err := h.ingestor.Handle(r.Context(), body, r.Header.Get(signatureHeader))
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, map[string]string{"outcome": string(outcome)})
	case errors.Is(err, webhook.ErrNotConfigured):
		h.log.ErrorContext(r.Context(), "webhook secret not configured")
		respondError(w, http.StatusInternalServerError, "webhook verification unavailable")
	case errors.Is(err, webhook.ErrBadSignature):
		respondError(w, http.StatusUnauthorized, "invalid signature")
	case errors.Is(err, webhook.ErrEmptyPayload), errors.Is(err, webhook.ErrMalformedEvent):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		h.log.ErrorContext(r.Context(), "webhook processing failed", logger.Error(err))
		respondError(w, http.StatusInternalServerError, "processing failed")
	}
}
