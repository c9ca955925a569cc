package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/sproutbook/billing/pkg/billing"
	"github.com/sproutbook/billing/pkg/logger"
)

type featuresResponse struct {
	UserID       string                `json:"user_id"`
	Status       string                `json:"status"`
	Capabilities billing.CapabilitySet `json:"capabilities"`
}

// handleFeatures reports the capability set the UI should render for a
// user. An unknown user gets the base set, same as any non-subscriber.
func (h *Handler) handleFeatures(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(r.URL.Query().Get("user_id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid user_id")
		return
	}

	sub, err := h.store.Get(r.Context(), userID)
	if err != nil && !errors.Is(err, billing.ErrSubscriberNotFound) {
		h.log.ErrorContext(r.Context(), "feature lookup failed", logger.Error(err))
		respondError(w, http.StatusInternalServerError, "lookup failed")
		return
	}

	status := string(billing.StatusNone)
	if sub != nil {
		status = string(sub.Status)
	}
	respondJSON(w, http.StatusOK, featuresResponse{
		UserID:       userID.String(),
		Status:       status,
		Capabilities: billing.Features(sub, time.Now()),
	})
}
