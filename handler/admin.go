package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/sproutbook/billing/pkg/billing"
	"github.com/sproutbook/billing/pkg/logger"
)

type lifetimeRequest struct {
	UserID string `json:"user_id"`
}

// handleGrantLifetime applies the administrative lifetime override.
// Authentication happens upstream: the admin routes are only reachable
// through the internal gateway.
func (h *Handler) handleGrantLifetime(w http.ResponseWriter, r *http.Request) {
	h.applyLifetime(w, r, func(sub *billing.Subscriber, now time.Time) error {
		return sub.GrantLifetime(now)
	})
}

// handleRevokeLifetime removes lifetime access, landing the subscriber in
// expired.
func (h *Handler) handleRevokeLifetime(w http.ResponseWriter, r *http.Request) {
	h.applyLifetime(w, r, func(sub *billing.Subscriber, now time.Time) error {
		return sub.RevokeLifetime(now)
	})
}

func (h *Handler) applyLifetime(w http.ResponseWriter, r *http.Request, fn func(*billing.Subscriber, time.Time) error) {
	var req lifetimeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid user_id")
		return
	}

	sub, err := h.store.Update(r.Context(), userID, func(s *billing.Subscriber) error {
		return fn(s, time.Now())
	})
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, map[string]string{
			"user_id": sub.UserID.String(),
			"status":  string(sub.Status),
		})
	case errors.Is(err, billing.ErrSubscriberNotFound):
		respondError(w, http.StatusNotFound, "unknown user")
	case errors.Is(err, billing.ErrAlreadyLifetime):
		respondError(w, http.StatusConflict, "lifetime access already granted")
	case errors.Is(err, billing.ErrNotLifetime):
		respondError(w, http.StatusConflict, "no lifetime access to revoke")
	default:
		h.log.ErrorContext(r.Context(), "lifetime override failed",
			logger.UserID(userID.String()), logger.Error(err))
		respondError(w, http.StatusInternalServerError, "update failed")
	}
}
