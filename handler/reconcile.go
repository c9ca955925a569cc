package handler

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/sproutbook/billing/pkg/logger"
	"github.com/sproutbook/billing/pkg/reconcile"
)

// handleReconcile runs one reconciliation pass on behalf of the external
// cron. Without a configured shared secret the endpoint refuses to run at
// all rather than run unauthenticated.
func (h *Handler) handleReconcile(w http.ResponseWriter, r *http.Request) {
	if h.cfg.ReconcileSecret == "" {
		h.log.ErrorContext(r.Context(), "reconcile trigger called but no shared secret is configured")
		respondError(w, http.StatusInternalServerError, "reconciliation trigger not configured")
		return
	}

	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if subtle.ConstantTimeCompare([]byte(token), []byte(h.cfg.ReconcileSecret)) != 1 {
		respondError(w, http.StatusUnauthorized, "invalid trigger token")
		return
	}

	report, err := h.reconciler.Run(r.Context())
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, report)
	case errors.Is(err, reconcile.ErrRunInProgress):
		respondError(w, http.StatusConflict, "a reconciliation run is already in progress")
	default:
		h.log.ErrorContext(r.Context(), "reconciliation run failed", logger.Error(err))
		respondError(w, http.StatusInternalServerError, "reconciliation failed")
	}
}
