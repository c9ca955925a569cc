package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/sproutbook/billing/pkg/billing"
	"github.com/sproutbook/billing/pkg/logger"
	"github.com/sproutbook/billing/pkg/payment"
)

type checkoutRequest struct {
	UserID     string `json:"user_id"`
	StartTrial bool   `json:"start_trial"`
	Tier       int    `json:"tier"`
}

type checkoutResponse struct {
	CheckoutURL string `json:"checkout_url"`
	SessionID   string `json:"session_id"`
	ExpiresAt   string `json:"expires_at,omitempty"`
}

// handleCheckout creates a provider-hosted checkout session. Eligibility
// is checked against the current record, but the actual state change only
// happens later, when the provider's completed-order webhook arrives.
func (h *Handler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid user_id")
		return
	}

	res, err := h.limiter.Allow(r.Context(), "checkout:"+userID.String())
	if err != nil {
		h.log.ErrorContext(r.Context(), "checkout throttle check failed", logger.Error(err))
		respondError(w, http.StatusInternalServerError, "throttle unavailable")
		return
	}
	if !res.Allowed() {
		w.Header().Set("Retry-After", fmt.Sprintf("%d", int(res.RetryAfter().Seconds())+1))
		respondError(w, http.StatusTooManyRequests, "too many checkout attempts")
		return
	}

	sub, err := h.store.Get(r.Context(), userID)
	if err != nil {
		if errors.Is(err, billing.ErrSubscriberNotFound) {
			respondError(w, http.StatusNotFound, "unknown user")
			return
		}
		h.log.ErrorContext(r.Context(), "checkout lookup failed", logger.Error(err))
		respondError(w, http.StatusInternalServerError, "lookup failed")
		return
	}

	if msg := checkoutConflict(sub, req); msg != "" {
		respondError(w, http.StatusConflict, msg)
		return
	}

	if sub.PaymentCustomerRef == "" {
		customerRef, err := h.gateway.CreateCustomer(r.Context(), userID.String(), sub.Email)
		if err != nil {
			h.log.ErrorContext(r.Context(), "provider customer creation failed",
				logger.UserID(userID.String()), logger.Error(err))
			respondError(w, http.StatusBadGateway, "payment provider unavailable")
			return
		}
		sub, err = h.store.Update(r.Context(), userID, func(s *billing.Subscriber) error {
			s.RecordPaymentRefs(billing.PaymentDetails{CustomerRef: customerRef})
			return nil
		})
		if err != nil {
			h.log.ErrorContext(r.Context(), "storing provider customer ref failed",
				logger.UserID(userID.String()), logger.Error(err))
			respondError(w, http.StatusInternalServerError, "update failed")
			return
		}
	}

	kind := payment.CheckoutPaid
	priceRef := ""
	if req.StartTrial {
		kind = payment.CheckoutTrial
		priceRef = h.catalog.TrialPriceRef
	} else {
		ref, ok := h.catalog.PriceRef(req.Tier)
		if !ok {
			respondError(w, http.StatusUnprocessableEntity, fmt.Sprintf("unknown tier %d", req.Tier))
			return
		}
		priceRef = ref
	}

	session, err := h.gateway.CreateCheckout(r.Context(), payment.CheckoutRequest{
		UserID:     userID.String(),
		Email:      sub.Email,
		Kind:       kind,
		PriceRef:   priceRef,
		SuccessURL: h.cfg.CheckoutSuccessURL,
		CancelURL:  h.cfg.CheckoutCancelURL,
	})
	if err != nil {
		h.log.ErrorContext(r.Context(), "checkout session creation failed",
			logger.UserID(userID.String()), logger.Error(err))
		respondError(w, http.StatusBadGateway, "payment provider unavailable")
		return
	}

	resp := checkoutResponse{
		CheckoutURL: session.URL,
		SessionID:   session.SessionID,
	}
	if !session.ExpiresAt.IsZero() {
		resp.ExpiresAt = session.ExpiresAt.UTC().Format("2006-01-02T15:04:05Z07:00")
	}
	respondJSON(w, http.StatusOK, resp)
}

// checkoutConflict returns the conflict message that blocks the checkout,
// or empty when it may proceed.
func checkoutConflict(sub *billing.Subscriber, req checkoutRequest) string {
	if sub.Lifetime {
		return "lifetime access already granted"
	}
	switch sub.Status {
	case billing.StatusActive, billing.StatusTrial, billing.StatusCanceling:
		return "subscription already in progress"
	}
	if req.StartTrial && sub.TrialUsed {
		return "trial already used"
	}
	return ""
}
