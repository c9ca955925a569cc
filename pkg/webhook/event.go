package webhook

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Provider event types the ingestor understands. Anything else is
// acknowledged without a state change so new provider events never poison
// the delivery queue.
const (
	EventOrderCompleted      = "order.completed"
	EventPaymentCompleted    = "payment.completed"
	EventSubscriptionUpdated = "subscription.updated"
	EventPaymentUpdated      = "payment.updated"
)

// Provider payment statuses carried by payment.updated events.
const (
	paymentStatusFailed   = "FAILED"
	paymentStatusCanceled = "CANCELED"
)

// Event is the normalized provider event after parsing.
type Event struct {
	Type            string
	UserID          uuid.UUID
	Trial           bool   // order carries trial metadata instead of a tier
	Amount          int    // annual tier amount for paid orders
	Status          string // provider status for *.updated events
	CustomerRef     string
	InstrumentRef   string
	SubscriptionRef string
}

// rawEvent mirrors the provider's wire format.
type rawEvent struct {
	EventType string `json:"event_type"`
	Data      struct {
		Status          string            `json:"status"`
		Amount          int               `json:"amount"`
		CustomerRef     string            `json:"customer_ref"`
		InstrumentRef   string            `json:"instrument_ref"`
		SubscriptionRef string            `json:"subscription_ref"`
		Metadata        map[string]string `json:"metadata"`
	} `json:"data"`
}

// ParseEvent decodes and normalizes a provider event body. The internal
// user ID travels in data.metadata.user_id, placed there at checkout time.
func ParseEvent(body []byte) (*Event, error) {
	var raw rawEvent
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if raw.EventType == "" {
		return nil, fmt.Errorf("%w: missing event_type", ErrMalformedEvent)
	}

	ev := &Event{
		Type:            raw.EventType,
		Trial:           raw.Data.Metadata["kind"] == "trial",
		Amount:          raw.Data.Amount,
		Status:          raw.Data.Status,
		CustomerRef:     raw.Data.CustomerRef,
		InstrumentRef:   raw.Data.InstrumentRef,
		SubscriptionRef: raw.Data.SubscriptionRef,
	}

	if id, ok := raw.Data.Metadata["user_id"]; ok {
		parsed, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid user_id %q", ErrMalformedEvent, id)
		}
		ev.UserID = parsed
	}

	return ev, nil
}

// requiresUser reports whether the event type cannot be processed without
// an attributed user.
func (e *Event) requiresUser() bool {
	switch e.Type {
	case EventOrderCompleted, EventPaymentCompleted, EventSubscriptionUpdated, EventPaymentUpdated:
		return true
	}
	return false
}
