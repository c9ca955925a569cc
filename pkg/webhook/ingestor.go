package webhook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sproutbook/billing/pkg/billing"
)

// Outcome reports how an event was handled.
type Outcome string

const (
	// OutcomeAccepted means the event was processed, possibly as an
	// idempotent no-op.
	OutcomeAccepted Outcome = "accepted"

	// OutcomeIgnored means the event was acknowledged without a state
	// change: unknown event type, unknown user, or a transition the state
	// machine rejects (retrying such an event can never succeed).
	OutcomeIgnored Outcome = "ignored"
)

// Ingestor verifies and dispatches inbound provider events.
type Ingestor struct {
	secret    string
	store     billing.Store
	trialDays int
	log       *slog.Logger
	now       func() time.Time
}

// Option configures an Ingestor.
type Option func(*Ingestor)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(i *Ingestor) {
		if log != nil {
			i.log = log
		}
	}
}

// WithClock sets the time source, used by tests to fix the clock.
func WithClock(now func() time.Time) Option {
	return func(i *Ingestor) {
		if now != nil {
			i.now = now
		}
	}
}

// NewIngestor creates an ingestor. The signing secret may be empty here -
// Handle fails closed on every call until it is configured - but store and
// trial duration are required.
func NewIngestor(secret string, store billing.Store, trialDays int, opts ...Option) (*Ingestor, error) {
	if store == nil {
		return nil, errors.New("webhook: billing store is required")
	}
	if trialDays <= 0 {
		return nil, billing.ErrInvalidTrialDays
	}

	i := &Ingestor{
		secret:    secret,
		store:     store,
		trialDays: trialDays,
		log:       slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// Handle verifies the signature, parses the event and applies the matching
// transition. Returned errors classify the failure: ErrNotConfigured,
// ErrBadSignature and ErrMalformedEvent map to reject responses; any other
// error is an internal failure the provider should retry (safe, because
// every transition is idempotent).
func (i *Ingestor) Handle(ctx context.Context, body []byte, signature string) (Outcome, error) {
	if err := Verify(i.secret, body, signature); err != nil {
		return "", err
	}

	event, err := ParseEvent(body)
	if err != nil {
		return "", err
	}

	log := i.log.With(slog.String("event_type", event.Type))

	if event.requiresUser() && event.UserID == uuid.Nil {
		return "", fmt.Errorf("%w: missing user_id metadata", ErrMalformedEvent)
	}

	switch event.Type {
	case EventOrderCompleted, EventPaymentCompleted:
		return i.handleOrderCompleted(ctx, log, event)
	case EventSubscriptionUpdated:
		return i.applyTransition(ctx, log, event, func(sub *billing.Subscriber) error {
			return sub.ApplyProviderStatus(i.now(), event.Status)
		})
	case EventPaymentUpdated:
		return i.handlePaymentUpdated(ctx, log, event)
	default:
		log.InfoContext(ctx, "ignoring unknown webhook event type")
		return OutcomeIgnored, nil
	}
}

// handleOrderCompleted starts a trial or activates a paid year, depending
// on the order metadata.
func (i *Ingestor) handleOrderCompleted(ctx context.Context, log *slog.Logger, event *Event) (Outcome, error) {
	if event.Trial {
		return i.applyTransition(ctx, log, event, func(sub *billing.Subscriber) error {
			if err := sub.StartTrial(i.now(), i.trialDays); err != nil {
				return err
			}
			sub.RecordPaymentRefs(billing.PaymentDetails{
				CustomerRef:   event.CustomerRef,
				InstrumentRef: event.InstrumentRef,
			})
			return nil
		})
	}

	if event.Amount <= 0 {
		return "", fmt.Errorf("%w: completed order without tier amount or trial metadata", ErrMalformedEvent)
	}

	return i.applyTransition(ctx, log, event, func(sub *billing.Subscriber) error {
		return sub.Activate(i.now(), event.Amount, billing.PaymentDetails{
			CustomerRef:     event.CustomerRef,
			InstrumentRef:   event.InstrumentRef,
			SubscriptionRef: event.SubscriptionRef,
			Amount:          event.Amount,
		})
	})
}

// handlePaymentUpdated expires an active subscription when the provider
// reports the payment failed or was cancelled.
func (i *Ingestor) handlePaymentUpdated(ctx context.Context, log *slog.Logger, event *Event) (Outcome, error) {
	switch event.Status {
	case paymentStatusFailed, paymentStatusCanceled:
	default:
		log.InfoContext(ctx, "ignoring payment.updated status", slog.String("status", event.Status))
		return OutcomeIgnored, nil
	}

	return i.applyTransition(ctx, log, event, func(sub *billing.Subscriber) error {
		if sub.Status != billing.StatusActive {
			return billing.ErrNoChange
		}
		return sub.Expire(i.now())
	})
}

// applyTransition runs fn inside the store's atomic update and classifies
// the result. State-machine rejections are acknowledged, not retried: the
// record has moved past the event and redelivery cannot change that.
func (i *Ingestor) applyTransition(ctx context.Context, log *slog.Logger, event *Event, fn billing.UpdateFunc) (Outcome, error) {
	_, err := i.store.Update(ctx, event.UserID, fn)
	switch {
	case err == nil:
		return OutcomeAccepted, nil
	case errors.Is(err, billing.ErrSubscriberNotFound):
		log.WarnContext(ctx, "webhook references unknown user", slog.String("user_id", event.UserID.String()))
		return OutcomeIgnored, nil
	case errors.Is(err, billing.ErrInvalidTransition),
		errors.Is(err, billing.ErrTrialAlreadyUsed),
		errors.Is(err, billing.ErrUnknownProviderStatus):
		log.WarnContext(ctx, "webhook event rejected by state machine",
			slog.String("user_id", event.UserID.String()),
			slog.String("reason", err.Error()))
		return OutcomeIgnored, nil
	default:
		return "", fmt.Errorf("apply webhook transition: %w", err)
	}
}
