package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/sproutbook/billing/pkg/billing"
	"github.com/sproutbook/billing/pkg/notifier"
	"github.com/sproutbook/billing/pkg/payment"
)

// Config holds reconciliation tuning knobs.
type Config struct {
	// Workers bounds the number of subscribers processed concurrently
	// within one sweep.
	Workers int `env:"RECONCILE_WORKERS" envDefault:"4"`

	// ChargeTimeout is the per-call deadline for gateway charges.
	ChargeTimeout time.Duration `env:"RECONCILE_CHARGE_TIMEOUT" envDefault:"30s"`

	// SweepTimeout caps a whole run; a hung provider cannot pin the
	// trigger endpoint forever.
	SweepTimeout time.Duration `env:"RECONCILE_SWEEP_TIMEOUT" envDefault:"10m"`

	// ReminderWindow is how far ahead of the period end the renewal
	// reminder goes out.
	ReminderWindow time.Duration `env:"RECONCILE_REMINDER_WINDOW" envDefault:"168h"`

	// ConversionTier is the annual amount a converting trial is charged.
	// It must name a tier present in the catalog.
	ConversionTier int `env:"RECONCILE_TRIAL_CONVERSION_TIER" envDefault:"5"`
}

// Reconciler runs the three lifecycle sweeps over the subscriber store.
type Reconciler struct {
	store    billing.Store
	gateway  payment.Gateway
	notifier notifier.Notifier
	catalog  *billing.Catalog
	cfg      Config
	log      *slog.Logger
	now      func() time.Time
	running  atomic.Bool
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(r *Reconciler) {
		if log != nil {
			r.log = log
		}
	}
}

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) {
		if now != nil {
			r.now = now
		}
	}
}

// New creates a Reconciler. All four collaborators are required.
func New(store billing.Store, gateway payment.Gateway, n notifier.Notifier, catalog *billing.Catalog, cfg Config, opts ...Option) (*Reconciler, error) {
	if store == nil {
		return nil, ErrStoreNil
	}
	if gateway == nil {
		return nil, ErrGatewayNil
	}
	if n == nil {
		return nil, ErrNotifierNil
	}
	if catalog == nil {
		return nil, ErrCatalogNil
	}
	if cfg.Workers <= 0 {
		return nil, fmt.Errorf("%w: workers %d", ErrInvalidConfig, cfg.Workers)
	}
	if cfg.ChargeTimeout <= 0 || cfg.SweepTimeout <= 0 || cfg.ReminderWindow <= 0 {
		return nil, fmt.Errorf("%w: non-positive timeout", ErrInvalidConfig)
	}
	if !catalog.ValidTier(cfg.ConversionTier) {
		return nil, fmt.Errorf("%w: conversion tier %d not in catalog", ErrInvalidConfig, cfg.ConversionTier)
	}

	r := &Reconciler{
		store:    store,
		gateway:  gateway,
		notifier: n,
		catalog:  catalog,
		cfg:      cfg,
		log:      slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run executes one full reconciliation pass: trial conversions, renewals,
// then reminders. Only one run executes at a time; an overlapping trigger
// gets ErrRunInProgress instead of doubling the sweep.
func (r *Reconciler) Run(ctx context.Context) (*Report, error) {
	if !r.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer r.running.Store(false)

	ctx, cancel := context.WithTimeout(ctx, r.cfg.SweepTimeout)
	defer cancel()

	report := &Report{StartedAt: r.now().UTC()}

	r.sweepTrials(ctx, report)
	r.sweepRenewals(ctx, report)
	r.sweepReminders(ctx, report)

	report.FinishedAt = r.now().UTC()
	r.log.InfoContext(ctx, "reconciliation run finished",
		slog.Int("trials_converted", report.TrialsConverted),
		slog.Int("trials_expired", report.TrialsExpired),
		slog.Int("renewals_processed", report.RenewalsProcessed),
		slog.Int("renewals_failed", report.RenewalsFailed),
		slog.Int("reminders_sent", report.RemindersSent),
		slog.Int("errors", len(report.Errors)))
	return report, ctx.Err()
}

// forEach fans the due set out to a bounded worker pool.
func (r *Reconciler) forEach(ctx context.Context, subs []*billing.Subscriber, fn func(context.Context, *billing.Subscriber)) {
	sem := make(chan struct{}, r.cfg.Workers)
	var wg sync.WaitGroup
	for _, sub := range subs {
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func(sub *billing.Subscriber) {
			defer wg.Done()
			defer func() { <-sem }()
			fn(ctx, sub)
		}(sub)
	}
	wg.Wait()
}

// sweepTrials converts or expires trials whose end date has passed.
func (r *Reconciler) sweepTrials(ctx context.Context, report *Report) {
	now := r.now()
	due, err := r.store.ListDueTrials(ctx, now)
	if err != nil {
		report.addError("list due trials: %v", err)
		return
	}

	r.forEach(ctx, due, func(ctx context.Context, sub *billing.Subscriber) {
		if err := r.convertTrial(ctx, sub.UserID, report); err != nil {
			report.addError("trial %s: %v", sub.UserID, err)
			r.log.ErrorContext(ctx, "trial conversion failed",
				slog.String("user_id", sub.UserID.String()),
				slog.Any("error", err))
		}
	})
}

func (r *Reconciler) convertTrial(ctx context.Context, userID uuid.UUID, report *Report) error {
	// Re-read so the decision is made against the freshest state; the
	// listing snapshot may predate a webhook that already converted or
	// cancelled this trial.
	sub, err := r.store.Get(ctx, userID)
	if err != nil {
		return err
	}
	if sub.Status != billing.StatusTrial || (sub.TrialEndsAt != nil && r.now().Before(*sub.TrialEndsAt)) {
		return nil
	}

	if !sub.HasStoredInstrument() {
		return r.expireTrial(ctx, userID, sub.Email, report)
	}

	priceRef, ok := r.catalog.PriceRef(r.cfg.ConversionTier)
	if !ok {
		return fmt.Errorf("%w: %d", billing.ErrUnknownTier, r.cfg.ConversionTier)
	}

	result, err := r.charge(ctx, payment.ChargeRequest{
		IdempotencyKey: uuid.NewString(),
		CustomerRef:    sub.PaymentCustomerRef,
		InstrumentRef:  sub.PaymentInstrumentRef,
		PriceRef:       priceRef,
		Amount:         r.cfg.ConversionTier,
		Description:    "Sproutbook annual subscription (trial conversion)",
	})
	switch {
	case errors.Is(err, payment.ErrChargeDeclined):
		return r.expireTrial(ctx, userID, sub.Email, report)
	case err != nil:
		// Outcome unknown (timeout, transport). Leave the record as is;
		// the next run retries with a fresh key.
		return err
	}

	applied := false
	updated, err := r.store.Update(ctx, userID, func(s *billing.Subscriber) error {
		if s.Status != billing.StatusTrial {
			// A webhook won the race after our charge; the money is
			// reflected there, not double-applied here.
			return billing.ErrNoChange
		}
		applied = true
		return s.Activate(r.now(), r.cfg.ConversionTier, billing.PaymentDetails{
			CustomerRef:   sub.PaymentCustomerRef,
			InstrumentRef: sub.PaymentInstrumentRef,
			Amount:        result.Amount,
		})
	})
	if err != nil {
		return err
	}
	if !applied {
		return nil
	}

	report.addConverted()
	r.notify(ctx, updated.Email, notifier.TemplateTrialConverted, map[string]string{
		"tier":    fmt.Sprintf("%d", r.cfg.ConversionTier),
		"ends_at": formatDate(updated.SubscriptionEndsAt),
	}, report)
	return nil
}

func (r *Reconciler) expireTrial(ctx context.Context, userID uuid.UUID, email string, report *Report) error {
	applied := false
	_, err := r.store.Update(ctx, userID, func(s *billing.Subscriber) error {
		if s.Status != billing.StatusTrial {
			return billing.ErrNoChange
		}
		applied = true
		return s.Expire(r.now())
	})
	if err != nil {
		return err
	}
	if !applied {
		return nil
	}

	report.addExpired()
	r.notify(ctx, email, notifier.TemplateTrialExpired, nil, report)
	return nil
}

// sweepRenewals charges due auto-renewing subscriptions.
func (r *Reconciler) sweepRenewals(ctx context.Context, report *Report) {
	now := r.now()
	due, err := r.store.ListDueRenewals(ctx, now)
	if err != nil {
		report.addError("list due renewals: %v", err)
		return
	}

	r.forEach(ctx, due, func(ctx context.Context, sub *billing.Subscriber) {
		if err := r.renew(ctx, sub.UserID, report); err != nil {
			report.addError("renewal %s: %v", sub.UserID, err)
			r.log.ErrorContext(ctx, "renewal failed",
				slog.String("user_id", sub.UserID.String()),
				slog.Any("error", err))
		}
	})
}

func (r *Reconciler) renew(ctx context.Context, userID uuid.UUID, report *Report) error {
	sub, err := r.store.Get(ctx, userID)
	if err != nil {
		return err
	}
	if !renewalDue(sub, r.now()) {
		return nil
	}

	priceRef, ok := r.catalog.PriceRef(sub.Tier)
	if !ok {
		// A tier retired from the catalog is an operator problem, not a
		// reason to cut the subscriber off.
		return fmt.Errorf("%w: %d", billing.ErrUnknownTier, sub.Tier)
	}

	result, err := r.charge(ctx, payment.ChargeRequest{
		IdempotencyKey: uuid.NewString(),
		CustomerRef:    sub.PaymentCustomerRef,
		InstrumentRef:  sub.PaymentInstrumentRef,
		PriceRef:       priceRef,
		Amount:         sub.Tier,
		Description:    "Sproutbook annual subscription renewal",
	})
	switch {
	case errors.Is(err, payment.ErrChargeDeclined):
		return r.failRenewal(ctx, userID, sub.Email, report)
	case err != nil:
		return err
	}

	applied := false
	updated, err := r.store.Update(ctx, userID, func(s *billing.Subscriber) error {
		if !renewalDue(s, r.now()) {
			return billing.ErrNoChange
		}
		applied = true
		return s.ExtendRenewal(r.now(), billing.PaymentDetails{Amount: result.Amount})
	})
	if err != nil {
		return err
	}
	if !applied {
		return nil
	}

	report.addRenewed()
	r.notify(ctx, updated.Email, notifier.TemplateRenewalSucceeded, map[string]string{
		"tier":    fmt.Sprintf("%d", updated.Tier),
		"ends_at": formatDate(updated.SubscriptionEndsAt),
	}, report)
	return nil
}

func (r *Reconciler) failRenewal(ctx context.Context, userID uuid.UUID, email string, report *Report) error {
	applied := false
	_, err := r.store.Update(ctx, userID, func(s *billing.Subscriber) error {
		if !renewalDue(s, r.now()) {
			return billing.ErrNoChange
		}
		applied = true
		return s.Expire(r.now())
	})
	if err != nil {
		return err
	}
	if !applied {
		return nil
	}

	report.addFailed()
	r.notify(ctx, email, notifier.TemplateRenewalFailed, nil, report)
	return nil
}

// sweepReminders sends the one-per-cycle renewal reminder. Send happens
// before the flag flips, so a crash between the two can repeat a reminder
// but never silently drop one.
func (r *Reconciler) sweepReminders(ctx context.Context, report *Report) {
	now := r.now()
	due, err := r.store.ListDueReminders(ctx, now, r.cfg.ReminderWindow)
	if err != nil {
		report.addError("list due reminders: %v", err)
		return
	}

	r.forEach(ctx, due, func(ctx context.Context, sub *billing.Subscriber) {
		if err := r.remind(ctx, sub, report); err != nil {
			report.addError("reminder %s: %v", sub.UserID, err)
			r.log.ErrorContext(ctx, "renewal reminder failed",
				slog.String("user_id", sub.UserID.String()),
				slog.Any("error", err))
		}
	})
}

func (r *Reconciler) remind(ctx context.Context, sub *billing.Subscriber, report *Report) error {
	err := r.notifier.Send(ctx, notifier.Notification{
		Recipient: sub.Email,
		Template:  notifier.TemplateRenewalReminder,
		Model: map[string]string{
			"tier":    fmt.Sprintf("%d", sub.Tier),
			"ends_at": formatDate(sub.SubscriptionEndsAt),
		},
	})
	if err != nil {
		return err
	}

	_, err = r.store.Update(ctx, sub.UserID, func(s *billing.Subscriber) error {
		return s.MarkReminderSent(r.now())
	})
	if err != nil {
		return err
	}

	report.addReminder()
	return nil
}

// charge executes one gateway charge attempt under its own deadline.
func (r *Reconciler) charge(ctx context.Context, req payment.ChargeRequest) (*payment.ChargeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ChargeTimeout)
	defer cancel()
	return r.gateway.ChargeStoredInstrument(ctx, req)
}

func (r *Reconciler) notify(ctx context.Context, email string, tpl notifier.TemplateID, model map[string]string, report *Report) {
	err := r.notifier.Send(ctx, notifier.Notification{
		Recipient: email,
		Template:  tpl,
		Model:     model,
	})
	if err != nil {
		// The state change already committed; a lost email is reported
		// but never rolls it back.
		report.addError("notify %s (%s): %v", email, tpl, err)
		r.log.WarnContext(ctx, "notification failed",
			slog.String("template", string(tpl)),
			slog.Any("error", err))
	}
}

func renewalDue(s *billing.Subscriber, now time.Time) bool {
	return s.Status == billing.StatusActive && s.AutoRenew && !s.Lifetime &&
		s.HasStoredInstrument() &&
		s.SubscriptionEndsAt != nil && !now.Before(*s.SubscriptionEndsAt)
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}
