package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists subscriber records in the subscribers table.
// Update runs inside a transaction with a row lock (SELECT ... FOR UPDATE),
// so concurrent transitions for the same user serialize on the row and the
// update func always sees the freshest state. Rows for different users do
// not contend.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Store backed by the given connection pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const subscriberColumns = `user_id, email, status, tier, subscription_ends_at,
	trial_started_at, trial_ends_at, trial_used, auto_renew,
	renewal_reminder_sent, lifetime, payment_customer_ref,
	payment_instrument_ref, payment_subscription_ref,
	last_payment_amount, last_payment_at, created_at, updated_at`

// Get implements Store.
func (p *PostgresStore) Get(ctx context.Context, userID uuid.UUID) (*Subscriber, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT `+subscriberColumns+` FROM subscribers WHERE user_id = $1`, userID)
	return scanSubscriber(row)
}

// Create implements Store.
func (p *PostgresStore) Create(ctx context.Context, sub *Subscriber) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO subscribers (`+subscriberColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		sub.UserID, sub.Email, sub.Status, sub.Tier, sub.SubscriptionEndsAt,
		sub.TrialStartedAt, sub.TrialEndsAt, sub.TrialUsed, sub.AutoRenew,
		sub.RenewalReminderSent, sub.Lifetime, sub.PaymentCustomerRef,
		sub.PaymentInstrumentRef, sub.PaymentSubscriptionRef,
		sub.LastPaymentAmount, sub.LastPaymentAt, sub.CreatedAt, sub.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrSubscriberExists
		}
		return fmt.Errorf("insert subscriber: %w", err)
	}
	return nil
}

// Update implements Store.
func (p *PostgresStore) Update(ctx context.Context, userID uuid.UUID, fn UpdateFunc) (*Subscriber, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	row := tx.QueryRow(ctx,
		`SELECT `+subscriberColumns+` FROM subscribers WHERE user_id = $1 FOR UPDATE`, userID)
	sub, err := scanSubscriber(row)
	if err != nil {
		return nil, err
	}

	if err := fn(sub); err != nil {
		if err == ErrNoChange {
			// Precondition already satisfied; release the lock without writing.
			return sub, tx.Rollback(ctx)
		}
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE subscribers SET
			email = $2, status = $3, tier = $4, subscription_ends_at = $5,
			trial_started_at = $6, trial_ends_at = $7, trial_used = $8,
			auto_renew = $9, renewal_reminder_sent = $10, lifetime = $11,
			payment_customer_ref = $12, payment_instrument_ref = $13,
			payment_subscription_ref = $14, last_payment_amount = $15,
			last_payment_at = $16, updated_at = $17
		WHERE user_id = $1`,
		sub.UserID, sub.Email, sub.Status, sub.Tier, sub.SubscriptionEndsAt,
		sub.TrialStartedAt, sub.TrialEndsAt, sub.TrialUsed,
		sub.AutoRenew, sub.RenewalReminderSent, sub.Lifetime,
		sub.PaymentCustomerRef, sub.PaymentInstrumentRef,
		sub.PaymentSubscriptionRef, sub.LastPaymentAmount,
		sub.LastPaymentAt, sub.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("update subscriber: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit update: %w", err)
	}
	return sub, nil
}

// ListDueTrials implements Store.
func (p *PostgresStore) ListDueTrials(ctx context.Context, now time.Time) ([]*Subscriber, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+subscriberColumns+` FROM subscribers
		WHERE status = $1 AND trial_ends_at IS NOT NULL AND trial_ends_at <= $2`,
		StatusTrial, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("list due trials: %w", err)
	}
	return collectSubscribers(rows)
}

// ListDueRenewals implements Store.
func (p *PostgresStore) ListDueRenewals(ctx context.Context, now time.Time) ([]*Subscriber, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+subscriberColumns+` FROM subscribers
		WHERE status = $1 AND auto_renew AND NOT lifetime
			AND payment_instrument_ref <> ''
			AND subscription_ends_at IS NOT NULL AND subscription_ends_at <= $2`,
		StatusActive, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("list due renewals: %w", err)
	}
	return collectSubscribers(rows)
}

// ListDueReminders implements Store.
func (p *PostgresStore) ListDueReminders(ctx context.Context, now time.Time, window time.Duration) ([]*Subscriber, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+subscriberColumns+` FROM subscribers
		WHERE auto_renew AND NOT lifetime AND NOT renewal_reminder_sent
			AND subscription_ends_at IS NOT NULL
			AND subscription_ends_at > $1 AND subscription_ends_at <= $2`,
		now.UTC(), now.UTC().Add(window))
	if err != nil {
		return nil, fmt.Errorf("list due reminders: %w", err)
	}
	return collectSubscribers(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscriber(row rowScanner) (*Subscriber, error) {
	var sub Subscriber
	err := row.Scan(
		&sub.UserID, &sub.Email, &sub.Status, &sub.Tier, &sub.SubscriptionEndsAt,
		&sub.TrialStartedAt, &sub.TrialEndsAt, &sub.TrialUsed, &sub.AutoRenew,
		&sub.RenewalReminderSent, &sub.Lifetime, &sub.PaymentCustomerRef,
		&sub.PaymentInstrumentRef, &sub.PaymentSubscriptionRef,
		&sub.LastPaymentAmount, &sub.LastPaymentAt, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSubscriberNotFound
		}
		return nil, fmt.Errorf("scan subscriber: %w", err)
	}
	return &sub, nil
}

func collectSubscribers(rows pgx.Rows) ([]*Subscriber, error) {
	defer rows.Close()

	var subs []*Subscriber
	for rows.Next() {
		sub, err := scanSubscriber(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscribers: %w", err)
	}
	return subs, nil
}
