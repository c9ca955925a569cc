package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// UpdateFunc mutates a subscriber record inside an atomic read-modify-write.
// The record passed in is the freshest persisted state; returning ErrNoChange
// skips the write and reports success, any other error aborts the update.
type UpdateFunc func(*Subscriber) error

// Store is the persistence contract for subscriber records.
//
// Update must apply fn as a single atomic read-modify-write so that no other
// writer observes an intermediate state, and concurrent updates for the same
// user serialize with fn re-run against the freshest record. Implementations
// lock per user; two different users never contend.
type Store interface {
	// Get retrieves a subscriber by user ID.
	// Returns ErrSubscriberNotFound if no record exists.
	Get(ctx context.Context, userID uuid.UUID) (*Subscriber, error)

	// Create persists a new record. Returns ErrSubscriberExists when a
	// record for the user already exists.
	Create(ctx context.Context, sub *Subscriber) error

	// Update atomically applies fn to the current record and persists the
	// result. Returns the updated record, or the unchanged record when fn
	// returned ErrNoChange.
	Update(ctx context.Context, userID uuid.UUID, fn UpdateFunc) (*Subscriber, error)

	// ListDueTrials returns subscribers in trial whose trial end date has
	// passed at now.
	ListDueTrials(ctx context.Context, now time.Time) ([]*Subscriber, error)

	// ListDueRenewals returns active auto-renew non-lifetime subscribers
	// with a stored payment instrument whose paid period has ended at now.
	ListDueRenewals(ctx context.Context, now time.Time) ([]*Subscriber, error)

	// ListDueReminders returns auto-renew non-lifetime subscribers without
	// a sent reminder whose paid period ends within the window after now
	// (and has not already passed).
	ListDueReminders(ctx context.Context, now time.Time, window time.Duration) ([]*Subscriber, error)
}
