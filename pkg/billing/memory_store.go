package billing

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is a mutex-guarded in-memory Store used in tests and local
// development. Records are cloned on the way in and out so callers can never
// mutate shared state outside an Update.
type MemoryStore struct {
	mu   sync.RWMutex
	subs map[uuid.UUID]*Subscriber
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{subs: make(map[uuid.UUID]*Subscriber)}
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, userID uuid.UUID) (*Subscriber, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sub, ok := m.subs[userID]
	if !ok {
		return nil, ErrSubscriberNotFound
	}
	return sub.Clone(), nil
}

// Create implements Store.
func (m *MemoryStore) Create(_ context.Context, sub *Subscriber) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.subs[sub.UserID]; exists {
		return ErrSubscriberExists
	}
	m.subs[sub.UserID] = sub.Clone()
	return nil
}

// Update implements Store. The store-wide mutex serializes all updates,
// which trivially satisfies the per-user atomicity contract for the scale
// this store is meant for.
func (m *MemoryStore) Update(_ context.Context, userID uuid.UUID, fn UpdateFunc) (*Subscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.subs[userID]
	if !ok {
		return nil, ErrSubscriberNotFound
	}

	next := current.Clone()
	if err := fn(next); err != nil {
		if err == ErrNoChange {
			return current.Clone(), nil
		}
		return nil, err
	}

	m.subs[userID] = next
	return next.Clone(), nil
}

// ListDueTrials implements Store.
func (m *MemoryStore) ListDueTrials(_ context.Context, now time.Time) ([]*Subscriber, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var due []*Subscriber
	for _, sub := range m.subs {
		if sub.Status == StatusTrial && sub.TrialEndsAt != nil && !now.Before(*sub.TrialEndsAt) {
			due = append(due, sub.Clone())
		}
	}
	return due, nil
}

// ListDueRenewals implements Store.
func (m *MemoryStore) ListDueRenewals(_ context.Context, now time.Time) ([]*Subscriber, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var due []*Subscriber
	for _, sub := range m.subs {
		if sub.Status == StatusActive && sub.AutoRenew && !sub.Lifetime &&
			sub.HasStoredInstrument() &&
			sub.SubscriptionEndsAt != nil && !now.Before(*sub.SubscriptionEndsAt) {
			due = append(due, sub.Clone())
		}
	}
	return due, nil
}

// ListDueReminders implements Store.
func (m *MemoryStore) ListDueReminders(_ context.Context, now time.Time, window time.Duration) ([]*Subscriber, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	horizon := now.Add(window)
	var due []*Subscriber
	for _, sub := range m.subs {
		if sub.AutoRenew && !sub.Lifetime && !sub.RenewalReminderSent &&
			sub.SubscriptionEndsAt != nil &&
			sub.SubscriptionEndsAt.After(now) && !sub.SubscriptionEndsAt.After(horizon) {
			due = append(due, sub.Clone())
		}
	}
	return due, nil
}
