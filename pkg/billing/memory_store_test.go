package billing_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sproutbook/billing/pkg/billing"
)

func TestMemoryStore_CreateGet(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := billing.NewMemoryStore()
	sub := newTestSubscriber(t)

	require.NoError(t, store.Create(ctx, sub))
	assert.ErrorIs(t, store.Create(ctx, sub), billing.ErrSubscriberExists)

	got, err := store.Get(ctx, sub.UserID)
	require.NoError(t, err)
	assert.Equal(t, sub.UserID, got.UserID)

	// Clones must isolate callers from the stored record.
	got.Status = billing.StatusActive
	again, err := store.Get(ctx, sub.UserID)
	require.NoError(t, err)
	assert.Equal(t, billing.StatusNone, again.Status)

	_, err = store.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, billing.ErrSubscriberNotFound)
}

func TestMemoryStore_Update(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("applies the transition", func(t *testing.T) {
		t.Parallel()

		store := billing.NewMemoryStore()
		sub := newTestSubscriber(t)
		require.NoError(t, store.Create(ctx, sub))

		updated, err := store.Update(ctx, sub.UserID, func(s *billing.Subscriber) error {
			return s.StartTrial(testNow, 14)
		})
		require.NoError(t, err)
		assert.Equal(t, billing.StatusTrial, updated.Status)

		got, err := store.Get(ctx, sub.UserID)
		require.NoError(t, err)
		assert.Equal(t, billing.StatusTrial, got.Status)
	})

	t.Run("ErrNoChange leaves the record untouched", func(t *testing.T) {
		t.Parallel()

		store := billing.NewMemoryStore()
		sub := newTestSubscriber(t)
		require.NoError(t, store.Create(ctx, sub))

		current, err := store.Update(ctx, sub.UserID, func(s *billing.Subscriber) error {
			s.Status = billing.StatusActive // must not be persisted
			return billing.ErrNoChange
		})
		require.NoError(t, err)
		assert.Equal(t, billing.StatusNone, current.Status)
	})

	t.Run("transition errors are passed through", func(t *testing.T) {
		t.Parallel()

		store := billing.NewMemoryStore()
		sub := newTestSubscriber(t)
		sub.TrialUsed = true
		require.NoError(t, store.Create(ctx, sub))

		_, err := store.Update(ctx, sub.UserID, func(s *billing.Subscriber) error {
			return s.StartTrial(testNow, 14)
		})
		assert.ErrorIs(t, err, billing.ErrTrialAlreadyUsed)

		got, err := store.Get(ctx, sub.UserID)
		require.NoError(t, err)
		assert.Equal(t, billing.StatusNone, got.Status)
	})

	t.Run("concurrent updates for one user serialize", func(t *testing.T) {
		t.Parallel()

		store := billing.NewMemoryStore()
		sub := newTestSubscriber(t)
		require.NoError(t, store.Create(ctx, sub))

		// Many goroutines race to start the same trial; exactly one write
		// must win and the rest must observe the no-op path.
		var wg sync.WaitGroup
		applied := make(chan struct{}, 32)
		for i := 0; i < 32; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := store.Update(ctx, sub.UserID, func(s *billing.Subscriber) error {
					if err := s.StartTrial(testNow, 14); err != nil {
						return err
					}
					applied <- struct{}{}
					return nil
				})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()
		close(applied)

		var wins int
		for range applied {
			wins++
		}
		assert.Equal(t, 1, wins)
	})
}

func TestMemoryStore_SweepQueries(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := billing.NewMemoryStore()

	dueTrial := newTestSubscriber(t)
	require.NoError(t, dueTrial.StartTrial(testNow.AddDate(0, 0, -14), 14))
	require.NoError(t, store.Create(ctx, dueTrial))

	runningTrial := newTestSubscriber(t)
	require.NoError(t, runningTrial.StartTrial(testNow, 14))
	require.NoError(t, store.Create(ctx, runningTrial))

	dueRenewal := newTestSubscriber(t)
	require.NoError(t, dueRenewal.Activate(testNow.AddDate(-1, 0, 0), 5, billing.PaymentDetails{
		InstrumentRef: "card_1", Amount: 5,
	}))
	require.NoError(t, store.Create(ctx, dueRenewal))

	noInstrument := newTestSubscriber(t)
	require.NoError(t, noInstrument.Activate(testNow.AddDate(-1, 0, 0), 5, billing.PaymentDetails{Amount: 5}))
	require.NoError(t, store.Create(ctx, noInstrument))

	reminderSoon := newTestSubscriber(t)
	require.NoError(t, reminderSoon.Activate(testNow.AddDate(-1, 0, 5), 5, billing.PaymentDetails{
		InstrumentRef: "card_2", Amount: 5,
	}))
	require.NoError(t, store.Create(ctx, reminderSoon))

	t.Run("due trials", func(t *testing.T) {
		t.Parallel()

		due, err := store.ListDueTrials(ctx, testNow)
		require.NoError(t, err)
		require.Len(t, due, 1)
		assert.Equal(t, dueTrial.UserID, due[0].UserID)
	})

	t.Run("due renewals require a stored instrument", func(t *testing.T) {
		t.Parallel()

		due, err := store.ListDueRenewals(ctx, testNow)
		require.NoError(t, err)
		require.Len(t, due, 1)
		assert.Equal(t, dueRenewal.UserID, due[0].UserID)
	})

	t.Run("reminders within the window only", func(t *testing.T) {
		t.Parallel()

		due, err := store.ListDueReminders(ctx, testNow, 7*24*time.Hour)
		require.NoError(t, err)
		require.Len(t, due, 1)
		assert.Equal(t, reminderSoon.UserID, due[0].UserID)
	})
}
