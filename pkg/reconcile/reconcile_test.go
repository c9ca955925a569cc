package reconcile_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sproutbook/billing/pkg/billing"
	"github.com/sproutbook/billing/pkg/notifier"
	"github.com/sproutbook/billing/pkg/payment"
	"github.com/sproutbook/billing/pkg/reconcile"
)

var sweepNow = time.Date(2026, 3, 15, 3, 0, 0, 0, time.UTC)

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) CreateCustomer(ctx context.Context, userID, email string) (string, error) {
	args := m.Called(ctx, userID, email)
	return args.String(0), args.Error(1)
}

func (m *mockGateway) CreateCheckout(ctx context.Context, req payment.CheckoutRequest) (*payment.CheckoutSession, error) {
	args := m.Called(ctx, req)
	if session := args.Get(0); session != nil {
		return session.(*payment.CheckoutSession), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockGateway) ChargeStoredInstrument(ctx context.Context, req payment.ChargeRequest) (*payment.ChargeResult, error) {
	args := m.Called(ctx, req)
	if result := args.Get(0); result != nil {
		return result.(*payment.ChargeResult), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Send(ctx context.Context, n notifier.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

func testCatalog() *billing.Catalog {
	return &billing.Catalog{
		TrialDays:     14,
		TrialPriceRef: "pri_trial",
		Tiers: []billing.Tier{
			{Amount: 5, PriceRef: "pri_annual_5"},
			{Amount: 12, PriceRef: "pri_annual_12"},
		},
	}
}

func testConfig() reconcile.Config {
	return reconcile.Config{
		Workers:        2,
		ChargeTimeout:  5 * time.Second,
		SweepTimeout:   time.Minute,
		ReminderWindow: 7 * 24 * time.Hour,
		ConversionTier: 5,
	}
}

func newReconciler(t *testing.T, store billing.Store, gateway payment.Gateway, n notifier.Notifier) *reconcile.Reconciler {
	t.Helper()

	r, err := reconcile.New(store, gateway, n, testCatalog(), testConfig(),
		reconcile.WithClock(func() time.Time { return sweepNow }))
	require.NoError(t, err)
	return r
}

func seedSubscriber(t *testing.T, store billing.Store, mutate func(*billing.Subscriber)) uuid.UUID {
	t.Helper()

	sub := billing.NewSubscriber(uuid.New(), "gardener@example.com", sweepNow.AddDate(-1, 0, 0))
	if mutate != nil {
		mutate(sub)
	}
	require.NoError(t, store.Create(context.Background(), sub))
	return sub.UserID
}

func templateMatcher(tpl notifier.TemplateID) any {
	return mock.MatchedBy(func(n notifier.Notification) bool {
		return n.Template == tpl && n.Recipient == "gardener@example.com"
	})
}

func TestRun_TrialConversion(t *testing.T) {
	t.Parallel()

	t.Run("charges and converts a due trial with an instrument", func(t *testing.T) {
		t.Parallel()

		store := billing.NewMemoryStore()
		userID := seedSubscriber(t, store, func(s *billing.Subscriber) {
			require.NoError(t, s.StartTrial(sweepNow.AddDate(0, 0, -14), 14))
			s.RecordPaymentRefs(billing.PaymentDetails{CustomerRef: "ctm_1", InstrumentRef: "card_1"})
		})

		gateway := new(mockGateway)
		gateway.On("ChargeStoredInstrument", mock.Anything, mock.MatchedBy(func(req payment.ChargeRequest) bool {
			return req.IdempotencyKey != "" && req.Amount == 5 &&
				req.PriceRef == "pri_annual_5" && req.InstrumentRef == "card_1"
		})).Return(&payment.ChargeResult{TransactionRef: "txn_1", Amount: 5, ChargedAt: sweepNow}, nil).Once()

		mail := new(mockNotifier)
		mail.On("Send", mock.Anything, templateMatcher(notifier.TemplateTrialConverted)).Return(nil).Once()

		report, err := newReconciler(t, store, gateway, mail).Run(context.Background())
		require.NoError(t, err)

		assert.Equal(t, 1, report.TrialsConverted)
		assert.Empty(t, report.Errors)

		sub, err := store.Get(context.Background(), userID)
		require.NoError(t, err)
		assert.Equal(t, billing.StatusActive, sub.Status)
		assert.Equal(t, 5, sub.Tier)
		assert.Equal(t, sweepNow.AddDate(1, 0, 0), *sub.SubscriptionEndsAt)

		gateway.AssertExpectations(t)
		mail.AssertExpectations(t)
	})

	t.Run("expires a due trial without an instrument", func(t *testing.T) {
		t.Parallel()

		store := billing.NewMemoryStore()
		userID := seedSubscriber(t, store, func(s *billing.Subscriber) {
			require.NoError(t, s.StartTrial(sweepNow.AddDate(0, 0, -14), 14))
		})

		gateway := new(mockGateway)
		mail := new(mockNotifier)
		mail.On("Send", mock.Anything, templateMatcher(notifier.TemplateTrialExpired)).Return(nil).Once()

		report, err := newReconciler(t, store, gateway, mail).Run(context.Background())
		require.NoError(t, err)

		assert.Equal(t, 1, report.TrialsExpired)
		assert.Zero(t, report.TrialsConverted)

		sub, err := store.Get(context.Background(), userID)
		require.NoError(t, err)
		assert.Equal(t, billing.StatusExpired, sub.Status)

		gateway.AssertNotCalled(t, "ChargeStoredInstrument", mock.Anything, mock.Anything)
		mail.AssertExpectations(t)
	})

	t.Run("declined charge expires the trial", func(t *testing.T) {
		t.Parallel()

		store := billing.NewMemoryStore()
		userID := seedSubscriber(t, store, func(s *billing.Subscriber) {
			require.NoError(t, s.StartTrial(sweepNow.AddDate(0, 0, -14), 14))
			s.RecordPaymentRefs(billing.PaymentDetails{CustomerRef: "ctm_1", InstrumentRef: "card_1"})
		})

		gateway := new(mockGateway)
		gateway.On("ChargeStoredInstrument", mock.Anything, mock.Anything).
			Return(nil, payment.ErrChargeDeclined).Once()

		mail := new(mockNotifier)
		mail.On("Send", mock.Anything, templateMatcher(notifier.TemplateTrialExpired)).Return(nil).Once()

		report, err := newReconciler(t, store, gateway, mail).Run(context.Background())
		require.NoError(t, err)

		assert.Equal(t, 1, report.TrialsExpired)

		sub, err := store.Get(context.Background(), userID)
		require.NoError(t, err)
		assert.Equal(t, billing.StatusExpired, sub.Status)
		assert.True(t, sub.TrialUsed)
	})

	t.Run("unknown charge outcome leaves the trial for the next run", func(t *testing.T) {
		t.Parallel()

		store := billing.NewMemoryStore()
		userID := seedSubscriber(t, store, func(s *billing.Subscriber) {
			require.NoError(t, s.StartTrial(sweepNow.AddDate(0, 0, -14), 14))
			s.RecordPaymentRefs(billing.PaymentDetails{CustomerRef: "ctm_1", InstrumentRef: "card_1"})
		})

		gateway := new(mockGateway)
		gateway.On("ChargeStoredInstrument", mock.Anything, mock.Anything).
			Return(nil, errors.New("gateway timeout")).Once()

		mail := new(mockNotifier)

		report, err := newReconciler(t, store, gateway, mail).Run(context.Background())
		require.NoError(t, err)

		assert.Len(t, report.Errors, 1)
		assert.Zero(t, report.TrialsConverted)
		assert.Zero(t, report.TrialsExpired)

		sub, err := store.Get(context.Background(), userID)
		require.NoError(t, err)
		assert.Equal(t, billing.StatusTrial, sub.Status)

		mail.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
	})

	t.Run("each attempt carries a fresh idempotency key", func(t *testing.T) {
		t.Parallel()

		store := billing.NewMemoryStore()
		seedSubscriber(t, store, func(s *billing.Subscriber) {
			require.NoError(t, s.StartTrial(sweepNow.AddDate(0, 0, -14), 14))
			s.RecordPaymentRefs(billing.PaymentDetails{CustomerRef: "ctm_1", InstrumentRef: "card_1"})
		})

		var keys []string
		gateway := new(mockGateway)
		gateway.On("ChargeStoredInstrument", mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) {
				keys = append(keys, args.Get(1).(payment.ChargeRequest).IdempotencyKey)
			}).
			Return(nil, errors.New("gateway timeout")).Once()

		mail := new(mockNotifier)
		r := newReconciler(t, store, gateway, mail)

		_, err := r.Run(context.Background())
		require.NoError(t, err)

		gateway.On("ChargeStoredInstrument", mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) {
				keys = append(keys, args.Get(1).(payment.ChargeRequest).IdempotencyKey)
			}).
			Return(&payment.ChargeResult{TransactionRef: "txn_1", Amount: 5}, nil).Once()
		mail.On("Send", mock.Anything, mock.Anything).Return(nil)

		_, err = r.Run(context.Background())
		require.NoError(t, err)

		require.Len(t, keys, 2)
		assert.NotEqual(t, keys[0], keys[1])
	})

	t.Run("webhook race after the charge does not double apply", func(t *testing.T) {
		t.Parallel()

		store := billing.NewMemoryStore()
		userID := seedSubscriber(t, store, func(s *billing.Subscriber) {
			require.NoError(t, s.StartTrial(sweepNow.AddDate(0, 0, -14), 14))
			s.RecordPaymentRefs(billing.PaymentDetails{CustomerRef: "ctm_1", InstrumentRef: "card_1"})
		})

		// A webhook converts the trial while the sweep's charge is in
		// flight; the sweep's post-charge update must see the new status
		// and back off.
		webhookEnd := sweepNow.Add(-time.Minute).AddDate(1, 0, 0)
		gateway := new(mockGateway)
		gateway.On("ChargeStoredInstrument", mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) {
				_, err := store.Update(context.Background(), userID, func(s *billing.Subscriber) error {
					return s.Activate(sweepNow.Add(-time.Minute), 12, billing.PaymentDetails{Amount: 12})
				})
				require.NoError(t, err)
			}).
			Return(&payment.ChargeResult{TransactionRef: "txn_1", Amount: 5}, nil).Once()

		mail := new(mockNotifier)

		report, err := newReconciler(t, store, gateway, mail).Run(context.Background())
		require.NoError(t, err)

		assert.Zero(t, report.TrialsConverted)

		sub, err := store.Get(context.Background(), userID)
		require.NoError(t, err)
		assert.Equal(t, 12, sub.Tier, "the webhook's activation must win")
		assert.Equal(t, webhookEnd, *sub.SubscriptionEndsAt)

		mail.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
	})
}

func TestRun_Renewals(t *testing.T) {
	t.Parallel()

	seedActive := func(t *testing.T, store billing.Store, tier int) uuid.UUID {
		t.Helper()
		return seedSubscriber(t, store, func(s *billing.Subscriber) {
			require.NoError(t, s.Activate(sweepNow.AddDate(-1, 0, 0), tier, billing.PaymentDetails{
				CustomerRef: "ctm_1", InstrumentRef: "card_1", Amount: tier,
			}))
		})
	}

	t.Run("successful charge extends one year from now", func(t *testing.T) {
		t.Parallel()

		store := billing.NewMemoryStore()
		userID := seedActive(t, store, 12)

		gateway := new(mockGateway)
		gateway.On("ChargeStoredInstrument", mock.Anything, mock.MatchedBy(func(req payment.ChargeRequest) bool {
			return req.Amount == 12 && req.PriceRef == "pri_annual_12"
		})).Return(&payment.ChargeResult{TransactionRef: "txn_9", Amount: 12}, nil).Once()

		mail := new(mockNotifier)
		mail.On("Send", mock.Anything, templateMatcher(notifier.TemplateRenewalSucceeded)).Return(nil).Once()

		report, err := newReconciler(t, store, gateway, mail).Run(context.Background())
		require.NoError(t, err)

		assert.Equal(t, 1, report.RenewalsProcessed)

		sub, err := store.Get(context.Background(), userID)
		require.NoError(t, err)
		assert.Equal(t, billing.StatusActive, sub.Status)
		assert.Equal(t, sweepNow.AddDate(1, 0, 0), *sub.SubscriptionEndsAt)
		assert.False(t, sub.RenewalReminderSent)
	})

	t.Run("declined charge expires the subscription", func(t *testing.T) {
		t.Parallel()

		store := billing.NewMemoryStore()
		userID := seedActive(t, store, 5)

		gateway := new(mockGateway)
		gateway.On("ChargeStoredInstrument", mock.Anything, mock.Anything).
			Return(nil, payment.ErrChargeDeclined).Once()

		mail := new(mockNotifier)
		mail.On("Send", mock.Anything, templateMatcher(notifier.TemplateRenewalFailed)).Return(nil).Once()

		report, err := newReconciler(t, store, gateway, mail).Run(context.Background())
		require.NoError(t, err)

		assert.Equal(t, 1, report.RenewalsFailed)

		sub, err := store.Get(context.Background(), userID)
		require.NoError(t, err)
		assert.Equal(t, billing.StatusExpired, sub.Status)
	})

	t.Run("tier missing from the catalog is an error, not an expiry", func(t *testing.T) {
		t.Parallel()

		store := billing.NewMemoryStore()
		userID := seedActive(t, store, 7)

		gateway := new(mockGateway)
		mail := new(mockNotifier)

		report, err := newReconciler(t, store, gateway, mail).Run(context.Background())
		require.NoError(t, err)

		assert.Len(t, report.Errors, 1)
		assert.Zero(t, report.RenewalsFailed)

		sub, err := store.Get(context.Background(), userID)
		require.NoError(t, err)
		assert.Equal(t, billing.StatusActive, sub.Status)

		gateway.AssertNotCalled(t, "ChargeStoredInstrument", mock.Anything, mock.Anything)
	})

	t.Run("one failure does not stop the sweep", func(t *testing.T) {
		t.Parallel()

		store := billing.NewMemoryStore()
		seedActive(t, store, 5)
		seedActive(t, store, 12)

		gateway := new(mockGateway)
		gateway.On("ChargeStoredInstrument", mock.Anything, mock.MatchedBy(func(req payment.ChargeRequest) bool {
			return req.Amount == 5
		})).Return(nil, errors.New("gateway timeout")).Once()
		gateway.On("ChargeStoredInstrument", mock.Anything, mock.MatchedBy(func(req payment.ChargeRequest) bool {
			return req.Amount == 12
		})).Return(&payment.ChargeResult{TransactionRef: "txn_2", Amount: 12}, nil).Once()

		mail := new(mockNotifier)
		mail.On("Send", mock.Anything, templateMatcher(notifier.TemplateRenewalSucceeded)).Return(nil).Once()

		report, err := newReconciler(t, store, gateway, mail).Run(context.Background())
		require.NoError(t, err)

		assert.Equal(t, 1, report.RenewalsProcessed)
		assert.Len(t, report.Errors, 1)
	})
}

func TestRun_Reminders(t *testing.T) {
	t.Parallel()

	t.Run("sends one reminder inside the window", func(t *testing.T) {
		t.Parallel()

		store := billing.NewMemoryStore()
		userID := seedSubscriber(t, store, func(s *billing.Subscriber) {
			require.NoError(t, s.Activate(sweepNow.AddDate(-1, 0, 5), 5, billing.PaymentDetails{
				CustomerRef: "ctm_1", InstrumentRef: "card_1", Amount: 5,
			}))
		})

		gateway := new(mockGateway)
		mail := new(mockNotifier)
		mail.On("Send", mock.Anything, templateMatcher(notifier.TemplateRenewalReminder)).Return(nil).Once()

		r := newReconciler(t, store, gateway, mail)

		report, err := r.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, report.RemindersSent)

		sub, err := store.Get(context.Background(), userID)
		require.NoError(t, err)
		assert.True(t, sub.RenewalReminderSent)

		// Second run: flag set, nothing to send.
		report, err = r.Run(context.Background())
		require.NoError(t, err)
		assert.Zero(t, report.RemindersSent)

		mail.AssertExpectations(t)
	})

	t.Run("failed delivery keeps the flag unset", func(t *testing.T) {
		t.Parallel()

		store := billing.NewMemoryStore()
		userID := seedSubscriber(t, store, func(s *billing.Subscriber) {
			require.NoError(t, s.Activate(sweepNow.AddDate(-1, 0, 5), 5, billing.PaymentDetails{
				CustomerRef: "ctm_1", InstrumentRef: "card_1", Amount: 5,
			}))
		})

		gateway := new(mockGateway)
		mail := new(mockNotifier)
		mail.On("Send", mock.Anything, mock.Anything).Return(errors.New("mailbox unreachable")).Once()

		report, err := newReconciler(t, store, gateway, mail).Run(context.Background())
		require.NoError(t, err)

		assert.Zero(t, report.RemindersSent)
		assert.Len(t, report.Errors, 1)

		sub, err := store.Get(context.Background(), userID)
		require.NoError(t, err)
		assert.False(t, sub.RenewalReminderSent, "an unsent reminder must be retried next run")
	})
}

func TestRun_Guards(t *testing.T) {
	t.Parallel()

	t.Run("overlapping runs are rejected", func(t *testing.T) {
		t.Parallel()

		store := billing.NewMemoryStore()
		seedSubscriber(t, store, func(s *billing.Subscriber) {
			require.NoError(t, s.StartTrial(sweepNow.AddDate(0, 0, -14), 14))
			s.RecordPaymentRefs(billing.PaymentDetails{CustomerRef: "ctm_1", InstrumentRef: "card_1"})
		})

		gateway := new(mockGateway)
		mail := new(mockNotifier)
		r := newReconciler(t, store, gateway, mail)

		started := make(chan struct{})
		release := make(chan struct{})
		gateway.On("ChargeStoredInstrument", mock.Anything, mock.Anything).
			Run(func(mock.Arguments) {
				close(started)
				<-release
			}).
			Return(&payment.ChargeResult{TransactionRef: "txn_1", Amount: 5}, nil).Once()
		mail.On("Send", mock.Anything, mock.Anything).Return(nil)

		done := make(chan error, 1)
		go func() {
			_, err := r.Run(context.Background())
			done <- err
		}()

		<-started
		_, err := r.Run(context.Background())
		assert.ErrorIs(t, err, reconcile.ErrRunInProgress)

		close(release)
		require.NoError(t, <-done)
	})

	t.Run("config validation", func(t *testing.T) {
		t.Parallel()

		store := billing.NewMemoryStore()
		gateway := new(mockGateway)
		mail := new(mockNotifier)

		cfg := testConfig()
		cfg.ConversionTier = 99
		_, err := reconcile.New(store, gateway, mail, testCatalog(), cfg)
		assert.ErrorIs(t, err, reconcile.ErrInvalidConfig)

		cfg = testConfig()
		cfg.Workers = 0
		_, err = reconcile.New(store, gateway, mail, testCatalog(), cfg)
		assert.ErrorIs(t, err, reconcile.ErrInvalidConfig)
	})
}
