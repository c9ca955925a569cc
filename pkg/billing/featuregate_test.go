package billing_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sproutbook/billing/pkg/billing"
)

func TestFeatures(t *testing.T) {
	t.Parallel()

	t.Run("nil record gets the base set", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, billing.BaseCapabilities, billing.Features(nil, testNow))
	})

	t.Run("fresh record gets the base set", func(t *testing.T) {
		t.Parallel()

		sub := newTestSubscriber(t)
		caps := billing.Features(sub, testNow)
		assert.Equal(t, billing.BaseCapabilities, caps)
		assert.True(t, caps.Has(billing.CapabilityWishlist))
		assert.False(t, caps.Has(billing.CapabilitySeedVault))
	})

	t.Run("running trial unlocks everything", func(t *testing.T) {
		t.Parallel()

		sub := newTestSubscriber(t)
		require.NoError(t, sub.StartTrial(testNow, 14))

		assert.Equal(t, billing.FullCapabilities, billing.Features(sub, testNow.AddDate(0, 0, 13)))
	})

	t.Run("trial past its end date is free again", func(t *testing.T) {
		t.Parallel()

		sub := newTestSubscriber(t)
		require.NoError(t, sub.StartTrial(testNow, 14))

		// Gate evaluates the clock even before a sweep flips the status.
		assert.Equal(t, billing.BaseCapabilities, billing.Features(sub, testNow.AddDate(0, 0, 14)))
	})

	t.Run("paid period unlocks everything", func(t *testing.T) {
		t.Parallel()

		sub := newTestSubscriber(t)
		require.NoError(t, sub.Activate(testNow, 5, billing.PaymentDetails{Amount: 5}))

		assert.Equal(t, billing.FullCapabilities, billing.Features(sub, testNow.AddDate(0, 6, 0)))
	})

	t.Run("paid period past its end date is free again", func(t *testing.T) {
		t.Parallel()

		sub := newTestSubscriber(t)
		require.NoError(t, sub.Activate(testNow, 5, billing.PaymentDetails{Amount: 5}))

		assert.Equal(t, billing.BaseCapabilities, billing.Features(sub, testNow.AddDate(1, 0, 0)))
	})

	t.Run("lifetime unlocks everything forever", func(t *testing.T) {
		t.Parallel()

		sub := newTestSubscriber(t)
		require.NoError(t, sub.GrantLifetime(testNow))

		assert.Equal(t, billing.FullCapabilities, billing.Features(sub, testNow.AddDate(50, 0, 0)))
	})

	t.Run("expired and cancelled are free", func(t *testing.T) {
		t.Parallel()

		for _, status := range []billing.Status{billing.StatusExpired, billing.StatusCancelled} {
			sub := newTestSubscriber(t)
			sub.Status = status
			assert.Equal(t, billing.BaseCapabilities, billing.Features(sub, testNow), "status %s", status)
		}
	})
}
