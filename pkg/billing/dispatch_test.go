package billing_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/paygate/pkg/billing"
)

func TestDispatch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		provider billing.Provider
		name     string
		want     billing.Action
	}{
		{billing.ProviderLemonSqueezy, "order_created", billing.ActionOrderCreated},
		{billing.ProviderLemonSqueezy, "subscription_unpaused", billing.ActionSubscriptionResumed},
		{billing.ProviderLemonSqueezy, "subscription_payment_refunded", billing.ActionRefund},
		{billing.ProviderStripe, "checkout.session.completed", billing.ActionOrderCreated},
		{billing.ProviderStripe, "checkout.session.async_payment_succeeded", billing.ActionOrderCreated},
		{billing.ProviderStripe, "checkout.session.async_payment_failed", billing.ActionNone},
		{billing.ProviderStripe, "customer.subscription.deleted", billing.ActionSubscriptionCancelled},
		{billing.ProviderStripe, "invoice.payment_failed", billing.ActionPaymentFailed},
		{billing.ProviderPolar, "subscription.revoked", billing.ActionSubscriptionExpired},
		{billing.ProviderPolar, "order.refunded", billing.ActionRefund},
		{billing.ProviderPaddle, "transaction.completed", billing.ActionOrderCreated},
		{billing.ProviderPaddle, "adjustment.created", billing.ActionRefund},
		{billing.ProviderStripe, "order_created", billing.ActionNone},
		{billing.ProviderStripe, "customer.created", billing.ActionNone},
		{billing.ProviderLemonSqueezy, "ORDER_CREATED", billing.ActionNone},
		{billing.Provider("paypal"), "order_created", billing.ActionNone},
	}

	for _, tt := range tests {
		t.Run(string(tt.provider)+"/"+tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, billing.Dispatch(tt.provider, tt.name))
		})
	}
}

func TestEventNames(t *testing.T) {
	t.Parallel()

	for _, p := range billing.Providers {
		names := billing.EventNames(p)
		assert.NotEmpty(t, names, p)
		for _, name := range names {
			assert.NotEqual(t, billing.ActionNone, billing.Dispatch(p, name), "%s/%s", p, name)
		}
	}
	assert.Empty(t, billing.EventNames("paypal"))
}

func TestParseProvider(t *testing.T) {
	t.Parallel()

	p, ok := billing.ParseProvider(" LemonSqueezy ")
	assert.True(t, ok)
	assert.Equal(t, billing.ProviderLemonSqueezy, p)

	_, ok = billing.ParseProvider("paypal")
	assert.False(t, ok)
}

func TestParseStatus(t *testing.T) {
	t.Parallel()

	assert.Equal(t, billing.StatusActive, billing.ParseStatus("active"))
	assert.Equal(t, billing.StatusOnTrial, billing.ParseStatus("trialing"))
	assert.Equal(t, billing.StatusCancelled, billing.ParseStatus("canceled"))
	assert.Equal(t, billing.StatusExpired, billing.ParseStatus("something_new"), "unknown statuses fail closed")
	assert.Empty(t, billing.ParseStatus(""))
	assert.True(t, billing.StatusOnTrial.IsActive())
	assert.False(t, billing.StatusPastDue.IsActive())
}

func TestMoneyString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "49.00 USD", billing.Money{Amount: 4900, Currency: "usd"}.String())
	assert.Equal(t, "0.05 EUR", billing.Money{Amount: 5, Currency: "EUR"}.String())
	assert.Equal(t, "-10.99 USD", billing.Money{Amount: -1099, Currency: "USD"}.String())
}
