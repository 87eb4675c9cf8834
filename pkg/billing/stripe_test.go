package billing_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/dmitrymomot/paygate/pkg/billing"
)

const stripeSecret = "whsec_stripe_test"

func stripeHeader(t *testing.T, payload []byte, secret string) http.Header {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
		Scheme:    "v1",
	})
	h := http.Header{}
	h.Set(billing.HeaderStripeSignature, signed.Header)
	return h
}

func TestStripeCheckout(t *testing.T) {
	t.Parallel()

	t.Run("propagates the user into session and subscription metadata", func(t *testing.T) {
		t.Parallel()
		var got *stripe.CheckoutSessionParams
		p := billing.NewStripeProvider(billing.StripeConfig{}, billing.WithStripeAPI(billing.StripeAPI{
			CreateCheckoutSession: func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
				got = params
				return &stripe.CheckoutSession{ID: "cs_1", URL: "https://checkout.stripe.com/cs_1", ExpiresAt: 1_760_000_000}, nil
			},
		}))

		link, err := p.CreateCheckoutLink(context.Background(), billing.CheckoutRequest{
			PlanID:     "price_pro",
			SuccessURL: "https://app.example.com/ok",
			CancelURL:  "https://app.example.com/cancel",
			Mode:       billing.CheckoutModeSubscription,
			UserID:     "user_1",
			Email:      "ada@example.com",
		})

		require.NoError(t, err)
		assert.Equal(t, "cs_1", link.SessionID)
		assert.Equal(t, time.Unix(1_760_000_000, 0).UTC(), link.ExpiresAt)

		require.NotNil(t, got)
		assert.Equal(t, "subscription", *got.Mode)
		assert.Equal(t, "price_pro", *got.LineItems[0].Price)
		assert.Equal(t, "user_1", *got.ClientReferenceID)
		assert.Equal(t, "ada@example.com", *got.CustomerEmail)
		assert.Nil(t, got.Customer)
		assert.Equal(t, "user_1", got.Metadata["userId"])
		require.NotNil(t, got.SubscriptionData)
		assert.Equal(t, "user_1", got.SubscriptionData.Metadata["userId"])
	})

	t.Run("existing customer wins over email", func(t *testing.T) {
		t.Parallel()
		var got *stripe.CheckoutSessionParams
		p := billing.NewStripeProvider(billing.StripeConfig{}, billing.WithStripeAPI(billing.StripeAPI{
			CreateCheckoutSession: func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
				got = params
				return &stripe.CheckoutSession{ID: "cs_2", URL: "https://checkout.stripe.com/cs_2"}, nil
			},
		}))

		_, err := p.CreateCheckoutLink(context.Background(), billing.CheckoutRequest{
			PlanID:     "price_lifetime",
			SuccessURL: "https://app.example.com/ok",
			CancelURL:  "https://app.example.com/cancel",
			Mode:       billing.CheckoutModePayment,
			CustomerID: "cus_1",
			Email:      "ada@example.com",
		})

		require.NoError(t, err)
		assert.Equal(t, "cus_1", *got.Customer)
		assert.Nil(t, got.CustomerEmail)
		assert.Nil(t, got.SubscriptionData)
	})

	t.Run("cancel URL is required and checked locally", func(t *testing.T) {
		t.Parallel()
		calls := 0
		p := billing.NewStripeProvider(billing.StripeConfig{}, billing.WithStripeAPI(billing.StripeAPI{
			CreateCheckoutSession: func(*stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
				calls++
				return &stripe.CheckoutSession{}, nil
			},
		}))

		_, err := p.CreateCheckoutLink(context.Background(), billing.CheckoutRequest{
			PlanID:     "price_pro",
			SuccessURL: "https://app.example.com/ok",
		})

		assert.ErrorIs(t, err, billing.ErrMissingCancelURL)
		assert.Zero(t, calls)
	})

	t.Run("without a secret key", func(t *testing.T) {
		t.Parallel()
		p := billing.NewStripeProvider(billing.StripeConfig{WebhookSecret: stripeSecret})

		_, err := p.CreateCheckoutLink(context.Background(), billing.CheckoutRequest{
			PlanID:     "price_pro",
			SuccessURL: "https://app.example.com/ok",
			CancelURL:  "https://app.example.com/cancel",
		})

		assert.ErrorIs(t, err, billing.ErrMissingAPIKey)
	})

	t.Run("vendor error", func(t *testing.T) {
		t.Parallel()
		p := billing.NewStripeProvider(billing.StripeConfig{}, billing.WithStripeAPI(billing.StripeAPI{
			CreatePortalSession: func(*stripe.BillingPortalSessionParams) (*stripe.BillingPortalSession, error) {
				return nil, errors.New("no such customer")
			},
		}))

		_, err := p.CreatePortalLink(context.Background(), billing.PortalRequest{
			CustomerID: "cus_gone",
			ReturnURL:  "https://app.example.com",
		})

		assert.ErrorIs(t, err, billing.ErrRemoteCall)
	})
}

func TestStripeParseWebhook(t *testing.T) {
	t.Parallel()

	p := billing.NewStripeProvider(billing.StripeConfig{WebhookSecret: stripeSecret})

	t.Run("completed checkout session", func(t *testing.T) {
		t.Parallel()
		payload := []byte(`{
			"id": "evt_1",
			"object": "event",
			"type": "checkout.session.completed",
			"data": {"object": {
				"id": "cs_1",
				"object": "checkout.session",
				"customer": "cus_1",
				"client_reference_id": "user_1",
				"payment_status": "paid",
				"subscription": null,
				"customer_details": {"email": "ada@example.com", "name": "Ada Lovelace"}
			}}
		}`)

		ev, err := p.ParseWebhook(context.Background(), payload, stripeHeader(t, payload, stripeSecret))

		require.NoError(t, err)
		assert.Equal(t, "evt_1", ev.ID)
		assert.Equal(t, billing.ActionOrderCreated, ev.Action)
		assert.Equal(t, "cs_1", ev.ObjectID)
		assert.Equal(t, "user_1", ev.UserID)
		assert.Equal(t, "cus_1", ev.CustomerID)
		assert.Equal(t, "ada@example.com", ev.Email)
		assert.Empty(t, ev.PlanID, "filled by enrichment")
	})

	t.Run("unpaid session does not grant", func(t *testing.T) {
		t.Parallel()
		payload := []byte(`{"id":"evt_2","object":"event","type":"checkout.session.completed",
			"data":{"object":{"id":"cs_2","object":"checkout.session","payment_status":"unpaid"}}}`)

		ev, err := p.ParseWebhook(context.Background(), payload, stripeHeader(t, payload, stripeSecret))

		require.NoError(t, err)
		assert.False(t, ev.Recognized())
	})

	t.Run("delayed payment settles the session", func(t *testing.T) {
		t.Parallel()
		payload := []byte(`{"id":"evt_3","object":"event","type":"checkout.session.async_payment_succeeded",
			"data":{"object":{"id":"cs_2","object":"checkout.session","customer":"cus_2",
			"client_reference_id":"user_2","payment_status":"paid"}}}`)

		ev, err := p.ParseWebhook(context.Background(), payload, stripeHeader(t, payload, stripeSecret))

		require.NoError(t, err)
		assert.Equal(t, billing.ActionOrderCreated, ev.Action)
		assert.Equal(t, "cs_2", ev.ObjectID)
		assert.Equal(t, "user_2", ev.UserID)
		assert.Equal(t, "cus_2", ev.CustomerID)
	})

	t.Run("subscription with expanded customer", func(t *testing.T) {
		t.Parallel()
		payload := []byte(`{
			"id": "evt_3",
			"object": "event",
			"type": "customer.subscription.updated",
			"data": {"object": {
				"id": "sub_1",
				"object": "subscription",
				"customer": {"id": "cus_1", "object": "customer"},
				"status": "past_due",
				"metadata": {"userId": "user_1"},
				"cancel_at": 1760000000,
				"items": {"data": [{"price": {"id": "price_pro"}, "current_period_end": 1762000000}]}
			}}
		}`)

		ev, err := p.ParseWebhook(context.Background(), payload, stripeHeader(t, payload, stripeSecret))

		require.NoError(t, err)
		assert.Equal(t, billing.ActionSubscriptionUpdated, ev.Action)
		assert.Equal(t, "cus_1", ev.CustomerID)
		assert.Equal(t, "sub_1", ev.SubscriptionID)
		assert.Equal(t, "price_pro", ev.PlanID)
		assert.Equal(t, billing.StatusPastDue, ev.Status)
		assert.Equal(t, time.Unix(1_762_000_000, 0).UTC(), ev.RenewsAt)
		assert.Equal(t, time.Unix(1_760_000_000, 0).UTC(), ev.EndsAt)
		assert.Equal(t, "user_1", ev.UserID)
	})

	t.Run("invoice reads subscription metadata from its parent", func(t *testing.T) {
		t.Parallel()
		payload := []byte(`{
			"id": "evt_4",
			"object": "event",
			"type": "invoice.paid",
			"data": {"object": {
				"id": "in_1",
				"object": "invoice",
				"customer": "cus_1",
				"customer_email": "ada@example.com",
				"parent": {"subscription_details": {"subscription": "sub_1", "metadata": {"userId": "user_1"}}},
				"lines": {"data": [{"pricing": {"price_details": {"price": "price_pro"}}, "period": {"end": 1762000000}}]}
			}}
		}`)

		ev, err := p.ParseWebhook(context.Background(), payload, stripeHeader(t, payload, stripeSecret))

		require.NoError(t, err)
		assert.Equal(t, billing.ActionPaymentSucceeded, ev.Action)
		assert.Equal(t, "sub_1", ev.SubscriptionID)
		assert.Equal(t, "user_1", ev.UserID)
		assert.Equal(t, "price_pro", ev.PlanID)
	})

	t.Run("refunded charge", func(t *testing.T) {
		t.Parallel()
		payload := []byte(`{
			"id": "evt_5",
			"object": "event",
			"type": "charge.refunded",
			"data": {"object": {
				"id": "ch_1",
				"object": "charge",
				"customer": "cus_1",
				"billing_details": {"email": "ada@example.com"},
				"payment_method_details": {"card": {"brand": "visa", "last4": "4242"}}
			}}
		}`)

		ev, err := p.ParseWebhook(context.Background(), payload, stripeHeader(t, payload, stripeSecret))

		require.NoError(t, err)
		assert.Equal(t, billing.ActionRefund, ev.Action)
		assert.Equal(t, "visa", ev.CardBrand)
	})

	t.Run("signature from another secret", func(t *testing.T) {
		t.Parallel()
		payload := []byte(`{"id":"evt_6","object":"event","type":"invoice.paid","data":{"object":{"object":"invoice"}}}`)

		_, err := p.ParseWebhook(context.Background(), payload, stripeHeader(t, payload, "whsec_other"))

		assert.ErrorIs(t, err, billing.ErrInvalidSignature)
	})

	t.Run("missing header", func(t *testing.T) {
		t.Parallel()
		_, err := p.ParseWebhook(context.Background(), []byte(`{}`), http.Header{})
		assert.ErrorIs(t, err, billing.ErrMissingSignature)
	})

	t.Run("missing secret", func(t *testing.T) {
		t.Parallel()
		unconfigured := billing.NewStripeProvider(billing.StripeConfig{})
		_, err := unconfigured.ParseWebhook(context.Background(), []byte(`{}`), http.Header{})
		assert.ErrorIs(t, err, billing.ErrWebhookSecretMissing)
	})
}

func TestStripeEnrichEvent(t *testing.T) {
	t.Parallel()

	t.Run("fetches the purchased price", func(t *testing.T) {
		t.Parallel()
		var expanded []*string
		p := billing.NewStripeProvider(billing.StripeConfig{}, billing.WithStripeAPI(billing.StripeAPI{
			GetCheckoutSession: func(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
				assert.Equal(t, "cs_1", id)
				expanded = params.Expand
				return &stripe.CheckoutSession{LineItems: &stripe.LineItemList{
					Data: []*stripe.LineItem{{Price: &stripe.Price{ID: "price_lifetime"}}},
				}}, nil
			},
		}))
		ev := &billing.Event{Provider: billing.ProviderStripe, Action: billing.ActionOrderCreated, ObjectID: "cs_1"}

		require.NoError(t, p.EnrichEvent(context.Background(), ev))

		assert.Equal(t, "price_lifetime", ev.PlanID)
		require.Len(t, expanded, 1)
		assert.Equal(t, "line_items", *expanded[0])
	})

	t.Run("other events need no call", func(t *testing.T) {
		t.Parallel()
		p := billing.NewStripeProvider(billing.StripeConfig{})
		ev := &billing.Event{Provider: billing.ProviderStripe, Action: billing.ActionSubscriptionUpdated, ObjectID: "sub_1"}

		assert.NoError(t, p.EnrichEvent(context.Background(), ev))
	})
}

func TestStripeDelayedPaymentGrantsAccess(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	p := billing.NewStripeProvider(billing.StripeConfig{WebhookSecret: stripeSecret}, billing.WithStripeAPI(billing.StripeAPI{
		GetCheckoutSession: func(id string, _ *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
			assert.Equal(t, "cs_bank", id)
			return &stripe.CheckoutSession{LineItems: &stripe.LineItemList{
				Data: []*stripe.LineItem{{Price: &stripe.Price{ID: "price_lifetime"}}},
			}}, nil
		},
	}))
	dir := billing.NewMemoryDirectory(&billing.User{ID: "user_1", Email: "ada@example.com"})
	svc := billing.NewService(testCatalog(t), dir, billing.WithProvider(p))

	deliver := func(id, eventType, paymentStatus string) *billing.WebhookResult {
		payload := []byte(`{"id":"` + id + `","object":"event","type":"` + eventType + `",
			"data":{"object":{"id":"cs_bank","object":"checkout.session","customer":"cus_1",
			"client_reference_id":"user_1","payment_status":"` + paymentStatus + `"}}}`)
		res, err := svc.HandleWebhook(ctx, billing.ProviderStripe, payload, stripeHeader(t, payload, stripeSecret))
		require.NoError(t, err)
		return res
	}

	res := deliver("evt_completed", "checkout.session.completed", "unpaid")
	assert.NotEqual(t, billing.OutcomeApplied, res.Outcome)
	u, err := dir.GetUser(ctx, "user_1")
	require.NoError(t, err)
	assert.False(t, u.Entitlement().HasAccess)

	res = deliver("evt_settled", "checkout.session.async_payment_succeeded", "paid")
	assert.Equal(t, billing.OutcomeApplied, res.Outcome)
	assert.Equal(t, billing.ActionOrderCreated, res.Action)
	u, err = dir.GetUser(ctx, "user_1")
	require.NoError(t, err)
	assert.True(t, u.Entitlement().HasAccess)
	assert.Equal(t, "Lifetime", u.Entitlement().PlanName)
	assert.Equal(t, "cus_1", u.Entitlement().CustomerID(billing.ProviderStripe))
}
