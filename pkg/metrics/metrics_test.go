package metrics_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/paygate/pkg/billing"
	"github.com/dmitrymomot/paygate/pkg/metrics"
)

func TestRecorder(t *testing.T) {
	t.Parallel()

	rec := metrics.New(nil)

	rec.ObserveWebhook(&billing.WebhookResult{
		Provider: billing.ProviderStripe,
		Action:   billing.ActionOrderCreated,
		Outcome:  billing.OutcomeFailed,
	}, 20*time.Millisecond)
	rec.ObserveRejection(billing.ProviderPolar, "signature")
	rec.ObserveCheckout(billing.ProviderStripe, nil)
	rec.ObserveCheckout(billing.ProviderStripe, billing.ErrMissingPlanID)
	rec.ObservePortal(billing.ProviderPaddle, errors.New("boom"))
	rec.SetBreakerState("clerk", 2)

	assert.InDelta(t, 1, testutil.ToFloat64(rec.WebhookEvents.WithLabelValues("stripe", "order_created", "failed")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(rec.WebhookRejections.WithLabelValues("polar", "signature")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(rec.CheckoutLinks.WithLabelValues("stripe", "ok")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(rec.CheckoutLinks.WithLabelValues("stripe", "invalid")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(rec.PortalLinks.WithLabelValues("paddle", "error")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(rec.BreakerState.WithLabelValues("clerk")), 0)

	w := httptest.NewRecorder()
	rec.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "paygate_webhook_events_total")
}

func TestNilRecorder(t *testing.T) {
	t.Parallel()

	var rec *metrics.Recorder
	assert.NotPanics(t, func() {
		rec.ObserveWebhook(&billing.WebhookResult{}, time.Second)
		rec.ObserveRejection(billing.ProviderStripe, "signature")
		rec.ObserveCheckout(billing.ProviderStripe, nil)
		rec.ObservePortal(billing.ProviderStripe, nil)
		rec.SetBreakerState("clerk", 0)
	})
}
