package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrymomot/paygate/pkg/billing"
)

const namespace = "paygate"

// Recorder holds the paygate collectors.
type Recorder struct {
	gatherer prometheus.Gatherer

	WebhookEvents     *prometheus.CounterVec
	WebhookRejections *prometheus.CounterVec
	WebhookDuration   *prometheus.HistogramVec
	CheckoutLinks     *prometheus.CounterVec
	PortalLinks       *prometheus.CounterVec
	BreakerState      *prometheus.GaugeVec
}

// New registers the collectors with reg. A nil reg uses a fresh registry,
// which keeps tests independent of the global one.
func New(reg *prometheus.Registry) *Recorder {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Recorder{
		gatherer: reg,

		WebhookEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "events_total",
			Help:      "Authenticated webhook deliveries by provider, action and outcome.",
		}, []string{"provider", "action", "outcome"}),

		WebhookRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "rejections_total",
			Help:      "Webhook deliveries rejected before processing, by reason.",
		}, []string{"provider", "reason"}),

		WebhookDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "duration_seconds",
			Help:      "Webhook handling latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),

		CheckoutLinks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "checkout",
			Name:      "links_total",
			Help:      "Checkout link requests by provider and result.",
		}, []string{"provider", "result"}),

		PortalLinks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "portal",
			Name:      "links_total",
			Help:      "Customer portal link requests by provider and result.",
		}, []string{"provider", "result"}),

		BreakerState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "identity",
			Name:      "breaker_state",
			Help:      "Identity API circuit breaker state (0 closed, 1 half-open, 2 open).",
		}, []string{"name"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}

// ObserveWebhook records a processed delivery.
func (r *Recorder) ObserveWebhook(res *billing.WebhookResult, took time.Duration) {
	if r == nil || res == nil {
		return
	}
	provider := string(res.Provider)
	r.WebhookEvents.WithLabelValues(provider, res.Action.String(), string(res.Outcome)).Inc()
	r.WebhookDuration.WithLabelValues(provider).Observe(took.Seconds())
}

// ObserveRejection records a delivery refused with reason, such as
// "signature" or "config".
func (r *Recorder) ObserveRejection(provider billing.Provider, reason string) {
	if r == nil {
		return
	}
	r.WebhookRejections.WithLabelValues(string(provider), reason).Inc()
}

// ObserveCheckout records a checkout link attempt.
func (r *Recorder) ObserveCheckout(provider billing.Provider, err error) {
	if r == nil {
		return
	}
	r.CheckoutLinks.WithLabelValues(string(provider), result(err)).Inc()
}

// ObservePortal records a portal link attempt.
func (r *Recorder) ObservePortal(provider billing.Provider, err error) {
	if r == nil {
		return
	}
	r.PortalLinks.WithLabelValues(string(provider), result(err)).Inc()
}

// SetBreakerState records the numeric state of a named circuit breaker.
func (r *Recorder) SetBreakerState(name string, state int) {
	if r == nil {
		return
	}
	r.BreakerState.WithLabelValues(name).Set(float64(state))
}

func result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case billing.IsValidationError(err):
		return "invalid"
	default:
		return "error"
	}
}
