// Package metrics exposes Prometheus collectors for webhook outcomes,
// checkout and portal link creation, and the identity circuit breaker.
//
// Webhook failures are acknowledged to the vendor, so the
// paygate_webhook_events_total{outcome="failed"} series is how they surface.
// A nil *Recorder is valid and records nothing.
package metrics
