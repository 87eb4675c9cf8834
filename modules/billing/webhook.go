package billing

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	core "github.com/dmitrymomot/paygate/pkg/billing"
	"github.com/dmitrymomot/paygate/pkg/logger"
)

// Vendors sign the raw body, so it is read in full before any decoding.
const maxWebhookBody = 1 << 20

type webhookResponse struct {
	Received bool `json:"received"`
}

// webhook authenticates and reconciles one provider delivery. Every
// authenticated delivery is acknowledged with 200, including ones whose
// processing failed: vendors retry non-2xx responses and reconciliation
// failures are not fixed by a retry storm.
func (h *handler) webhook(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	provider, ok := core.ParseProvider(chi.URLParam(r, "provider"))
	if !ok {
		writeError(w, r, http.StatusNotFound, "unknown payment provider")
		return
	}
	log := h.logger.With(logger.Provider(string(provider)))

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, http.StatusRequestEntityTooLarge, "payload too large")
			return
		}
		writeError(w, r, http.StatusBadRequest, "failed to read body")
		return
	}

	res, err := h.svc.HandleWebhook(ctx, provider, payload, r.Header)
	if err != nil {
		status, msg := errorStatus(r, err)
		switch {
		case errors.Is(err, core.ErrProviderNotConfigured):
			h.metrics.ObserveRejection(provider, "disabled")
		case core.IsAuthenticationError(err):
			h.metrics.ObserveRejection(provider, "signature")
			log.WarnContext(ctx, "webhook rejected", logger.Error(err))
		case errors.Is(err, core.ErrWebhookSecretMissing):
			h.metrics.ObserveRejection(provider, "config")
			log.ErrorContext(ctx, "webhook secret is not configured", logger.Error(err))
		default:
			h.metrics.ObserveRejection(provider, "error")
			log.ErrorContext(ctx, "webhook handling failed", logger.Error(err))
		}
		writeError(w, r, status, msg)
		return
	}

	h.metrics.ObserveWebhook(res, time.Since(start))
	writeJSON(w, http.StatusOK, webhookResponse{Received: true})
}
