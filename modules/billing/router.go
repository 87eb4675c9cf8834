package billing

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	core "github.com/dmitrymomot/paygate/pkg/billing"
	"github.com/dmitrymomot/paygate/pkg/email"
	"github.com/dmitrymomot/paygate/pkg/identity"
	"github.com/dmitrymomot/paygate/pkg/metrics"
)

// ProcessingMode selects between hosted provider checkout and manual
// payment handling.
type ProcessingMode string

const (
	ProcessingAuto   ProcessingMode = "auto"
	ProcessingManual ProcessingMode = "manual"
)

// RouterOptions configures the billing module.
type RouterOptions struct {
	Service *core.Service
	// Verifier authenticates session tokens; without it every request is anonymous.
	Verifier identity.TokenVerifier
	Metrics  *metrics.Recorder
	Logger   *slog.Logger

	Processing ProcessingMode
	// Mailer and AdminEmail serve manual checkout notifications.
	Mailer     email.EmailSender
	AdminEmail string
}

// Router creates the billing module router.
//
// Example:
//
//	r := chi.NewRouter()
//	r.Mount("/billing", billing.Router(billing.RouterOptions{
//	    Service:  svc,
//	    Verifier: verifier,
//	    Metrics:  rec,
//	}))
func Router(opts RouterOptions) chi.Router {
	if opts.Service == nil {
		panic("billing module: Service is required")
	}
	h := &handler{
		svc:        opts.Service,
		metrics:    opts.Metrics,
		logger:     opts.Logger,
		mailer:     opts.Mailer,
		adminEmail: opts.AdminEmail,
	}
	if h.logger == nil {
		h.logger = slog.New(slog.DiscardHandler)
	}

	r := chi.NewRouter()

	// Webhooks authenticate by signature, never by session.
	r.Post("/webhooks/{provider}", h.webhook)
	r.Get("/plans", h.plans)

	r.Group(func(r chi.Router) {
		r.Use(identity.Authenticate(opts.Verifier))

		if opts.Processing == ProcessingManual {
			r.With(identity.RequireSession).Post("/manual-checkout/notify", h.manualCheckout)
		} else {
			r.Post("/{provider}/checkout", h.checkout)
		}

		r.Group(func(r chi.Router) {
			r.Use(identity.RequireSession)
			r.Get("/me", h.me)
			r.Post("/{provider}/portal", h.portal)
		})
	})

	return r
}

type handler struct {
	svc        *core.Service
	metrics    *metrics.Recorder
	logger     *slog.Logger
	mailer     email.EmailSender
	adminEmail string
}

// provider resolves the {provider} URL parameter to an enabled provider.
func (h *handler) provider(w http.ResponseWriter, r *http.Request) (core.Provider, bool) {
	p, ok := core.ParseProvider(chi.URLParam(r, "provider"))
	if !ok || !h.svc.Enabled(p) {
		writeError(w, r, http.StatusNotFound, "unknown or disabled payment provider")
		return "", false
	}
	return p, true
}
