// Package billing reconciles payment provider webhooks into a per-user
// entitlement record stored as identity-provider metadata.
//
// Four providers are supported: Stripe, Lemon Squeezy, Polar and Paddle. Each
// one authenticates its webhook signature before anything is decoded, maps the
// vendor event name onto an Action and fills a provider-neutral Event. The
// Service then resolves the user the event belongs to, computes the next
// entitlement with Reconcile and writes it back when it changed.
//
// # Architecture
//
//   - BillingProvider: checkout links, portal links and webhook parsing for one vendor
//   - Catalog: validated plan list, indexed by each vendor's plan identifier
//   - Resolver: finds the user by user ID, customer ID, email, then creates one for orders
//   - Reconcile: pure state transition from (stored record, event) to the next record
//   - UserDirectory: the identity provider's user store
//   - CustomerIndex: optional provider customer ID to user ID lookup table
//   - EventGuard: optional duplicate-delivery guard keyed by vendor event ID
//
// A delivery moves through HandleWebhook in a fixed order: verify, dispatch,
// guard, enrich, resolve, reconcile, write, link. Nothing is looked up for an
// event whose name is not in the provider's vocabulary, and an order for a
// plan outside the catalog never creates an account.
//
// # Providers
//
// Every provider is configured from the environment and registered with
// WithProvider. A provider with only its webhook secret set can receive
// webhooks but cannot create links.
//
//   - Stripe: Stripe-Signature checked by the stripe-go webhook package.
//     STRIPE_SECRET_KEY, STRIPE_WEBHOOK_SECRET.
//   - Lemon Squeezy: X-Signature, hex HMAC-SHA256 of the raw body.
//     LEMONSQUEEZY_API_KEY, LEMONSQUEEZY_STORE_ID, LEMONSQUEEZY_WEBHOOK_SECRET.
//   - Polar: Standard Webhooks (webhook-id, webhook-timestamp, webhook-signature).
//     POLAR_ACCESS_TOKEN, POLAR_WEBHOOK_SECRET, POLAR_SANDBOX.
//   - Paddle: Paddle-Signature checked by the paddle-go-sdk verifier.
//     PADDLE_API_KEY, PADDLE_WEBHOOK_SECRET, PADDLE_ENVIRONMENT.
//
// Stripe's checkout.session.completed carries no line items, so the Stripe
// provider implements EventEnricher and fetches the purchased price before
// reconciliation. Sessions paid by a delayed method complete unpaid and grant
// access on checkout.session.async_payment_succeeded instead.
//
// # Plan Catalog
//
// Plans are loaded once at startup from a PlansListSource. NewFilePlanSource
// reads YAML:
//
//	plans:
//	  - id: pro
//	    name: Pro
//	    interval: month
//	    price: {amount: 2900, currency: USD}
//	    providers:
//	      stripe: price_pro_monthly
//	      lemonsqueezy: "123457"
//
// Catalog.Lookup accepts either the catalog plan ID or a vendor identifier, so
// checkout requests may use whichever the client knows. Vendor identifiers are
// hidden from the JSON form of a Plan.
//
// # Entitlement Record
//
// Public metadata carries only hasAccess, planName and subscriptionStatus.
// Provider linkage (customer and subscription IDs, renewal dates, card
// descriptors) lives in private metadata under provider-prefixed keys such as
// stripeCustomerId or lemonSqueezyRenewsAt, so customer IDs never reach the
// browser. Writes are shallow-merge patches; keys the package does not own are
// never touched.
//
// # User Resolution
//
// The Resolver tries, in order: the user ID the checkout carried, the
// CustomerIndex, a paged scan of the directory for stored linkage (which
// backfills the index on a hit), and the buyer's email. Only an order may
// create a placeholder account when all of them miss; subscription events for
// unknown buyers come back as OutcomeUnresolved.
//
// # Webhook Outcomes
//
// HandleWebhook returns an error only for deliveries that must be rejected: an
// unconfigured provider, a failed signature check or a missing webhook secret.
// Everything else, including unknown events, unresolvable users and failed
// remote calls, is reported through WebhookResult so the caller can acknowledge
// the delivery and vendors do not retry it forever:
//
//	res, err := svc.HandleWebhook(ctx, billing.ProviderStripe, payload, r.Header)
//	switch {
//	case errors.Is(err, billing.ErrProviderNotConfigured):
//		// 404
//	case billing.IsAuthenticationError(err):
//		// 400
//	case err != nil:
//		// 500
//	default:
//		log.InfoContext(ctx, "webhook handled", logger.Action(string(res.Action)))
//	}
//
// A failed delivery releases its EventGuard mark, so a redelivery from the
// vendor dashboard is processed again.
//
// # Quick Start
//
//	catalog, err := billing.NewCatalog(ctx, billing.NewFilePlanSource("plans.yaml"))
//	if err != nil {
//		return err
//	}
//
//	svc := billing.NewService(catalog, directory,
//		billing.WithProvider(billing.NewStripeProvider(cfg.Stripe)),
//		billing.WithProvider(billing.NewLemonSqueezyProvider(cfg.LemonSqueezy)),
//		billing.WithIndex(customerIndex),
//		billing.WithEventGuard(guard),
//		billing.WithLogger(log),
//	)
//
//	link, err := svc.CreateCheckoutLink(ctx, billing.ProviderStripe, billing.CheckoutRequest{
//		PlanID:     "pro",
//		UserID:     userID,
//		SuccessURL: "https://app.example.com/dashboard",
//		CancelURL:  "https://app.example.com/pricing",
//	})
//
// # Error Handling
//
// All sentinel errors can be matched with errors.Is. IsValidationError groups
// the request errors raised before any remote call (ErrMissingPlanID,
// ErrPlanNotFound, ErrInvalidMode and friends); IsAuthenticationError groups
// ErrInvalidSignature and ErrMissingSignature. Vendor failures wrap
// ErrRemoteCall.
//
// # Testing
//
// MemoryDirectory, MemoryCustomerIndex and MemoryEventGuard are in-process
// implementations for tests and local development. StripeAPI replaces the
// Stripe client functions, and the Lemon Squeezy and Polar providers accept an
// HTTP client and base URL that tests point at an httptest server.
package billing
