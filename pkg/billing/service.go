package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"

	"github.com/dmitrymomot/paygate/pkg/logger"
)

// Service ties providers, the catalog and the identity directory together.
// It keeps no per-request state and is safe for concurrent use.
type Service struct {
	catalog   *Catalog
	directory UserDirectory
	resolver  *Resolver
	index     CustomerIndex
	guard     EventGuard
	providers map[Provider]BillingProvider
	logger    *slog.Logger
}

// WebhookResult reports how a delivery was handled.
// Err carries a swallowed failure cause for logging and metrics.
type WebhookResult struct {
	Provider  Provider
	EventID   string
	EventName string
	Action    Action
	Outcome   Outcome
	UserID    string
	Err       error
}

// NewService creates a Service.
// Panics if catalog or directory is nil to fail fast during initialization.
func NewService(catalog *Catalog, directory UserDirectory, opts ...ServiceOption) *Service {
	if catalog == nil {
		panic("billing: Catalog is required")
	}
	if directory == nil {
		panic("billing: UserDirectory is required")
	}

	s := &Service{
		catalog:   catalog,
		directory: directory,
		providers: make(map[Provider]BillingProvider),
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}

	resolverOpts := []ResolverOption{WithResolverLogger(s.logger)}
	if s.index != nil {
		resolverOpts = append(resolverOpts, WithCustomerIndex(s.index))
	}
	s.resolver = NewResolver(directory, resolverOpts...)

	return s
}

// Catalog returns the plan catalog.
func (s *Service) Catalog() *Catalog { return s.catalog }

// Providers returns the enabled providers in a stable order.
func (s *Service) Providers() []Provider {
	out := make([]Provider, 0, len(s.providers))
	for p := range s.providers {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

// Enabled reports whether provider p is registered.
func (s *Service) Enabled(p Provider) bool {
	_, ok := s.providers[p]
	return ok
}

// HandleWebhook authenticates, decodes and reconciles one webhook delivery.
//
// The returned error is non-nil only when the delivery must be rejected:
// ErrProviderNotConfigured, authentication errors and ErrWebhookSecretMissing.
// Every other outcome, including failed remote calls, is reported through the
// result so the caller can acknowledge the delivery.
func (s *Service) HandleWebhook(ctx context.Context, provider Provider, payload []byte, header http.Header) (*WebhookResult, error) {
	p, ok := s.providers[provider]
	if !ok {
		return nil, ErrProviderNotConfigured
	}

	ev, err := p.ParseWebhook(ctx, payload, header)
	if err != nil {
		if errors.Is(err, ErrInvalidPayload) {
			s.logger.WarnContext(ctx, "authenticated webhook payload could not be decoded",
				logger.Provider(string(provider)), logger.Error(err))
			return &WebhookResult{Provider: provider, Outcome: OutcomeMalformed, Err: err}, nil
		}
		return nil, err
	}

	res := &WebhookResult{
		Provider:  provider,
		EventID:   ev.ID,
		EventName: ev.Name,
		Action:    ev.Action,
	}
	log := s.logger.With(
		logger.Provider(string(provider)),
		logger.EventName(ev.Name),
		logger.EventID(ev.ID),
		logger.Action(ev.Action.String()),
	)

	if !ev.Recognized() {
		log.DebugContext(ctx, "webhook event ignored")
		res.Outcome = OutcomeIgnored
		return res, nil
	}

	if s.guard != nil && ev.ID != "" {
		seen, err := s.guard.CheckAndMark(ctx, provider, ev.ID)
		switch {
		case err != nil:
			// Reconciliation is idempotent, so a guard outage only costs a duplicate write.
			log.WarnContext(ctx, "event guard unavailable", logger.Error(err))
		case seen:
			log.InfoContext(ctx, "duplicate webhook delivery skipped")
			res.Outcome = OutcomeDuplicate
			return res, nil
		}
	}

	s.reconcile(ctx, log, p, ev, res)

	if res.Outcome == OutcomeFailed {
		log.ErrorContext(ctx, "webhook reconciliation failed, delivery acknowledged",
			logger.UserID(res.UserID), logger.CustomerID(ev.CustomerID), logger.Error(res.Err))
		if s.guard != nil && ev.ID != "" {
			if err := s.guard.Release(ctx, provider, ev.ID); err != nil {
				log.WarnContext(ctx, "failed to release event guard", logger.Error(err))
			}
		}
	}
	return res, nil
}

func (s *Service) reconcile(ctx context.Context, log *slog.Logger, p BillingProvider, ev *Event, res *WebhookResult) {
	if enricher, ok := p.(EventEnricher); ok {
		if err := enricher.EnrichEvent(ctx, ev); err != nil {
			res.Outcome, res.Err = OutcomeFailed, err
			return
		}
	}

	// Unknown products are test or foreign purchases: no user lookup, no account creation.
	if ev.Action == ActionOrderCreated {
		if _, ok := s.catalog.Match(ev.Provider, ev.PlanID); !ok {
			log.InfoContext(ctx, "order for a plan outside the catalog ignored", logger.PlanID(ev.PlanID))
			res.Outcome = OutcomeIgnored
			return
		}
	}

	resolution, err := s.resolver.Resolve(ctx, ResolveParams{
		Provider:        ev.Provider,
		UserID:          ev.UserID,
		CustomerID:      ev.CustomerID,
		Email:           ev.Email,
		Name:            ev.BuyerName,
		CreateIfMissing: ev.Action.grantsAfterPayment(),
	})
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			log.WarnContext(ctx, "no user matches webhook event",
				logger.UserID(ev.UserID), logger.CustomerID(ev.CustomerID), logger.Email(ev.Email))
			res.Outcome, res.Err = OutcomeUnresolved, err
			return
		}
		res.Outcome, res.Err = OutcomeFailed, fmt.Errorf("%w: resolve user: %w", ErrRemoteCall, err)
		return
	}
	user := resolution.User
	res.UserID = user.ID

	current := user.Entitlement()
	next, apply := Reconcile(current, ev, s.catalog)
	switch {
	case !apply:
		res.Outcome = OutcomeIgnored
		return
	case next.Equal(current):
		res.Outcome = OutcomeUnchanged
	default:
		public, private := next.Patch()
		if _, err := s.directory.UpdateMetadata(ctx, user.ID, public, private); err != nil {
			res.Outcome, res.Err = OutcomeFailed, fmt.Errorf("%w: update metadata: %w", ErrRemoteCall, err)
			return
		}
		res.Outcome = OutcomeApplied
		log.InfoContext(ctx, "entitlement updated",
			logger.UserID(user.ID),
			slog.String("matched_by", resolution.MatchedBy),
			slog.Bool("has_access", next.HasAccess),
			slog.String("status", string(next.Status)),
		)
	}

	if s.index != nil && ev.CustomerID != "" {
		if err := s.index.LinkCustomer(ctx, ev.Provider, ev.CustomerID, user.ID); err != nil {
			log.WarnContext(ctx, "failed to link customer", logger.CustomerID(ev.CustomerID), logger.Error(err))
		}
	}
}

// CreateCheckoutLink validates the request against the catalog and asks the
// provider for a hosted checkout URL. PlanID may be a catalog plan ID or the
// provider's own identifier.
func (s *Service) CreateCheckoutLink(ctx context.Context, provider Provider, req CheckoutRequest) (*CheckoutLink, error) {
	p, ok := s.providers[provider]
	if !ok {
		return nil, ErrProviderNotConfigured
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	plan, ok := s.catalog.Lookup(provider, req.PlanID)
	if !ok {
		return nil, ErrPlanNotFound
	}
	req.PlanID = plan.VendorID(provider)
	if req.Mode == "" {
		req.Mode = CheckoutModePayment
		if plan.Interval.IsRecurring() {
			req.Mode = CheckoutModeSubscription
		}
	}

	return p.CreateCheckoutLink(ctx, req)
}

// CreatePortalLink asks the provider for a customer portal URL.
func (s *Service) CreatePortalLink(ctx context.Context, provider Provider, req PortalRequest) (*PortalLink, error) {
	p, ok := s.providers[provider]
	if !ok {
		return nil, ErrProviderNotConfigured
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return p.CreatePortalLink(ctx, req)
}

// GetUser returns a user from the identity directory.
func (s *Service) GetUser(ctx context.Context, userID string) (*User, error) {
	return s.directory.GetUser(ctx, userID)
}
