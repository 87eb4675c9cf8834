package billing

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"
)

// HeaderStripeSignature carries Stripe's timestamped signature.
const HeaderStripeSignature = "Stripe-Signature"

// StripeConfig holds configuration for the Stripe provider.
type StripeConfig struct {
	SecretKey     string `env:"STRIPE_SECRET_KEY"`
	WebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`
}

// Enabled reports whether any Stripe credential is configured.
func (c StripeConfig) Enabled() bool {
	return c.SecretKey != "" || c.WebhookSecret != ""
}

// StripeAPI is the slice of the Stripe API the provider calls.
// Fields are swappable so tests can count and fake remote calls.
type StripeAPI struct {
	CreateCheckoutSession func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	GetCheckoutSession    func(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	CreatePortalSession   func(params *stripe.BillingPortalSessionParams) (*stripe.BillingPortalSession, error)
}

// StripeProvider implements BillingProvider for Stripe.
type StripeProvider struct {
	config StripeConfig
	api    StripeAPI
}

// StripeOption configures a StripeProvider.
type StripeOption func(*StripeProvider)

// WithStripeAPI replaces the Stripe API calls.
func WithStripeAPI(api StripeAPI) StripeOption {
	return func(p *StripeProvider) {
		p.api = api
	}
}

// NewStripeProvider creates a Stripe provider bound to its own API client
// rather than the SDK's package-level key.
func NewStripeProvider(config StripeConfig, opts ...StripeOption) *StripeProvider {
	p := &StripeProvider{config: config}
	if config.SecretKey != "" {
		sc := client.New(config.SecretKey, nil)
		p.api = StripeAPI{
			CreateCheckoutSession: sc.CheckoutSessions.New,
			GetCheckoutSession:    sc.CheckoutSessions.Get,
			CreatePortalSession:   sc.BillingPortalSessions.New,
		}
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Provider returns ProviderStripe.
func (p *StripeProvider) Provider() Provider { return ProviderStripe }

// CreateCheckoutLink creates a hosted Checkout Session for a price.
func (p *StripeProvider) CreateCheckoutLink(ctx context.Context, req CheckoutRequest) (*CheckoutLink, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.CancelURL) == "" {
		return nil, ErrMissingCancelURL
	}
	if p.api.CreateCheckoutSession == nil {
		return nil, ErrMissingAPIKey
	}

	mode := req.Mode
	if mode == "" {
		mode = CheckoutModeSubscription
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(mode)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(req.PlanID),
				Quantity: stripe.Int64(1),
			},
		},
		AllowPromotionCodes: stripe.Bool(true),
	}
	params.Context = ctx

	switch {
	case req.CustomerID != "":
		params.Customer = stripe.String(req.CustomerID)
	case req.Email != "":
		params.CustomerEmail = stripe.String(req.Email)
	}

	if req.UserID != "" {
		params.ClientReferenceID = stripe.String(req.UserID)
		params.AddMetadata("userId", req.UserID)
		if mode == CheckoutModeSubscription {
			// Subscription events carry the subscription's metadata, not the session's.
			params.SubscriptionData = &stripe.CheckoutSessionSubscriptionDataParams{
				Metadata: map[string]string{"userId": req.UserID},
			}
		}
	}

	session, err := p.api.CreateCheckoutSession(params)
	if err != nil {
		return nil, fmt.Errorf("%w: stripe: create checkout session: %w", ErrRemoteCall, err)
	}
	if session.URL == "" {
		return nil, ErrNoCheckoutURL
	}

	return &CheckoutLink{
		URL:       session.URL,
		SessionID: session.ID,
		ExpiresAt: unixTime(session.ExpiresAt),
	}, nil
}

// CreatePortalLink creates a Billing Portal session.
func (p *StripeProvider) CreatePortalLink(ctx context.Context, req PortalRequest) (*PortalLink, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if p.api.CreatePortalSession == nil {
		return nil, ErrMissingAPIKey
	}

	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(req.CustomerID),
		ReturnURL: stripe.String(req.ReturnURL),
	}
	params.Context = ctx

	session, err := p.api.CreatePortalSession(params)
	if err != nil {
		return nil, fmt.Errorf("%w: stripe: create portal session: %w", ErrRemoteCall, err)
	}
	if session.URL == "" {
		return nil, ErrNoPortalURL
	}
	return &PortalLink{URL: session.URL}, nil
}

// stripeObject is the union of fields read from the event's data.object across
// checkout sessions, subscriptions, invoices and charges.
type stripeObject struct {
	ID                string         `json:"id"`
	Object            string         `json:"object" validate:"required"`
	Customer          flexRef        `json:"customer"`
	ClientReferenceID string         `json:"client_reference_id"`
	Metadata          map[string]any `json:"metadata"`
	Status            string         `json:"status"`
	PaymentStatus     string         `json:"payment_status"`
	Subscription      flexRef        `json:"subscription"`
	CustomerEmail     string         `json:"customer_email"`
	CustomerName      string         `json:"customer_name"`
	ReceiptEmail      string         `json:"receipt_email"`
	CustomerDetails   *stripeContact `json:"customer_details"`
	BillingDetails    *stripeContact `json:"billing_details"`
	CurrentPeriodEnd  int64          `json:"current_period_end"`
	CancelAt          int64          `json:"cancel_at"`
	EndedAt           int64          `json:"ended_at"`
	PauseCollection   *struct {
		ResumesAt int64 `json:"resumes_at"`
	} `json:"pause_collection"`
	Items *struct {
		Data []struct {
			Price            stripePrice `json:"price"`
			CurrentPeriodEnd int64       `json:"current_period_end"`
		} `json:"data"`
	} `json:"items"`
	Lines *struct {
		Data []struct {
			Price   *stripePrice `json:"price"`
			Pricing *struct {
				PriceDetails *struct {
					Price string `json:"price"`
				} `json:"price_details"`
			} `json:"pricing"`
			Period struct {
				End int64 `json:"end"`
			} `json:"period"`
		} `json:"data"`
	} `json:"lines"`
	SubscriptionDetails *stripeSubscriptionDetails `json:"subscription_details"`
	Parent              *struct {
		SubscriptionDetails *stripeSubscriptionDetails `json:"subscription_details"`
	} `json:"parent"`
	PaymentMethodDetails *struct {
		Card *struct {
			Brand string `json:"brand"`
			Last4 string `json:"last4"`
		} `json:"card"`
	} `json:"payment_method_details"`
}

type stripeContact struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type stripePrice struct {
	ID string `json:"id"`
}

type stripeSubscriptionDetails struct {
	Subscription flexRef        `json:"subscription"`
	Metadata     map[string]any `json:"metadata"`
}

// ParseWebhook verifies the Stripe-Signature header through the SDK and
// decodes the event's data object.
func (p *StripeProvider) ParseWebhook(_ context.Context, payload []byte, header http.Header) (*Event, error) {
	if p.config.WebhookSecret == "" {
		return nil, ErrWebhookSecretMissing
	}
	sig := header.Get(HeaderStripeSignature)
	if strings.TrimSpace(sig) == "" {
		return nil, ErrMissingSignature
	}

	event, err := webhook.ConstructEventWithOptions(payload, sig, p.config.WebhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if event.Data == nil {
		return nil, fmt.Errorf("%w: event has no data", ErrInvalidPayload)
	}

	var obj stripeObject
	if err := decodePayload(event.Data.Raw, &obj); err != nil {
		return nil, err
	}

	ev := newEvent(ProviderStripe, event.ID, string(event.Type), payload)
	ev.ObjectID = obj.ID
	ev.CustomerID = string(obj.Customer)
	ev.UserID = metadataUserID(obj.Metadata)

	switch obj.Object {
	case "checkout.session":
		if obj.ClientReferenceID != "" {
			ev.UserID = obj.ClientReferenceID
		}
		ev.Email = obj.CustomerEmail
		if obj.CustomerDetails != nil {
			ev.Email = firstNonEmpty(obj.CustomerDetails.Email, ev.Email)
			ev.BuyerName = obj.CustomerDetails.Name
		}
		ev.SubscriptionID = string(obj.Subscription)
		if obj.PaymentStatus == "unpaid" {
			// Delayed payment methods complete the session before the money arrives;
			// checkout.session.async_payment_succeeded grants once it does.
			ev.Action = ActionNone
		}

	case "subscription":
		ev.SubscriptionID = obj.ID
		ev.Status = ParseStatus(obj.Status)
		ev.RenewsAt = unixTime(obj.CurrentPeriodEnd)
		if obj.Items != nil && len(obj.Items.Data) > 0 {
			item := obj.Items.Data[0]
			ev.PlanID = item.Price.ID
			if ev.RenewsAt.IsZero() {
				ev.RenewsAt = unixTime(item.CurrentPeriodEnd)
			}
		}
		ev.EndsAt = unixTime(obj.EndedAt)
		if ev.EndsAt.IsZero() {
			ev.EndsAt = unixTime(obj.CancelAt)
		}
		if obj.PauseCollection != nil {
			ev.ResumesAt = unixTime(obj.PauseCollection.ResumesAt)
		}

	case "invoice":
		ev.Email = obj.CustomerEmail
		ev.BuyerName = obj.CustomerName
		ev.SubscriptionID = string(obj.Subscription)
		details := obj.SubscriptionDetails
		if obj.Parent != nil && obj.Parent.SubscriptionDetails != nil {
			details = obj.Parent.SubscriptionDetails
		}
		if details != nil {
			ev.SubscriptionID = firstNonEmpty(ev.SubscriptionID, string(details.Subscription))
			ev.UserID = firstNonEmpty(metadataUserID(details.Metadata), ev.UserID)
		}
		if obj.Lines != nil && len(obj.Lines.Data) > 0 {
			line := obj.Lines.Data[0]
			switch {
			case line.Price != nil:
				ev.PlanID = line.Price.ID
			case line.Pricing != nil && line.Pricing.PriceDetails != nil:
				ev.PlanID = line.Pricing.PriceDetails.Price
			}
			ev.RenewsAt = unixTime(line.Period.End)
		}

	case "charge":
		ev.Email = obj.ReceiptEmail
		if obj.BillingDetails != nil {
			ev.Email = firstNonEmpty(obj.BillingDetails.Email, ev.Email)
			ev.BuyerName = obj.BillingDetails.Name
		}
		if obj.PaymentMethodDetails != nil && obj.PaymentMethodDetails.Card != nil {
			ev.CardBrand = obj.PaymentMethodDetails.Card.Brand
			ev.CardLastFour = obj.PaymentMethodDetails.Card.Last4
		}
	}

	return ev, nil
}

// EnrichEvent fills the purchased price of a completed checkout session.
// Session webhooks never include line items, so the session is fetched with them expanded.
func (p *StripeProvider) EnrichEvent(ctx context.Context, ev *Event) error {
	if ev.Action != ActionOrderCreated || ev.PlanID != "" || ev.ObjectID == "" {
		return nil
	}
	if p.api.GetCheckoutSession == nil {
		return ErrMissingAPIKey
	}

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("line_items")

	session, err := p.api.GetCheckoutSession(ev.ObjectID, params)
	if err != nil {
		return fmt.Errorf("%w: stripe: retrieve checkout session: %w", ErrRemoteCall, err)
	}
	if session.LineItems != nil && len(session.LineItems.Data) > 0 {
		if price := session.LineItems.Data[0].Price; price != nil {
			ev.PlanID = price.ID
		}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
