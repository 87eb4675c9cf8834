package billing

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// BillingProvider is a payment provider integration.
// Checkout and portal calls are thin wrappers over the vendor API; ParseWebhook
// must authenticate the payload before decoding anything from it.
type BillingProvider interface {
	// Provider returns the provider name.
	Provider() Provider

	// CreateCheckoutLink creates a hosted checkout session.
	CreateCheckoutLink(ctx context.Context, req CheckoutRequest) (*CheckoutLink, error)

	// CreatePortalLink returns a temporary link to the vendor's customer portal
	// where users can update payment methods, cancel or change plans.
	CreatePortalLink(ctx context.Context, req PortalRequest) (*PortalLink, error)

	// ParseWebhook verifies and decodes a webhook delivery.
	// Returns ErrInvalidSignature or ErrMissingSignature when authentication fails,
	// ErrWebhookSecretMissing when no secret is configured and ErrInvalidPayload
	// when an authenticated body cannot be decoded.
	ParseWebhook(ctx context.Context, payload []byte, header http.Header) (*Event, error)
}

// EventEnricher is implemented by providers whose webhook payloads omit fields
// reconciliation needs, so they must be fetched before the event is applied.
type EventEnricher interface {
	EnrichEvent(ctx context.Context, ev *Event) error
}

// CheckoutMode selects a one-time payment or a subscription checkout.
type CheckoutMode string

const (
	CheckoutModePayment      CheckoutMode = "payment"
	CheckoutModeSubscription CheckoutMode = "subscription"
)

// CheckoutRequest contains data needed to create a checkout session.
type CheckoutRequest struct {
	PlanID       string       // provider's variant/price/product identifier
	SuccessURL   string       // redirect after successful payment
	CancelURL    string       // redirect if the buyer abandons checkout
	Mode         CheckoutMode // derived from the plan interval when empty
	DiscountCode string

	// Prefill from the authenticated session, all optional.
	UserID     string
	Email      string
	Name       string
	CustomerID string // existing provider customer
}

// Validate checks required fields. It never performs I/O.
func (r CheckoutRequest) Validate() error {
	if strings.TrimSpace(r.PlanID) == "" {
		return ErrMissingPlanID
	}
	if strings.TrimSpace(r.SuccessURL) == "" {
		return ErrMissingRedirectURL
	}
	switch r.Mode {
	case "", CheckoutModePayment, CheckoutModeSubscription:
		return nil
	default:
		return ErrInvalidMode
	}
}

// CheckoutLink represents a hosted checkout session.
type CheckoutLink struct {
	URL       string    // hosted checkout URL
	SessionID string    // provider's session identifier
	ExpiresAt time.Time // zero when the provider does not say
}

// PortalRequest identifies the customer whose portal should be opened.
type PortalRequest struct {
	CustomerID     string
	SubscriptionID string // optional, narrows the portal to one subscription
	ReturnURL      string
}

// Validate checks required fields. It never performs I/O.
func (r PortalRequest) Validate() error {
	if strings.TrimSpace(r.CustomerID) == "" {
		return ErrMissingCustomerID
	}
	if strings.TrimSpace(r.ReturnURL) == "" {
		return ErrMissingReturnURL
	}
	return nil
}

// PortalLink represents a customer portal session.
type PortalLink struct {
	URL              string // pre-authenticated customer portal URL
	CancelURL        string // direct cancel link, when the provider offers one
	UpdatePaymentURL string // direct payment method link, when the provider offers one
	ExpiresAt        time.Time
}
