package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	standardwebhooks "github.com/standard-webhooks/standard-webhooks/libraries/go"
)

const (
	polarProductionURL = "https://api.polar.sh/v1"
	polarSandboxURL    = "https://sandbox-api.polar.sh/v1"
)

// PolarConfig holds configuration for the Polar provider.
type PolarConfig struct {
	AccessToken   string `env:"POLAR_ACCESS_TOKEN"`
	WebhookSecret string `env:"POLAR_WEBHOOK_SECRET"`
	Sandbox       bool   `env:"POLAR_SANDBOX" envDefault:"false"`
	BaseURL       string `env:"POLAR_API_URL"` // overrides the sandbox switch when set
}

// Enabled reports whether any Polar credential is configured.
func (c PolarConfig) Enabled() bool {
	return c.AccessToken != "" || c.WebhookSecret != ""
}

// PolarProvider implements BillingProvider for Polar.
type PolarProvider struct {
	config   PolarConfig
	client   *http.Client
	verifier *standardwebhooks.Webhook
}

// PolarOption configures a PolarProvider.
type PolarOption func(*PolarProvider)

// WithPolarHTTPClient replaces the HTTP client used for API calls.
func WithPolarHTTPClient(c *http.Client) PolarOption {
	return func(p *PolarProvider) {
		if c != nil {
			p.client = c
		}
	}
}

// NewPolarProvider creates a Polar provider.
func NewPolarProvider(config PolarConfig, opts ...PolarOption) *PolarProvider {
	if config.BaseURL == "" {
		config.BaseURL = polarProductionURL
		if config.Sandbox {
			config.BaseURL = polarSandboxURL
		}
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	p := &PolarProvider{
		config: config,
		client: &http.Client{Timeout: 15 * time.Second},
	}
	if config.WebhookSecret != "" {
		p.verifier, _ = standardwebhooks.NewWebhookRaw(standardWebhookKey(config.WebhookSecret))
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Provider returns ProviderPolar.
func (p *PolarProvider) Provider() Provider { return ProviderPolar }

// CreateCheckoutLink creates a Polar checkout session for a product.
func (p *PolarProvider) CreateCheckoutLink(ctx context.Context, req CheckoutRequest) (*CheckoutLink, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if p.config.AccessToken == "" {
		return nil, ErrMissingAPIKey
	}

	body := map[string]any{
		"products":    []string{req.PlanID},
		"success_url": req.SuccessURL,
	}
	if req.Email != "" {
		body["customer_email"] = req.Email
	}
	if req.Name != "" {
		body["customer_name"] = req.Name
	}
	if req.CustomerID != "" {
		body["customer_id"] = req.CustomerID
	}
	if req.UserID != "" {
		body["metadata"] = map[string]string{"userId": req.UserID}
		body["external_customer_id"] = req.UserID
	}

	var resp struct {
		ID        string `json:"id"`
		URL       string `json:"url"`
		ExpiresAt string `json:"expires_at"`
	}
	if err := p.call(ctx, "/checkouts/", body, &resp); err != nil {
		return nil, fmt.Errorf("%w: polar: create checkout: %w", ErrRemoteCall, err)
	}
	if resp.URL == "" {
		return nil, ErrNoCheckoutURL
	}
	return &CheckoutLink{URL: resp.URL, SessionID: resp.ID, ExpiresAt: parseTime(resp.ExpiresAt)}, nil
}

// CreatePortalLink creates a customer session and returns its portal URL.
func (p *PolarProvider) CreatePortalLink(ctx context.Context, req PortalRequest) (*PortalLink, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if p.config.AccessToken == "" {
		return nil, ErrMissingAPIKey
	}

	body := map[string]any{
		"customer_id": req.CustomerID,
		"return_url":  req.ReturnURL,
	}
	var resp struct {
		CustomerPortalURL string `json:"customer_portal_url"`
		ExpiresAt         string `json:"expires_at"`
	}
	if err := p.call(ctx, "/customer-sessions/", body, &resp); err != nil {
		return nil, fmt.Errorf("%w: polar: create customer session: %w", ErrRemoteCall, err)
	}
	if resp.CustomerPortalURL == "" {
		return nil, ErrNoPortalURL
	}
	return &PortalLink{URL: resp.CustomerPortalURL, ExpiresAt: parseTime(resp.ExpiresAt)}, nil
}

// polarWebhook is the subset of Polar's webhook envelope reconciliation reads.
type polarWebhook struct {
	Type string `json:"type" validate:"required"`
	Data struct {
		ID                 string         `json:"id" validate:"required"`
		Status             string         `json:"status"`
		CustomerID         string         `json:"customer_id"`
		CustomerEmail      string         `json:"customer_email"`
		CustomerName       string         `json:"customer_name"`
		CustomerExternalID string         `json:"customer_external_id"`
		ProductID          string         `json:"product_id"`
		SubscriptionID     string         `json:"subscription_id"`
		BillingReason      string         `json:"billing_reason"`
		CurrentPeriodEnd   *string        `json:"current_period_end"`
		EndsAt             *string        `json:"ends_at"`
		EndedAt            *string        `json:"ended_at"`
		Metadata           map[string]any `json:"metadata"`
		Customer           *struct {
			ID         string `json:"id"`
			Email      string `json:"email"`
			Name       string `json:"name"`
			ExternalID string `json:"external_id"`
		} `json:"customer"`
	} `json:"data"`
}

// ParseWebhook verifies the Standard Webhooks signature and decodes the event.
func (p *PolarProvider) ParseWebhook(_ context.Context, payload []byte, header http.Header) (*Event, error) {
	if p.config.WebhookSecret == "" {
		return nil, ErrWebhookSecretMissing
	}
	if err := verifyStandardWebhook(p.verifier, payload, header); err != nil {
		return nil, err
	}
	id := header.Get(HeaderWebhookID)

	var wh polarWebhook
	if err := decodePayload(payload, &wh); err != nil {
		return nil, err
	}

	d := wh.Data
	ev := newEvent(ProviderPolar, id, wh.Type, payload)
	ev.ObjectID = d.ID
	ev.CustomerID = d.CustomerID
	ev.PlanID = d.ProductID
	ev.Email = d.CustomerEmail
	ev.BuyerName = d.CustomerName
	ev.UserID = firstNonEmpty(metadataUserID(d.Metadata), d.CustomerExternalID)
	if d.Customer != nil {
		ev.CustomerID = firstNonEmpty(ev.CustomerID, d.Customer.ID)
		ev.Email = firstNonEmpty(ev.Email, d.Customer.Email)
		ev.BuyerName = firstNonEmpty(ev.BuyerName, d.Customer.Name)
		ev.UserID = firstNonEmpty(ev.UserID, d.Customer.ExternalID)
	}

	switch {
	case wh.Type == "checkout.updated":
		// Checkouts update many times; only a succeeded one grants access.
		if d.Status != "succeeded" {
			ev.Action = ActionNone
		}
		ev.SubscriptionID = d.SubscriptionID
	case strings.HasPrefix(wh.Type, "subscription."):
		ev.SubscriptionID = d.ID
		ev.Status = ParseStatus(d.Status)
		ev.RenewsAt = parseTimePtr(d.CurrentPeriodEnd)
		ev.EndsAt = firstTime(parseTimePtr(d.EndedAt), parseTimePtr(d.EndsAt))
	case strings.HasPrefix(wh.Type, "order."):
		ev.SubscriptionID = d.SubscriptionID
		if wh.Type == "order.paid" && d.BillingReason == "subscription_cycle" {
			ev.Action = ActionPaymentSucceeded
		}
	}

	return ev, nil
}

func (p *PolarProvider) call(ctx context.Context, path string, in, out any) error {
	raw, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.config.AccessToken)
	return doJSON(p.client, req, out)
}

func firstTime(values ...time.Time) time.Time {
	for _, t := range values {
		if !t.IsZero() {
			return t
		}
	}
	return time.Time{}
}
