package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HeaderLemonSqueezySignature carries the hex HMAC of the raw body.
const HeaderLemonSqueezySignature = "X-Signature"

const lemonSqueezyMediaType = "application/vnd.api+json"

// LemonSqueezyConfig holds configuration for the Lemon Squeezy provider.
type LemonSqueezyConfig struct {
	APIKey        string `env:"LEMONSQUEEZY_API_KEY"`
	StoreID       string `env:"LEMONSQUEEZY_STORE_ID"`
	WebhookSecret string `env:"LEMONSQUEEZY_WEBHOOK_SECRET"`
	BaseURL       string `env:"LEMONSQUEEZY_API_URL" envDefault:"https://api.lemonsqueezy.com/v1"`
}

// Enabled reports whether any Lemon Squeezy credential is configured.
func (c LemonSqueezyConfig) Enabled() bool {
	return c.APIKey != "" || c.WebhookSecret != ""
}

// LemonSqueezyProvider implements BillingProvider for Lemon Squeezy.
type LemonSqueezyProvider struct {
	config LemonSqueezyConfig
	client *http.Client
}

// LemonSqueezyOption configures a LemonSqueezyProvider.
type LemonSqueezyOption func(*LemonSqueezyProvider)

// WithLemonSqueezyHTTPClient replaces the HTTP client used for API calls.
func WithLemonSqueezyHTTPClient(c *http.Client) LemonSqueezyOption {
	return func(p *LemonSqueezyProvider) {
		if c != nil {
			p.client = c
		}
	}
}

// NewLemonSqueezyProvider creates a Lemon Squeezy provider. The client is safe
// for concurrent use and meant to live for the whole process.
func NewLemonSqueezyProvider(config LemonSqueezyConfig, opts ...LemonSqueezyOption) *LemonSqueezyProvider {
	if config.BaseURL == "" {
		config.BaseURL = "https://api.lemonsqueezy.com/v1"
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	p := &LemonSqueezyProvider{
		config: config,
		client: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Provider returns ProviderLemonSqueezy.
func (p *LemonSqueezyProvider) Provider() Provider { return ProviderLemonSqueezy }

// CreateCheckoutLink creates a hosted checkout for a store variant.
func (p *LemonSqueezyProvider) CreateCheckoutLink(ctx context.Context, req CheckoutRequest) (*CheckoutLink, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if p.config.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if p.config.StoreID == "" {
		return nil, ErrMissingStoreID
	}

	checkoutData := map[string]any{}
	if req.Email != "" {
		checkoutData["email"] = req.Email
	}
	if req.Name != "" {
		checkoutData["name"] = req.Name
	}
	if req.DiscountCode != "" {
		checkoutData["discount_code"] = req.DiscountCode
	}
	if req.UserID != "" {
		checkoutData["custom"] = map[string]string{"userId": req.UserID}
	}

	body := map[string]any{
		"data": map[string]any{
			"type": "checkouts",
			"attributes": map[string]any{
				"checkout_data": checkoutData,
				"product_options": map[string]any{
					"redirect_url": req.SuccessURL,
				},
			},
			"relationships": map[string]any{
				"store":   lemonSqueezyRelation("stores", p.config.StoreID),
				"variant": lemonSqueezyRelation("variants", req.PlanID),
			},
		},
	}

	var resp struct {
		Data struct {
			ID         string `json:"id"`
			Attributes struct {
				URL       string  `json:"url"`
				ExpiresAt *string `json:"expires_at"`
			} `json:"attributes"`
		} `json:"data"`
	}
	if err := p.call(ctx, http.MethodPost, "/checkouts", body, &resp); err != nil {
		return nil, fmt.Errorf("%w: lemonsqueezy: create checkout: %w", ErrRemoteCall, err)
	}
	if resp.Data.Attributes.URL == "" {
		return nil, ErrNoCheckoutURL
	}

	link := &CheckoutLink{
		URL:       resp.Data.Attributes.URL,
		SessionID: resp.Data.ID,
	}
	if resp.Data.Attributes.ExpiresAt != nil {
		link.ExpiresAt = parseTime(*resp.Data.Attributes.ExpiresAt)
	}
	return link, nil
}

// CreatePortalLink returns the signed customer portal URL of a customer.
// Lemon Squeezy portals carry no return URL; the request's is ignored.
func (p *LemonSqueezyProvider) CreatePortalLink(ctx context.Context, req PortalRequest) (*PortalLink, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if p.config.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	var resp struct {
		Data struct {
			Attributes struct {
				URLs struct {
					CustomerPortal string `json:"customer_portal"`
				} `json:"urls"`
			} `json:"attributes"`
		} `json:"data"`
	}
	if err := p.call(ctx, http.MethodGet, "/customers/"+url.PathEscape(req.CustomerID), nil, &resp); err != nil {
		return nil, fmt.Errorf("%w: lemonsqueezy: get customer: %w", ErrRemoteCall, err)
	}
	if resp.Data.Attributes.URLs.CustomerPortal == "" {
		return nil, ErrNoPortalURL
	}

	return &PortalLink{
		URL:       resp.Data.Attributes.URLs.CustomerPortal,
		ExpiresAt: time.Now().Add(24 * time.Hour), // signed portal URLs are valid for 24 hours
	}, nil
}

// lemonSqueezyWebhook is the subset of the webhook envelope reconciliation reads.
type lemonSqueezyWebhook struct {
	Meta struct {
		EventName  string         `json:"event_name" validate:"required"`
		CustomData map[string]any `json:"custom_data"`
	} `json:"meta"`
	Data struct {
		ID         flexString `json:"id"`
		Type       string     `json:"type" validate:"required"`
		Attributes struct {
			CustomerID     flexString `json:"customer_id"`
			SubscriptionID flexString `json:"subscription_id"`
			VariantID      flexString `json:"variant_id"`
			FirstOrderItem *struct {
				VariantID flexString `json:"variant_id"`
			} `json:"first_order_item"`
			UserEmail    string  `json:"user_email"`
			UserName     string  `json:"user_name"`
			Status       string  `json:"status"`
			RenewsAt     *string `json:"renews_at"`
			EndsAt       *string `json:"ends_at"`
			CardBrand    string  `json:"card_brand"`
			CardLastFour string  `json:"card_last_four"`
			Pause        *struct {
				ResumesAt *string `json:"resumes_at"`
			} `json:"pause"`
		} `json:"attributes"`
	} `json:"data"`
}

// ParseWebhook verifies the X-Signature HMAC and decodes the event.
func (p *LemonSqueezyProvider) ParseWebhook(_ context.Context, payload []byte, header http.Header) (*Event, error) {
	if err := VerifyHMAC(p.config.WebhookSecret, payload, header.Get(HeaderLemonSqueezySignature)); err != nil {
		return nil, err
	}

	var wh lemonSqueezyWebhook
	if err := decodePayload(payload, &wh); err != nil {
		return nil, err
	}

	// Lemon Squeezy sends no per-delivery ID.
	ev := newEvent(ProviderLemonSqueezy, "", wh.Meta.EventName, payload)
	attrs := wh.Data.Attributes
	ev.UserID = metadataUserID(wh.Meta.CustomData)
	ev.CustomerID = attrs.CustomerID.String()
	ev.Email = attrs.UserEmail
	ev.BuyerName = attrs.UserName
	ev.CardBrand = attrs.CardBrand
	ev.CardLastFour = attrs.CardLastFour

	switch wh.Data.Type {
	case "orders":
		if attrs.FirstOrderItem != nil {
			ev.PlanID = attrs.FirstOrderItem.VariantID.String()
		}
	case "subscriptions":
		ev.SubscriptionID = wh.Data.ID.String()
		ev.PlanID = attrs.VariantID.String()
		ev.Status = ParseStatus(attrs.Status)
		ev.RenewsAt = parseTimePtr(attrs.RenewsAt)
		ev.EndsAt = parseTimePtr(attrs.EndsAt)
		if attrs.Pause != nil {
			ev.ResumesAt = parseTimePtr(attrs.Pause.ResumesAt)
		}
	case "subscription-invoices":
		ev.SubscriptionID = attrs.SubscriptionID.String()
	}

	return ev, nil
}

func (p *LemonSqueezyProvider) call(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.config.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", lemonSqueezyMediaType)
	req.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	if in != nil {
		req.Header.Set("Content-Type", lemonSqueezyMediaType)
	}

	return doJSON(p.client, req, out)
}

func lemonSqueezyRelation(kind, id string) map[string]any {
	return map[string]any{
		"data": map[string]string{"type": kind, "id": id},
	}
}

// doJSON executes req and decodes a 2xx JSON body into out.
func doJSON(client *http.Client, req *http.Request, out any) error {
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(raw, 256))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

func parseTimePtr(s *string) time.Time {
	if s == nil {
		return time.Time{}
	}
	return parseTime(*s)
}
