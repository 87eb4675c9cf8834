package billing

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	paddle "github.com/PaddleHQ/paddle-go-sdk/v4"
)

// HeaderPaddleSignature carries Paddle's "ts=...;h1=..." signature.
const HeaderPaddleSignature = "Paddle-Signature"

// PaddleConfig holds configuration for the Paddle provider.
type PaddleConfig struct {
	APIKey        string `env:"PADDLE_API_KEY"`
	WebhookSecret string `env:"PADDLE_WEBHOOK_SECRET"`
	Environment   string `env:"PADDLE_ENVIRONMENT" envDefault:"production"`
}

// Enabled reports whether any Paddle credential is configured.
func (c PaddleConfig) Enabled() bool {
	return c.APIKey != "" || c.WebhookSecret != ""
}

// PaddleProvider implements BillingProvider for Paddle Billing.
type PaddleProvider struct {
	client   *paddle.SDK
	verifier *paddle.WebhookVerifier
	config   PaddleConfig
}

// NewPaddleProvider creates a Paddle provider. The SDK client is only built
// when an API key is present, so a webhook-only setup needs just the secret.
func NewPaddleProvider(config PaddleConfig) (*PaddleProvider, error) {
	p := &PaddleProvider{config: config}

	if config.APIKey != "" {
		var err error
		switch strings.ToLower(config.Environment) {
		case "sandbox":
			p.client, err = paddle.NewSandbox(config.APIKey)
		case "production", "":
			p.client, err = paddle.New(config.APIKey)
		default:
			return nil, fmt.Errorf("invalid paddle environment: %s", config.Environment)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create paddle client: %w", err)
		}
	}

	if config.WebhookSecret != "" {
		p.verifier = paddle.NewWebhookVerifier(config.WebhookSecret)
	}

	return p, nil
}

// Provider returns ProviderPaddle.
func (p *PaddleProvider) Provider() Provider { return ProviderPaddle }

// CreateCheckoutLink creates a transaction and returns its hosted checkout URL.
func (p *PaddleProvider) CreateCheckoutLink(ctx context.Context, req CheckoutRequest) (*CheckoutLink, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if p.client == nil {
		return nil, ErrMissingAPIKey
	}

	item := paddle.NewCreateTransactionItemsTransactionItemFromCatalog(&paddle.TransactionItemFromCatalog{
		PriceID:  req.PlanID,
		Quantity: 1,
	})

	// Custom data is echoed back on every transaction and subscription webhook.
	customData := paddle.CustomData{}
	if req.UserID != "" {
		customData["userId"] = req.UserID
	}
	if req.Email != "" {
		customData["email"] = req.Email
	}

	transactionReq := &paddle.CreateTransactionRequest{
		Items:      []paddle.CreateTransactionItems{*item},
		CustomData: customData,
		Checkout: &paddle.TransactionCheckout{
			URL: paddle.PtrTo(req.SuccessURL),
		},
	}
	if req.CustomerID != "" {
		transactionReq.CustomerID = paddle.PtrTo(req.CustomerID)
	}

	transaction, err := p.client.TransactionsClient.CreateTransaction(ctx, transactionReq)
	if err != nil {
		return nil, fmt.Errorf("%w: paddle: create transaction: %w", ErrRemoteCall, err)
	}
	if transaction.Checkout == nil || transaction.Checkout.URL == nil || *transaction.Checkout.URL == "" {
		return nil, ErrNoCheckoutURL
	}

	return &CheckoutLink{
		URL:       *transaction.Checkout.URL,
		SessionID: transaction.ID,
	}, nil
}

// CreatePortalLink creates a customer portal session.
// Paddle portals have no return URL; the request's is ignored.
func (p *PaddleProvider) CreatePortalLink(ctx context.Context, req PortalRequest) (*PortalLink, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if p.client == nil {
		return nil, ErrMissingAPIKey
	}

	portalReq := &paddle.CreateCustomerPortalSessionRequest{
		CustomerID: req.CustomerID,
	}
	if req.SubscriptionID != "" {
		portalReq.SubscriptionIDs = []string{req.SubscriptionID}
	}

	session, err := p.client.CustomerPortalSessionsClient.CreateCustomerPortalSession(ctx, portalReq)
	if err != nil {
		return nil, fmt.Errorf("%w: paddle: create customer portal session: %w", ErrRemoteCall, err)
	}

	link := &PortalLink{
		URL:       session.URLs.General.Overview,
		ExpiresAt: time.Now().Add(24 * time.Hour),
	}
	for _, sub := range session.URLs.Subscriptions {
		if sub.ID == req.SubscriptionID {
			link.CancelURL = sub.CancelSubscription
			link.UpdatePaymentURL = sub.UpdateSubscriptionPaymentMethod
			break
		}
	}
	if link.URL == "" {
		return nil, ErrNoPortalURL
	}
	return link, nil
}

// paddleWebhook is the subset of Paddle's notification payload reconciliation reads.
type paddleWebhook struct {
	EventID   string `json:"event_id" validate:"required"`
	EventType string `json:"event_type" validate:"required"`
	Data      struct {
		ID             string         `json:"id"`
		Status         string         `json:"status"`
		CustomerID     string         `json:"customer_id"`
		SubscriptionID string         `json:"subscription_id"`
		Origin         string         `json:"origin"`
		Action         string         `json:"action"`
		CustomData     map[string]any `json:"custom_data"`
		NextBilledAt   *string        `json:"next_billed_at"`
		CanceledAt     *string        `json:"canceled_at"`
		Items          []struct {
			PriceID string `json:"price_id"`
			Price   *struct {
				ID string `json:"id"`
			} `json:"price"`
		} `json:"items"`
		ScheduledChange *struct {
			Action   string  `json:"action"`
			ResumeAt *string `json:"resume_at"`
		} `json:"scheduled_change"`
		Payments []struct {
			MethodDetails *struct {
				Card *struct {
					Type  string `json:"type"`
					Last4 string `json:"last4"`
				} `json:"card"`
			} `json:"method_details"`
		} `json:"payments"`
	} `json:"data"`
}

// ParseWebhook verifies the Paddle-Signature header through the SDK verifier
// and decodes the notification.
func (p *PaddleProvider) ParseWebhook(ctx context.Context, payload []byte, header http.Header) (*Event, error) {
	if p.verifier == nil {
		return nil, ErrWebhookSecretMissing
	}
	signature := header.Get(HeaderPaddleSignature)
	if strings.TrimSpace(signature) == "" {
		return nil, ErrMissingSignature
	}

	// The SDK verifies a request, so rebuild one around the raw body.
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/webhook", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request for verification: %w", err)
	}
	req.Header.Set(HeaderPaddleSignature, signature)

	valid, err := p.verifier.Verify(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if !valid {
		return nil, ErrInvalidSignature
	}

	var wh paddleWebhook
	if err := decodePayload(payload, &wh); err != nil {
		return nil, err
	}

	d := wh.Data
	ev := newEvent(ProviderPaddle, wh.EventID, wh.EventType, payload)
	ev.ObjectID = d.ID
	ev.CustomerID = d.CustomerID
	ev.UserID = metadataUserID(d.CustomData)
	if email, ok := d.CustomData["email"].(string); ok {
		ev.Email = email
	}
	if len(d.Items) > 0 {
		ev.PlanID = d.Items[0].PriceID
		if d.Items[0].Price != nil {
			ev.PlanID = firstNonEmpty(d.Items[0].Price.ID, ev.PlanID)
		}
	}

	switch {
	case strings.HasPrefix(wh.EventType, "subscription."):
		ev.SubscriptionID = d.ID
		ev.Status = ParseStatus(d.Status)
		ev.RenewsAt = parseTimePtr(d.NextBilledAt)
		ev.EndsAt = parseTimePtr(d.CanceledAt)
		if d.ScheduledChange != nil && d.ScheduledChange.Action == "resume" {
			ev.ResumesAt = parseTimePtr(d.ScheduledChange.ResumeAt)
		}
	case strings.HasPrefix(wh.EventType, "transaction."):
		ev.SubscriptionID = d.SubscriptionID
		if wh.EventType == "transaction.completed" && d.Origin == "subscription_recurring" {
			ev.Action = ActionPaymentSucceeded
		}
		for _, payment := range d.Payments {
			if payment.MethodDetails != nil && payment.MethodDetails.Card != nil {
				ev.CardBrand = payment.MethodDetails.Card.Type
				ev.CardLastFour = payment.MethodDetails.Card.Last4
				break
			}
		}
	case wh.EventType == "adjustment.created":
		ev.SubscriptionID = d.SubscriptionID
		if d.Action != "refund" {
			// Credits and chargeback reversals do not revoke access.
			ev.Action = ActionNone
		}
	}

	return ev, nil
}
