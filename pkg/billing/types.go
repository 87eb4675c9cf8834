package billing

import (
	"fmt"
	"strings"
)

// Provider identifies a payment provider integration.
type Provider string

const (
	ProviderStripe       Provider = "stripe"
	ProviderLemonSqueezy Provider = "lemonsqueezy"
	ProviderPolar        Provider = "polar"
	ProviderPaddle       Provider = "paddle"
)

// Providers lists every supported provider in a stable order.
var Providers = []Provider{ProviderStripe, ProviderLemonSqueezy, ProviderPolar, ProviderPaddle}

// ParseProvider returns the provider for a case-insensitive name.
func ParseProvider(name string) (Provider, bool) {
	p := Provider(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Providers {
		if p == known {
			return p, true
		}
	}
	return "", false
}

// metadataPrefix is the key prefix for provider linkage fields in user metadata.
func (p Provider) metadataPrefix() string {
	switch p {
	case ProviderLemonSqueezy:
		return "lemonSqueezy"
	default:
		return string(p)
	}
}

// planKeySuffix names the vendor plan identifier the way each provider does.
func (p Provider) planKeySuffix() string {
	switch p {
	case ProviderLemonSqueezy:
		return "VariantId"
	case ProviderPolar:
		return "ProductId"
	default:
		return "PriceId"
	}
}

// Status is the canonical subscription status stored in the entitlement record.
type Status string

const (
	StatusActive    Status = "active"
	StatusOnTrial   Status = "on_trial"
	StatusPastDue   Status = "past_due"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
	StatusPaused    Status = "paused"
	StatusRefunded  Status = "refunded"
)

// IsActive reports whether the status grants access to the product.
func (s Status) IsActive() bool {
	return s == StatusActive || s == StatusOnTrial
}

// ParseStatus normalizes a vendor subscription status onto the canonical set.
// Empty input yields an empty status; unknown values fail closed to expired.
func ParseStatus(vendor string) Status {
	switch strings.ToLower(strings.TrimSpace(vendor)) {
	case "":
		return ""
	case "active":
		return StatusActive
	case "on_trial", "trialing":
		return StatusOnTrial
	case "past_due", "unpaid", "incomplete":
		return StatusPastDue
	case "cancelled", "canceled":
		return StatusCancelled
	case "expired", "incomplete_expired":
		return StatusExpired
	case "paused":
		return StatusPaused
	case "refunded":
		return StatusRefunded
	default:
		return StatusExpired
	}
}

// Action is the reconciliation step selected for an event.
type Action string

const (
	ActionNone                  Action = ""
	ActionOrderCreated          Action = "order_created"
	ActionSubscriptionCreated   Action = "subscription_created"
	ActionSubscriptionUpdated   Action = "subscription_updated"
	ActionSubscriptionCancelled Action = "subscription_cancelled"
	ActionSubscriptionExpired   Action = "subscription_expired"
	ActionSubscriptionPaused    Action = "subscription_paused"
	ActionSubscriptionResumed   Action = "subscription_resumed"
	ActionPaymentSucceeded      Action = "payment_succeeded"
	ActionPaymentFailed         Action = "payment_failed"
	ActionRefund                Action = "refund"
)

// String returns the action name, or "unknown" for unrecognized events.
func (a Action) String() string {
	if a == ActionNone {
		return "unknown"
	}
	return string(a)
}

// grantsAfterPayment reports whether the action may create a user that cannot be resolved.
func (a Action) grantsAfterPayment() bool {
	return a == ActionOrderCreated
}

// Outcome describes how a webhook delivery was handled.
type Outcome string

const (
	OutcomeApplied    Outcome = "applied"    // entitlement written
	OutcomeUnchanged  Outcome = "unchanged"  // reconciled record equals stored record
	OutcomeIgnored    Outcome = "ignored"    // unknown event or product
	OutcomeUnresolved Outcome = "unresolved" // no user could be matched
	OutcomeDuplicate  Outcome = "duplicate"  // event ID already processed
	OutcomeMalformed  Outcome = "malformed"  // authenticated but undecodable payload
	OutcomeFailed     Outcome = "failed"     // remote call failed, acknowledged anyway
)

// Money represents a monetary amount in the smallest currency unit.
// For example, $10.99 USD would be Amount: 1099, Currency: "USD".
type Money struct {
	Amount   int64  `yaml:"amount" json:"amount"`
	Currency string `yaml:"currency" json:"currency"`
}

// String formats m as "49.00 USD".
func (m Money) String() string {
	sign := ""
	amount := m.Amount
	if amount < 0 {
		sign, amount = "-", -amount
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, amount/100, amount%100, strings.ToUpper(m.Currency))
}

// BillingInterval represents the billing frequency of a plan.
type BillingInterval string

const (
	BillingIntervalOneTime BillingInterval = "one_time"
	BillingIntervalMonthly BillingInterval = "month"
	BillingIntervalAnnual  BillingInterval = "year"
)

// IsRecurring reports whether the plan is sold as a subscription.
func (i BillingInterval) IsRecurring() bool {
	return i == BillingIntervalMonthly || i == BillingIntervalAnnual
}
