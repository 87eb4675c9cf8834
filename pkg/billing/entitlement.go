package billing

import (
	"maps"
	"slices"
	"time"
)

// Public metadata keys, readable by the browser.
const (
	KeyHasAccess          = "hasAccess"
	KeyPlanName           = "planName"
	KeySubscriptionStatus = "subscriptionStatus"
)

// KeyCreatedFromPayment marks users synthesized by the resolver after a payment.
const KeyCreatedFromPayment = "createdFromPayment"

// Suffixes of the backend-only linkage keys, prefixed per provider
// (e.g. stripeCustomerId, lemonSqueezyRenewsAt).
const (
	suffixCustomerID     = "CustomerId"
	suffixSubscriptionID = "SubscriptionId"
	suffixRenewsAt       = "RenewsAt"
	suffixEndsAt         = "EndsAt"
	suffixResumesAt      = "ResumesAt"
	suffixCardBrand      = "CardBrand"
	suffixCardLastFour   = "CardLastFour"
)

// Entitlement is the canonical access record stored as identity-provider metadata.
// HasAccess, PlanName and Status are public; Accounts and CreatedFromPayment are
// backend-only so provider customer IDs never reach the browser.
type Entitlement struct {
	HasAccess          bool
	PlanName           string
	Status             Status
	Accounts           map[Provider]Account
	CreatedFromPayment bool
}

// Account holds provider linkage and billing descriptors for one provider.
// Zero values mean the field was never reported.
type Account struct {
	CustomerID     string
	SubscriptionID string
	PlanID         string // variant, price or product identifier
	RenewsAt       time.Time
	EndsAt         time.Time
	ResumesAt      time.Time
	CardBrand      string
	CardLastFour   string
}

// Account returns the linkage for p, or the zero Account.
func (e Entitlement) Account(p Provider) Account {
	return e.Accounts[p]
}

// CustomerID returns the stored customer ID for p.
func (e Entitlement) CustomerID(p Provider) string {
	return e.Accounts[p].CustomerID
}

// Clone returns a copy that shares no maps with e.
func (e Entitlement) Clone() Entitlement {
	c := e
	c.Accounts = maps.Clone(e.Accounts)
	return c
}

// Equal reports whether both records would serialize to the same metadata.
func (e Entitlement) Equal(o Entitlement) bool {
	if e.HasAccess != o.HasAccess || e.PlanName != o.PlanName || e.Status != o.Status ||
		e.CreatedFromPayment != o.CreatedFromPayment {
		return false
	}
	for _, p := range unionProviders(e.Accounts, o.Accounts) {
		if !e.Accounts[p].equal(o.Accounts[p]) {
			return false
		}
	}
	return true
}

func (a Account) equal(o Account) bool {
	return a.CustomerID == o.CustomerID &&
		a.SubscriptionID == o.SubscriptionID &&
		a.PlanID == o.PlanID &&
		a.RenewsAt.Equal(o.RenewsAt) &&
		a.EndsAt.Equal(o.EndsAt) &&
		a.ResumesAt.Equal(o.ResumesAt) &&
		a.CardBrand == o.CardBrand &&
		a.CardLastFour == o.CardLastFour
}

func unionProviders(a, b map[Provider]Account) []Provider {
	set := make(map[Provider]struct{}, len(a)+len(b))
	for p := range a {
		set[p] = struct{}{}
	}
	for p := range b {
		set[p] = struct{}{}
	}
	return slices.Sorted(maps.Keys(set))
}

// EntitlementFromMetadata decodes the record from stored metadata.
// Keys it does not own are ignored.
func EntitlementFromMetadata(public, private map[string]any) Entitlement {
	e := Entitlement{
		HasAccess:          metaBool(public, KeyHasAccess),
		PlanName:           metaString(public, KeyPlanName),
		Status:             Status(metaString(public, KeySubscriptionStatus)),
		CreatedFromPayment: metaBool(private, KeyCreatedFromPayment),
	}
	for _, p := range Providers {
		prefix := p.metadataPrefix()
		a := Account{
			CustomerID:     metaString(private, prefix+suffixCustomerID),
			SubscriptionID: metaString(private, prefix+suffixSubscriptionID),
			PlanID:         metaString(private, prefix+p.planKeySuffix()),
			RenewsAt:       metaTime(private, prefix+suffixRenewsAt),
			EndsAt:         metaTime(private, prefix+suffixEndsAt),
			ResumesAt:      metaTime(private, prefix+suffixResumesAt),
			CardBrand:      metaString(private, prefix+suffixCardBrand),
			CardLastFour:   metaString(private, prefix+suffixCardLastFour),
		}
		if a.equal(Account{}) {
			continue
		}
		if e.Accounts == nil {
			e.Accounts = make(map[Provider]Account)
		}
		e.Accounts[p] = a
	}
	return e
}

// Patch returns metadata patches that bring stored metadata in line with e.
// A nil value removes the key; keys e does not own are never touched.
func (e Entitlement) Patch() (public, private map[string]any) {
	public = map[string]any{
		KeyHasAccess:          e.HasAccess,
		KeyPlanName:           optional(e.PlanName),
		KeySubscriptionStatus: optional(string(e.Status)),
	}
	private = map[string]any{}
	if e.CreatedFromPayment {
		private[KeyCreatedFromPayment] = true
	}
	for p, a := range e.Accounts {
		prefix := p.metadataPrefix()
		private[prefix+suffixCustomerID] = optional(a.CustomerID)
		private[prefix+suffixSubscriptionID] = optional(a.SubscriptionID)
		private[prefix+p.planKeySuffix()] = optional(a.PlanID)
		private[prefix+suffixRenewsAt] = optionalTime(a.RenewsAt)
		private[prefix+suffixEndsAt] = optionalTime(a.EndsAt)
		private[prefix+suffixResumesAt] = optionalTime(a.ResumesAt)
		private[prefix+suffixCardBrand] = optional(a.CardBrand)
		private[prefix+suffixCardLastFour] = optional(a.CardLastFour)
	}
	return public, private
}

// MergeMetadata applies a patch produced by Patch to stored metadata and returns a new map.
// It mirrors the identity provider's shallow merge: nil values delete keys.
func MergeMetadata(stored, patch map[string]any) map[string]any {
	out := maps.Clone(stored)
	if out == nil {
		out = make(map[string]any, len(patch))
	}
	for k, v := range patch {
		if v == nil {
			delete(out, k)
			continue
		}
		out[k] = v
	}
	return out
}

func optional(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func optionalTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func metaString(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	default:
		return ""
	}
}

func metaBool(m map[string]any, key string) bool {
	switch v := m[key].(type) {
	case bool:
		return v
	case string:
		return v == "true"
	default:
		return false
	}
}

func metaTime(m map[string]any, key string) time.Time {
	return parseTime(metaString(m, key))
}

// parseTime accepts RFC3339 with or without fractional seconds and
// normalizes to UTC at second precision. Unparseable input yields zero.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC().Truncate(time.Second)
}

// unixTime converts a Unix timestamp; zero stays zero.
func unixTime(sec int64) time.Time {
	if sec <= 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
