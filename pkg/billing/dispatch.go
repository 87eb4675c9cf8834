package billing

// Vendor event vocabularies. Matching is exact; anything missing here is
// acknowledged as an unknown event so new vendor event types never fail delivery.
var eventActions = map[Provider]map[string]Action{
	ProviderLemonSqueezy: {
		"order_created":                 ActionOrderCreated,
		"subscription_created":          ActionSubscriptionCreated,
		"subscription_updated":          ActionSubscriptionUpdated,
		"subscription_cancelled":        ActionSubscriptionCancelled,
		"subscription_expired":          ActionSubscriptionExpired,
		"subscription_paused":           ActionSubscriptionPaused,
		"subscription_resumed":          ActionSubscriptionResumed,
		"subscription_unpaused":         ActionSubscriptionResumed,
		"subscription_payment_success":  ActionPaymentSucceeded,
		"subscription_payment_failed":   ActionPaymentFailed,
		"order_refunded":                ActionRefund,
		"subscription_payment_refunded": ActionRefund,
	},
	ProviderStripe: {
		"checkout.session.completed":               ActionOrderCreated,
		"checkout.session.async_payment_succeeded": ActionOrderCreated,
		"customer.subscription.created":            ActionSubscriptionCreated,
		"customer.subscription.updated":            ActionSubscriptionUpdated,
		"customer.subscription.deleted":            ActionSubscriptionCancelled,
		"customer.subscription.paused":             ActionSubscriptionPaused,
		"customer.subscription.resumed":            ActionSubscriptionResumed,
		"invoice.paid":                             ActionPaymentSucceeded,
		"invoice.payment_failed":                   ActionPaymentFailed,
		"charge.refunded":                          ActionRefund,
	},
	ProviderPolar: {
		"checkout.updated":        ActionOrderCreated,
		"order.paid":              ActionOrderCreated,
		"subscription.created":    ActionSubscriptionCreated,
		"subscription.updated":    ActionSubscriptionUpdated,
		"subscription.active":     ActionSubscriptionUpdated,
		"subscription.uncanceled": ActionSubscriptionUpdated,
		"subscription.canceled":   ActionSubscriptionCancelled,
		"subscription.revoked":    ActionSubscriptionExpired,
		"order.refunded":          ActionRefund,
	},
	ProviderPaddle: {
		"transaction.completed":      ActionOrderCreated,
		"subscription.created":       ActionSubscriptionCreated,
		"subscription.updated":       ActionSubscriptionUpdated,
		"subscription.activated":     ActionSubscriptionUpdated,
		"subscription.canceled":      ActionSubscriptionCancelled,
		"subscription.paused":        ActionSubscriptionPaused,
		"subscription.resumed":       ActionSubscriptionResumed,
		"transaction.payment_failed": ActionPaymentFailed,
		"adjustment.created":         ActionRefund,
	},
}

// Dispatch selects the reconciliation action for a vendor event name.
// Unknown providers and event names return ActionNone.
func Dispatch(p Provider, eventName string) Action {
	return eventActions[p][eventName]
}

// EventNames returns the recognized event names for a provider.
func EventNames(p Provider) []string {
	names := make([]string, 0, len(eventActions[p]))
	for name := range eventActions[p] {
		names = append(names, name)
	}
	return names
}
