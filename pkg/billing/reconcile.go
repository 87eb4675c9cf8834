package billing

import "time"

// Reconcile computes the next entitlement record for an event.
// It is a pure function of the stored record, the event and the catalog; the
// caller performs the write. The boolean is false when the event must not cause
// a write at all (unknown events, one-time orders for products outside the catalog).
//
// Every field is a last-write-wins assignment, so reapplying the same event to
// its own result yields the same record.
func Reconcile(current Entitlement, ev *Event, catalog *Catalog) (Entitlement, bool) {
	if !ev.Recognized() {
		return current, false
	}

	next := current.Clone()
	account := next.Account(ev.Provider)

	switch ev.Action {
	case ActionOrderCreated:
		plan, ok := catalog.Match(ev.Provider, ev.PlanID)
		if !ok {
			return current, false
		}
		account = mergeAccount(account, ev)
		next.HasAccess = true
		next.Status = StatusActive
		next.PlanName = plan.Name

	case ActionSubscriptionCreated, ActionSubscriptionUpdated:
		account = mergeAccount(account, ev)
		if ev.Status != "" {
			next.Status = ev.Status
			next.HasAccess = ev.Status.IsActive()
		}
		if plan, ok := catalog.Match(ev.Provider, ev.PlanID); ok {
			next.PlanName = plan.Name
		}

	case ActionPaymentSucceeded:
		// Plan identity is owned by subscription events; no catalog check here.
		account = mergeAccount(account, ev)
		next.HasAccess = true
		next.Status = StatusActive

	case ActionSubscriptionCancelled:
		// Access ends now, not at the recorded end of term.
		account = mergeAccount(account, ev)
		next.HasAccess = false
		next.Status = StatusCancelled

	case ActionSubscriptionExpired:
		account = mergeAccount(account, ev)
		account.RenewsAt = time.Time{}
		next.HasAccess = false
		next.Status = StatusExpired

	case ActionPaymentFailed:
		// Dunning: access stays as is until cancellation or expiry arrives.
		next.Status = StatusPastDue
		return next, true

	case ActionSubscriptionPaused:
		account = mergeAccount(account, ev)
		next.HasAccess = false
		next.Status = StatusPaused

	case ActionSubscriptionResumed:
		account = mergeAccount(account, ev)
		account.ResumesAt = time.Time{}
		next.HasAccess = true
		next.Status = StatusActive
		if ev.Status.IsActive() {
			next.Status = ev.Status
		}

	case ActionRefund:
		if ev.CustomerID != "" && account.CustomerID == "" {
			account.CustomerID = ev.CustomerID
		}
		next.HasAccess = false
		next.Status = StatusRefunded

	default:
		return current, false
	}

	if !account.equal(Account{}) {
		if next.Accounts == nil {
			next.Accounts = make(map[Provider]Account, 1)
		}
		next.Accounts[ev.Provider] = account
	}
	return next, true
}

// mergeAccount copies every linkage field present in the event, leaving
// fields the payload does not carry untouched.
func mergeAccount(a Account, ev *Event) Account {
	if ev.CustomerID != "" {
		a.CustomerID = ev.CustomerID
	}
	if ev.SubscriptionID != "" {
		a.SubscriptionID = ev.SubscriptionID
	}
	if ev.PlanID != "" {
		a.PlanID = ev.PlanID
	}
	if !ev.RenewsAt.IsZero() {
		a.RenewsAt = ev.RenewsAt
	}
	if !ev.EndsAt.IsZero() {
		a.EndsAt = ev.EndsAt
	}
	if !ev.ResumesAt.IsZero() {
		a.ResumesAt = ev.ResumesAt
	}
	if ev.CardBrand != "" {
		a.CardBrand = ev.CardBrand
	}
	if ev.CardLastFour != "" {
		a.CardLastFour = ev.CardLastFour
	}
	return a
}
