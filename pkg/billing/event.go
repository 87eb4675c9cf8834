package billing

import (
	"encoding/json"
	"time"
)

// Event is a verified webhook delivery decoded into provider-neutral fields.
//
// Action is the variant tag: every recognized vendor event name maps to one
// action, and anything else is kept as ActionNone with the raw payload attached
// so it can be logged and acknowledged without a state change.
type Event struct {
	Provider Provider
	ID       string // vendor delivery/event ID, empty when the vendor sends none
	Name     string // vendor event name, e.g. "customer.subscription.updated"
	Action   Action
	ObjectID string // vendor object the event is about (session, subscription, order)

	// Identifiers used by the resolver, in precedence order.
	UserID     string // propagated through checkout custom data
	CustomerID string
	Email      string
	BuyerName  string

	SubscriptionID string
	PlanID         string // variant, price or product identifier
	Status         Status
	RenewsAt       time.Time
	EndsAt         time.Time
	ResumesAt      time.Time
	CardBrand      string
	CardLastFour   string

	Raw json.RawMessage
}

// Recognized reports whether the event selected a reconciliation action.
func (e *Event) Recognized() bool {
	return e != nil && e.Action != ActionNone
}

func newEvent(p Provider, id, name string, raw []byte) *Event {
	return &Event{
		Provider: p,
		ID:       id,
		Name:     name,
		Action:   Dispatch(p, name),
		Raw:      json.RawMessage(raw),
	}
}
