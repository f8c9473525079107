package billing

import (
	"encoding/json"
	"fmt"
	"time"

	stripe "github.com/stripe/stripe-go/v82"

	"github.com/rosterbot/rosterbot/internal/model"
)

// Event is a verified provider notification, parsed into one closed variant
// per handled event type. The reconciler switches exhaustively over these;
// anything the parser does not recognize becomes EventIgnored rather than
// silently disappearing.
type Event interface {
	EventID() string
	eventMarker()
}

// ChargeSucceeded is a completed payment. Metadata set at checkout time
// carries the user/team/plan correlation back from the provider.
type ChargeSucceeded struct {
	ID              string
	PaymentIntentID string
	CustomerID      string
	UserID          string
	Email           string
	Plan            model.Plan
	AmountCents     int64
	Currency        string
}

// SubscriptionUpdated carries the provider's full current view of a
// subscription. Transitions re-derive local state from these fields wholly,
// never by patching, so out-of-order delivery converges.
type SubscriptionUpdated struct {
	ID               string
	CustomerID       string
	Plan             model.Plan
	Status           model.SubscriptionStatus
	CurrentPeriodEnd *time.Time
}

// SubscriptionDeleted ends a subscription.
type SubscriptionDeleted struct {
	ID         string
	CustomerID string
}

// EventIgnored is a verified event of a type the engine does not handle.
type EventIgnored struct {
	ID   string
	Type string
}

func (e ChargeSucceeded) EventID() string     { return e.ID }
func (e SubscriptionUpdated) EventID() string { return e.ID }
func (e SubscriptionDeleted) EventID() string { return e.ID }
func (e EventIgnored) EventID() string        { return e.ID }

func (ChargeSucceeded) eventMarker()     {}
func (SubscriptionUpdated) eventMarker() {}
func (SubscriptionDeleted) eventMarker() {}
func (EventIgnored) eventMarker()        {}

// ParseEvent converts a signature-verified stripe event into the typed union.
func ParseEvent(ev stripe.Event) (Event, error) {
	switch string(ev.Type) {
	case "payment_intent.succeeded":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(ev.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("unmarshal payment intent: %w", err)
		}
		out := ChargeSucceeded{
			ID:              ev.ID,
			PaymentIntentID: pi.ID,
			UserID:          pi.Metadata["user_id"],
			Email:           pi.Metadata["email"],
			Plan:            model.ParsePlan(pi.Metadata["plan"]),
			AmountCents:     pi.Amount,
			Currency:        string(pi.Currency),
		}
		if pi.Customer != nil {
			out.CustomerID = pi.Customer.ID
		}
		return out, nil

	case "customer.subscription.updated":
		sub, err := unmarshalSubscription(ev.Data.Raw)
		if err != nil {
			return nil, err
		}
		out := SubscriptionUpdated{
			ID:     ev.ID,
			Plan:   model.ParsePlan(sub.Metadata["plan"]),
			Status: model.ParseSubscriptionStatus(string(sub.Status)),
		}
		if sub.Customer != nil {
			out.CustomerID = sub.Customer.ID
		}
		if end := subscriptionPeriodEnd(sub); end > 0 {
			t := time.Unix(end, 0).UTC()
			out.CurrentPeriodEnd = &t
		}
		return out, nil

	case "customer.subscription.deleted":
		sub, err := unmarshalSubscription(ev.Data.Raw)
		if err != nil {
			return nil, err
		}
		out := SubscriptionDeleted{ID: ev.ID}
		if sub.Customer != nil {
			out.CustomerID = sub.Customer.ID
		}
		return out, nil

	default:
		return EventIgnored{ID: ev.ID, Type: string(ev.Type)}, nil
	}
}

func unmarshalSubscription(raw json.RawMessage) (*stripe.Subscription, error) {
	var sub stripe.Subscription
	if err := json.Unmarshal(raw, &sub); err != nil {
		return nil, fmt.Errorf("unmarshal subscription: %w", err)
	}
	return &sub, nil
}

// subscriptionPeriodEnd reads the current period end off the first item,
// where the provider reports it.
func subscriptionPeriodEnd(sub *stripe.Subscription) int64 {
	if sub.Items == nil || len(sub.Items.Data) == 0 {
		return 0
	}
	return sub.Items.Data[0].CurrentPeriodEnd
}
