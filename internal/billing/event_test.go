package billing

import (
	"encoding/json"
	"testing"
	"time"

	stripe "github.com/stripe/stripe-go/v82"

	"github.com/rosterbot/rosterbot/internal/model"
)

func stripeEvent(t *testing.T, id, eventType, raw string) stripe.Event {
	t.Helper()
	return stripe.Event{
		ID:   id,
		Type: stripe.EventType(eventType),
		Data: &stripe.EventData{Raw: json.RawMessage(raw)},
	}
}

func TestParseChargeSucceeded(t *testing.T) {
	ev := stripeEvent(t, "evt_1", "payment_intent.succeeded", `{
		"id": "pi_1",
		"amount": 19900,
		"currency": "usd",
		"customer": {"id": "cus_1"},
		"metadata": {"user_id": "uuid-1", "email": "sam@example.com", "plan": "all_star"}
	}`)

	parsed, err := ParseEvent(ev)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	charge, ok := parsed.(ChargeSucceeded)
	if !ok {
		t.Fatalf("parsed = %T, want ChargeSucceeded", parsed)
	}
	if charge.EventID() != "evt_1" {
		t.Errorf("event id = %q, want evt_1", charge.EventID())
	}
	if charge.PaymentIntentID != "pi_1" {
		t.Errorf("payment intent = %q, want pi_1", charge.PaymentIntentID)
	}
	if charge.CustomerID != "cus_1" {
		t.Errorf("customer = %q, want cus_1", charge.CustomerID)
	}
	if charge.UserID != "uuid-1" {
		t.Errorf("user = %q, want uuid-1", charge.UserID)
	}
	if charge.Plan != model.PlanAllStar {
		t.Errorf("plan = %q, want all_star", charge.Plan)
	}
	if charge.AmountCents != 19900 {
		t.Errorf("amount = %d, want 19900", charge.AmountCents)
	}
}

func TestParseChargePlanDefaultsToStarter(t *testing.T) {
	ev := stripeEvent(t, "evt_1", "payment_intent.succeeded", `{
		"id": "pi_1",
		"amount": 9900,
		"currency": "usd",
		"metadata": {}
	}`)

	parsed, err := ParseEvent(ev)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	charge := parsed.(ChargeSucceeded)
	if charge.Plan != model.PlanStarter {
		t.Errorf("plan = %q, want starter", charge.Plan)
	}
	if charge.CustomerID != "" {
		t.Errorf("customer = %q, want empty", charge.CustomerID)
	}
}

func TestParseSubscriptionUpdated(t *testing.T) {
	end := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	ev := stripeEvent(t, "evt_2", "customer.subscription.updated", `{
		"id": "sub_1",
		"status": "past_due",
		"customer": {"id": "cus_1"},
		"metadata": {"plan": "hall_of_fame"},
		"items": {"data": [{"id": "si_1", "current_period_end": 1756684800}]}
	}`)

	parsed, err := ParseEvent(ev)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	upd, ok := parsed.(SubscriptionUpdated)
	if !ok {
		t.Fatalf("parsed = %T, want SubscriptionUpdated", parsed)
	}
	if upd.CustomerID != "cus_1" {
		t.Errorf("customer = %q, want cus_1", upd.CustomerID)
	}
	if upd.Plan != model.PlanHallOfFame {
		t.Errorf("plan = %q, want hall_of_fame", upd.Plan)
	}
	if upd.Status != model.StatusPastDue {
		t.Errorf("status = %q, want past_due", upd.Status)
	}
	if upd.CurrentPeriodEnd == nil || !upd.CurrentPeriodEnd.Equal(end) {
		t.Errorf("period end = %v, want %v", upd.CurrentPeriodEnd, end)
	}
}

func TestParseSubscriptionDeleted(t *testing.T) {
	ev := stripeEvent(t, "evt_3", "customer.subscription.deleted", `{
		"id": "sub_1",
		"status": "canceled",
		"customer": {"id": "cus_1"}
	}`)

	parsed, err := ParseEvent(ev)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	del, ok := parsed.(SubscriptionDeleted)
	if !ok {
		t.Fatalf("parsed = %T, want SubscriptionDeleted", parsed)
	}
	if del.CustomerID != "cus_1" {
		t.Errorf("customer = %q, want cus_1", del.CustomerID)
	}
}

func TestParseUnknownTypeIgnored(t *testing.T) {
	ev := stripeEvent(t, "evt_4", "invoice.finalized", `{"id": "in_1"}`)

	parsed, err := ParseEvent(ev)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	ignored, ok := parsed.(EventIgnored)
	if !ok {
		t.Fatalf("parsed = %T, want EventIgnored", parsed)
	}
	if ignored.Type != "invoice.finalized" {
		t.Errorf("type = %q, want invoice.finalized", ignored.Type)
	}
}
