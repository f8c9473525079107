// Package stripeclient wraps the Stripe SDK behind the billing.Provider
// interface and owns webhook signature verification.
package stripeclient

import (
	"context"
	"fmt"
	"time"

	stripe "github.com/stripe/stripe-go/v82"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/customer"
	"github.com/stripe/stripe-go/v82/paymentmethod"
	"github.com/stripe/stripe-go/v82/setupintent"
	"github.com/stripe/stripe-go/v82/subscription"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/rosterbot/rosterbot/internal/billing"
	"github.com/rosterbot/rosterbot/internal/model"
)

// DefaultWebhookTolerance bounds the signature timestamp's clock skew, which
// blocks replay of old captured payloads.
const DefaultWebhookTolerance = 5 * time.Minute

type Config struct {
	SecretKey        string
	WebhookSecret    string
	WebhookTolerance time.Duration
	// ProductID is the provider-side product that plan prices attach to.
	ProductID  string
	SuccessURL string
	CancelURL  string
}

type Client struct {
	cfg Config
}

var _ billing.Provider = (*Client)(nil)

func NewClient(cfg Config) *Client {
	stripe.Key = cfg.SecretKey
	if cfg.WebhookTolerance == 0 {
		cfg.WebhookTolerance = DefaultWebhookTolerance
	}
	return &Client{cfg: cfg}
}

// VerifyWebhook recomputes the payload signature with the shared secret and
// returns the parsed event. A body that fails verification is never parsed
// further, even if it is valid JSON.
func (c *Client) VerifyWebhook(payload []byte, sigHeader string) (stripe.Event, error) {
	return webhook.ConstructEventWithTolerance(payload, sigHeader, c.cfg.WebhookSecret, c.cfg.WebhookTolerance)
}

// CreateCustomer creates a billing customer and returns its ID.
func (c *Client) CreateCustomer(ctx context.Context, email, teamName string) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Name:  stripe.String(teamName),
	}
	params.Context = ctx
	cust, err := customer.New(params)
	if err != nil {
		return "", fmt.Errorf("create customer: %w", err)
	}
	return cust.ID, nil
}

// GetCustomerDetails fetches the provider's authoritative view: the latest
// subscription and the default card, falling back to the subscription's own
// default payment method when the customer has none.
func (c *Client) GetCustomerDetails(ctx context.Context, customerID string) (*billing.CustomerDetails, error) {
	custParams := &stripe.CustomerParams{}
	custParams.Context = ctx
	custParams.AddExpand("invoice_settings.default_payment_method")
	cust, err := customer.Get(customerID, custParams)
	if err != nil {
		return nil, fmt.Errorf("get customer: %w", err)
	}

	details := &billing.CustomerDetails{Status: model.StatusNone}

	listParams := &stripe.SubscriptionListParams{Customer: stripe.String(customerID)}
	listParams.Context = ctx
	listParams.Limit = stripe.Int64(1)
	iter := subscription.List(listParams)
	var sub *stripe.Subscription
	if iter.Next() {
		sub = iter.Subscription()
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}

	if sub != nil {
		details.SubscriptionID = sub.ID
		details.Status = model.ParseSubscriptionStatus(string(sub.Status))
		if sub.Items != nil && len(sub.Items.Data) > 0 {
			item := sub.Items.Data[0]
			details.SubscriptionItemID = item.ID
			if item.CurrentPeriodEnd > 0 {
				t := time.Unix(item.CurrentPeriodEnd, 0).UTC()
				details.CurrentPeriodEnd = &t
			}
		}
	}

	pm := defaultPaymentMethod(cust)
	if pm == nil && sub != nil && sub.DefaultPaymentMethod != nil {
		pmParams := &stripe.PaymentMethodParams{}
		pmParams.Context = ctx
		pm, err = paymentmethod.Get(sub.DefaultPaymentMethod.ID, pmParams)
		if err != nil {
			return nil, fmt.Errorf("get payment method: %w", err)
		}
	}
	if pm != nil && pm.Card != nil {
		details.PaymentMethod = &model.PaymentMethodSummary{
			Brand:    string(pm.Card.Brand),
			Last4:    pm.Card.Last4,
			ExpMonth: pm.Card.ExpMonth,
			ExpYear:  pm.Card.ExpYear,
		}
	}
	return details, nil
}

func defaultPaymentMethod(cust *stripe.Customer) *stripe.PaymentMethod {
	if cust.InvoiceSettings == nil {
		return nil
	}
	return cust.InvoiceSettings.DefaultPaymentMethod
}

// UpdateSubscriptionPlan swaps the subscription's single item to the plan's
// price and tags the subscription so reconciliation can read the plan back
// from the update event.
func (c *Client) UpdateSubscriptionPlan(ctx context.Context, subscriptionID, itemID string, plan model.Plan) error {
	params := &stripe.SubscriptionParams{
		Items: []*stripe.SubscriptionItemsParams{
			{
				ID: stripe.String(itemID),
				PriceData: &stripe.SubscriptionItemPriceDataParams{
					Currency:   stripe.String("usd"),
					Product:    stripe.String(c.cfg.ProductID),
					UnitAmount: stripe.Int64(plan.MonthlyAmountCents()),
					Recurring: &stripe.SubscriptionItemPriceDataRecurringParams{
						Interval: stripe.String("month"),
					},
				},
			},
		},
	}
	params.Context = ctx
	params.AddMetadata("plan", string(plan))
	if _, err := subscription.Update(subscriptionID, params); err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	return nil
}

// CancelAtPeriodEnd requests cancellation provider-side. Local state is left
// untouched; the deletion event updates it when the provider confirms.
func (c *Client) CancelAtPeriodEnd(ctx context.Context, subscriptionID string) error {
	params := &stripe.SubscriptionParams{CancelAtPeriodEnd: stripe.Bool(true)}
	params.Context = ctx
	if _, err := subscription.Update(subscriptionID, params); err != nil {
		return fmt.Errorf("cancel subscription: %w", err)
	}
	return nil
}

// CreateCheckoutSession builds a hosted checkout for the plan and returns its
// URL. Correlation metadata goes on both the session and the subscription.
func (c *Client) CreateCheckoutSession(ctx context.Context, req billing.CheckoutRequest) (string, error) {
	meta := map[string]string{
		"user_id": req.UserID,
		"team_id": req.TeamID,
		"plan":    string(req.Plan),
		"email":   req.Email,
	}
	successURL := req.SuccessURL
	if successURL == "" {
		successURL = c.cfg.SuccessURL
	}
	cancelURL := req.CancelURL
	if cancelURL == "" {
		cancelURL = c.cfg.CancelURL
	}

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String("usd"),
					UnitAmount: stripe.Int64(req.Plan.MonthlyAmountCents()),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String(req.Plan.DisplayName()),
						Description: stripe.String(fmt.Sprintf("Subscription to %s", req.Plan.DisplayName())),
					},
					Recurring: &stripe.CheckoutSessionLineItemPriceDataRecurringParams{
						Interval: stripe.String("month"),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(successURL),
		CancelURL:  stripe.String(cancelURL),
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: meta,
		},
	}
	params.Context = ctx
	for k, v := range meta {
		params.AddMetadata(k, v)
	}
	if req.CustomerID != "" {
		params.Customer = stripe.String(req.CustomerID)
	} else if req.Email != "" {
		params.CustomerEmail = stripe.String(req.Email)
	}

	sess, err := checkoutsession.New(params)
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	return sess.URL, nil
}

// CreateSetupIntent starts out-of-band card rotation.
func (c *Client) CreateSetupIntent(ctx context.Context, customerID string) (string, error) {
	params := &stripe.SetupIntentParams{
		Customer:           stripe.String(customerID),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
	}
	params.Context = ctx
	si, err := setupintent.New(params)
	if err != nil {
		return "", fmt.Errorf("create setup intent: %w", err)
	}
	return si.ClientSecret, nil
}

// SetDefaultPaymentMethod points future invoices at the rotated card, on both
// the customer and the active subscription.
func (c *Client) SetDefaultPaymentMethod(ctx context.Context, customerID, subscriptionID, paymentMethodID string) error {
	custParams := &stripe.CustomerParams{
		InvoiceSettings: &stripe.CustomerInvoiceSettingsParams{
			DefaultPaymentMethod: stripe.String(paymentMethodID),
		},
	}
	custParams.Context = ctx
	if _, err := customer.Update(customerID, custParams); err != nil {
		return fmt.Errorf("update customer default payment method: %w", err)
	}

	if subscriptionID != "" {
		subParams := &stripe.SubscriptionParams{
			DefaultPaymentMethod: stripe.String(paymentMethodID),
		}
		subParams.Context = ctx
		if _, err := subscription.Update(subscriptionID, subParams); err != nil {
			return fmt.Errorf("update subscription default payment method: %w", err)
		}
	}
	return nil
}
