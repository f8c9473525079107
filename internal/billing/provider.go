package billing

import (
	"context"
	"time"

	"github.com/rosterbot/rosterbot/internal/model"
)

// CustomerDetails is the provider's current view of a billing customer: its
// latest subscription (if any) and default card. Provider-held fields are
// authoritative over anything cached locally.
type CustomerDetails struct {
	SubscriptionID     string
	SubscriptionItemID string
	Status             model.SubscriptionStatus
	CurrentPeriodEnd   *time.Time
	PaymentMethod      *model.PaymentMethodSummary
}

// CheckoutRequest describes a hosted checkout session. The metadata fields are
// attached to both the session and the resulting subscription so webhook
// events correlate back to the team.
type CheckoutRequest struct {
	CustomerID string // empty for first-time checkout; the provider creates one
	Email      string
	UserID     string
	TeamID     string
	Plan       model.Plan
	SuccessURL string
	CancelURL  string
}

// Provider abstracts the billing provider for the Command API. The concrete
// implementation lives in the stripeclient package; tests substitute fakes.
// All methods honor ctx deadlines; a timed-out call must leave no local state
// behind.
type Provider interface {
	CreateCustomer(ctx context.Context, email, teamName string) (customerID string, err error)
	GetCustomerDetails(ctx context.Context, customerID string) (*CustomerDetails, error)
	UpdateSubscriptionPlan(ctx context.Context, subscriptionID, itemID string, plan model.Plan) error
	CancelAtPeriodEnd(ctx context.Context, subscriptionID string) error
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (url string, err error)
	CreateSetupIntent(ctx context.Context, customerID string) (clientSecret string, err error)
	SetDefaultPaymentMethod(ctx context.Context, customerID, subscriptionID, paymentMethodID string) error
}
