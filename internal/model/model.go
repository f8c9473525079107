package model

import "time"

// Plan is a subscription tier. The zero value means no plan.
type Plan string

const (
	PlanNone       Plan = ""
	PlanStarter    Plan = "starter"
	PlanAllStar    Plan = "all_star"
	PlanHallOfFame Plan = "hall_of_fame"
)

// ParsePlan normalizes a plan name from provider metadata. Unrecognized names
// fall back to Starter, matching the provider-side default.
func ParsePlan(s string) Plan {
	if p, ok := ParsePlanStrict(s); ok {
		return p
	}
	return PlanStarter
}

// ParsePlanStrict normalizes a plan name without the Starter fallback. Caller
// input goes through this so a typo is rejected instead of silently becoming
// a downgrade.
func ParsePlanStrict(s string) (Plan, bool) {
	switch normalize(s) {
	case "starter", "starter_pack":
		return PlanStarter, true
	case "all_star", "allstar":
		return PlanAllStar, true
	case "hall_of_fame", "halloffame":
		return PlanHallOfFame, true
	default:
		return PlanNone, false
	}
}

func normalize(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z':
			out = append(out, c+('a'-'A'))
		case c == ' ' || c == '-':
			out = append(out, '_')
		default:
			out = append(out, c)
		}
	}
	return string(out)
}

// DisplayName returns the customer-facing plan name.
func (p Plan) DisplayName() string {
	switch p {
	case PlanAllStar:
		return "All Star"
	case PlanHallOfFame:
		return "Hall of Fame"
	case PlanStarter:
		return "Starter Pack"
	default:
		return "None"
	}
}

// MonthlyAmountCents returns the monthly price in USD cents.
func (p Plan) MonthlyAmountCents() int64 {
	switch p {
	case PlanAllStar:
		return 19900
	case PlanHallOfFame:
		return 24900
	case PlanStarter:
		return 9900
	default:
		return 0
	}
}

// SubscriptionStatus is the billing state of a team.
type SubscriptionStatus string

const (
	StatusNone     SubscriptionStatus = "none"
	StatusTrialing SubscriptionStatus = "trialing"
	StatusActive   SubscriptionStatus = "active"
	StatusPastDue  SubscriptionStatus = "past_due"
	StatusCanceled SubscriptionStatus = "canceled"
)

// ParseSubscriptionStatus maps a provider status string onto the local enum.
func ParseSubscriptionStatus(s string) SubscriptionStatus {
	switch s {
	case "trialing":
		return StatusTrialing
	case "active":
		return StatusActive
	case "past_due":
		return StatusPastDue
	case "canceled", "incomplete_expired":
		return StatusCanceled
	case "none", "":
		return StatusNone
	default:
		// Unknown provider statuses (incomplete, unpaid, paused) are treated
		// as past_due: the subscription reference exists but is not in good
		// standing.
		return StatusPastDue
	}
}

// PlanState distinguishes optimistic Command API writes from values confirmed
// by reconciliation against a provider event.
type PlanState string

const (
	PlanStateProvisional PlanState = "provisional"
	PlanStateConfirmed   PlanState = "confirmed"
)

// CommunicationStatus is a user's messaging consent state.
type CommunicationStatus string

const (
	CommSubscribed CommunicationStatus = "subscribed"
	CommOptedOut   CommunicationStatus = "opted_out"
)

// Team is the account-level billing record. Plan, Status, PlanState and
// CurrentPeriodEnd are owned by the reconciler; the Command API may write
// provisional values the reconciler later confirms or corrects. Version backs
// the compare-and-set discipline on every team update.
type Team struct {
	ID               int64              `json:"id"`
	Name             string             `json:"name"`
	StripeCustomerID *string            `json:"stripe_customer_id"`
	Plan             Plan               `json:"plan"`
	PlanState        PlanState          `json:"plan_state"`
	Status           SubscriptionStatus `json:"subscription_status"`
	CurrentPeriodEnd *time.Time         `json:"current_period_end"`
	Version          int64              `json:"version"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

// User is a message recipient (a player). IDs are external identity-provider
// UUIDs, not local autoincrements.
type User struct {
	ID        string              `json:"id"`
	TeamID    *int64              `json:"team_id"`
	Name      string              `json:"name"`
	Phone     *string             `json:"phone"`
	Status    CommunicationStatus `json:"communication_status"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// Manager is a team operator with Command API access.
type Manager struct {
	ID           int64     `json:"id"`
	TeamID       int64     `json:"team_id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Session is a manager API session.
type Session struct {
	ID        int64     `json:"id"`
	Token     string    `json:"token"`
	ManagerID int64     `json:"manager_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// ProcessedEvent records that a provider event's effects have been applied,
// keyed by the provider's unique event identifier.
type ProcessedEvent struct {
	EventID     string    `json:"event_id"`
	Outcome     string    `json:"outcome"`
	ProcessedAt time.Time `json:"processed_at"`
}

// RevenueEntry is one row of the append-only revenue ledger. EventID is unique
// so a redelivered charge event can never double-book.
type RevenueEntry struct {
	ID          int64     `json:"id"`
	TeamID      int64     `json:"team_id"`
	EventID     string    `json:"event_id"`
	AmountCents int64     `json:"amount_cents"`
	Currency    string    `json:"currency"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// AlertTypeOptOut marks alerts raised when a player opts out of messaging.
const AlertTypeOptOut = "opt_out"

// Alert is a notification for a team's managers.
type Alert struct {
	ID        int64     `json:"id"`
	TeamID    int64     `json:"team_id"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

// ScheduleEvent is a team calendar entry used as generation context.
type ScheduleEvent struct {
	ID        int64     `json:"id"`
	TeamID    int64     `json:"team_id"`
	Title     string    `json:"title"`
	Location  string    `json:"location"`
	StartsAt  time.Time `json:"starts_at"`
	CreatedAt time.Time `json:"created_at"`
}

// PushSubscription is a manager browser's web push endpoint.
type PushSubscription struct {
	ID        int64     `json:"id"`
	ManagerID int64     `json:"manager_id"`
	Endpoint  string    `json:"endpoint"`
	P256dhKey string    `json:"p256dh_key"`
	AuthKey   string    `json:"auth_key"`
	CreatedAt time.Time `json:"created_at"`
}

// PaymentMethodSummary is the card summary returned by get_details.
type PaymentMethodSummary struct {
	Brand    string `json:"brand"`
	Last4    string `json:"last4"`
	ExpMonth int64  `json:"exp_month"`
	ExpYear  int64  `json:"exp_year"`
}
