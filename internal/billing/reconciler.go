package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/rosterbot/rosterbot/internal/model"
	"github.com/rosterbot/rosterbot/internal/store"
)

// Reconciliation outcomes recorded against event ids. Replayed events return
// the recorded outcome without re-applying effects.
const (
	OutcomeTeamCreated    = "team_created"
	OutcomeChargeRecorded = "charge_recorded"
	OutcomeStateUpdated   = "state_updated"
	OutcomeCanceled       = "canceled"
	OutcomeNoTeam         = "no_team"
	OutcomeIgnored        = "ignored"
)

const casMaxRetries = 5

// Reconciler applies verified provider events to the team ledger. It is the
// only writer of confirmed billing state and of revenue ledger rows.
type Reconciler struct {
	teams   *store.TeamStore
	users   *store.UserStore
	events  *store.ProcessedEventStore
	revenue *store.RevenueStore
	logger  *slog.Logger
}

func NewReconciler(
	ts *store.TeamStore,
	us *store.UserStore,
	es *store.ProcessedEventStore,
	rs *store.RevenueStore,
	logger *slog.Logger,
) *Reconciler {
	return &Reconciler{
		teams:   ts,
		users:   us,
		events:  es,
		revenue: rs,
		logger:  logger,
	}
}

// Apply reconciles one event and returns its outcome. Any error is a transient
// store failure: the caller must respond non-success so the provider's
// at-least-once delivery retries later. Effects are applied at most once per
// event id; a replay returns the previously recorded outcome.
func (r *Reconciler) Apply(ctx context.Context, ev Event) (string, error) {
	prior, err := r.events.Get(ev.EventID())
	if err != nil {
		return "", fmt.Errorf("idempotency check: %w", err)
	}
	if prior != nil {
		r.logger.Info("event replay skipped", "event_id", ev.EventID(), "outcome", prior.Outcome)
		return prior.Outcome, nil
	}

	var outcome string
	switch e := ev.(type) {
	case ChargeSucceeded:
		outcome, err = r.applyCharge(ctx, e)
	case SubscriptionUpdated:
		outcome, err = r.applySubscriptionUpdated(ctx, e)
	case SubscriptionDeleted:
		outcome, err = r.applySubscriptionDeleted(ctx, e)
	case EventIgnored:
		r.logger.Debug("unhandled event type", "event_id", e.ID, "type", e.Type)
		outcome = OutcomeIgnored
	default:
		return "", fmt.Errorf("unknown event variant %T", ev)
	}
	if err != nil {
		return "", err
	}

	if err := r.events.Record(ev.EventID(), outcome); err != nil {
		// The transition itself is idempotent, so failing here and letting
		// the provider redeliver is safe.
		return "", fmt.Errorf("record event: %w", err)
	}
	return outcome, nil
}

func (r *Reconciler) applyCharge(ctx context.Context, e ChargeSucceeded) (string, error) {
	team, err := r.findTeamForCharge(e)
	if err != nil {
		return "", err
	}

	outcome := OutcomeChargeRecorded
	if team == nil {
		name := e.Email
		if name == "" {
			name = e.UserID
		}
		// A missing customer reference must stay NULL: the column is UNIQUE,
		// so a second customerless charge would otherwise collide forever.
		var customerID *string
		if e.CustomerID != "" {
			customerID = &e.CustomerID
		}
		team, err = r.teams.Create(fmt.Sprintf("%s's Team", name), customerID, e.Plan, model.StatusActive)
		if err != nil {
			return "", fmt.Errorf("create team: %w", err)
		}
		if e.UserID != "" {
			if err := r.users.SetTeam(e.UserID, team.ID); err != nil {
				return "", fmt.Errorf("link user: %w", err)
			}
		}
		outcome = OutcomeTeamCreated
		r.logger.Info("team created from charge", "team_id", team.ID, "plan", e.Plan)
	} else {
		if team.StripeCustomerID == nil && e.CustomerID != "" {
			if err := r.teams.SetCustomerID(team.ID, e.CustomerID); err != nil {
				return "", err
			}
		}
		err = r.transition(ctx, team.ID, func(t *model.Team) target {
			return target{plan: e.Plan, status: model.StatusActive, periodEnd: t.CurrentPeriodEnd}
		})
		if err != nil {
			return "", err
		}
	}

	if _, err := r.revenue.Append(
		team.ID, e.ID, e.AmountCents, e.Currency,
		fmt.Sprintf("Payment for %s plan", e.Plan.DisplayName()),
	); err != nil {
		return "", err
	}
	return outcome, nil
}

// findTeamForCharge resolves the charge to a team by customer reference
// first, then through the paying user's existing team link.
func (r *Reconciler) findTeamForCharge(e ChargeSucceeded) (*model.Team, error) {
	if e.CustomerID != "" {
		team, err := r.teams.GetByCustomerID(e.CustomerID)
		if err != nil || team != nil {
			return team, err
		}
	}
	if e.UserID == "" {
		return nil, nil
	}
	user, err := r.users.GetByID(e.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil || user.TeamID == nil {
		return nil, nil
	}
	return r.teams.GetByID(*user.TeamID)
}

func (r *Reconciler) applySubscriptionUpdated(ctx context.Context, e SubscriptionUpdated) (string, error) {
	team, err := r.teams.GetByCustomerID(e.CustomerID)
	if err != nil {
		return "", err
	}
	if team == nil {
		r.logger.Warn("subscription update for unknown customer", "customer_id", e.CustomerID)
		return OutcomeNoTeam, nil
	}
	err = r.transition(ctx, team.ID, func(t *model.Team) target {
		return target{plan: e.Plan, status: e.Status, periodEnd: e.CurrentPeriodEnd}
	})
	if err != nil {
		return "", err
	}
	return OutcomeStateUpdated, nil
}

func (r *Reconciler) applySubscriptionDeleted(ctx context.Context, e SubscriptionDeleted) (string, error) {
	team, err := r.teams.GetByCustomerID(e.CustomerID)
	if err != nil {
		return "", err
	}
	if team == nil {
		r.logger.Warn("subscription delete for unknown customer", "customer_id", e.CustomerID)
		return OutcomeNoTeam, nil
	}
	// Canceled teams fall back to the lowest tier as a safe default.
	err = r.transition(ctx, team.ID, func(t *model.Team) target {
		return target{plan: model.PlanStarter, status: model.StatusCanceled, periodEnd: nil}
	})
	if err != nil {
		return "", err
	}
	return OutcomeCanceled, nil
}

// target is the full billing state a transition derives from an event. It is
// recomputed from a fresh team read on every compare-and-set attempt.
type target struct {
	plan      model.Plan
	status    model.SubscriptionStatus
	periodEnd *time.Time
}

// transition applies derive under the team's compare-and-set discipline. On a
// version conflict it re-reads and re-derives rather than overwriting blind.
func (r *Reconciler) transition(ctx context.Context, teamID int64, derive func(*model.Team) target) error {
	backoff := retry.WithMaxRetries(casMaxRetries, retry.NewConstant(10*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		team, err := r.teams.GetByID(teamID)
		if err != nil {
			return err
		}
		if team == nil {
			return fmt.Errorf("team %d: %w", teamID, model.ErrNotFound)
		}
		tg := derive(team)
		err = r.teams.UpdateBillingState(team.ID, team.Version, tg.plan, model.PlanStateConfirmed, tg.status, tg.periodEnd)
		if errors.Is(err, model.ErrVersionConflict) {
			r.logger.Debug("version conflict, retrying", "team_id", teamID)
			return retry.RetryableError(err)
		}
		return err
	})
}
