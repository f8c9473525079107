package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/rosterbot/rosterbot/internal/billing"
	"github.com/rosterbot/rosterbot/internal/middleware"
	"github.com/rosterbot/rosterbot/internal/model"
	"github.com/rosterbot/rosterbot/internal/store"
)

// providerTimeout bounds every outbound billing provider call.
const providerTimeout = 10 * time.Second

type SubscriptionHandler struct {
	provider billing.Provider
	teams    *store.TeamStore
	managers *store.ManagerStore
	logger   *slog.Logger
}

func NewSubscriptionHandler(provider billing.Provider, teams *store.TeamStore, managers *store.ManagerStore, logger *slog.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{provider: provider, teams: teams, managers: managers, logger: logger}
}

type subscriptionRequest struct {
	Action          string `json:"action"`
	Plan            string `json:"plan,omitempty"`
	PaymentMethodID string `json:"payment_method_id,omitempty"`
}

type detailsResponse struct {
	Team         teamDetails              `json:"team"`
	Subscription *billing.CustomerDetails `json:"subscription,omitempty"`
	Plans        []planDetails            `json:"available_plans"`
}

type teamDetails struct {
	ID               int64                    `json:"id"`
	Name             string                   `json:"name"`
	Plan             model.Plan               `json:"plan"`
	PlanDisplayName  string                   `json:"plan_display_name"`
	PlanState        model.PlanState          `json:"plan_state"`
	Status           model.SubscriptionStatus `json:"subscription_status"`
	CurrentPeriodEnd *time.Time               `json:"current_period_end"`
}

type planDetails struct {
	Plan        model.Plan `json:"plan"`
	DisplayName string     `json:"display_name"`
	AmountCents int64      `json:"amount_cents"`
}

func availablePlans() []planDetails {
	out := make([]planDetails, 0, 3)
	for _, p := range []model.Plan{model.PlanStarter, model.PlanAllStar, model.PlanHallOfFame} {
		out = append(out, planDetails{Plan: p, DisplayName: p.DisplayName(), AmountCents: p.MonthlyAmountCents()})
	}
	return out
}

// GetDetails handles GET /api/subscription.
func (h *SubscriptionHandler) GetDetails(w http.ResponseWriter, r *http.Request) {
	team := h.teamFromRequest(w, r)
	if team == nil {
		return
	}
	h.getDetails(w, r, team)
}

// Dispatch handles POST /api/subscription, routing on the action field.
func (h *SubscriptionHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	team := h.teamFromRequest(w, r)
	if team == nil {
		return
	}

	var req subscriptionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	switch req.Action {
	case "get_details":
		h.getDetails(w, r, team)
	case "change_plan":
		h.changePlan(w, r, team, req)
	case "cancel_subscription":
		h.cancelSubscription(w, r, team)
	case "create_checkout_session":
		h.createCheckoutSession(w, r, team, req)
	case "create_setup_intent":
		h.createSetupIntent(w, r, team)
	case "update_payment_method":
		h.updatePaymentMethod(w, r, team, req)
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown action %q", req.Action))
	}
}

// requirePlan validates a caller-supplied plan name. Strict parsing: the
// lenient Starter fallback only applies to provider metadata, not API input.
func requirePlan(w http.ResponseWriter, name string) (model.Plan, bool) {
	if name == "" {
		writeError(w, http.StatusBadRequest, "plan is required")
		return model.PlanNone, false
	}
	plan, ok := model.ParsePlanStrict(name)
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown plan %q", name))
		return model.PlanNone, false
	}
	return plan, true
}

func (h *SubscriptionHandler) teamFromRequest(w http.ResponseWriter, r *http.Request) *model.Team {
	_, teamID := middleware.ManagerFromContext(r.Context())
	team, err := h.teams.GetByID(teamID)
	if err != nil {
		h.logger.Error("get team", "team_id", teamID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load team")
		return nil
	}
	if team == nil {
		writeError(w, http.StatusNotFound, "team not found")
		return nil
	}
	return team
}

func (h *SubscriptionHandler) getDetails(w http.ResponseWriter, r *http.Request, team *model.Team) {
	resp := detailsResponse{
		Team: teamDetails{
			ID:               team.ID,
			Name:             team.Name,
			Plan:             team.Plan,
			PlanDisplayName:  team.Plan.DisplayName(),
			PlanState:        team.PlanState,
			Status:           team.Status,
			CurrentPeriodEnd: team.CurrentPeriodEnd,
		},
		Plans: availablePlans(),
	}

	if team.StripeCustomerID != nil {
		ctx, cancel := context.WithTimeout(r.Context(), providerTimeout)
		defer cancel()

		details, err := h.provider.GetCustomerDetails(ctx, *team.StripeCustomerID)
		if err != nil {
			// Provider being down should not hide the local billing state.
			h.logger.Error("get customer details", "team_id", team.ID, "error", err)
		} else {
			resp.Subscription = details
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *SubscriptionHandler) changePlan(w http.ResponseWriter, r *http.Request, team *model.Team, req subscriptionRequest) {
	plan, ok := requirePlan(w, req.Plan)
	if !ok {
		return
	}

	sub, ok := h.requireSubscription(w, r, team)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), providerTimeout)
	defer cancel()

	if err := h.provider.UpdateSubscriptionPlan(ctx, sub.SubscriptionID, sub.SubscriptionItemID, plan); err != nil {
		h.logger.Error("update subscription plan", "team_id", team.ID, "plan", plan, "error", err)
		writeError(w, http.StatusBadGateway, "billing provider error")
		return
	}

	// Optimistic local write. The reconciler confirms or corrects it when the
	// provider's subscription.updated event arrives.
	if err := h.teams.SetPlanProvisional(team.ID, plan); err != nil {
		h.logger.Error("set provisional plan", "team_id", team.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to record plan change")
		return
	}

	h.logger.Info("plan change requested", "team_id", team.ID, "plan", plan)
	writeJSON(w, http.StatusOK, map[string]any{
		"plan":       plan,
		"plan_state": model.PlanStateProvisional,
	})
}

func (h *SubscriptionHandler) cancelSubscription(w http.ResponseWriter, r *http.Request, team *model.Team) {
	sub, ok := h.requireSubscription(w, r, team)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), providerTimeout)
	defer cancel()

	if err := h.provider.CancelAtPeriodEnd(ctx, sub.SubscriptionID); err != nil {
		h.logger.Error("cancel subscription", "team_id", team.ID, "error", err)
		writeError(w, http.StatusBadGateway, "billing provider error")
		return
	}

	// No local state change. The subscription stays active until period end
	// and the deletion event drives the downgrade.
	h.logger.Info("cancellation scheduled", "team_id", team.ID)
	writeJSON(w, http.StatusOK, map[string]any{
		"canceled_at_period_end": true,
		"current_period_end":     sub.CurrentPeriodEnd,
	})
}

func (h *SubscriptionHandler) createCheckoutSession(w http.ResponseWriter, r *http.Request, team *model.Team, req subscriptionRequest) {
	plan, ok := requirePlan(w, req.Plan)
	if !ok {
		return
	}

	managerID, _ := middleware.ManagerFromContext(r.Context())
	manager, err := h.managers.GetByID(managerID)
	if err != nil || manager == nil {
		h.logger.Error("get manager for checkout", "manager_id", managerID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load manager")
		return
	}

	checkout := billing.CheckoutRequest{
		Email:  manager.Email,
		TeamID: strconv.FormatInt(team.ID, 10),
		Plan:   plan,
	}
	if team.StripeCustomerID != nil {
		checkout.CustomerID = *team.StripeCustomerID
	}

	ctx, cancel := context.WithTimeout(r.Context(), providerTimeout)
	defer cancel()

	url, err := h.provider.CreateCheckoutSession(ctx, checkout)
	if err != nil {
		h.logger.Error("create checkout session", "team_id", team.ID, "error", err)
		writeError(w, http.StatusBadGateway, "billing provider error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

func (h *SubscriptionHandler) createSetupIntent(w http.ResponseWriter, r *http.Request, team *model.Team) {
	if team.StripeCustomerID == nil {
		writeError(w, http.StatusPreconditionFailed, "team has no billing customer")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), providerTimeout)
	defer cancel()

	clientSecret, err := h.provider.CreateSetupIntent(ctx, *team.StripeCustomerID)
	if err != nil {
		h.logger.Error("create setup intent", "team_id", team.ID, "error", err)
		writeError(w, http.StatusBadGateway, "billing provider error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"client_secret": clientSecret})
}

func (h *SubscriptionHandler) updatePaymentMethod(w http.ResponseWriter, r *http.Request, team *model.Team, req subscriptionRequest) {
	if req.PaymentMethodID == "" {
		writeError(w, http.StatusBadRequest, "payment_method_id is required")
		return
	}

	sub, ok := h.requireSubscription(w, r, team)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), providerTimeout)
	defer cancel()

	if err := h.provider.SetDefaultPaymentMethod(ctx, *team.StripeCustomerID, sub.SubscriptionID, req.PaymentMethodID); err != nil {
		h.logger.Error("set default payment method", "team_id", team.ID, "error", err)
		writeError(w, http.StatusBadGateway, "billing provider error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"updated": true})
}

// requireSubscription loads the team's active provider subscription, writing
// a 412 when the team has no customer or no subscription to act on.
func (h *SubscriptionHandler) requireSubscription(w http.ResponseWriter, r *http.Request, team *model.Team) (*billing.CustomerDetails, bool) {
	if team.StripeCustomerID == nil {
		writeError(w, http.StatusPreconditionFailed, "team has no billing customer")
		return nil, false
	}

	ctx, cancel := context.WithTimeout(r.Context(), providerTimeout)
	defer cancel()

	details, err := h.provider.GetCustomerDetails(ctx, *team.StripeCustomerID)
	if err != nil {
		if errors.Is(err, model.ErrPrecondition) {
			writeError(w, http.StatusPreconditionFailed, "no active subscription")
			return nil, false
		}
		h.logger.Error("get customer details", "team_id", team.ID, "error", err)
		writeError(w, http.StatusBadGateway, "billing provider error")
		return nil, false
	}
	if details == nil || details.SubscriptionID == "" {
		writeError(w, http.StatusPreconditionFailed, "no active subscription")
		return nil, false
	}

	return details, true
}
