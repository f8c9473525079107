package store

import (
	"testing"
	"time"

	"github.com/rosterbot/rosterbot/internal/database"
	"github.com/rosterbot/rosterbot/internal/model"
)

func setupTeamTestDB(t *testing.T) *TeamStore {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewTeamStore(db)
}

func TestTeamCreateAndGet(t *testing.T) {
	ts := setupTeamTestDB(t)

	cust := "cus_123"
	team, err := ts.Create("Tigers", &cust, model.PlanStarter, model.StatusActive)
	if err != nil {
		t.Fatalf("create team: %v", err)
	}
	if team.Name != "Tigers" {
		t.Errorf("name = %q, want %q", team.Name, "Tigers")
	}
	if team.StripeCustomerID == nil || *team.StripeCustomerID != "cus_123" {
		t.Errorf("customer id = %v, want cus_123", team.StripeCustomerID)
	}
	if team.Plan != model.PlanStarter {
		t.Errorf("plan = %q, want starter", team.Plan)
	}
	if team.PlanState != model.PlanStateConfirmed {
		t.Errorf("plan_state = %q, want confirmed", team.PlanState)
	}
	if team.Version != 1 {
		t.Errorf("version = %d, want 1", team.Version)
	}

	got, err := ts.GetByCustomerID("cus_123")
	if err != nil {
		t.Fatalf("get by customer id: %v", err)
	}
	if got == nil || got.ID != team.ID {
		t.Fatalf("get by customer id = %v, want team %d", got, team.ID)
	}

	missing, err := ts.GetByCustomerID("cus_nope")
	if err != nil {
		t.Fatalf("get missing customer: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for unknown customer, got %+v", missing)
	}
}

func TestTeamCustomerIDImmutable(t *testing.T) {
	ts := setupTeamTestDB(t)

	team, err := ts.Create("Tigers", nil, model.PlanStarter, model.StatusNone)
	if err != nil {
		t.Fatalf("create team: %v", err)
	}

	if err := ts.SetCustomerID(team.ID, "cus_first"); err != nil {
		t.Fatalf("set customer id: %v", err)
	}
	// Second set is a silent no-op; the first link wins.
	if err := ts.SetCustomerID(team.ID, "cus_second"); err != nil {
		t.Fatalf("second set customer id: %v", err)
	}

	got, err := ts.GetByID(team.ID)
	if err != nil {
		t.Fatalf("get team: %v", err)
	}
	if got.StripeCustomerID == nil || *got.StripeCustomerID != "cus_first" {
		t.Errorf("customer id = %v, want cus_first", got.StripeCustomerID)
	}
}

func TestTeamUpdateBillingStateCAS(t *testing.T) {
	ts := setupTeamTestDB(t)

	team, err := ts.Create("Tigers", nil, model.PlanStarter, model.StatusActive)
	if err != nil {
		t.Fatalf("create team: %v", err)
	}

	end := time.Now().UTC().Add(30 * 24 * time.Hour).Truncate(time.Second)
	if err := ts.UpdateBillingState(team.ID, team.Version, model.PlanAllStar, model.PlanStateConfirmed, model.StatusActive, &end); err != nil {
		t.Fatalf("update billing state: %v", err)
	}

	got, err := ts.GetByID(team.ID)
	if err != nil {
		t.Fatalf("get team: %v", err)
	}
	if got.Plan != model.PlanAllStar {
		t.Errorf("plan = %q, want all_star", got.Plan)
	}
	if got.Version != team.Version+1 {
		t.Errorf("version = %d, want %d", got.Version, team.Version+1)
	}
	if got.CurrentPeriodEnd == nil || !got.CurrentPeriodEnd.Equal(end) {
		t.Errorf("period end = %v, want %v", got.CurrentPeriodEnd, end)
	}

	// A writer holding the stale version must lose.
	err = ts.UpdateBillingState(team.ID, team.Version, model.PlanHallOfFame, model.PlanStateConfirmed, model.StatusActive, nil)
	if err != model.ErrVersionConflict {
		t.Fatalf("stale update err = %v, want ErrVersionConflict", err)
	}

	// Retrying with the fresh version succeeds.
	if err := ts.UpdateBillingState(got.ID, got.Version, model.PlanHallOfFame, model.PlanStateConfirmed, model.StatusActive, nil); err != nil {
		t.Fatalf("retry with fresh version: %v", err)
	}

	final, _ := ts.GetByID(team.ID)
	if final.Plan != model.PlanHallOfFame {
		t.Errorf("plan = %q, want hall_of_fame", final.Plan)
	}
	if final.CurrentPeriodEnd != nil {
		t.Errorf("period end = %v, want nil", final.CurrentPeriodEnd)
	}
}

func TestTeamSetPlanProvisional(t *testing.T) {
	ts := setupTeamTestDB(t)

	team, err := ts.Create("Tigers", nil, model.PlanStarter, model.StatusActive)
	if err != nil {
		t.Fatalf("create team: %v", err)
	}

	if err := ts.SetPlanProvisional(team.ID, model.PlanAllStar); err != nil {
		t.Fatalf("set provisional plan: %v", err)
	}

	got, err := ts.GetByID(team.ID)
	if err != nil {
		t.Fatalf("get team: %v", err)
	}
	if got.Plan != model.PlanAllStar {
		t.Errorf("plan = %q, want all_star", got.Plan)
	}
	if got.PlanState != model.PlanStateProvisional {
		t.Errorf("plan_state = %q, want provisional", got.PlanState)
	}
	if got.Version != team.Version+1 {
		t.Errorf("version = %d, want %d", got.Version, team.Version+1)
	}

	// A reconciliation that read the old version now conflicts and must
	// re-read before it can confirm.
	err = ts.UpdateBillingState(team.ID, team.Version, model.PlanStarter, model.PlanStateConfirmed, model.StatusActive, nil)
	if err != model.ErrVersionConflict {
		t.Fatalf("stale confirm err = %v, want ErrVersionConflict", err)
	}
}
