package store

import (
	"errors"
	"testing"

	"github.com/rosterbot/rosterbot/internal/database"
	"github.com/rosterbot/rosterbot/internal/model"
)

func setupAlertTestDB(t *testing.T) (*AlertStore, *TeamStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewAlertStore(db), NewTeamStore(db)
}

func TestAlertCreateAndList(t *testing.T) {
	as, ts := setupAlertTestDB(t)

	tigers, _ := ts.Create("Tigers", nil, model.PlanStarter, model.StatusActive)
	sharks, _ := ts.Create("Sharks", nil, model.PlanStarter, model.StatusActive)

	alert, err := as.Create(tigers.ID, model.AlertTypeOptOut, "Sam has opted out of messages.")
	if err != nil {
		t.Fatalf("create alert: %v", err)
	}
	if alert.IsRead {
		t.Error("new alert should be unread")
	}

	if _, err := as.Create(sharks.ID, model.AlertTypeOptOut, "other team"); err != nil {
		t.Fatalf("create alert: %v", err)
	}

	alerts, err := as.ListByTeam(tigers.ID)
	if err != nil {
		t.Fatalf("list alerts: %v", err)
	}
	if len(alerts) != 1 {
		t.Fatalf("len(alerts) = %d, want 1", len(alerts))
	}
	if alerts[0].Message != "Sam has opted out of messages." {
		t.Errorf("message = %q", alerts[0].Message)
	}
}

func TestAlertMarkReadScopedToTeam(t *testing.T) {
	as, ts := setupAlertTestDB(t)

	tigers, _ := ts.Create("Tigers", nil, model.PlanStarter, model.StatusActive)
	sharks, _ := ts.Create("Sharks", nil, model.PlanStarter, model.StatusActive)

	alert, err := as.Create(tigers.ID, model.AlertTypeOptOut, "Sam has opted out of messages.")
	if err != nil {
		t.Fatalf("create alert: %v", err)
	}

	// Another team cannot mark it read.
	if err := as.MarkRead(alert.ID, sharks.ID); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("cross-team mark read err = %v, want ErrNotFound", err)
	}

	if err := as.MarkRead(alert.ID, tigers.ID); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	got, _ := as.GetByID(alert.ID)
	if !got.IsRead {
		t.Error("alert should be read")
	}
}
