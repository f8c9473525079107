package store

import (
	"errors"
	"testing"
	"time"

	"github.com/rosterbot/rosterbot/internal/database"
	"github.com/rosterbot/rosterbot/internal/model"
)

func setupScheduleTestDB(t *testing.T) (*ScheduleStore, *TeamStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewScheduleStore(db), NewTeamStore(db)
}

func TestScheduleListUpcoming(t *testing.T) {
	ss, ts := setupScheduleTestDB(t)

	team, _ := ts.Create("Tigers", nil, model.PlanStarter, model.StatusActive)

	now := time.Now().UTC().Truncate(time.Second)
	past := now.Add(-48 * time.Hour)
	soon := now.Add(24 * time.Hour)
	later := now.Add(72 * time.Hour)

	if _, err := ss.Create(team.ID, "Old practice", "Field A", past); err != nil {
		t.Fatalf("create event: %v", err)
	}
	if _, err := ss.Create(team.ID, "Championship", "Stadium", later); err != nil {
		t.Fatalf("create event: %v", err)
	}
	if _, err := ss.Create(team.ID, "Practice", "Field B", soon); err != nil {
		t.Fatalf("create event: %v", err)
	}

	events, err := ss.ListUpcoming(team.ID, now, 10)
	if err != nil {
		t.Fatalf("list upcoming: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("len(events) = %d, want 2", len(events))
	}
	// Soonest first.
	if events[0].Title != "Practice" || events[1].Title != "Championship" {
		t.Errorf("order = %q, %q; want Practice, Championship", events[0].Title, events[1].Title)
	}

	limited, err := ss.ListUpcoming(team.ID, now, 1)
	if err != nil {
		t.Fatalf("list limited: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("len(limited) = %d, want 1", len(limited))
	}
}

func TestScheduleDeleteScopedToTeam(t *testing.T) {
	ss, ts := setupScheduleTestDB(t)

	tigers, _ := ts.Create("Tigers", nil, model.PlanStarter, model.StatusActive)
	sharks, _ := ts.Create("Sharks", nil, model.PlanStarter, model.StatusActive)

	event, err := ss.Create(tigers.ID, "Practice", "Field A", time.Now().UTC().Add(time.Hour))
	if err != nil {
		t.Fatalf("create event: %v", err)
	}

	// Another team cannot delete it.
	if err := ss.Delete(event.ID, sharks.ID); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("cross-team delete err = %v, want ErrNotFound", err)
	}
	events, _ := ss.ListUpcoming(tigers.ID, time.Now().UTC(), 10)
	if len(events) != 1 {
		t.Fatalf("event deleted by wrong team")
	}

	if err := ss.Delete(event.ID, tigers.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	events, _ = ss.ListUpcoming(tigers.ID, time.Now().UTC(), 10)
	if len(events) != 0 {
		t.Fatalf("len(events) = %d after delete, want 0", len(events))
	}
}
