package store

import (
	"testing"

	"github.com/rosterbot/rosterbot/internal/database"
	"github.com/rosterbot/rosterbot/internal/model"
)

func setupSessionTestDB(t *testing.T) (*SessionStore, *ManagerStore, *TeamStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewSessionStore(db), NewManagerStore(db), NewTeamStore(db)
}

func createTestManager(t *testing.T, ms *ManagerStore, ts *TeamStore) *model.Manager {
	t.Helper()
	team, err := ts.Create("Tigers", nil, model.PlanStarter, model.StatusActive)
	if err != nil {
		t.Fatalf("create team: %v", err)
	}
	manager, err := ms.Create(team.ID, "coach@example.com", "$2a$10$fakehashfakehashfakehash")
	if err != nil {
		t.Fatalf("create manager: %v", err)
	}
	return manager
}

func TestSessionCreateAndGet(t *testing.T) {
	ss, ms, ts := setupSessionTestDB(t)
	manager := createTestManager(t, ms, ts)

	session, err := ss.Create(manager.ID)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if session.Token == "" {
		t.Fatal("expected non-empty token")
	}
	if len(session.Token) != 64 {
		t.Errorf("token length = %d, want 64 hex chars", len(session.Token))
	}

	got, err := ss.GetByToken(session.Token)
	if err != nil {
		t.Fatalf("get by token: %v", err)
	}
	if got == nil || got.ManagerID != manager.ID {
		t.Fatalf("get by token = %v, want manager %d", got, manager.ID)
	}

	missing, err := ss.GetByToken("nope")
	if err != nil {
		t.Fatalf("get missing token: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for unknown token, got %+v", missing)
	}
}

func TestSessionDelete(t *testing.T) {
	ss, ms, ts := setupSessionTestDB(t)
	manager := createTestManager(t, ms, ts)

	session, err := ss.Create(manager.ID)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	if err := ss.Delete(session.Token); err != nil {
		t.Fatalf("delete session: %v", err)
	}

	got, err := ss.GetByToken(session.Token)
	if err != nil {
		t.Fatalf("get deleted: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil after delete, got %+v", got)
	}
}

func TestManagerGetByEmail(t *testing.T) {
	_, ms, ts := setupSessionTestDB(t)
	manager := createTestManager(t, ms, ts)

	got, err := ms.GetByEmail("coach@example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if got == nil || got.ID != manager.ID {
		t.Fatalf("get by email = %v, want manager %d", got, manager.ID)
	}

	missing, err := ms.GetByEmail("nobody@example.com")
	if err != nil {
		t.Fatalf("get missing email: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for unknown email, got %+v", missing)
	}
}
