package store

import (
	"database/sql"
	"fmt"

	"github.com/rosterbot/rosterbot/internal/model"
)

// ProcessedEventStore is the idempotency register: one row per provider event
// identifier whose effects have been applied. The primary key on event_id is
// the only locking the at-most-once guarantee needs.
type ProcessedEventStore struct {
	db *sql.DB
}

func NewProcessedEventStore(db *sql.DB) *ProcessedEventStore {
	return &ProcessedEventStore{db: db}
}

func (s *ProcessedEventStore) Get(eventID string) (*model.ProcessedEvent, error) {
	var e model.ProcessedEvent
	err := s.db.QueryRow(
		`SELECT event_id, outcome, processed_at FROM processed_events WHERE event_id = ?`,
		eventID,
	).Scan(&e.EventID, &e.Outcome, &e.ProcessedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get processed event: %w", err)
	}
	return &e, nil
}

// Record marks an event as processed. INSERT OR IGNORE keeps a concurrent
// duplicate delivery from failing here after both raced past the Get.
func (s *ProcessedEventStore) Record(eventID, outcome string) error {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO processed_events (event_id, outcome) VALUES (?, ?)`,
		eventID, outcome,
	)
	if err != nil {
		return fmt.Errorf("record processed event: %w", err)
	}
	return nil
}
