package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rosterbot/rosterbot/internal/model"
)

// ScheduleStore holds team calendar entries. The message pipeline reads the
// next few entries to give the generation service schedule context.
type ScheduleStore struct {
	db *sql.DB
}

func NewScheduleStore(db *sql.DB) *ScheduleStore {
	return &ScheduleStore{db: db}
}

func scanScheduleEvent(scanner interface{ Scan(...any) error }) (*model.ScheduleEvent, error) {
	var e model.ScheduleEvent
	err := scanner.Scan(&e.ID, &e.TeamID, &e.Title, &e.Location, &e.StartsAt, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

const scheduleCols = `id, team_id, title, location, starts_at, created_at`

func (s *ScheduleStore) Create(teamID int64, title, location string, startsAt time.Time) (*model.ScheduleEvent, error) {
	result, err := s.db.Exec(
		`INSERT INTO schedule_events (team_id, title, location, starts_at) VALUES (?, ?, ?, ?)`,
		teamID, title, location, startsAt.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert schedule event: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	row := s.db.QueryRow(`SELECT `+scheduleCols+` FROM schedule_events WHERE id = ?`, id)
	return scanScheduleEvent(row)
}

// ListUpcoming returns the team's next events starting at or after from,
// soonest first.
func (s *ScheduleStore) ListUpcoming(teamID int64, from time.Time, limit int) ([]model.ScheduleEvent, error) {
	rows, err := s.db.Query(
		`SELECT `+scheduleCols+` FROM schedule_events
		 WHERE team_id = ? AND starts_at >= ?
		 ORDER BY starts_at ASC LIMIT ?`,
		teamID, from.UTC(), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list schedule events: %w", err)
	}
	defer rows.Close()

	var events []model.ScheduleEvent
	for rows.Next() {
		e, err := scanScheduleEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan schedule event: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

func (s *ScheduleStore) Delete(id, teamID int64) error {
	result, err := s.db.Exec(`DELETE FROM schedule_events WHERE id = ? AND team_id = ?`, id, teamID)
	if err != nil {
		return fmt.Errorf("delete schedule event: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}
