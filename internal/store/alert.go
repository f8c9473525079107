package store

import (
	"database/sql"
	"fmt"

	"github.com/rosterbot/rosterbot/internal/model"
)

type AlertStore struct {
	db *sql.DB
}

func NewAlertStore(db *sql.DB) *AlertStore {
	return &AlertStore{db: db}
}

func scanAlert(scanner interface{ Scan(...any) error }) (*model.Alert, error) {
	var a model.Alert
	var isRead int
	err := scanner.Scan(&a.ID, &a.TeamID, &a.Type, &a.Message, &isRead, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	a.IsRead = isRead != 0
	return &a, nil
}

const alertCols = `id, team_id, type, message, is_read, created_at`

func (s *AlertStore) Create(teamID int64, alertType, message string) (*model.Alert, error) {
	result, err := s.db.Exec(
		`INSERT INTO alerts (team_id, type, message) VALUES (?, ?, ?)`,
		teamID, alertType, message,
	)
	if err != nil {
		return nil, fmt.Errorf("insert alert: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *AlertStore) GetByID(id int64) (*model.Alert, error) {
	row := s.db.QueryRow(`SELECT `+alertCols+` FROM alerts WHERE id = ?`, id)
	a, err := scanAlert(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get alert: %w", err)
	}
	return a, nil
}

func (s *AlertStore) ListByTeam(teamID int64) ([]model.Alert, error) {
	rows, err := s.db.Query(
		`SELECT `+alertCols+` FROM alerts WHERE team_id = ? ORDER BY created_at DESC, id DESC`,
		teamID,
	)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	var alerts []model.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		alerts = append(alerts, *a)
	}
	return alerts, rows.Err()
}

// MarkRead flips the read flag. The team id is part of the WHERE clause so a
// manager can only acknowledge alerts belonging to their own team.
func (s *AlertStore) MarkRead(id, teamID int64) error {
	result, err := s.db.Exec(
		`UPDATE alerts SET is_read = 1 WHERE id = ? AND team_id = ?`,
		id, teamID,
	)
	if err != nil {
		return fmt.Errorf("mark alert read: %w", err)
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
