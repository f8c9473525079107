package store

import (
	"database/sql"
	"fmt"

	"github.com/rosterbot/rosterbot/internal/model"
)

type ManagerStore struct {
	db *sql.DB
}

func NewManagerStore(db *sql.DB) *ManagerStore {
	return &ManagerStore{db: db}
}

func scanManager(scanner interface{ Scan(...any) error }) (*model.Manager, error) {
	var m model.Manager
	err := scanner.Scan(&m.ID, &m.TeamID, &m.Email, &m.PasswordHash, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

const managerCols = `id, team_id, email, password_hash, created_at`

func (s *ManagerStore) Create(teamID int64, email, passwordHash string) (*model.Manager, error) {
	result, err := s.db.Exec(
		`INSERT INTO managers (team_id, email, password_hash) VALUES (?, ?, ?)`,
		teamID, email, passwordHash,
	)
	if err != nil {
		return nil, fmt.Errorf("insert manager: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *ManagerStore) GetByID(id int64) (*model.Manager, error) {
	row := s.db.QueryRow(`SELECT `+managerCols+` FROM managers WHERE id = ?`, id)
	m, err := scanManager(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get manager: %w", err)
	}
	return m, nil
}

func (s *ManagerStore) GetByEmail(email string) (*model.Manager, error) {
	row := s.db.QueryRow(`SELECT `+managerCols+` FROM managers WHERE email = ?`, email)
	m, err := scanManager(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get manager by email: %w", err)
	}
	return m, nil
}

func (s *ManagerStore) ListByTeam(teamID int64) ([]model.Manager, error) {
	rows, err := s.db.Query(`SELECT `+managerCols+` FROM managers WHERE team_id = ?`, teamID)
	if err != nil {
		return nil, fmt.Errorf("list managers: %w", err)
	}
	defer rows.Close()

	var managers []model.Manager
	for rows.Next() {
		m, err := scanManager(rows)
		if err != nil {
			return nil, fmt.Errorf("scan manager: %w", err)
		}
		managers = append(managers, *m)
	}
	return managers, rows.Err()
}
