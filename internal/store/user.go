package store

import (
	"database/sql"
	"fmt"

	"github.com/rosterbot/rosterbot/internal/model"
)

type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

func scanUser(scanner interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	var teamID sql.NullInt64
	var phone sql.NullString
	var status string
	err := scanner.Scan(&u.ID, &teamID, &u.Name, &phone, &status, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if teamID.Valid {
		u.TeamID = &teamID.Int64
	}
	if phone.Valid {
		u.Phone = &phone.String
	}
	u.Status = model.CommunicationStatus(status)
	return &u, nil
}

const userCols = `id, team_id, name, phone, communication_status, created_at, updated_at`

func (s *UserStore) Create(id string, teamID *int64, name string, phone *string) (*model.User, error) {
	var team sql.NullInt64
	if teamID != nil {
		team = sql.NullInt64{Int64: *teamID, Valid: true}
	}
	var ph sql.NullString
	if phone != nil {
		ph = sql.NullString{String: *phone, Valid: true}
	}
	_, err := s.db.Exec(
		`INSERT INTO users (id, team_id, name, phone) VALUES (?, ?, ?, ?)`,
		id, team, name, ph,
	)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return s.GetByID(id)
}

func (s *UserStore) GetByID(id string) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetByPhone(phone string) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE phone = ?`, phone)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by phone: %w", err)
	}
	return u, nil
}

func (s *UserStore) SetTeam(id string, teamID int64) error {
	_, err := s.db.Exec(
		`UPDATE users SET team_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		teamID, id,
	)
	if err != nil {
		return fmt.Errorf("set user team: %w", err)
	}
	return nil
}

func (s *UserStore) SetCommunicationStatus(id string, status model.CommunicationStatus) error {
	_, err := s.db.Exec(
		`UPDATE users SET communication_status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		string(status), id,
	)
	if err != nil {
		return fmt.Errorf("set communication status: %w", err)
	}
	return nil
}
