package store

import (
	"database/sql"
	"fmt"

	"github.com/rosterbot/rosterbot/internal/model"
)

// RevenueStore is append-only: there are no UPDATE or DELETE statements for
// the revenue ledger anywhere in the codebase.
type RevenueStore struct {
	db *sql.DB
}

func NewRevenueStore(db *sql.DB) *RevenueStore {
	return &RevenueStore{db: db}
}

func scanRevenue(scanner interface{ Scan(...any) error }) (*model.RevenueEntry, error) {
	var e model.RevenueEntry
	err := scanner.Scan(&e.ID, &e.TeamID, &e.EventID, &e.AmountCents, &e.Currency, &e.Description, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

const revenueCols = `id, team_id, event_id, amount_cents, currency, description, created_at`

// Append books a charge. The UNIQUE constraint on event_id makes the write
// idempotent: a redelivered event books nothing and the original row is
// returned.
func (s *RevenueStore) Append(teamID int64, eventID string, amountCents int64, currency, description string) (*model.RevenueEntry, error) {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO revenue_ledger (team_id, event_id, amount_cents, currency, description)
		 VALUES (?, ?, ?, ?, ?)`,
		teamID, eventID, amountCents, currency, description,
	)
	if err != nil {
		return nil, fmt.Errorf("append revenue entry: %w", err)
	}
	return s.GetByEventID(eventID)
}

func (s *RevenueStore) GetByEventID(eventID string) (*model.RevenueEntry, error) {
	row := s.db.QueryRow(`SELECT `+revenueCols+` FROM revenue_ledger WHERE event_id = ?`, eventID)
	e, err := scanRevenue(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get revenue entry: %w", err)
	}
	return e, nil
}

func (s *RevenueStore) ListByTeam(teamID int64) ([]model.RevenueEntry, error) {
	rows, err := s.db.Query(
		`SELECT `+revenueCols+` FROM revenue_ledger WHERE team_id = ? ORDER BY created_at DESC, id DESC`,
		teamID,
	)
	if err != nil {
		return nil, fmt.Errorf("list revenue entries: %w", err)
	}
	defer rows.Close()

	var entries []model.RevenueEntry
	for rows.Next() {
		e, err := scanRevenue(rows)
		if err != nil {
			return nil, fmt.Errorf("scan revenue entry: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}
