package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rosterbot/rosterbot/internal/model"
)

type TeamStore struct {
	db *sql.DB
}

func NewTeamStore(db *sql.DB) *TeamStore {
	return &TeamStore{db: db}
}

func scanTeam(scanner interface{ Scan(...any) error }) (*model.Team, error) {
	var t model.Team
	var customerID sql.NullString
	var periodEnd sql.NullTime
	var plan, planState, status string
	err := scanner.Scan(
		&t.ID, &t.Name, &customerID, &plan, &planState, &status,
		&periodEnd, &t.Version, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if customerID.Valid {
		t.StripeCustomerID = &customerID.String
	}
	if periodEnd.Valid {
		t.CurrentPeriodEnd = &periodEnd.Time
	}
	t.Plan = model.Plan(plan)
	t.PlanState = model.PlanState(planState)
	t.Status = model.SubscriptionStatus(status)
	return &t, nil
}

const teamCols = `id, name, stripe_customer_id, plan, plan_state, subscription_status, current_period_end, version, created_at, updated_at`

// Create inserts a team with its full billing state in one statement so a new
// team is never observable half-initialized.
func (s *TeamStore) Create(name string, customerID *string, plan model.Plan, status model.SubscriptionStatus) (*model.Team, error) {
	var cust sql.NullString
	if customerID != nil {
		cust = sql.NullString{String: *customerID, Valid: true}
	}
	result, err := s.db.Exec(
		`INSERT INTO teams (name, stripe_customer_id, plan, plan_state, subscription_status)
		 VALUES (?, ?, ?, ?, ?)`,
		name, cust, string(plan), string(model.PlanStateConfirmed), string(status),
	)
	if err != nil {
		return nil, fmt.Errorf("insert team: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *TeamStore) GetByID(id int64) (*model.Team, error) {
	row := s.db.QueryRow(`SELECT `+teamCols+` FROM teams WHERE id = ?`, id)
	t, err := scanTeam(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get team: %w", err)
	}
	return t, nil
}

func (s *TeamStore) GetByCustomerID(customerID string) (*model.Team, error) {
	row := s.db.QueryRow(`SELECT `+teamCols+` FROM teams WHERE stripe_customer_id = ?`, customerID)
	t, err := scanTeam(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get team by customer id: %w", err)
	}
	return t, nil
}

func (s *TeamStore) List() ([]*model.Team, error) {
	rows, err := s.db.Query(`SELECT ` + teamCols + ` FROM teams ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	defer rows.Close()

	var teams []*model.Team
	for rows.Next() {
		t, err := scanTeam(rows)
		if err != nil {
			return nil, fmt.Errorf("scan team: %w", err)
		}
		teams = append(teams, t)
	}
	return teams, rows.Err()
}

// SetCustomerID links the billing customer reference. The reference is
// immutable once set: the UPDATE only matches rows where it is still NULL, and
// a no-op here is not an error (the existing link wins).
func (s *TeamStore) SetCustomerID(id int64, customerID string) error {
	_, err := s.db.Exec(
		`UPDATE teams SET stripe_customer_id = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND stripe_customer_id IS NULL`,
		customerID, id,
	)
	if err != nil {
		return fmt.Errorf("set customer id: %w", err)
	}
	return nil
}

// UpdateBillingState applies a reconciled billing state under compare-and-set:
// the write only lands if the row version is still the one the caller read.
// Returns model.ErrVersionConflict when a concurrent writer advanced it first.
func (s *TeamStore) UpdateBillingState(id, version int64, plan model.Plan, state model.PlanState, status model.SubscriptionStatus, periodEnd *time.Time) error {
	var end sql.NullTime
	if periodEnd != nil {
		end = sql.NullTime{Time: periodEnd.UTC(), Valid: true}
	}
	result, err := s.db.Exec(
		`UPDATE teams
		 SET plan = ?, plan_state = ?, subscription_status = ?, current_period_end = ?,
		     version = version + 1, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND version = ?`,
		string(plan), string(state), string(status), end, id, version,
	)
	if err != nil {
		return fmt.Errorf("update billing state: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return model.ErrVersionConflict
	}
	return nil
}

// SetPlanProvisional records the Command API's optimistic plan write. It bumps
// the version so an in-flight reconciliation re-reads before overwriting.
func (s *TeamStore) SetPlanProvisional(id int64, plan model.Plan) error {
	_, err := s.db.Exec(
		`UPDATE teams
		 SET plan = ?, plan_state = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		string(plan), string(model.PlanStateProvisional), id,
	)
	if err != nil {
		return fmt.Errorf("set provisional plan: %w", err)
	}
	return nil
}
