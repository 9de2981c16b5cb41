package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const clientColumns = `id, user_id, agent_id, family_name, origin_country, destination_city, arrival_date, created_at, updated_at`

func (s *SQLStore) InsertClient(ctx context.Context, client Client) error {
	ts := now()
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO clients (id, user_id, agent_id, family_name, origin_country, destination_city, arrival_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), client.ID, client.UserID, client.AgentID, client.FamilyName, client.OriginCountry, client.DestinationCity, client.ArrivalDate, ts, ts)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert client: %w", err)
	}
	return nil
}

func (s *SQLStore) GetClient(ctx context.Context, clientID string) (Client, error) {
	var client Client
	err := s.db.GetContext(ctx, &client, s.q(`SELECT `+clientColumns+` FROM clients WHERE id=?`), clientID)
	if err != nil {
		return Client{}, err
	}
	return client, nil
}

func (s *SQLStore) GetClientByUserID(ctx context.Context, userID string) (Client, error) {
	var client Client
	err := s.db.GetContext(ctx, &client, s.q(`SELECT `+clientColumns+` FROM clients WHERE user_id=?`), userID)
	if err != nil {
		return Client{}, err
	}
	return client, nil
}

// ListClients returns every client when agentID is empty, otherwise only
// the clients assigned to that agent.
func (s *SQLStore) ListClients(ctx context.Context, agentID string) ([]Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients`
	args := []any{}
	if agentID != "" {
		query += ` WHERE agent_id=?`
		args = append(args, agentID)
	}
	query += ` ORDER BY family_name ASC, id ASC`

	items := make([]Client, 0)
	if err := s.db.SelectContext(ctx, &items, s.q(query), args...); err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	return items, nil
}

func (s *SQLStore) AssignAgent(ctx context.Context, clientID, agentID string) error {
	result, err := s.db.ExecContext(ctx, s.q(`UPDATE clients SET agent_id=?, updated_at=? WHERE id=?`), agentID, now(), clientID)
	if err != nil {
		return fmt.Errorf("assign agent: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("assign agent rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *SQLStore) GetHousingPreference(ctx context.Context, clientID string) (*HousingPreference, error) {
	var pref HousingPreference
	err := s.db.GetContext(ctx, &pref, s.q(`
		SELECT client_id, budget_min, budget_max, bedrooms, neighborhoods, move_in_date, notes, updated_at
		FROM housing_preferences
		WHERE client_id=?
	`), clientID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get housing preference: %w", err)
	}
	return &pref, nil
}

func (s *SQLStore) UpsertHousingPreference(ctx context.Context, pref HousingPreference) (HousingPreference, error) {
	pref.UpdatedAt = now()
	if pref.Neighborhoods == nil {
		pref.Neighborhoods = StringList{}
	}
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO housing_preferences (client_id, budget_min, budget_max, bedrooms, neighborhoods, move_in_date, notes, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (client_id) DO UPDATE SET
			budget_min=excluded.budget_min,
			budget_max=excluded.budget_max,
			bedrooms=excluded.bedrooms,
			neighborhoods=excluded.neighborhoods,
			move_in_date=excluded.move_in_date,
			notes=excluded.notes,
			updated_at=excluded.updated_at
	`), pref.ClientID, pref.BudgetMin, pref.BudgetMax, pref.Bedrooms, pref.Neighborhoods, pref.MoveInDate, pref.Notes, pref.UpdatedAt)
	if err != nil {
		return HousingPreference{}, fmt.Errorf("upsert housing preference: %w", err)
	}
	return pref, nil
}
