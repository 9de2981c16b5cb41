package store

import (
	"context"
	"fmt"
	"time"
)

func (s *SQLStore) InsertMessage(ctx context.Context, msg Message) error {
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO messages (id, client_id, sender_id, sender_name, sender_role, body, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`), msg.ID, msg.ClientID, msg.SenderID, msg.SenderName, msg.SenderRole, msg.Body, msg.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// ListMessages returns a client's conversation oldest first. A non-nil since
// limits the result to messages created strictly after it.
func (s *SQLStore) ListMessages(ctx context.Context, clientID string, since *time.Time) ([]Message, error) {
	query := `
		SELECT id, client_id, sender_id, sender_name, sender_role, body, created_at
		FROM messages
		WHERE client_id=?`
	args := []any{clientID}
	if since != nil {
		query += ` AND created_at > ?`
		args = append(args, since.UTC())
	}
	query += ` ORDER BY created_at ASC, id ASC`

	items := make([]Message, 0)
	if err := s.db.SelectContext(ctx, &items, s.q(query), args...); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return items, nil
}

// InsertListing records a property link once per client; inserted is false
// when the URL was already known.
func (s *SQLStore) InsertListing(ctx context.Context, listing Listing) (bool, error) {
	result, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO listings (id, client_id, message_id, url, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (client_id, url) DO NOTHING
	`), listing.ID, listing.ClientID, listing.MessageID, listing.URL, listing.CreatedAt.UTC())
	if err != nil {
		return false, fmt.Errorf("insert listing: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert listing rows: %w", err)
	}
	return affected > 0, nil
}

func (s *SQLStore) ListListings(ctx context.Context, clientID string) ([]Listing, error) {
	items := make([]Listing, 0)
	err := s.db.SelectContext(ctx, &items, s.q(`
		SELECT id, client_id, message_id, url, created_at
		FROM listings
		WHERE client_id=?
		ORDER BY created_at ASC, id ASC
	`), clientID)
	if err != nil {
		return nil, fmt.Errorf("list listings: %w", err)
	}
	return items, nil
}
