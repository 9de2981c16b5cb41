package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

type SQLStore struct {
	db *sqlx.DB
}

func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) DB() *sqlx.DB {
	return s.db
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStore) q(query string) string {
	return s.db.Rebind(query)
}

func now() time.Time {
	return time.Now().UTC()
}

const userColumns = `id, email, display_name, password_hash, role, created_at, updated_at`

func (s *SQLStore) CreateUser(ctx context.Context, user User) error {
	ts := now()
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO users (id, email, display_name, password_hash, role, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`), user.ID, user.Email, user.DisplayName, user.PasswordHash, user.Role, ts, ts)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *SQLStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	var user User
	err := s.db.GetContext(ctx, &user, s.q(`SELECT `+userColumns+` FROM users WHERE id=?`), userID)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *SQLStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := s.db.GetContext(ctx, &user, s.q(`SELECT `+userColumns+` FROM users WHERE LOWER(email)=LOWER(?)`), email)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *SQLStore) SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO refresh_sessions (token_hash, user_id, expires_at)
		VALUES (?, ?, ?)
		ON CONFLICT (token_hash) DO UPDATE SET user_id=excluded.user_id, expires_at=excluded.expires_at, revoked_at=NULL
	`), tokenHash, userID, expiresAt.UTC())
	if err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

func (s *SQLStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, s.q(`UPDATE refresh_sessions SET revoked_at=? WHERE token_hash=?`), now(), tokenHash)
	if err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

func (s *SQLStore) LookupRefreshSession(ctx context.Context, tokenHash string) (User, error) {
	var user User
	err := s.db.GetContext(ctx, &user, s.q(`
		SELECT u.id, u.email, u.display_name, u.password_hash, u.role, u.created_at, u.updated_at
		FROM refresh_sessions rs
		JOIN users u ON u.id = rs.user_id
		WHERE rs.token_hash = ?
			AND rs.revoked_at IS NULL
			AND rs.expires_at > ?
	`), tokenHash, now())
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *SQLStore) RevokeAccessToken(ctx context.Context, jti string, exp time.Time) error {
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO revoked_access_tokens (jti, expires_at)
		VALUES (?, ?)
		ON CONFLICT (jti) DO NOTHING
	`), jti, exp.UTC())
	if err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	return nil
}

func (s *SQLStore) IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count, s.q(`SELECT COUNT(*) FROM revoked_access_tokens WHERE jti=?`), jti)
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return count > 0, nil
}

// IsNotFound reports whether err means the row does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
