// Package postgres implements adminauth.Store on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/r3e-bridge/bridge-engine/internal/apperr"
	"github.com/r3e-bridge/bridge-engine/internal/bridge/adminauth"
)

// Store implements adminauth.Store backed by PostgreSQL.
type Store struct {
	db *sqlx.DB
}

var _ adminauth.Store = (*Store)(nil)

// New wraps an open sqlx connection pool.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func (s *Store) GetByUsername(ctx context.Context, username string) (*adminauth.AdminUser, error) {
	var (
		u        adminauth.AdminUser
		lastLogin sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, password_hash, role, last_login_at, created_at
		FROM admin_users WHERE username = $1`, username).Scan(
		&u.ID, &u.Username, &u.PasswordHash, &u.Role, &lastLogin, &u.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, err, "get admin user %s", username)
	}
	if lastLogin.Valid {
		u.LastLoginAt = &lastLogin.Time
	}
	return &u, nil
}

func (s *Store) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE admin_users SET last_login_at = $1 WHERE id = $2`, at, id)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, err, "touch admin last login %s", id)
	}
	return nil
}
