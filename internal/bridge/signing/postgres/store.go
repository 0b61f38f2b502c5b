// Package postgres implements signing.Store on PostgreSQL. Persisting
// used_request_ids and session state to a durable table (rather than an
// in-process map) is what lets a coordinator restart without reopening a
// replay window.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/r3e-bridge/bridge-engine/internal/apperr"
	"github.com/r3e-bridge/bridge-engine/internal/bridge/signing"
)

// Store implements signing.Store backed by PostgreSQL.
type Store struct {
	db *sqlx.DB
}

var _ signing.Store = (*Store)(nil)

// New wraps an open sqlx connection pool.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func (s *Store) IsRequestUsed(ctx context.Context, requestID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM mpc_used_request_ids WHERE request_id = $1)`, requestID).Scan(&exists)
	if err != nil {
		return false, apperr.Wrap(apperr.KindInternal, err, "check request replay")
	}
	return exists, nil
}

func (s *Store) MarkRequestUsed(ctx context.Context, requestID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO mpc_used_request_ids (request_id, used_at) VALUES ($1, $2)
		ON CONFLICT (request_id) DO NOTHING`, requestID, time.Now().UTC())
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, err, "mark request used")
	}
	return nil
}

func (s *Store) SaveSession(ctx context.Context, session *signing.SigningSession) error {
	sharesJSON, err := json.Marshal(session.Shares)
	if err != nil {
		return apperr.Internal("marshal signing shares: %v", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO mpc_signature_requests (
			request_id, tx_data_hash, threshold, shares, status, signature, error, created_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (request_id) DO UPDATE SET
			shares = EXCLUDED.shares, status = EXCLUDED.status,
			signature = EXCLUDED.signature, error = EXCLUDED.error,
			completed_at = EXCLUDED.completed_at`,
		session.RequestID, session.TxDataHash, session.Threshold, sharesJSON,
		string(session.Status), session.Signature, session.Error,
		session.CreatedAt, nullTime(session.CompletedAt),
	)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, err, "save signing session %s", session.RequestID)
	}
	return nil
}

func (s *Store) LoadSession(ctx context.Context, requestID string) (*signing.SigningSession, error) {
	var (
		session    signing.SigningSession
		sharesRaw  []byte
		status     string
		completed  sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT request_id, tx_data_hash, threshold, shares, status, signature, error, created_at, completed_at
		FROM mpc_signature_requests WHERE request_id = $1`, requestID).Scan(
		&session.RequestID, &session.TxDataHash, &session.Threshold, &sharesRaw,
		&status, &session.Signature, &session.Error, &session.CreatedAt, &completed,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, err, "load signing session %s", requestID)
	}

	session.Status = signing.SessionStatus(status)
	if completed.Valid {
		session.CompletedAt = completed.Time
	}
	session.Shares = make(map[int]signing.Share)
	if len(sharesRaw) > 0 {
		_ = json.Unmarshal(sharesRaw, &session.Shares)
	}
	return &session, nil
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}
