// Package postgres implements audit.Store on PostgreSQL using sqlx's
// ExecContext/QueryContext idiom.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/r3e-bridge/bridge-engine/internal/apperr"
	"github.com/r3e-bridge/bridge-engine/internal/bridge/audit"
)

// Store implements audit.Store backed by PostgreSQL.
type Store struct {
	db *sqlx.DB
}

var _ audit.Store = (*Store)(nil)

// New wraps an open sqlx connection pool.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func (s *Store) LatestHash(ctx context.Context) (string, error) {
	var hash string
	err := s.db.QueryRowContext(ctx, `
		SELECT content_hash FROM audit_logs ORDER BY id DESC LIMIT 1`).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", apperr.Wrap(apperr.KindInternal, err, "read audit chain tip")
	}
	return hash, nil
}

func (s *Store) Append(ctx context.Context, r *audit.Record) error {
	detailsJSON, err := json.Marshal(r.Details)
	if err != nil {
		return apperr.Internal("marshal audit details: %v", err)
	}

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO audit_logs (action, entity_type, entity_id, details, actor, ip_address, content_hash, prev_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		r.Action, r.EntityType, r.EntityID, detailsJSON, r.Actor, r.IPAddress, r.ContentHash, r.PrevHash, r.CreatedAt,
	).Scan(&r.ID)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, err, "append audit record")
	}
	return nil
}

func (s *Store) List(ctx context.Context, entityType, entityID string, limit int) ([]audit.Record, error) {
	if limit <= 0 {
		limit = 100
	}

	var (
		rows *sql.Rows
		err  error
	)
	switch {
	case entityType != "" && entityID != "":
		rows, err = s.db.QueryContext(ctx, `
			SELECT id, action, entity_type, entity_id, details, actor, ip_address, content_hash, prev_hash, created_at
			FROM audit_logs WHERE entity_type = $1 AND entity_id = $2 ORDER BY id DESC LIMIT $3`, entityType, entityID, limit)
	case entityType != "":
		rows, err = s.db.QueryContext(ctx, `
			SELECT id, action, entity_type, entity_id, details, actor, ip_address, content_hash, prev_hash, created_at
			FROM audit_logs WHERE entity_type = $1 ORDER BY id DESC LIMIT $2`, entityType, limit)
	default:
		rows, err = s.db.QueryContext(ctx, `
			SELECT id, action, entity_type, entity_id, details, actor, ip_address, content_hash, prev_hash, created_at
			FROM audit_logs ORDER BY id DESC LIMIT $1`, limit)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, err, "list audit records")
	}
	defer rows.Close()

	var out []audit.Record
	for rows.Next() {
		var (
			r           audit.Record
			detailsRaw  []byte
		)
		if err := rows.Scan(&r.ID, &r.Action, &r.EntityType, &r.EntityID, &detailsRaw, &r.Actor, &r.IPAddress, &r.ContentHash, &r.PrevHash, &r.CreatedAt); err != nil {
			return nil, err
		}
		if len(detailsRaw) > 0 {
			_ = json.Unmarshal(detailsRaw, &r.Details)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) ListSince(ctx context.Context, afterID int64, limit int) ([]audit.Record, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, action, entity_type, entity_id, details, actor, ip_address, content_hash, prev_hash, created_at
		FROM audit_logs WHERE id > $1 ORDER BY id ASC LIMIT $2`, afterID, limit)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, err, "list audit records since")
	}
	defer rows.Close()

	var out []audit.Record
	for rows.Next() {
		var (
			r          audit.Record
			detailsRaw []byte
		)
		if err := rows.Scan(&r.ID, &r.Action, &r.EntityType, &r.EntityID, &detailsRaw, &r.Actor, &r.IPAddress, &r.ContentHash, &r.PrevHash, &r.CreatedAt); err != nil {
			return nil, err
		}
		if len(detailsRaw) > 0 {
			_ = json.Unmarshal(detailsRaw, &r.Details)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
