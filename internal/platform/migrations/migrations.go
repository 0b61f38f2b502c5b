// Package migrations applies the bridge engine's schema as a fixed,
// ordered sequence of idempotent DDL statements. golang-migrate/v4 is the
// pack's migration library of choice, but its driver model expects a
// versioned source (file:// or embed.FS) wrapping its own *sql.DB
// connection rather than an already-open handle a caller hands in --
// the bridge engine's composition root opens one pool for both stores
// and migrations, so Apply runs the statements directly against that
// pool with IF NOT EXISTS guards standing in for golang-migrate's version
// table. See DESIGN.md for why golang-migrate itself is not wired.
package migrations

import (
	"context"
	"database/sql"
	"fmt"
)

// Execer is the subset of *sql.DB (or *sql.Tx) Apply needs.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

var statements = []string{
	ordersTable,
	exchangeRatesTable,
	auditLogsTable,
	adminUsersTable,
	mpcUsedRequestIDsTable,
	mpcSignatureRequestsTable,
}

// Apply executes every migration statement in order against db.
func Apply(ctx context.Context, db Execer) error {
	for i, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply migration %d: %w", i, err)
		}
	}
	return nil
}

const ordersTable = `
CREATE TABLE IF NOT EXISTS bridge_orders (
	id                     UUID PRIMARY KEY,
	handle                 TEXT NOT NULL UNIQUE,
	direction              TEXT NOT NULL,
	source_chain           TEXT NOT NULL,
	dest_chain             TEXT NOT NULL,
	from_amount            BIGINT NOT NULL,
	from_currency          TEXT NOT NULL,
	to_amount              BIGINT NOT NULL,
	to_currency            TEXT NOT NULL,
	dest_address           TEXT NOT NULL,
	deposit_address        TEXT,
	rate_at_creation       DOUBLE PRECISION NOT NULL,
	fee                    BIGINT NOT NULL,
	fee_percent            DOUBLE PRECISION NOT NULL,
	min_received           BIGINT NOT NULL,
	slippage               DOUBLE PRECISION NOT NULL,
	status                 TEXT NOT NULL,
	step                   SMALLINT NOT NULL,
	deposit_tx_hash        TEXT,
	withdrawal_tx_hash     TEXT,
	confirmations_current  INTEGER NOT NULL DEFAULT 0,
	confirmations_required INTEGER NOT NULL DEFAULT 0,
	telegram_user_id       BIGINT,
	ip_address             TEXT,
	error_message          TEXT,
	metadata               JSONB NOT NULL DEFAULT '{}',
	expires_at             TIMESTAMPTZ NOT NULL,
	created_at             TIMESTAMPTZ NOT NULL,
	updated_at             TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS bridge_orders_status_idx ON bridge_orders (status, updated_at);
CREATE INDEX IF NOT EXISTS bridge_orders_telegram_user_idx ON bridge_orders (telegram_user_id, created_at DESC);
`

const exchangeRatesTable = `
CREATE TABLE IF NOT EXISTS exchange_rates (
	id            BIGSERIAL PRIMARY KEY,
	from_currency TEXT NOT NULL,
	to_currency   TEXT NOT NULL,
	rate          DOUBLE PRECISION NOT NULL,
	from_usd      DOUBLE PRECISION NOT NULL,
	to_usd        DOUBLE PRECISION NOT NULL,
	source        TEXT NOT NULL,
	fetched_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS exchange_rates_pair_idx ON exchange_rates (from_currency, to_currency, fetched_at DESC);
`

const auditLogsTable = `
CREATE TABLE IF NOT EXISTS audit_logs (
	id           BIGSERIAL PRIMARY KEY,
	action       TEXT NOT NULL,
	entity_type  TEXT NOT NULL,
	entity_id    TEXT NOT NULL,
	details      JSONB NOT NULL DEFAULT '{}',
	actor        TEXT NOT NULL DEFAULT '',
	ip_address   TEXT NOT NULL DEFAULT '',
	content_hash CHAR(64) NOT NULL,
	prev_hash    CHAR(64) NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS audit_logs_entity_idx ON audit_logs (entity_type, entity_id, id DESC);
`

const adminUsersTable = `
CREATE TABLE IF NOT EXISTS admin_users (
	id            UUID PRIMARY KEY,
	username      TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	role          TEXT NOT NULL DEFAULT 'admin',
	last_login_at TIMESTAMPTZ,
	created_at    TIMESTAMPTZ NOT NULL
);
`

const mpcUsedRequestIDsTable = `
CREATE TABLE IF NOT EXISTS mpc_used_request_ids (
	request_id TEXT PRIMARY KEY,
	used_at    TIMESTAMPTZ NOT NULL
);
`

const mpcSignatureRequestsTable = `
CREATE TABLE IF NOT EXISTS mpc_signature_requests (
	request_id   TEXT PRIMARY KEY,
	tx_data_hash TEXT NOT NULL,
	threshold    INTEGER NOT NULL,
	shares       JSONB NOT NULL DEFAULT '{}',
	status       TEXT NOT NULL,
	signature    TEXT NOT NULL DEFAULT '',
	error        TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL,
	completed_at TIMESTAMPTZ
);
`
