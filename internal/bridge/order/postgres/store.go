// Package postgres implements order.Store on PostgreSQL, using sqlx's
// ExecContext/QueryRowContext plus a conditional-UPDATE/RowsAffected
// discipline (jmoiron/sqlx, lib/pq). The conditional WHERE-status guard
// in UpdateStatus is what lets concurrent driver passes never
// double-apply a transition.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/r3e-bridge/bridge-engine/internal/apperr"
	"github.com/r3e-bridge/bridge-engine/internal/bridge/order"
	"github.com/r3e-bridge/bridge-engine/internal/money"
)

// Store implements order.Store backed by PostgreSQL.
type Store struct {
	db *sqlx.DB
}

var _ order.Store = (*Store)(nil)

// New wraps an open sqlx connection pool.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

type row struct {
	ID                    string          `db:"id"`
	Handle                string          `db:"handle"`
	Direction             string          `db:"direction"`
	SourceChain           string          `db:"source_chain"`
	DestChain             string          `db:"dest_chain"`
	FromAmount            int64           `db:"from_amount"`
	FromCurrency          string          `db:"from_currency"`
	ToAmount              int64           `db:"to_amount"`
	ToCurrency            string          `db:"to_currency"`
	DestAddress           string          `db:"dest_address"`
	DepositAddress        sql.NullString  `db:"deposit_address"`
	RateAtCreation        float64         `db:"rate_at_creation"`
	Fee                   int64           `db:"fee"`
	FeePercent            float64         `db:"fee_percent"`
	MinReceived           int64           `db:"min_received"`
	Slippage              float64         `db:"slippage"`
	Status                string          `db:"status"`
	Step                  int16           `db:"step"`
	DepositTxHash         sql.NullString  `db:"deposit_tx_hash"`
	WithdrawalTxHash      sql.NullString  `db:"withdrawal_tx_hash"`
	ConfirmationsCurrent  int             `db:"confirmations_current"`
	ConfirmationsRequired int             `db:"confirmations_required"`
	TelegramUserID        sql.NullInt64   `db:"telegram_user_id"`
	IPAddress             sql.NullString  `db:"ip_address"`
	ErrorMessage          sql.NullString  `db:"error_message"`
	Metadata              json.RawMessage `db:"metadata"`
	ExpiresAt             time.Time       `db:"expires_at"`
	CreatedAt             time.Time       `db:"created_at"`
	UpdatedAt             time.Time       `db:"updated_at"`
}

func (r row) toDomain() *order.BridgeOrder {
	o := &order.BridgeOrder{
		ID:                    r.ID,
		Handle:                r.Handle,
		Direction:             r.Direction,
		SourceChain:           r.SourceChain,
		DestChain:             r.DestChain,
		FromAmount:            money.Amount(r.FromAmount),
		FromCurrency:          r.FromCurrency,
		ToAmount:              money.Amount(r.ToAmount),
		ToCurrency:            r.ToCurrency,
		DestAddress:           r.DestAddress,
		RateAtCreation:        r.RateAtCreation,
		Fee:                   money.Amount(r.Fee),
		FeePercent:            r.FeePercent,
		MinReceived:           money.Amount(r.MinReceived),
		Slippage:              r.Slippage,
		Status:                order.Status(r.Status),
		Step:                  r.Step,
		ConfirmationsCurrent:  r.ConfirmationsCurrent,
		ConfirmationsRequired: r.ConfirmationsRequired,
		ExpiresAt:             r.ExpiresAt,
		CreatedAt:             r.CreatedAt,
		UpdatedAt:             r.UpdatedAt,
	}
	if r.DepositAddress.Valid {
		o.DepositAddress = &r.DepositAddress.String
	}
	if r.DepositTxHash.Valid {
		o.DepositTxHash = &r.DepositTxHash.String
	}
	if r.WithdrawalTxHash.Valid {
		o.WithdrawalTxHash = &r.WithdrawalTxHash.String
	}
	if r.TelegramUserID.Valid {
		o.TelegramUserID = &r.TelegramUserID.Int64
	}
	if r.IPAddress.Valid {
		o.IPAddress = &r.IPAddress.String
	}
	if r.ErrorMessage.Valid {
		o.ErrorMessage = &r.ErrorMessage.String
	}
	if len(r.Metadata) > 0 {
		_ = json.Unmarshal(r.Metadata, &o.Metadata)
	}
	return o
}

func nullStr(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func nullInt64(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

const selectColumns = `
	id, handle, direction, source_chain, dest_chain,
	from_amount, from_currency, to_amount, to_currency,
	dest_address, deposit_address, rate_at_creation, fee, fee_percent,
	min_received, slippage, status, step,
	deposit_tx_hash, withdrawal_tx_hash,
	confirmations_current, confirmations_required,
	telegram_user_id, ip_address, error_message, metadata,
	expires_at, created_at, updated_at`

func (s *Store) Create(ctx context.Context, o *order.BridgeOrder) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	o.CreatedAt = now
	o.UpdatedAt = now

	metadataJSON, err := json.Marshal(o.Metadata)
	if err != nil {
		return apperr.Internal("marshal order metadata: %v", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO bridge_orders (
			id, handle, direction, source_chain, dest_chain,
			from_amount, from_currency, to_amount, to_currency,
			dest_address, deposit_address, rate_at_creation, fee, fee_percent,
			min_received, slippage, status, step,
			deposit_tx_hash, withdrawal_tx_hash,
			confirmations_current, confirmations_required,
			telegram_user_id, ip_address, error_message, metadata,
			expires_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, $11, $12, $13, $14,
			$15, $16, $17, $18,
			$19, $20,
			$21, $22,
			$23, $24, $25, $26,
			$27, $28, $29
		)`,
		o.ID, o.Handle, o.Direction, o.SourceChain, o.DestChain,
		int64(o.FromAmount), o.FromCurrency, int64(o.ToAmount), o.ToCurrency,
		o.DestAddress, nullStr(o.DepositAddress), o.RateAtCreation, int64(o.Fee), o.FeePercent,
		int64(o.MinReceived), o.Slippage, string(o.Status), o.Step,
		nullStr(o.DepositTxHash), nullStr(o.WithdrawalTxHash),
		o.ConfirmationsCurrent, o.ConfirmationsRequired,
		nullInt64(o.TelegramUserID), nullStr(o.IPAddress), nullStr(o.ErrorMessage), metadataJSON,
		o.ExpiresAt, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, err, "insert order %s", o.Handle)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, handle string) (*order.BridgeOrder, error) {
	var r row
	err := s.db.QueryRowxContext(ctx, `SELECT `+selectColumns+` FROM bridge_orders WHERE handle = $1`, handle).StructScan(&r)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("order %s not found", handle)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, err, "get order %s", handle)
	}
	return r.toDomain(), nil
}

func (s *Store) List(ctx context.Context, filter order.ListFilter) ([]*order.BridgeOrder, int, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	var (
		rows *sqlx.Rows
		err  error
		args []interface{}
	)
	query := `SELECT ` + selectColumns + ` FROM bridge_orders`
	countQuery := `SELECT count(*) FROM bridge_orders`
	if filter.TelegramUserID != nil {
		query += ` WHERE telegram_user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
		countQuery += ` WHERE telegram_user_id = $1`
		args = []interface{}{*filter.TelegramUserID, limit, filter.Offset}
	} else {
		query += ` ORDER BY created_at DESC LIMIT $1 OFFSET $2`
		args = []interface{}{limit, filter.Offset}
	}

	rows, err = s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, 0, apperr.Wrap(apperr.KindInternal, err, "list orders")
	}
	defer rows.Close()

	out := make([]*order.BridgeOrder, 0, limit)
	for rows.Next() {
		var r row
		if err := rows.StructScan(&r); err != nil {
			return nil, 0, apperr.Wrap(apperr.KindInternal, err, "scan order")
		}
		out = append(out, r.toDomain())
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int
	if filter.TelegramUserID != nil {
		err = s.db.QueryRowContext(ctx, countQuery, *filter.TelegramUserID).Scan(&total)
	} else {
		err = s.db.QueryRowContext(ctx, countQuery).Scan(&total)
	}
	if err != nil {
		return nil, 0, apperr.Wrap(apperr.KindInternal, err, "count orders")
	}

	return out, total, nil
}

// UpdateStatus applies a conditional UPDATE guarded by WHERE status =
// expectedFrom; if the row's persisted status has already moved on
// (another driver pass got there first), RowsAffected is 0 and applied
// is false — no error, no re-fetch race.
func (s *Store) UpdateStatus(ctx context.Context, handle string, expectedFrom, to order.Status, mutate func(*order.BridgeOrder)) (*order.BridgeOrder, bool, error) {
	if !order.CanTransition(expectedFrom, to) {
		return nil, false, order.NewTransitionError(expectedFrom, to)
	}

	current, err := s.Get(ctx, handle)
	if err != nil {
		return nil, false, err
	}
	if current.Status != expectedFrom {
		return nil, false, nil
	}

	updated := *current
	updated.Status = to
	updated.Step = to.Step()
	if mutate != nil {
		mutate(&updated)
	}
	return s.writeConditional(ctx, handle, expectedFrom, &updated)
}

// Patch conditionally mutates non-status fields, guarded by the same
// WHERE-status discipline as UpdateStatus, without advancing status.
func (s *Store) Patch(ctx context.Context, handle string, expectedStatus order.Status, mutate func(*order.BridgeOrder)) (*order.BridgeOrder, bool, error) {
	current, err := s.Get(ctx, handle)
	if err != nil {
		return nil, false, err
	}
	if current.Status != expectedStatus {
		return nil, false, nil
	}

	updated := *current
	if mutate != nil {
		mutate(&updated)
	}
	return s.writeConditional(ctx, handle, expectedStatus, &updated)
}

func (s *Store) writeConditional(ctx context.Context, handle string, expectedStatus order.Status, updated *order.BridgeOrder) (*order.BridgeOrder, bool, error) {
	updated.UpdatedAt = time.Now().UTC()

	metadataJSON, err := json.Marshal(updated.Metadata)
	if err != nil {
		return nil, false, apperr.Internal("marshal order metadata: %v", err)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE bridge_orders SET
			status = $1, step = $2,
			deposit_address = $3, deposit_tx_hash = $4, withdrawal_tx_hash = $5,
			confirmations_current = $6, error_message = $7, metadata = $8,
			updated_at = $9
		WHERE handle = $10 AND status = $11`,
		string(updated.Status), updated.Step,
		nullStr(updated.DepositAddress), nullStr(updated.DepositTxHash), nullStr(updated.WithdrawalTxHash),
		updated.ConfirmationsCurrent, nullStr(updated.ErrorMessage), metadataJSON,
		updated.UpdatedAt, handle, string(expectedStatus),
	)
	if err != nil {
		return nil, false, apperr.Wrap(apperr.KindInternal, err, "update order %s", handle)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, false, err
	}
	if affected == 0 {
		return nil, false, nil
	}
	return updated, true, nil
}

func (s *Store) ListCreated(ctx context.Context, limit int) ([]*order.BridgeOrder, error) {
	return s.listByStatus(ctx, []order.Status{order.StatusCreated}, limit)
}

func (s *Store) ListAwaitingDeposit(ctx context.Context, limit int) ([]*order.BridgeOrder, error) {
	return s.listByStatus(ctx, []order.Status{order.StatusAwaitingDeposit}, limit)
}

func (s *Store) ListConfirming(ctx context.Context, limit int) ([]*order.BridgeOrder, error) {
	return s.listByStatus(ctx, []order.Status{order.StatusDepositDetected, order.StatusConfirming}, limit)
}

func (s *Store) ListWithdrawing(ctx context.Context, limit int) ([]*order.BridgeOrder, error) {
	return s.listByStatus(ctx, []order.Status{order.StatusBridging, order.StatusSigning, order.StatusSending}, limit)
}

func (s *Store) listByStatus(ctx context.Context, statuses []order.Status, limit int) ([]*order.BridgeOrder, error) {
	if limit <= 0 {
		limit = 100
	}
	strStatuses := make([]string, len(statuses))
	for i, st := range statuses {
		strStatuses[i] = string(st)
	}

	rows, err := s.db.QueryxContext(ctx, `
		SELECT `+selectColumns+` FROM bridge_orders
		WHERE status = ANY($1)
		ORDER BY updated_at ASC
		LIMIT $2`, pq.Array(strStatuses), limit)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, err, "list orders by status")
	}
	defer rows.Close()

	out := make([]*order.BridgeOrder, 0, limit)
	for rows.Next() {
		var r row
		if err := rows.StructScan(&r); err != nil {
			return nil, err
		}
		out = append(out, r.toDomain())
	}
	return out, rows.Err()
}

func (s *Store) ListExpiredAwaitingDeposit(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT handle FROM bridge_orders
		WHERE status = $1 AND expires_at < $2`,
		string(order.StatusAwaitingDeposit), now)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, err, "list expired orders")
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var handle string
		if err := rows.Scan(&handle); err != nil {
			return nil, err
		}
		out = append(out, handle)
	}
	return out, rows.Err()
}

func (s *Store) ExpireAwaitingDeposit(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE bridge_orders
		SET status = $1, step = $2, updated_at = $3
		WHERE status = $4 AND expires_at < $3`,
		string(order.StatusExpired), order.StatusExpired.Step(), now, string(order.StatusAwaitingDeposit))
	if err != nil {
		return 0, apperr.Wrap(apperr.KindInternal, err, "expire orders")
	}
	return result.RowsAffected()
}

func (s *Store) Stats(ctx context.Context) (*order.Stats, error) {
	st := &order.Stats{CountByStatus: make(map[order.Status]int64)}

	rows, err := s.db.QueryContext(ctx, `SELECT status, count(*) FROM bridge_orders GROUP BY status`)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, err, "aggregate order counts")
	}
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			rows.Close()
			return nil, err
		}
		st.CountByStatus[order.Status(status)] = count
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	var fromVolumeMicros sql.NullInt64
	err = s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(from_amount), 0) FROM bridge_orders WHERE status = $1`,
		string(order.StatusCompleted)).Scan(&fromVolumeMicros)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, err, "aggregate completed volume")
	}
	st.CompletedCount = st.CountByStatus[order.StatusCompleted]
	st.CompletedFromVolume = money.Amount(fromVolumeMicros.Int64).Float()

	return st, nil
}
