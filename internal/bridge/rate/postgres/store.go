// Package postgres implements rate.Store on PostgreSQL using sqlx's
// ExecContext/QueryContext idiom.
package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/r3e-bridge/bridge-engine/internal/apperr"
	"github.com/r3e-bridge/bridge-engine/internal/bridge/rate"
)

// Store implements rate.Store backed by PostgreSQL.
type Store struct {
	db *sqlx.DB
}

var _ rate.Store = (*Store)(nil)

// New wraps an open sqlx connection pool.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func (s *Store) InsertRate(ctx context.Context, d rate.Data) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO exchange_rates (from_currency, to_currency, rate, from_usd, to_usd, source, fetched_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		d.FromCurrency, d.ToCurrency, d.Rate, d.FromUSD, d.ToUSD, d.Source, d.FetchedAt,
	)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, err, "insert exchange rate %s/%s", d.FromCurrency, d.ToCurrency)
	}
	return nil
}

func (s *Store) History(ctx context.Context, from, to string, since time.Time) ([]rate.HistoryPoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT rate, fetched_at FROM exchange_rates
		WHERE from_currency = $1 AND to_currency = $2 AND fetched_at >= $3
		ORDER BY fetched_at ASC`, from, to, since)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, err, "query exchange rate history %s/%s", from, to)
	}
	defer rows.Close()

	var out []rate.HistoryPoint
	for rows.Next() {
		var p rate.HistoryPoint
		if err := rows.Scan(&p.Rate, &p.At); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
