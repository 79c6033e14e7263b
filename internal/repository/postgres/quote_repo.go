package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/NordCoder/Aurum/internal/domain/quote"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

var _ quote.Repo = (*QuoteRepo)(nil)

type QuoteRepo struct {
	db *DB
}

func NewQuoteRepo(db *DB) *QuoteRepo { return &QuoteRepo{db: db} }

// Prices travel as text so that numeric precision is kept end to end.
const (
	qQuoteGet = `
SELECT instrument_id, current_price::text, previous_price::text, updated_at
FROM price_quotes
WHERE instrument_id = $1;`

	qQuoteUpsert = `
INSERT INTO price_quotes (instrument_id, current_price, previous_price, updated_at)
VALUES ($1, $2::numeric, $3::numeric, $4)
ON CONFLICT (instrument_id) DO UPDATE
SET current_price  = EXCLUDED.current_price,
    previous_price = EXCLUDED.previous_price,
    updated_at     = EXCLUDED.updated_at;`
)

func (r *QuoteRepo) Get(ctx context.Context, instrumentID string) (*quote.Quote, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var (
		q             quote.Quote
		current, prev string
	)
	err := r.db.Pool.QueryRow(ctx, qQuoteGet, instrumentID).Scan(&q.InstrumentID, &current, &prev, &q.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, quote.ErrNotFound
		}
		return nil, fmt.Errorf("quote get: %w", err)
	}
	if q.CurrentPrice, err = decimal.NewFromString(current); err != nil {
		return nil, fmt.Errorf("quote current price: %w", err)
	}
	if q.PreviousPrice, err = decimal.NewFromString(prev); err != nil {
		return nil, fmt.Errorf("quote previous price: %w", err)
	}
	return &q, nil
}

func (r *QuoteRepo) Upsert(ctx context.Context, q *quote.Quote) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	if _, err := r.db.Pool.Exec(ctx, qQuoteUpsert,
		q.InstrumentID, q.CurrentPrice.String(), q.PreviousPrice.String(), q.UpdatedAt,
	); err != nil {
		return fmt.Errorf("quote upsert: %w", err)
	}
	return nil
}
