package quote

import (
	"context"

	"github.com/shopspring/decimal"
)

type Repo interface {
	Get(ctx context.Context, instrumentID string) (*Quote, error)
	Upsert(ctx context.Context, q *Quote) error
}

// Fetcher returns the current ask price from an upstream feed.
type Fetcher interface {
	Fetch(ctx context.Context, instrumentID string) (decimal.Decimal, error)
}

type Events interface {
	PublishPriceUpdated(ctx context.Context, q Quote) error
}
