package quote

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound            = errors.New("quote not found")
	ErrUnknownInstrument   = errors.New("unknown instrument")
	ErrUpstreamUnavailable = errors.New("price unavailable")
)

// Quote is the last known ask price of an instrument.
type Quote struct {
	InstrumentID  string          `json:"instrument_id"`
	CurrentPrice  decimal.Decimal `json:"current_price"`
	PreviousPrice decimal.Decimal `json:"previous_price"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Change is the delta between the two most recent prices.
func (q Quote) Change() decimal.Decimal { return q.CurrentPrice.Sub(q.PreviousPrice) }

// Next builds the record that replaces prev after a successful fetch.
// A nil prev means the instrument has never been priced.
func Next(prev *Quote, instrumentID string, price decimal.Decimal, at time.Time) Quote {
	previous := price
	if prev != nil {
		previous = prev.CurrentPrice
	}
	return Quote{
		InstrumentID:  instrumentID,
		CurrentPrice:  price,
		PreviousPrice: previous,
		UpdatedAt:     at,
	}
}
