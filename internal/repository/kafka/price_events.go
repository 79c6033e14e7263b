package kafka

import (
	"context"
	"time"

	"github.com/NordCoder/Aurum/internal/domain/quote"
)

const EventPriceUpdated = "price.updated"

type priceUpdated struct {
	Type          string    `json:"type"`
	InstrumentID  string    `json:"instrumentId"`
	CurrentPrice  string    `json:"currentPrice"`
	PreviousPrice string    `json:"previousPrice"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

var _ quote.Events = (*PriceEvents)(nil)

type PriceEvents struct {
	p *Producer
}

func NewPriceEvents(p *Producer) *PriceEvents { return &PriceEvents{p: p} }

// PublishPriceUpdated keys messages by instrument so one instrument stays on one partition.
func (e *PriceEvents) PublishPriceUpdated(ctx context.Context, q quote.Quote) error {
	return e.p.PublishJSON(ctx, []byte(q.InstrumentID), priceUpdated{
		Type:          EventPriceUpdated,
		InstrumentID:  q.InstrumentID,
		CurrentPrice:  q.CurrentPrice.String(),
		PreviousPrice: q.PreviousPrice.String(),
		UpdatedAt:     q.UpdatedAt.UTC(),
	})
}
