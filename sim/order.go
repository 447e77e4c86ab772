package sim

import (
	"time"

	"github.com/rustyeddy/tradebook/trade"
)

type OrderState string

const (
	Working   OrderState = "WORKING"
	Filled    OrderState = "FILLED"
	Cancelled OrderState = "CANCELLED"
)

// Order is a paper order. Orders fill completely or not at all.
type Order struct {
	ID         string               `json:"id"`
	Ref        string               `json:"ref"`
	Symbol     string               `json:"symbol"`
	Quantity   trade.SignedQuantity `json:"quantity"`
	LimitPrice *float64             `json:"limit_price,omitempty"`
	StopPrice  *float64             `json:"stop_price,omitempty"`
	Triggered  bool                 `json:"triggered,omitempty"`
	State      OrderState           `json:"state"`
	Created    time.Time            `json:"created"`
	Updated    time.Time            `json:"updated"`
}

func (o *Order) Type() trade.OrderType { return trade.OrderTypeFor(o.LimitPrice, o.StopPrice) }

// Commission is charged per fill: PerShare times the share count, but never
// less than Minimum.
type Commission struct {
	PerShare float64 `json:"per_share" yaml:"per_share"`
	Minimum  float64 `json:"minimum" yaml:"minimum"`
}

func (c Commission) For(qty trade.SignedQuantity) float64 {
	v := c.PerShare * qty.Abs()
	if v < c.Minimum {
		return c.Minimum
	}
	return v
}
