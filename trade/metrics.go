package trade

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/tradebook/risk"
)

// Metrics are the figures derived from a trade's fills.
type Metrics struct {
	NetQuantity      SignedQuantity `json:"net_quantity"`
	AvgPrice         float64        `json:"avg_price"`
	UnrealizedPnL    float64        `json:"unrealized_pnl"`
	RealizedPnL      float64        `json:"realized_pnl"`
	TotalCommissions float64        `json:"total_commissions"`
	InitialRisk      float64        `json:"initial_risk"`
	RMultiple        float64        `json:"r_multiple"`
	DaysHeld         int            `json:"days_held"`
}

// Calculate runs CalculateAt with the wall clock.
func Calculate(txs []Transaction, currentPrice, initialRisk float64) Metrics {
	return CalculateAt(txs, currentPrice, initialRisk, time.Now())
}

// CalculateAt derives position metrics from fills using a weighted average
// cost basis. It is the only place PnL is computed; live records and the
// history replay both go through it.
//
// Fills are folded in timestamp order. A fill on the same side as the
// position averages into it. An opposite fill no larger than the position
// realizes PnL on the closed part and leaves the average unchanged. A larger
// opposite fill realizes the whole position and opens the remainder at the
// fill price. now is used for DaysHeld while the position is open.
func CalculateAt(txs []Transaction, currentPrice, initialRisk float64, now time.Time) Metrics {
	var (
		net        SignedQuantity
		avg        float64
		realized   float64
		commission float64
		first      time.Time
		last       time.Time
	)

	for i, tx := range sortTransactions(txs) {
		commission += tx.Commission
		if i == 0 {
			first = tx.Timestamp
		}
		last = tx.Timestamp

		switch {
		case net == 0:
			net = tx.Quantity
			avg = tx.Price

		case net.SameSide(tx.Quantity):
			value := net.Abs()*avg + tx.Quantity.Abs()*tx.Price
			net += tx.Quantity
			avg = value / net.Abs()

		case tx.Quantity.Abs() <= net.Abs()+Epsilon:
			realized += closedPnL(net, avg, tx.Price, tx.Quantity.Abs())
			net += tx.Quantity
			if net.IsZero() {
				net = 0
				avg = 0
			}

		default:
			realized += closedPnL(net, avg, tx.Price, net.Abs())
			net += tx.Quantity
			avg = tx.Price
		}
	}

	unrealized := Unrealized(net, avg, currentPrice)

	var days int
	if !first.IsZero() {
		end := now
		if net == 0 {
			end = last
		}
		days = int(end.Sub(first).Hours() / 24)
	}

	return Metrics{
		NetQuantity:      SignedQuantity(round(net.Float64(), 8)),
		AvgPrice:         round(avg, 4),
		UnrealizedPnL:    round(unrealized, 2),
		RealizedPnL:      round(realized, 2),
		TotalCommissions: round(commission, 2),
		InitialRisk:      initialRisk,
		RMultiple:        round(risk.RMultiple(realized+unrealized, initialRisk), 2),
		DaysHeld:         days,
	}
}

// Unrealized values an open position at price. Long gains when price rises,
// short gains when it falls.
func Unrealized(net SignedQuantity, avg, price float64) float64 {
	if net == 0 {
		return 0
	}
	return closedPnL(net, avg, price, net.Abs())
}

func closedPnL(net SignedQuantity, avg, price, qty float64) float64 {
	if net > 0 {
		return (price - avg) * qty
	}
	return (avg - price) * qty
}

// Slippage compares an execution against the price the order referenced
// (limit or stop trigger). Negative means the fill was worse than expected:
// paid more on a buy, received less on a sell.
func Slippage(reference, execution float64, qty SignedQuantity) float64 {
	if reference <= 0 {
		return 0
	}
	if qty > 0 {
		return reference - execution
	}
	return execution - reference
}

func round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
