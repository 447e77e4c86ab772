// Package journal keeps a queryable record of finished trades and the daily
// equity curve. It is a reporting sink fed from the trade files; the files
// stay the source of truth and a journal can be rebuilt from them at any
// time with Sync.
package journal

import (
	"time"

	"github.com/rustyeddy/tradebook/portfolio"
)

type TradeRecord struct {
	TradeID      string
	Ticker       string
	Direction    string
	Quantity     float64 // opening-side size; shares sold short when Direction is SHORT
	EntryPrice   float64
	ExitPrice    float64
	OpenTime     time.Time
	CloseTime    time.Time
	RealizedPL   float64
	PnLPercent   float64
	RMultiple    float64
	DurationDays int
	Reason       string
}

// FromResult converts a replayed result. Times are stored in UTC.
func FromResult(r portfolio.TradeResult) TradeRecord {
	return TradeRecord{
		TradeID:      r.TradeID,
		Ticker:       r.Ticker,
		Direction:    string(r.Direction),
		Quantity:     r.Quantity,
		EntryPrice:   r.EntryPrice,
		ExitPrice:    r.ExitPrice,
		OpenTime:     r.EntryDate.UTC(),
		CloseTime:    r.ExitDate.UTC(),
		RealizedPL:   r.PnL,
		PnLPercent:   r.PnLPercent,
		RMultiple:    r.RMultiple,
		DurationDays: r.DurationDays,
	}
}

type EquitySnapshot struct {
	Time        time.Time
	Cash        float64
	Equity      float64
	MarketValue float64
	Positions   int
	OpenOrders  int
}

func FromSnapshot(s portfolio.Snapshot) EquitySnapshot {
	return EquitySnapshot{
		Time:        s.Timestamp.UTC(),
		Cash:        s.Cash,
		Equity:      s.Equity,
		MarketValue: s.MarketValue(),
		Positions:   len(s.Positions),
		OpenOrders:  len(s.Orders),
	}
}

type Journal interface {
	RecordTrade(TradeRecord) error
	RecordEquity(EquitySnapshot) error
	Close() error
}
