// Package portfolio answers point-in-time questions about a set of trades:
// what the account held at an instant, and how the trades closed in a
// window did. Everything here is derived from trade files; nothing is
// stored.
package portfolio

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/tradebook/trade"
)

type Source string

const (
	SourceLive    Source = "LIVE"
	SourceHistory Source = "HISTORY"
)

type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
)

type Position struct {
	Ticker        string               `json:"ticker"`
	TradeID       string               `json:"trade_id"`
	NetQuantity   trade.SignedQuantity `json:"net_quantity"`
	AvgPrice      float64              `json:"avg_price"`
	CurrentPrice  float64              `json:"current_price"`
	MarketValue   float64              `json:"market_value"`
	UnrealizedPnL float64              `json:"unrealized_pnl"`
}

type Order struct {
	Ticker   string               `json:"ticker"`
	OrderID  string               `json:"order_id"`
	Action   trade.Action         `json:"action"`
	Type     trade.OrderType      `json:"type"`
	Quantity trade.SignedQuantity `json:"quantity"`
	Price    *float64             `json:"price"`
	TradeID  string               `json:"trade_id"`
}

// Snapshot is the account at one instant. Equity is cash plus the market
// value of every position.
type Snapshot struct {
	Timestamp time.Time  `json:"timestamp"`
	Cash      float64    `json:"cash"`
	Equity    float64    `json:"equity"`
	Positions []Position `json:"positions"`
	Orders    []Order    `json:"orders"`
	Source    Source     `json:"source"`
}

// MarketValue sums the positions' market values.
func (s Snapshot) MarketValue() float64 {
	var v float64
	for _, p := range s.Positions {
		v += p.MarketValue
	}
	return round(v)
}

// TradeResult is one finished trade. Direction is the side of the first
// fill; entry and exit prices are the weighted averages of the opening and
// closing fills.
type TradeResult struct {
	TradeID      string    `json:"trade_id"`
	Ticker       string    `json:"ticker"`
	Direction    Direction `json:"direction"`
	EntryDate    time.Time `json:"entry_date"`
	ExitDate     time.Time `json:"exit_date"`
	EntryPrice   float64   `json:"entry_price"`
	ExitPrice    float64   `json:"exit_price"`
	// Quantity is the unsigned size of the opening side: shares bought for a
	// long trade, shares sold short for a short one. Direction says which.
	Quantity     float64   `json:"quantity"`
	PnL          float64   `json:"pnl"`
	PnLPercent   float64   `json:"pnl_percent"`
	RMultiple    float64   `json:"r_multiple"`
	DurationDays int       `json:"duration_days"`
}

// Win reports whether the trade made money after commissions.
func (r TradeResult) Win() bool { return r.PnL > 0 }

func round(v float64) float64 { return roundTo(v, 2) }

func roundTo(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
