package portfolio

import (
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/tradebook/risk"
	"github.com/rustyeddy/tradebook/trade"
)

// PriceHistory values a ticker at a past instant. ok is false when no price
// at or before t is known.
type PriceHistory interface {
	PriceAt(ticker string, t time.Time) (price float64, ok bool)
}

// Skipped is a trade file that could not be loaded.
type Skipped = trade.Skipped

// History replays a fixed set of trades. It holds no mutable state after
// construction, so its queries may run concurrently.
type History struct {
	states []trade.State
	prices PriceHistory
	log    zerolog.Logger
}

type Option func(*History)

func WithLogger(l zerolog.Logger) Option {
	return func(h *History) { h.log = l }
}

// NewHistory replays the given states. prices may be nil, in which case
// positions are valued at their last fill price.
func NewHistory(states []trade.State, prices PriceHistory, opts ...Option) *History {
	h := &History{
		states: append([]trade.State(nil), states...),
		prices: prices,
		log:    zerolog.Nop(),
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// LoadHistory reads every trade below the store root. Files that cannot be
// decoded are skipped, logged and returned; they never fail the load.
func LoadHistory(store *trade.Store, prices PriceHistory, opts ...Option) (*History, []Skipped, error) {
	states, skipped, err := store.Walk()
	if err != nil {
		return nil, nil, err
	}
	h := NewHistory(states, prices, opts...)
	for _, s := range skipped {
		h.log.Warn().Str("path", s.Path).Err(s.Err).Msg("skipping trade file")
	}
	h.log.Debug().Int("trades", len(states)).Int("skipped", len(skipped)).Msg("history loaded")
	return h, skipped, nil
}

func (h *History) States() []trade.State { return h.states }

// SnapshotAt rebuilds the account as of t from the fills and order log
// entries stamped at or before t.
func (h *History) SnapshotAt(t time.Time) Snapshot {
	snap := Snapshot{
		Timestamp: t,
		Positions: []Position{},
		Orders:    []Order{},
		Source:    SourceHistory,
	}

	var cash float64
	for _, st := range h.states {
		txs := st.TransactionsUntil(t)
		for _, tx := range txs {
			cash += st.CashFlow(tx)
		}
		if st.Kind == trade.KindCash {
			continue
		}

		if len(txs) > 0 {
			px := h.priceAt(st.Ticker, t, txs)
			m := trade.CalculateAt(txs, px, 0, t)
			if !m.NetQuantity.IsZero() {
				snap.Positions = append(snap.Positions, position(st, m, px))
			}
		}

		for _, v := range trade.ActiveOrdersAt(st.OrderHistory, t) {
			snap.Orders = append(snap.Orders, order(st, v))
		}
	}

	finish(&snap, cash)
	return snap
}

func (h *History) priceAt(ticker string, t time.Time, txs []trade.Transaction) float64 {
	if h.prices != nil {
		if px, ok := h.prices.PriceAt(ticker, t); ok && px > 0 {
			return px
		}
	}
	return txs[len(txs)-1].Price
}

// ClosedTradesIn returns one result per finished trade whose last fill is
// inside [start, end], ordered by exit date.
func (h *History) ClosedTradesIn(start, end time.Time) []TradeResult {
	var out []TradeResult
	for _, st := range h.states {
		if st.Kind == trade.KindCash || !st.Status.Done() {
			continue
		}
		txs := st.SortedTransactions()
		if len(txs) == 0 {
			continue
		}
		last := txs[len(txs)-1].Timestamp
		if last.Before(start) || last.After(end) {
			continue
		}
		out = append(out, result(st, txs))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ExitDate.Before(out[j].ExitDate)
	})
	return out
}

// DailySnapshots takes one snapshot at the last instant of every calendar
// day from start to end inclusive, in start's location.
func (h *History) DailySnapshots(start, end time.Time) []Snapshot {
	loc := start.Location()
	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
	end = end.In(loc)
	last := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, loc)

	var out []Snapshot
	for !day.After(last) {
		out = append(out, h.SnapshotAt(EndOfDay(day)))
		day = day.AddDate(0, 0, 1)
	}
	return out
}

// EndOfDay is 23:59:59.999999 on t's calendar day.
func EndOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 999999000, t.Location())
}

func result(st trade.State, txs []trade.Transaction) TradeResult {
	first, last := txs[0], txs[len(txs)-1]
	dir := Long
	if first.Quantity < 0 {
		dir = Short
	}

	var (
		pnl              float64
		inQty, inValue   float64
		outQty, outValue float64
	)
	for _, tx := range txs {
		pnl += st.CashFlow(tx)
		if (dir == Long) == (tx.Quantity > 0) {
			inQty += tx.Quantity.Abs()
			inValue += tx.Quantity.Abs() * tx.Price
		} else {
			outQty += tx.Quantity.Abs()
			outValue += tx.Quantity.Abs() * tx.Price
		}
	}

	var entry, exit float64
	if inQty > 0 {
		entry = inValue / inQty
	}
	if outQty > 0 {
		exit = outValue / outQty
	}

	var r float64
	if st.InitialStopPrice != nil {
		initial := risk.InitialRisk(first.Price, *st.InitialStopPrice, first.Quantity.Float64())
		r = risk.RMultiple(pnl, initial)
	}

	return TradeResult{
		TradeID:      st.ID,
		Ticker:       st.Ticker,
		Direction:    dir,
		EntryDate:    first.Timestamp,
		ExitDate:     last.Timestamp,
		EntryPrice:   roundTo(entry, 4),
		ExitPrice:    roundTo(exit, 4),
		Quantity:     inQty,
		PnL:          round(pnl),
		PnLPercent:   round(risk.PnLPercent(pnl, entry, inQty)),
		RMultiple:    round(r),
		DurationDays: int(last.Timestamp.Sub(first.Timestamp).Hours() / 24),
	}
}

func position(st trade.State, m trade.Metrics, px float64) Position {
	return Position{
		Ticker:        st.Ticker,
		TradeID:       st.ID,
		NetQuantity:   m.NetQuantity,
		AvgPrice:      m.AvgPrice,
		CurrentPrice:  px,
		MarketValue:   round(m.NetQuantity.Float64() * px),
		UnrealizedPnL: m.UnrealizedPnL,
	}
}

func order(st trade.State, v trade.OrderView) Order {
	o := Order{
		Ticker:   st.Ticker,
		OrderID:  v.OrderID,
		Action:   v.Action,
		Type:     v.Type,
		Quantity: v.Quantity,
		TradeID:  st.ID,
	}
	if ref, ok := v.RefPrice(); ok {
		o.Price = &ref
	}
	return o
}

func finish(snap *Snapshot, cash float64) {
	sort.SliceStable(snap.Positions, func(i, j int) bool {
		return snap.Positions[i].Ticker < snap.Positions[j].Ticker
	})
	sort.SliceStable(snap.Orders, func(i, j int) bool {
		if snap.Orders[i].Ticker != snap.Orders[j].Ticker {
			return snap.Orders[i].Ticker < snap.Orders[j].Ticker
		}
		return snap.Orders[i].OrderID < snap.Orders[j].OrderID
	})
	snap.Cash = round(cash)
	snap.Equity = round(cash + snap.MarketValue())
}
