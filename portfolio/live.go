package portfolio

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rustyeddy/tradebook/trade"
)

// Quoter supplies current prices. trade.Broker satisfies it.
type Quoter interface {
	CurrentPrice(ctx context.Context, symbol string) (float64, error)
}

// LiveSnapshot values the trades as they stand now: every fill counts,
// positions are marked at the quoter's current price and the orders are the
// ones each trade still tracks. Each ticker is quoted once.
func LiveSnapshot(ctx context.Context, states []trade.State, q Quoter, now time.Time) (Snapshot, error) {
	snap := Snapshot{
		Timestamp: now,
		Positions: []Position{},
		Orders:    []Order{},
		Source:    SourceLive,
	}
	quotes := map[string]float64{}

	var cash float64
	for _, st := range states {
		for _, tx := range st.Transactions {
			cash += st.CashFlow(tx)
		}
		if st.Kind == trade.KindCash {
			continue
		}

		net := trade.CalculateAt(st.Transactions, 0, 0, now).NetQuantity
		if !net.IsZero() {
			px, ok := quotes[st.Ticker]
			if !ok {
				var err error
				px, err = q.CurrentPrice(ctx, st.Ticker)
				if err != nil {
					return Snapshot{}, fmt.Errorf("quote %s: %w", st.Ticker, err)
				}
				quotes[st.Ticker] = px
			}
			m := trade.CalculateAt(st.Transactions, px, 0, now)
			snap.Positions = append(snap.Positions, position(st, m, px))
		}

		views := map[string]trade.OrderView{}
		for _, v := range trade.FoldOrders(st.OrderHistory) {
			views[v.OrderID] = v
		}
		ids := make([]string, 0, len(st.ActiveOrders))
		for oid := range st.ActiveOrders {
			ids = append(ids, oid)
		}
		sort.Strings(ids)
		for _, oid := range ids {
			v, ok := views[oid]
			if !ok {
				v = trade.OrderView{OrderID: oid}
			}
			snap.Orders = append(snap.Orders, order(st, v))
		}
	}

	finish(&snap, cash)
	return snap, nil
}
