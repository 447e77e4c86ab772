package trade

import (
	"sort"
	"time"
)

// CashEvent is the account-level effect of one transaction.
type CashEvent struct {
	Timestamp time.Time      `json:"timestamp"`
	TradeID   string         `json:"trade_id"`
	Ticker    string         `json:"ticker"`
	Type      TxType         `json:"type"`
	Quantity  SignedQuantity `json:"quantity_change"`
	CashFlow  float64        `json:"cash_flow"`
	Price     float64        `json:"price"`
}

// EventStream flattens the transactions of one or more trades into a single
// timestamp-ordered stream.
func EventStream(states ...State) []CashEvent {
	var out []CashEvent
	for _, st := range states {
		for _, tx := range st.Transactions {
			qty := tx.Quantity
			if st.Kind == KindCash {
				qty = 0
			}
			out = append(out, CashEvent{
				Timestamp: tx.Timestamp,
				TradeID:   st.ID,
				Ticker:    st.Ticker,
				Type:      tx.Type,
				Quantity:  qty,
				CashFlow:  round(st.CashFlow(tx), 2),
				Price:     tx.Price,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}
