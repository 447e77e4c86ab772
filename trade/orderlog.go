package trade

import (
	"sort"
	"time"
)

// OrderView is one broker order as reconstructed from the order log.
type OrderView struct {
	OrderID    string
	Action     Action
	Type       OrderType
	Quantity   SignedQuantity
	LimitPrice *float64
	StopPrice  *float64
	Status     OrderStatus

	// CancelRequested is set once a cancel was sent for the order, even if
	// the broker has not confirmed it yet.
	CancelRequested bool

	Submitted time.Time
	Updated   time.Time
}

// Active reports whether the order was still working.
func (v OrderView) Active() bool { return !v.Status.Terminal() }

// RefPrice is the limit price if set, otherwise the stop price.
func (v OrderView) RefPrice() (float64, bool) {
	return OrderLogEntry{LimitPrice: v.LimitPrice, StopPrice: v.StopPrice}.RefPrice()
}

// FoldOrders replays the whole log.
func FoldOrders(log []OrderLogEntry) []OrderView {
	return fold(log, time.Time{}, false)
}

// FoldOrdersAt replays the entries stamped at or before cutoff.
func FoldOrdersAt(log []OrderLogEntry, cutoff time.Time) []OrderView {
	return fold(log, cutoff, true)
}

// ActiveOrdersAt lists the orders whose latest status at cutoff was not
// terminal.
func ActiveOrdersAt(log []OrderLogEntry, cutoff time.Time) []OrderView {
	var out []OrderView
	for _, v := range FoldOrdersAt(log, cutoff) {
		if v.Active() {
			out = append(out, v)
		}
	}
	return out
}

// fold is a pure left fold over the timestamp-sorted log. The first entry of
// an order defines it; later entries only move its status. Once an order
// reaches a terminal status it stays there.
func fold(log []OrderLogEntry, cutoff time.Time, bounded bool) []OrderView {
	entries := append([]OrderLogEntry(nil), log...)
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})

	views := map[string]*OrderView{}
	var order []string

	for _, e := range entries {
		if bounded && e.Timestamp.After(cutoff) {
			break
		}
		v, ok := views[e.OrderID]
		if !ok {
			v = &OrderView{
				OrderID:    e.OrderID,
				Action:     e.Action,
				Type:       e.Type,
				Quantity:   e.Quantity,
				LimitPrice: e.LimitPrice,
				StopPrice:  e.StopPrice,
				Status:     e.Status,
				Submitted:  e.Timestamp,
				Updated:    e.Timestamp,
			}
			if e.Type == OrderCancel {
				v.CancelRequested = true
			}
			views[e.OrderID] = v
			order = append(order, e.OrderID)
			continue
		}
		if v.Status.Terminal() {
			continue
		}
		if e.Type == OrderCancel {
			v.CancelRequested = true
		}
		v.Status = e.Status
		v.Updated = e.Timestamp
	}

	out := make([]OrderView, 0, len(order))
	for _, oid := range order {
		out = append(out, *views[oid])
	}
	return out
}
