package sim

// executable returns the fill price for o against q, or false if the order
// cannot trade yet. A stop that triggers on this quote is marked so a stop
// limit keeps working as a plain limit afterwards.
func executable(o *Order, q Quote) (float64, bool) {
	buy := o.Quantity > 0
	px := q.Bid
	if buy {
		px = q.Ask
	}
	if px <= 0 {
		return 0, false
	}

	if o.StopPrice != nil && !o.Triggered {
		if !hitStop(buy, *o.StopPrice, px) {
			return 0, false
		}
		o.Triggered = true
	}

	if o.LimitPrice != nil && !limitOK(buy, *o.LimitPrice, px) {
		return 0, false
	}
	return px, true
}

// A buy stop triggers when the ask rises to it, a sell stop when the bid
// falls to it.
func hitStop(buy bool, stop, px float64) bool {
	if buy {
		return px >= stop
	}
	return px <= stop
}

func limitOK(buy bool, limit, px float64) bool {
	if buy {
		return px <= limit
	}
	return px >= limit
}
