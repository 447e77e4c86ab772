package risk

import "math"

// InitialRisk is the dollar amount lost if a position of qty entered at
// entry is stopped out at stop. Direction does not matter.
func InitialRisk(entry, stop, qty float64) float64 {
	if entry <= 0 || stop <= 0 {
		return 0
	}
	return math.Abs(entry-stop) * math.Abs(qty)
}

// RMultiple expresses pnl in units of the initial risk. Zero when no risk
// was defined.
func RMultiple(pnl, initialRisk float64) float64 {
	if initialRisk <= 0 {
		return 0
	}
	return pnl / initialRisk
}

// RR is the reward-to-risk ratio of a planned trade.
func RR(entry, stop, takeProfit float64) float64 {
	r := math.Abs(entry - stop)
	if r == 0 {
		return 0
	}
	return math.Abs(takeProfit-entry) / r
}

// PnLPercent is pnl relative to the capital deployed (entry * qty), in percent.
func PnLPercent(pnl, entry, qty float64) float64 {
	basis := math.Abs(entry * qty)
	if basis == 0 {
		return 0
	}
	return pnl / basis * 100
}
