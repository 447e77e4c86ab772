package market

import (
	"fmt"
	"time"
)

// TimeframeSeconds returns the bar length of a chart timeframe. Both the
// short forms used for chart files ("5m", "1H", "1D") and the M/H/D forms
// ("M5", "H1", "D1") are accepted.
func TimeframeSeconds(tf string) (int64, error) {
	switch tf {
	case "1m", "M1":
		return 60, nil
	case "5m", "M5":
		return 300, nil
	case "15m", "M15":
		return 900, nil
	case "30m", "M30":
		return 1800, nil
	case "1H", "H1":
		return 3600, nil
	case "4H", "H4":
		return 14400, nil
	case "1D", "D1":
		return 86400, nil
	case "1W", "W1":
		return 604800, nil
	default:
		return 0, fmt.Errorf("unsupported timeframe: %s", tf)
	}
}

// Stale reports whether a cache whose newest bar starts at last needs new
// data at now. Daily and longer bars are stale once now is past the
// calendar day of last; intraday bars once last is more than one bar old.
// Unknown timeframes are always stale.
func Stale(last time.Time, tf string, now time.Time) bool {
	sec, err := TimeframeSeconds(tf)
	if err != nil {
		return true
	}
	if sec >= 86400 {
		last = last.In(now.Location())
		midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		return last.Before(midnight)
	}
	return now.Sub(last) > time.Duration(sec)*time.Second
}
