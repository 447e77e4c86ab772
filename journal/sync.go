package journal

import (
	"fmt"
	"time"

	"github.com/rustyeddy/tradebook/portfolio"
)

type SyncStats struct {
	Trades    int
	Snapshots int
}

// Sync records every trade that closed in [start, end] and one equity
// snapshot per day of the window.
func Sync(j Journal, h *portfolio.History, start, end time.Time) (SyncStats, error) {
	var stats SyncStats
	for _, r := range h.ClosedTradesIn(start, end) {
		if err := j.RecordTrade(FromResult(r)); err != nil {
			return stats, fmt.Errorf("journal trade %s: %w", r.TradeID, err)
		}
		stats.Trades++
	}
	for _, s := range h.DailySnapshots(start, end) {
		if err := j.RecordEquity(FromSnapshot(s)); err != nil {
			return stats, fmt.Errorf("journal equity %s: %w", s.Timestamp.Format(time.DateOnly), err)
		}
		stats.Snapshots++
	}
	return stats, nil
}
