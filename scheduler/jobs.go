package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/tradebook/journal"
	"github.com/rustyeddy/tradebook/metrics"
	"github.com/rustyeddy/tradebook/portfolio"
	"github.com/rustyeddy/tradebook/trade"
)

// RefreshJob reconciles every live trade in the store with the broker, and
// every finished trade that still tracks orders.
type RefreshJob struct {
	Store   *trade.Store
	Broker  trade.Broker
	Metrics *metrics.Metrics // optional
	Log     zerolog.Logger
	Timeout time.Duration // per pass; zero means no limit
}

func (j *RefreshJob) Name() string { return "refresh" }

// Run refreshes each trade at the broker's current price. A failing
// trade does not stop the pass; all failures are returned joined.
func (j *RefreshJob) Run() error {
	ctx := context.Background()
	if j.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.Timeout)
		defer cancel()
	}

	err := j.refresh(ctx)
	if j.Metrics != nil {
		result := "ok"
		if err != nil {
			result = "error"
		}
		j.Metrics.RefreshRuns.WithLabelValues(result).Inc()
	}
	return err
}

func (j *RefreshJob) refresh(ctx context.Context) error {
	states, skipped, err := j.Store.Walk()
	if err != nil {
		return err
	}
	for _, s := range skipped {
		j.Log.Warn().Err(s.Err).Str("path", s.Path).Msg("Skipping unreadable trade file")
	}

	opts := []trade.Option{trade.WithLogger(j.Log)}
	if j.Metrics != nil {
		j.Metrics.Skipped(len(skipped))
		opts = append(opts, trade.WithObserver(j.Metrics))
	}

	var errs []error
	live := 0
	for _, st := range states {
		// A trade closed while flat may still track orders whose cancel the
		// broker has not confirmed; it is refreshed until they are gone.
		pending := len(st.ActiveOrders) > 0
		if !st.Status.Live() && !pending {
			continue
		}
		if st.Status.Live() {
			live++
		}

		price, err := j.Broker.CurrentPrice(ctx, st.Ticker)
		if err != nil && st.Status.Live() {
			errs = append(errs, fmt.Errorf("%s/%s: price: %w", st.Ticker, st.ID, err))
			continue
		}

		rec := trade.FromState(j.Store, j.Broker, st, opts...)
		res, err := rec.Refresh(ctx, price)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s/%s: %w", st.Ticker, st.ID, err))
			continue
		}
		if res.Changed() {
			j.Log.Info().
				Str("trade", st.ID).
				Str("ticker", st.Ticker).
				Int("fills", res.NewFills).
				Int("orders_closed", res.OrdersClosed).
				Str("status", string(res.Status)).
				Msg("Trade refreshed")
		}
	}

	if j.Metrics != nil {
		j.Metrics.OpenTrades.Set(float64(live))
	}
	return errors.Join(errs...)
}

// JournalSyncJob writes the previous calendar day's closed trades and
// end-of-day equity to a journal.
type JournalSyncJob struct {
	Store   *trade.Store
	Prices  portfolio.PriceHistory
	Journal journal.Journal
	Log     zerolog.Logger
	Now     func() time.Time // defaults to time.Now
}

func (j *JournalSyncJob) Name() string { return "journal-sync" }

func (j *JournalSyncJob) Run() error {
	now := time.Now
	if j.Now != nil {
		now = j.Now
	}
	t := now()
	today := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	start := today.AddDate(0, 0, -1)

	h, _, err := portfolio.LoadHistory(j.Store, j.Prices, portfolio.WithLogger(j.Log))
	if err != nil {
		return err
	}
	stats, err := journal.Sync(j.Journal, h, start, portfolio.EndOfDay(start))
	if err != nil {
		return err
	}

	j.Log.Info().
		Str("day", start.Format(time.DateOnly)).
		Int("trades", stats.Trades).
		Int("snapshots", stats.Snapshots).
		Msg("Journal synced")
	return nil
}
