package cmd

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/tradebook/config"
	"github.com/rustyeddy/tradebook/journal"
	"github.com/rustyeddy/tradebook/market"
	"github.com/rustyeddy/tradebook/pkg/logger"
	"github.com/rustyeddy/tradebook/sim"
	"github.com/rustyeddy/tradebook/trade"
)

var rootCmd = &cobra.Command{
	Use:   "tradebook",
	Short: "A file-backed trade journal and position tracker",
	Long: `Tradebook tracks stock trades from plan to archive.

Each trade is a JSON file holding its fills and order history. From those
files it provides:
  - Order entry, stop management and exits through a broker
  - Reconciliation of fills and order status
  - Weighted-average position and PnL metrics
  - Portfolio snapshots at any point in the past
  - A trade journal in SQLite or CSV

The bundled broker is a paper broker whose quotes are set by hand
("tradebook sim price").`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

var (
	cfgFile string
	cfg     *config.Config
	log     zerolog.Logger
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "tradebook.yaml", "config file (YAML or JSON); defaults apply when missing")
}

func setup(cmd *cobra.Command, args []string) error {
	c, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	cfg = c
	log = logger.New(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty, Out: cmd.ErrOrStderr()})
	logger.SetGlobalLogger(log)
	return nil
}

func openStore() *trade.Store {
	return trade.NewStore(cfg.Storage.TradesDir)
}

func openBroker() (*sim.Engine, error) {
	e, err := sim.Open(cfg.Broker.StateFile,
		sim.WithCommission(sim.Commission{
			PerShare: cfg.Broker.CommissionPerShare,
			Minimum:  cfg.Broker.CommissionMinimum,
		}),
		sim.WithLogger(log.With().Str("component", "sim").Logger()),
	)
	if err != nil {
		return nil, fmt.Errorf("open broker: %w", err)
	}
	return e, nil
}

func openCharts() *market.ChartStore {
	return market.NewChartStore(cfg.ChartsRoot(), market.WithLogger(log))
}

func openJournal() (journal.Journal, error) {
	var (
		j   journal.Journal
		err error
	)
	if cfg.Journal.Type == "csv" {
		j, err = journal.NewCSV(cfg.Journal.TradesFile, cfg.Journal.EquityFile)
	} else {
		j, err = journal.NewSQLite(cfg.Journal.DBPath)
	}
	if err != nil {
		return nil, fmt.Errorf("create journal: %w", err)
	}
	return j, nil
}

func recordOpts() []trade.Option {
	return []trade.Option{trade.WithLogger(log)}
}

// openRecord loads a trade by id wherever it is filed.
func openRecord(b trade.Broker, id string) (*trade.Record, error) {
	store := openStore()
	st, err := store.Find(id)
	if err != nil {
		return nil, err
	}
	return trade.FromState(store, b, st, recordOpts()...), nil
}

// parseDay parses YYYY-MM-DD in the local zone.
func parseDay(s string) (time.Time, error) {
	t, err := time.ParseInLocation(time.DateOnly, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q: %w", s, err)
	}
	return t, nil
}

func dayBounds(day time.Time) (time.Time, time.Time) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	return start, start.AddDate(0, 0, 1)
}

func optPrice(v float64) *float64 {
	if v == 0 {
		return nil
	}
	return &v
}
