package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/tradebook/journal"
	"github.com/rustyeddy/tradebook/portfolio"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Write and query the trade journal",
	Long: `Write closed trades and daily equity to the journal, and query it.

Subcommands:
  sync   - Journal the trades and equity of a date range
  trade  - Get details of a specific trade by ID
  today  - List trades closed today
  day    - Trades and equity for a specific day

Queries need the SQLite journal.

Examples:
  tradebook journal sync --from 2024-03-01
  tradebook journal trade <trade-id>
  tradebook journal day 2024-03-04`,
}

var journalSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Journal closed trades and end-of-day equity",
	Args:  cobra.NoArgs,
	RunE:  runJournalSync,
}

var journalTradeCmd = &cobra.Command{
	Use:   "trade <trade-id>",
	Short: "Get details of a specific trade",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalTrade,
}

var journalTodayCmd = &cobra.Command{
	Use:   "today",
	Short: "List trades closed today",
	Args:  cobra.NoArgs,
	RunE:  runJournalToday,
}

var journalDayCmd = &cobra.Command{
	Use:   "day <YYYY-MM-DD>",
	Short: "Show trades and equity for a specific day",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalDay,
}

var (
	journalFrom string
	journalTo   string
)

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalSyncCmd, journalTradeCmd, journalTodayCmd, journalDayCmd)

	journalSyncCmd.Flags().StringVar(&journalFrom, "from", "", "first day (YYYY-MM-DD) (required)")
	journalSyncCmd.Flags().StringVar(&journalTo, "to", "", "last day (YYYY-MM-DD); default today")
	journalSyncCmd.MarkFlagRequired("from")
}

func runJournalSync(cmd *cobra.Command, args []string) error {
	start, err := parseDay(journalFrom)
	if err != nil {
		return err
	}
	end := time.Now()
	if journalTo != "" {
		if end, err = parseDay(journalTo); err != nil {
			return err
		}
	}

	h, err := loadHistory()
	if err != nil {
		return err
	}
	j, err := openJournal()
	if err != nil {
		return err
	}
	defer j.Close()

	stats, err := journal.Sync(j, h, start, portfolio.EndOfDay(end))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Journaled %d trades and %d daily snapshots\n", stats.Trades, stats.Snapshots)
	return nil
}

func openSQLite() (*journal.SQLite, error) {
	if cfg.Journal.Type != "sqlite" {
		return nil, fmt.Errorf("journal queries need journal.type sqlite, have %s", cfg.Journal.Type)
	}
	j, err := journal.NewSQLite(cfg.Journal.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	return j, nil
}

func runJournalTrade(cmd *cobra.Command, args []string) error {
	j, err := openSQLite()
	if err != nil {
		return err
	}
	defer j.Close()

	rec, err := j.GetTrade(args[0])
	if err != nil {
		return fmt.Errorf("get trade: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), journal.FormatTradeOrg(rec))
	return nil
}

func runJournalToday(cmd *cobra.Command, args []string) error {
	j, err := openSQLite()
	if err != nil {
		return err
	}
	defer j.Close()

	start, end := dayBounds(time.Now())
	recs, err := j.ListTradesClosedBetween(start, end)
	if err != nil {
		return fmt.Errorf("query trades: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), journal.FormatTradesOrg(recs))
	return nil
}

func runJournalDay(cmd *cobra.Command, args []string) error {
	day, err := parseDay(args[0])
	if err != nil {
		return err
	}
	j, err := openSQLite()
	if err != nil {
		return err
	}
	defer j.Close()

	start, end := dayBounds(day)
	recs, err := j.ListTradesClosedBetween(start, end)
	if err != nil {
		return fmt.Errorf("query trades: %w", err)
	}
	equity, err := j.ListEquityBetween(start, end)
	if err != nil {
		return fmt.Errorf("query equity: %w", err)
	}

	var eq *journal.EquitySnapshot
	if len(equity) > 0 {
		eq = &equity[len(equity)-1]
	}
	fmt.Fprintln(cmd.OutOrStdout(), journal.FormatDayOrg(start, eq, recs))
	return nil
}
