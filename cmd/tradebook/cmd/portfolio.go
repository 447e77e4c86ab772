package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/tradebook/portfolio"
)

var portfolioCmd = &cobra.Command{
	Use:   "portfolio",
	Short: "Reconstruct the account from the trade files",
	Long: `Replay the stored trades to show the account at any instant.

Subcommands:
  snapshot - Cash, positions and working orders at a time (default now)
  closed   - Trades that closed in a date range
  daily    - End-of-day equity for each day in a range
  live     - Current snapshot priced by the broker

Examples:
  tradebook portfolio snapshot --at 2024-03-04
  tradebook portfolio closed --from 2024-03-01 --to 2024-03-31
  tradebook portfolio daily --from 2024-03-01 --to 2024-03-08`,
}

var portfolioSnapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Show the account at the end of a day",
	Args:  cobra.NoArgs,
	RunE:  runPortfolioSnapshot,
}

var portfolioClosedCmd = &cobra.Command{
	Use:   "closed",
	Short: "List trades closed in a range",
	Args:  cobra.NoArgs,
	RunE:  runPortfolioClosed,
}

var portfolioDailyCmd = &cobra.Command{
	Use:   "daily",
	Short: "End-of-day equity for each day in a range",
	Args:  cobra.NoArgs,
	RunE:  runPortfolioDaily,
}

var portfolioLiveCmd = &cobra.Command{
	Use:   "live",
	Short: "Current snapshot priced by the broker",
	Args:  cobra.NoArgs,
	RunE:  runPortfolioLive,
}

var (
	portfolioAt   string
	portfolioFrom string
	portfolioTo   string
	portfolioJSON bool
)

func init() {
	rootCmd.AddCommand(portfolioCmd)
	portfolioCmd.AddCommand(portfolioSnapshotCmd, portfolioClosedCmd, portfolioDailyCmd, portfolioLiveCmd)

	portfolioCmd.PersistentFlags().BoolVar(&portfolioJSON, "json", false, "print JSON")
	portfolioSnapshotCmd.Flags().StringVar(&portfolioAt, "at", "", "day (YYYY-MM-DD); default now")
	for _, c := range []*cobra.Command{portfolioClosedCmd, portfolioDailyCmd} {
		c.Flags().StringVar(&portfolioFrom, "from", "", "first day (YYYY-MM-DD) (required)")
		c.Flags().StringVar(&portfolioTo, "to", "", "last day (YYYY-MM-DD); default today")
		c.MarkFlagRequired("from")
	}
}

func loadHistory() (*portfolio.History, error) {
	h, _, err := portfolio.LoadHistory(openStore(), openCharts(), portfolio.WithLogger(log))
	return h, err
}

// rangeFlags resolves --from/--to to [start of from, end of to].
func rangeFlags() (time.Time, time.Time, error) {
	start, err := parseDay(portfolioFrom)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end := time.Now()
	if portfolioTo != "" {
		if end, err = parseDay(portfolioTo); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	return start, portfolio.EndOfDay(end), nil
}

func runPortfolioSnapshot(cmd *cobra.Command, args []string) error {
	at := time.Now()
	if portfolioAt != "" {
		day, err := parseDay(portfolioAt)
		if err != nil {
			return err
		}
		at = portfolio.EndOfDay(day)
	}

	h, err := loadHistory()
	if err != nil {
		return err
	}
	return printSnapshot(cmd.OutOrStdout(), h.SnapshotAt(at))
}

func runPortfolioClosed(cmd *cobra.Command, args []string) error {
	start, end, err := rangeFlags()
	if err != nil {
		return err
	}
	h, err := loadHistory()
	if err != nil {
		return err
	}

	results := h.ClosedTradesIn(start, end)
	out := cmd.OutOrStdout()
	if portfolioJSON {
		return writeJSON(out, results)
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "EXIT\tTICKER\tDIR\tQTY\tENTRY\tEXIT\tPNL\tPNL%\tR\tDAYS")
	for _, r := range results {
		fmt.Fprintf(w, "%s\t%s\t%s\t%g\t%.4f\t%.4f\t%.2f\t%.2f\t%.2f\t%d\n",
			r.ExitDate.Format(time.DateOnly), r.Ticker, r.Direction, r.Quantity,
			r.EntryPrice, r.ExitPrice, r.PnL, r.PnLPercent, r.RMultiple, r.DurationDays)
	}
	return w.Flush()
}

func runPortfolioDaily(cmd *cobra.Command, args []string) error {
	start, end, err := rangeFlags()
	if err != nil {
		return err
	}
	h, err := loadHistory()
	if err != nil {
		return err
	}

	snaps := h.DailySnapshots(start, end)
	out := cmd.OutOrStdout()
	if portfolioJSON {
		return writeJSON(out, snaps)
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DAY\tCASH\tMARKET VALUE\tEQUITY\tPOSITIONS\tORDERS")
	for _, s := range snaps {
		fmt.Fprintf(w, "%s\t%.2f\t%.2f\t%.2f\t%d\t%d\n",
			s.Timestamp.Format(time.DateOnly), s.Cash, s.MarketValue(), s.Equity, len(s.Positions), len(s.Orders))
	}
	return w.Flush()
}

func runPortfolioLive(cmd *cobra.Command, args []string) error {
	states, skipped, err := openStore().Walk()
	if err != nil {
		return err
	}
	for _, s := range skipped {
		log.Warn().Err(s.Err).Str("path", s.Path).Msg("Skipping unreadable trade file")
	}
	b, err := openBroker()
	if err != nil {
		return err
	}

	snap, err := portfolio.LiveSnapshot(cmd.Context(), states, b, time.Now())
	if err != nil {
		return err
	}
	return printSnapshot(cmd.OutOrStdout(), snap)
}

func printSnapshot(out io.Writer, s portfolio.Snapshot) error {
	if portfolioJSON {
		return writeJSON(out, s)
	}

	fmt.Fprintf(out, "%s snapshot at %s\n", s.Source, s.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(out, "  Cash: %.2f  Market value: %.2f  Equity: %.2f\n", s.Cash, s.MarketValue(), s.Equity)

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	if len(s.Positions) > 0 {
		fmt.Fprintln(w, "  TICKER\tQTY\tAVG\tPRICE\tVALUE\tUNREALIZED")
		for _, p := range s.Positions {
			fmt.Fprintf(w, "  %s\t%v\t%.4f\t%.4f\t%.2f\t%.2f\n",
				p.Ticker, p.NetQuantity, p.AvgPrice, p.CurrentPrice, p.MarketValue, p.UnrealizedPnL)
		}
	}
	if len(s.Orders) > 0 {
		fmt.Fprintln(w, "  ORDER\tTICKER\tACTION\tTYPE\tQTY\tPRICE")
		for _, o := range s.Orders {
			price := "-"
			if o.Price != nil {
				price = fmt.Sprintf("%.4f", *o.Price)
			}
			fmt.Fprintf(w, "  %s\t%s\t%s\t%s\t%v\t%s\n", o.OrderID, o.Ticker, o.Action, o.Type, o.Quantity, price)
		}
	}
	return w.Flush()
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
