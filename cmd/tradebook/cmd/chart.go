package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/tradebook/market"
	"github.com/rustyeddy/tradebook/portfolio"
)

var chartCmd = &cobra.Command{
	Use:   "chart",
	Short: "Manage cached price history",
	Long: `Price history is kept per ticker in {trades_dir}/{ticker}/charts/{timeframe}.json
and values positions in historical snapshots.

Examples:
  tradebook chart import AAPL aapl-daily.csv
  tradebook chart price AAPL 2024-03-04`,
}

var chartImportCmd = &cobra.Command{
	Use:   "import <ticker> <file>",
	Short: "Merge bars from a CSV file into the cache",
	Args:  cobra.ExactArgs(2),
	RunE:  runChartImport,
}

var chartPriceCmd = &cobra.Command{
	Use:   "price <ticker> <YYYY-MM-DD>",
	Short: "Show the close in effect at the end of a day",
	Args:  cobra.ExactArgs(2),
	RunE:  runChartPrice,
}

var chartStatusCmd = &cobra.Command{
	Use:   "status <ticker>",
	Short: "Show the cached range and whether it is stale",
	Args:  cobra.ExactArgs(1),
	RunE:  runChartStatus,
}

var chartTimeframe string

func init() {
	rootCmd.AddCommand(chartCmd)
	chartCmd.AddCommand(chartImportCmd, chartPriceCmd, chartStatusCmd)

	chartCmd.PersistentFlags().StringVarP(&chartTimeframe, "timeframe", "t", market.DefaultTimeframe, "bar timeframe (5m, 1H, 1D, ...)")
	chartCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if _, err := market.TimeframeSeconds(chartTimeframe); err != nil {
			return err
		}
		return setup(cmd, args)
	}
}

func runChartImport(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[1])
	if err != nil {
		return err
	}
	defer f.Close()

	bars, stats, err := market.ReadBars(f)
	if err != nil {
		return fmt.Errorf("read %s: %w", args[1], err)
	}
	if stats.BadLines > 0 {
		log.Warn().Int("bad_lines", stats.BadLines).Str("file", args[1]).Msg("Skipped unparseable lines")
	}

	merged, err := openCharts().Merge(args[0], chartTimeframe, bars)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Imported %d bars, %s now has %d\n", stats.Bars, args[0], len(merged))
	return nil
}

func runChartPrice(cmd *cobra.Command, args []string) error {
	day, err := parseDay(args[1])
	if err != nil {
		return err
	}
	charts := market.NewChartStore(cfg.ChartsRoot(), market.WithTimeframe(chartTimeframe), market.WithLogger(log))
	px, ok := charts.PriceAt(args[0], portfolio.EndOfDay(day))
	if !ok {
		return fmt.Errorf("no %s bars for %s on or before %s", chartTimeframe, args[0], args[1])
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s %.4f\n", args[0], args[1], px)
	return nil
}

func runChartStatus(cmd *cobra.Command, args []string) error {
	charts := openCharts()
	bars, err := charts.Load(args[0], chartTimeframe)
	if err != nil {
		return err
	}
	stale, err := charts.Stale(args[0], chartTimeframe, time.Now())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(bars) == 0 {
		fmt.Fprintf(out, "%s %s: no bars (%s)\n", args[0], chartTimeframe, charts.Path(args[0], chartTimeframe))
		return nil
	}
	fmt.Fprintf(out, "%s %s: %d bars, %s to %s, stale=%t\n", args[0], chartTimeframe, len(bars),
		bars[0].Time.Format(time.DateOnly), bars[len(bars)-1].Time.Format(time.DateOnly), stale)
	return nil
}
