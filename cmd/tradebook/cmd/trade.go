package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/tradebook/risk"
	"github.com/rustyeddy/tradebook/trade"
)

var tradeCmd = &cobra.Command{
	Use:   "trade",
	Short: "Create and manage trades",
	Long: `Drive a trade through its lifecycle.

Subcommands:
  new      - Create a planned trade
  enter    - Send the entry order (and an optional stop)
  stop     - Move the protective stop
  cancel   - Cancel one working order
  close    - Exit the whole position at market
  refresh  - Pull fills and order status from the broker
  show     - Show one trade
  list     - List trades in the store
  archive  - Archive a closed trade
  notes    - Replace a trade's notes

Examples:
  tradebook trade new AAPL
  tradebook trade enter <id> 100 --limit 182.5 --stop 175
  tradebook trade close <id>`,
}

var tradeNewCmd = &cobra.Command{
	Use:   "new <ticker>",
	Short: "Create a planned trade",
	Args:  cobra.ExactArgs(1),
	RunE:  runTradeNew,
}

var tradeEnterCmd = &cobra.Command{
	Use:   "enter <trade-id> <quantity>",
	Short: "Send the entry order; negative quantity sells short",
	Args:  cobra.ExactArgs(2),
	RunE:  runTradeEnter,
}

var tradeStopCmd = &cobra.Command{
	Use:   "stop <trade-id> <price>",
	Short: "Replace the protective stop",
	Args:  cobra.ExactArgs(2),
	RunE:  runTradeStop,
}

var tradeCancelCmd = &cobra.Command{
	Use:   "cancel <trade-id> <order-id>",
	Short: "Cancel a working order",
	Args:  cobra.ExactArgs(2),
	RunE:  runTradeCancel,
}

var tradeCloseCmd = &cobra.Command{
	Use:   "close <trade-id>",
	Short: "Exit the position at market",
	Args:  cobra.ExactArgs(1),
	RunE:  runTradeClose,
}

var tradeRefreshCmd = &cobra.Command{
	Use:   "refresh <trade-id>",
	Short: "Reconcile a trade with the broker",
	Args:  cobra.ExactArgs(1),
	RunE:  runTradeRefresh,
}

var tradeShowCmd = &cobra.Command{
	Use:   "show <trade-id>",
	Short: "Show a trade with its metrics",
	Args:  cobra.ExactArgs(1),
	RunE:  runTradeShow,
}

var tradeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List trades",
	Args:  cobra.NoArgs,
	RunE:  runTradeList,
}

var tradeArchiveCmd = &cobra.Command{
	Use:   "archive <trade-id>",
	Short: "Archive a closed trade",
	Args:  cobra.ExactArgs(1),
	RunE:  runTradeArchive,
}

var tradeNotesCmd = &cobra.Command{
	Use:   "notes <trade-id> <text>",
	Short: "Replace a trade's notes",
	Args:  cobra.ExactArgs(2),
	RunE:  runTradeNotes,
}

var (
	enterLimit float64
	enterStop  float64
	showJSON   bool
	showTarget float64
	listAll    bool
)

func init() {
	rootCmd.AddCommand(tradeCmd)
	tradeCmd.AddCommand(tradeNewCmd, tradeEnterCmd, tradeStopCmd, tradeCancelCmd, tradeCloseCmd,
		tradeRefreshCmd, tradeShowCmd, tradeListCmd, tradeArchiveCmd, tradeNotesCmd)

	tradeEnterCmd.Flags().Float64Var(&enterLimit, "limit", 0, "limit price (market when unset)")
	tradeEnterCmd.Flags().Float64Var(&enterStop, "stop", 0, "initial stop price")
	tradeShowCmd.Flags().BoolVar(&showJSON, "json", false, "print the stored state as JSON")
	tradeShowCmd.Flags().Float64Var(&showTarget, "target", 0, "profit target; prints reward/risk against the current stop")
	tradeListCmd.Flags().BoolVarP(&listAll, "all", "a", false, "include archived trades")
}

func runTradeNew(cmd *cobra.Command, args []string) error {
	rec, err := trade.New(openStore(), nil, args[0], recordOpts()...)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Planned %s %s\n  %s\n", rec.Ticker(), rec.ID(), rec.Path())
	return nil
}

func runTradeEnter(cmd *cobra.Command, args []string) error {
	qty, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("quantity: %w", err)
	}
	b, err := openBroker()
	if err != nil {
		return err
	}
	rec, err := openRecord(b, args[0])
	if err != nil {
		return err
	}

	oid, err := rec.Enter(cmd.Context(), trade.SignedQuantity(qty), optPrice(enterLimit), optPrice(enterStop))
	if oid != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Entry order %s (%s)\n", oid, rec.Status())
	}
	return err
}

func runTradeStop(cmd *cobra.Command, args []string) error {
	px, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("price: %w", err)
	}
	b, err := openBroker()
	if err != nil {
		return err
	}
	rec, err := openRecord(b, args[0])
	if err != nil {
		return err
	}

	oid, err := rec.SetStopLoss(cmd.Context(), px)
	if oid != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Stop order %s @ %.2f\n", oid, px)
	}
	return err
}

func runTradeCancel(cmd *cobra.Command, args []string) error {
	b, err := openBroker()
	if err != nil {
		return err
	}
	rec, err := openRecord(b, args[0])
	if err != nil {
		return err
	}

	ok, err := rec.CancelOrder(cmd.Context(), args[1])
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("order %s was not cancelled", args[1])
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Cancel requested for %s\n", args[1])
	return nil
}

func runTradeClose(cmd *cobra.Command, args []string) error {
	b, err := openBroker()
	if err != nil {
		return err
	}
	rec, err := openRecord(b, args[0])
	if err != nil {
		return err
	}

	oid, err := rec.Close(cmd.Context())
	switch {
	case oid == trade.AlreadyFlat:
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Already flat, trade %s\n", rec.Status())
	case oid != "":
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Exit order %s (%s)\n", oid, rec.Status())
	}
	return err
}

func runTradeRefresh(cmd *cobra.Command, args []string) error {
	b, err := openBroker()
	if err != nil {
		return err
	}
	rec, err := openRecord(b, args[0])
	if err != nil {
		return err
	}

	px, err := b.CurrentPrice(cmd.Context(), rec.Ticker())
	if err != nil {
		return err
	}
	res, err := rec.Refresh(cmd.Context(), px)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d new fills, %d orders closed, status %s\n",
		rec.ID(), res.NewFills, res.OrdersClosed, res.Status)
	printMetrics(cmd.OutOrStdout(), res.Metrics)
	return nil
}

func runTradeShow(cmd *cobra.Command, args []string) error {
	rec, err := openRecord(nil, args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if showJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rec.State())
	}

	st := rec.State()
	fmt.Fprintf(out, "%s %s [%s]\n", st.Ticker, st.ID, st.Status)
	if st.Notes != "" {
		fmt.Fprintf(out, "  Notes: %s\n", st.Notes)
	}

	// Mark at the last fill; no live quote is needed to show a trade.
	var px float64
	if txs := st.SortedTransactions(); len(txs) > 0 {
		px = txs[len(txs)-1].Price
	}
	m := rec.Metrics(px)
	printMetrics(out, m)
	if showTarget > 0 && st.CurrentStopPrice != nil && !m.NetQuantity.IsZero() {
		fmt.Fprintf(out, "  Reward/risk to %.2f: %.2f\n", showTarget, risk.RR(m.AvgPrice, *st.CurrentStopPrice, showTarget))
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "  TIME\tORDER\tSTATUS\tTYPE\tQTY\tMESSAGE")
	for _, e := range st.OrderHistory {
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\t%v\t%s\n",
			e.Timestamp.Format("2006-01-02 15:04:05"), e.OrderID, e.Status, e.Type, e.Quantity, e.Message)
	}
	return w.Flush()
}

func runTradeList(cmd *cobra.Command, args []string) error {
	states, skipped, err := openStore().Walk()
	if err != nil {
		return err
	}
	for _, s := range skipped {
		log.Warn().Err(s.Err).Str("path", s.Path).Msg("Skipping unreadable trade file")
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TICKER\tID\tSTATUS\tNET\tAVG\tREALIZED")
	for _, st := range states {
		if st.Status == trade.StatusArchived && !listAll {
			continue
		}
		m := trade.Calculate(st.Transactions, 0, 0)
		fmt.Fprintf(w, "%s\t%s\t%s\t%v\t%.4f\t%.2f\n",
			st.Ticker, st.ID, st.Status, m.NetQuantity, m.AvgPrice, m.RealizedPnL)
	}
	return w.Flush()
}

func runTradeArchive(cmd *cobra.Command, args []string) error {
	rec, err := openRecord(nil, args[0])
	if err != nil {
		return err
	}
	if err := rec.Archive(); err != nil {
		if errors.Is(err, trade.ErrInvalidTransition) {
			return fmt.Errorf("trade %s is %s; only closed trades can be archived", rec.ID(), rec.Status())
		}
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Archived %s\n", rec.ID())
	return nil
}

func runTradeNotes(cmd *cobra.Command, args []string) error {
	rec, err := openRecord(nil, args[0])
	if err != nil {
		return err
	}
	return rec.SetNotes(args[1])
}

func printMetrics(out io.Writer, m trade.Metrics) {
	fmt.Fprintf(out, "  Net: %v @ %.4f\n", m.NetQuantity, m.AvgPrice)
	fmt.Fprintf(out, "  Realized: %.2f  Unrealized: %.2f  Commissions: %.2f\n",
		m.RealizedPnL, m.UnrealizedPnL, m.TotalCommissions)
	if m.InitialRisk > 0 {
		fmt.Fprintf(out, "  R: %.2f (risk %.2f)\n", m.RMultiple, m.InitialRisk)
	}
	fmt.Fprintf(out, "  Days held: %d\n", m.DaysHeld)
}
