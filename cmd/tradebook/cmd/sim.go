package cmd

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/tradebook/sim"
)

var simCmd = &cobra.Command{
	Use:   "sim",
	Short: "Drive the paper broker",
	Long: `The paper broker keeps its orders and quotes in broker.state_file.

Subcommands:
  price  - Set a quote; executable orders fill immediately
  orders - List paper orders

Examples:
  tradebook sim price AAPL 181.95 182.05
  tradebook sim orders`,
}

var simPriceCmd = &cobra.Command{
	Use:   "price <ticker> <bid> [ask]",
	Short: "Set the quote for a ticker",
	Args:  cobra.RangeArgs(2, 3),
	RunE:  runSimPrice,
}

var simOrdersCmd = &cobra.Command{
	Use:   "orders [trade-id]",
	Short: "List paper orders, optionally for one trade",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSimOrders,
}

func init() {
	rootCmd.AddCommand(simCmd)
	simCmd.AddCommand(simPriceCmd, simOrdersCmd)
}

func runSimPrice(cmd *cobra.Command, args []string) error {
	bid, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("bid: %w", err)
	}
	ask := bid
	if len(args) == 3 {
		if ask, err = strconv.ParseFloat(args[2], 64); err != nil {
			return fmt.Errorf("ask: %w", err)
		}
	}
	if ask < bid {
		return fmt.Errorf("ask %.4f below bid %.4f", ask, bid)
	}

	e, err := openBroker()
	if err != nil {
		return err
	}
	fills, err := e.SetPrice(sim.Quote{Symbol: args[0], Bid: bid, Ask: ask})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ %s %.4f / %.4f\n", args[0], bid, ask)
	for _, f := range fills {
		fmt.Fprintf(out, "  filled %s: %v @ %.4f (commission %.2f)\n", f.OrderID, f.Quantity, f.Price, f.Commission)
	}
	if len(fills) > 0 {
		fmt.Fprintln(out, "Run \"tradebook trade refresh\" to record the fills.")
	}
	return nil
}

func runSimOrders(cmd *cobra.Command, args []string) error {
	e, err := openBroker()
	if err != nil {
		return err
	}
	var ref string
	if len(args) == 1 {
		ref = args[0]
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ORDER\tTRADE\tSYMBOL\tTYPE\tQTY\tSTATE")
	for _, o := range e.Orders(ref) {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%v\t%s\n", o.ID, o.Ref, o.Symbol, o.Type(), o.Quantity, o.State)
	}
	return w.Flush()
}
