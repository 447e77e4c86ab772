package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/tradebook/trade"
)

var cashCmd = &cobra.Command{
	Use:   "cash <amount> [note...]",
	Short: "Record a deposit (positive) or withdrawal (negative)",
	Long: `Record a cash movement as its own archived record under CASH/.

Examples:
  tradebook cash 25000 initial deposit
  tradebook cash -- -500 withdrawal`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCash,
}

func init() {
	rootCmd.AddCommand(cashCmd)
}

func runCash(cmd *cobra.Command, args []string) error {
	amount, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return fmt.Errorf("amount: %w", err)
	}
	rec, err := trade.NewCash(openStore(), amount, strings.Join(args[1:], " "), recordOpts()...)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Cash %.2f recorded as %s\n", amount, rec.ID())
	return nil
}
