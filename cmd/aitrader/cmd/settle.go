package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/HKUDS/AI-Trader-sub000/date"
)

var settleCmd = &cobra.Command{
	Use:   "settle <YYYY-MM-DD>",
	Short: "Settle a trading period's pending orders",
	Long: `Match the period's queued order intents against the day's price
ranges and append the settlement entry to the ledger.

Running settle twice for the same period is safe: the second run
reports the recorded result and writes nothing.

Examples:
  aitrader settle 2025-05-19
  aitrader settle 2025-05-19 --portfolio my-fund`,
	Args: cobra.ExactArgs(1),
	RunE: runSettle,
}

var settlePortfolio string

func init() {
	rootCmd.AddCommand(settleCmd)
	settleCmd.Flags().StringVarP(&settlePortfolio, "portfolio", "p", "", "portfolio id (default from config)")
}

func runSettle(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return fail(err)
	}
	defer a.close()

	period, err := date.Parse(args[0])
	if err != nil {
		return fail(fmt.Errorf("period: %w", err))
	}

	res, err := a.engine.Settle(cmd.Context(), a.portfolio(settlePortfolio), period)
	if err != nil {
		return fail(err)
	}

	if res.AlreadySettled {
		fmt.Printf("period %s already settled (entry %d)\n", res.Period, res.EntryID)
	} else {
		fmt.Printf("settled %s (entry %d)\n", res.Period, res.EntryID)
	}
	for _, t := range res.Trades {
		fmt.Printf("  %-4s %6d %-8s @ %-10s %-22s %s\n",
			t.Side, t.Quantity, t.Symbol, t.LimitPrice, t.Status, t.Message)
	}
	fmt.Printf("position: cash %s", res.Position.Cash.Round(2))
	for _, sym := range res.Position.Symbols() {
		fmt.Printf(", %s %d", sym, res.Position.Quantity(sym))
	}
	fmt.Println()
	return nil
}
