package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/HKUDS/AI-Trader-sub000/date"
	"github.com/HKUDS/AI-Trader-sub000/ledger"
)

var positionCmd = &cobra.Command{
	Use:   "position [YYYY-MM-DD]",
	Short: "Show the position as of a date",
	Long: `Resolve the latest ledger state at or before the given date.
Without a date the simulated clock is used.

Examples:
  aitrader position
  aitrader position 2025-05-16 --portfolio my-fund`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPosition,
}

var positionPortfolio string

func init() {
	rootCmd.AddCommand(positionCmd)
	positionCmd.Flags().StringVarP(&positionPortfolio, "portfolio", "p", "", "portfolio id (default from config)")
}

func runPosition(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return fail(err)
	}
	defer a.close()

	asOf := a.engine.Clock()
	if len(args) == 1 {
		if asOf, err = date.Parse(args[0]); err != nil {
			return fail(fmt.Errorf("date: %w", err))
		}
	}
	if asOf.IsZero() {
		return fail(fmt.Errorf("no date: pass one or set simulation.current_date"))
	}

	id := a.portfolio(positionPortfolio)
	pos, entryID, err := ledger.Resolve(a.store, id, asOf)
	if err != nil {
		return fail(err)
	}
	if entryID == ledger.NoHistory {
		fmt.Printf("%s has no history at or before %s\n", id, asOf)
		return nil
	}

	fmt.Printf("%s as of %s (entry %d)\n", id, asOf, entryID)
	fmt.Printf("  cash %s\n", pos.Cash.Round(2))
	for _, sym := range pos.Symbols() {
		fmt.Printf("  %-8s %d\n", sym, pos.Quantity(sym))
	}
	return nil
}
