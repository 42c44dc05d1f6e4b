package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List the portfolio's ledger entries",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

var historyPortfolio string

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().StringVarP(&historyPortfolio, "portfolio", "p", "", "portfolio id (default from config)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return fail(err)
	}
	defer a.close()

	id := a.portfolio(historyPortfolio)
	entries, err := a.store.ReadAll(id)
	if err != nil {
		return fail(err)
	}
	if len(entries) == 0 {
		fmt.Printf("%s has no ledger entries\n", id)
		return nil
	}

	for _, e := range entries {
		detail := e.Action.Reason
		switch {
		case e.Action.Symbol != "":
			detail = fmt.Sprintf("%d %s", e.Action.Quantity, e.Action.Symbol)
			if e.Action.LimitPrice != nil {
				detail += " @ " + e.Action.LimitPrice.String()
			}
		case len(e.Action.Trades) > 0:
			filled := 0
			for _, t := range e.Action.Trades {
				if t.Filled() {
					filled++
				}
			}
			detail = fmt.Sprintf("%d orders, %d filled", len(e.Action.Trades), filled)
		}
		fmt.Printf("%s  #%-4d %-18s cash %-12s %s\n",
			e.Date, e.ID, e.Action.Kind, e.Positions.Cash.Round(2), detail)
	}
	return nil
}
