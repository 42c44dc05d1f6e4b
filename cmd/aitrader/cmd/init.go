package cmd

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/HKUDS/AI-Trader-sub000/date"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a portfolio with a starting cash balance",
	Long: `Write the portfolio's first ledger entry: an all-cash position.

Fails if the portfolio already has history.

Examples:
  aitrader init --portfolio my-fund --cash 10000 --date 2025-05-16`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

var (
	initPortfolio string
	initCash      string
	initDate      string
)

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().StringVarP(&initPortfolio, "portfolio", "p", "", "portfolio id (default from config)")
	initCmd.Flags().StringVar(&initCash, "cash", "", "starting cash (default from config)")
	initCmd.Flags().StringVarP(&initDate, "date", "d", "", "ledger date YYYY-MM-DD (default: simulated clock)")
}

func runInit(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return fail(err)
	}
	defer a.close()

	cashStr := initCash
	if cashStr == "" {
		cashStr = a.cfg.Portfolio.InitialCash
	}
	cash, err := decimal.NewFromString(cashStr)
	if err != nil {
		return fail(fmt.Errorf("cash: %w", err))
	}

	day := a.engine.Clock()
	if initDate != "" {
		if day, err = date.Parse(initDate); err != nil {
			return fail(fmt.Errorf("date: %w", err))
		}
	}
	if day.IsZero() {
		return fail(fmt.Errorf("no date: pass --date or set simulation.current_date"))
	}

	entry, err := a.engine.InitPortfolio(cmd.Context(), a.portfolio(initPortfolio), day, cash)
	if err != nil {
		return fail(err)
	}

	fmt.Printf("initialized %s on %s with %s cash (entry %d)\n",
		a.portfolio(initPortfolio), entry.Date, entry.Positions.Cash, entry.ID)
	return nil
}
