package cmd

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/HKUDS/AI-Trader-sub000/date"
	"github.com/HKUDS/AI-Trader-sub000/market"
	"github.com/HKUDS/AI-Trader-sub000/orders"
)

var tradeCmd = &cobra.Command{
	Use:   "trade",
	Short: "Execute a single order against the day's prices",
	Long: `Match one order immediately under the usual matching rules and
record it in the ledger if it fills. An unfilled order reports its
outcome and leaves the ledger untouched.

Examples:
  aitrader trade --symbol AAPL --side buy --qty 10 --limit 150
  aitrader trade --date 2025-05-19 --symbol 600519 --side sell --qty 5 --limit 1730 --market cn`,
	Args: cobra.NoArgs,
	RunE: runTrade,
}

var notradeCmd = &cobra.Command{
	Use:   "notrade [reason]",
	Short: "Record an explicit hold decision for the day",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runNoTrade,
}

var (
	tradePortfolio string
	tradeDate      string
	tradeSymbol    string
	tradeSide      string
	tradeQty       int64
	tradeLimit     string
	tradeMarket    string
)

func init() {
	rootCmd.AddCommand(tradeCmd)
	rootCmd.AddCommand(notradeCmd)

	tradeCmd.Flags().StringVarP(&tradePortfolio, "portfolio", "p", "", "portfolio id (default from config)")
	tradeCmd.Flags().StringVarP(&tradeDate, "date", "d", "", "trading day YYYY-MM-DD (default: simulated clock)")
	tradeCmd.Flags().StringVar(&tradeSymbol, "symbol", "", "instrument symbol")
	tradeCmd.Flags().StringVar(&tradeSide, "side", "", "buy or sell")
	tradeCmd.Flags().Int64Var(&tradeQty, "qty", 0, "share quantity")
	tradeCmd.Flags().StringVar(&tradeLimit, "limit", "", "limit price")
	tradeCmd.Flags().StringVar(&tradeMarket, "market", "", "market (default from config)")

	notradeCmd.Flags().StringVarP(&tradePortfolio, "portfolio", "p", "", "portfolio id (default from config)")
	notradeCmd.Flags().StringVarP(&tradeDate, "date", "d", "", "trading day YYYY-MM-DD (default: simulated clock)")
}

func tradeDay(a *app) (date.Date, error) {
	day := a.engine.Clock()
	if tradeDate != "" {
		var err error
		if day, err = date.Parse(tradeDate); err != nil {
			return date.Date{}, fmt.Errorf("date: %w", err)
		}
	}
	if day.IsZero() {
		return date.Date{}, fmt.Errorf("no date: pass --date or set simulation.current_date")
	}
	return day, nil
}

func runTrade(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return fail(err)
	}
	defer a.close()

	day, err := tradeDay(a)
	if err != nil {
		return fail(err)
	}
	side, err := orders.ParseSide(tradeSide)
	if err != nil {
		return fail(err)
	}
	limit, err := decimal.NewFromString(tradeLimit)
	if err != nil {
		return fail(fmt.Errorf("limit: %w", err))
	}
	mktName := tradeMarket
	if mktName == "" {
		mktName = a.cfg.Portfolio.Market
	}
	mkt, err := market.Parse(mktName)
	if err != nil {
		return fail(err)
	}

	o := orders.PendingOrder{
		Timestamp:  time.Now().UTC(),
		Symbol:     tradeSymbol,
		Side:       side,
		Quantity:   tradeQty,
		LimitPrice: limit,
		Market:     mkt,
	}
	out, err := a.engine.Trade(cmd.Context(), a.portfolio(tradePortfolio), day, o)
	if err != nil {
		return fail(err)
	}

	fmt.Printf("%s: %s\n", out.Status, out.Message)
	return nil
}

func runNoTrade(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return fail(err)
	}
	defer a.close()

	day, err := tradeDay(a)
	if err != nil {
		return fail(err)
	}
	reason := ""
	if len(args) == 1 {
		reason = args[0]
	}

	entry, err := a.engine.RecordNoTrade(cmd.Context(), a.portfolio(tradePortfolio), day, reason)
	if err != nil {
		return fail(err)
	}

	fmt.Printf("recorded no-trade for %s (entry %d)\n", entry.Date, entry.ID)
	return nil
}
