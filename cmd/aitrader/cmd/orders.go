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

var ordersCmd = &cobra.Command{
	Use:   "orders",
	Short: "Manage a trading day's pending order queue",
	Long: `Queue and inspect order intents awaiting settlement.

Subcommands:
  add   - Queue an order intent for a trading day
  list  - Show the intents queued for a day

Examples:
  aitrader orders add --date 2025-05-19 --symbol AAPL --side buy --qty 10 --limit 150
  aitrader orders list 2025-05-19`,
}

var ordersAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Queue an order intent for a trading day",
	Args:  cobra.NoArgs,
	RunE:  runOrdersAdd,
}

var ordersListCmd = &cobra.Command{
	Use:   "list <YYYY-MM-DD>",
	Short: "Show the intents queued for a day",
	Args:  cobra.ExactArgs(1),
	RunE:  runOrdersList,
}

var (
	ordersPortfolio string
	ordersDate      string
	ordersSymbol    string
	ordersSide      string
	ordersQty       int64
	ordersLimit     string
	ordersMarket    string
)

func init() {
	rootCmd.AddCommand(ordersCmd)
	ordersCmd.AddCommand(ordersAddCmd)
	ordersCmd.AddCommand(ordersListCmd)

	ordersCmd.PersistentFlags().StringVarP(&ordersPortfolio, "portfolio", "p", "", "portfolio id (default from config)")
	ordersAddCmd.Flags().StringVarP(&ordersDate, "date", "d", "", "trading day YYYY-MM-DD (default: simulated clock)")
	ordersAddCmd.Flags().StringVar(&ordersSymbol, "symbol", "", "instrument symbol")
	ordersAddCmd.Flags().StringVar(&ordersSide, "side", "", "buy or sell")
	ordersAddCmd.Flags().Int64Var(&ordersQty, "qty", 0, "share quantity")
	ordersAddCmd.Flags().StringVar(&ordersLimit, "limit", "", "limit price")
	ordersAddCmd.Flags().StringVar(&ordersMarket, "market", "", "market (default from config)")
}

func runOrdersAdd(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return fail(err)
	}
	defer a.close()

	day := a.engine.Clock()
	if ordersDate != "" {
		if day, err = date.Parse(ordersDate); err != nil {
			return fail(fmt.Errorf("date: %w", err))
		}
	}
	if day.IsZero() {
		return fail(fmt.Errorf("no date: pass --date or set simulation.current_date"))
	}

	side, err := orders.ParseSide(ordersSide)
	if err != nil {
		return fail(err)
	}
	limit, err := decimal.NewFromString(ordersLimit)
	if err != nil {
		return fail(fmt.Errorf("limit: %w", err))
	}
	mktName := ordersMarket
	if mktName == "" {
		mktName = a.cfg.Portfolio.Market
	}
	mkt, err := market.Parse(mktName)
	if err != nil {
		return fail(err)
	}

	o := orders.PendingOrder{
		Timestamp:  time.Now().UTC(),
		Symbol:     ordersSymbol,
		Side:       side,
		Quantity:   ordersQty,
		LimitPrice: limit,
		Market:     mkt,
	}
	if err := a.queue.Append(a.portfolio(ordersPortfolio), day, o); err != nil {
		return fail(err)
	}

	fmt.Printf("queued %s %d %s @ %s for %s\n", side, ordersQty, ordersSymbol, limit, day)
	return nil
}

func runOrdersList(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return fail(err)
	}
	defer a.close()

	day, err := date.Parse(args[0])
	if err != nil {
		return fail(fmt.Errorf("date: %w", err))
	}

	pending, err := a.queue.Load(a.portfolio(ordersPortfolio), day)
	if err != nil {
		return fail(err)
	}
	if len(pending) == 0 {
		fmt.Printf("no orders queued for %s\n", day)
		return nil
	}

	for _, o := range pending {
		fmt.Printf("%s  %-4s %6d %-8s @ %-10s %s\n",
			o.Timestamp.Format(time.RFC3339), o.Side, o.Quantity, o.Symbol, o.LimitPrice, o.Market)
	}
	return nil
}
