package settle

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/HKUDS/AI-Trader-sub000/date"
	"github.com/HKUDS/AI-Trader-sub000/ledger"
	"github.com/HKUDS/AI-Trader-sub000/market"
	"github.com/HKUDS/AI-Trader-sub000/orders"
)

// InitPortfolio writes the portfolio's first ledger entry: an all-cash
// position with action id 0. It fails if the portfolio already has
// history.
func (e *Engine) InitPortfolio(ctx context.Context, portfolioID string, day date.Date, initialCash decimal.Decimal) (ledger.Entry, error) {
	if err := market.AssertNotFuture(day, e.now); err != nil {
		return ledger.Entry{}, err
	}
	if !initialCash.IsPositive() {
		return ledger.Entry{}, fmt.Errorf("initial cash must be positive, got %s", initialCash)
	}

	var entry ledger.Entry
	err := e.locks.WithExclusive(ctx, portfolioID, func() error {
		last, err := ledger.LastID(e.store, portfolioID)
		if err != nil {
			return err
		}
		if last != ledger.NoHistory {
			return fmt.Errorf("portfolio %s already initialized", portfolioID)
		}

		entry = ledger.Entry{
			Date:      day,
			ID:        0,
			Action:    ledger.Action{Kind: ledger.ActionInit},
			Positions: ledger.NewPosition(initialCash),
		}
		if err := e.store.Append(portfolioID, entry); err != nil {
			return fmt.Errorf("persist init: %w", err)
		}
		e.log.Info("initialized portfolio",
			"portfolio", portfolioID, "date", day.String(), "cash", initialCash.String())
		return nil
	})
	if err != nil {
		return ledger.Entry{}, err
	}
	return entry, nil
}

// Trade executes a single manual order against the day's price range
// under the same matching rules as settlement, appending a buy/sell
// entry when it fills. An unfilled or failed order returns its
// outcome without touching the ledger; only integrity and
// infrastructure failures are errors.
func (e *Engine) Trade(ctx context.Context, portfolioID string, day date.Date, o orders.PendingOrder) (ledger.TradeOutcome, error) {
	if err := market.AssertNotFuture(day, e.now); err != nil {
		return ledger.TradeOutcome{}, err
	}
	if err := o.Validate(); err != nil {
		return ledger.TradeOutcome{}, err
	}

	var outcome ledger.TradeOutcome
	err := e.locks.WithExclusive(ctx, portfolioID, func() error {
		// A manual trade starts from the latest state of the same
		// day, so several manual trades in one day compound.
		pos, _, err := ledger.Resolve(e.store, portfolioID, day)
		if err != nil {
			return err
		}
		lastID, err := ledger.LastID(e.store, portfolioID)
		if err != nil {
			return err
		}

		ranges, err := e.prices.GetHighLow(ctx, day, []string{o.Symbol}, o.Market)
		if err != nil {
			return fmt.Errorf("load price range: %w", err)
		}

		boughtToday, err := e.boughtOn(portfolioID, day)
		if err != nil {
			return err
		}

		r, ok := ranges[o.Symbol]
		outcome = matchOrder(o, r, ok, &pos, boughtToday, o.Market.SettlementCycle())
		if !outcome.Filled() {
			return nil
		}

		limit := o.LimitPrice
		entry := ledger.Entry{
			Date: day,
			ID:   lastID + 1,
			Action: ledger.Action{
				Kind:       string(o.Side),
				Symbol:     o.Symbol,
				Quantity:   o.Quantity,
				LimitPrice: &limit,
			},
			Positions: pos,
		}
		if err := e.store.Append(portfolioID, entry); err != nil {
			return fmt.Errorf("persist trade: %w", err)
		}
		e.log.Info("recorded manual trade",
			"portfolio", portfolioID, "date", day.String(),
			"side", string(o.Side), "symbol", o.Symbol, "amount", o.Quantity)
		return nil
	})
	if err != nil {
		return ledger.TradeOutcome{}, err
	}
	return outcome, nil
}

// Buy executes a manual buy of quantity shares at the limit price.
func (e *Engine) Buy(ctx context.Context, portfolioID string, day date.Date, symbol string, quantity int64, limit decimal.Decimal, mkt market.Market) (ledger.TradeOutcome, error) {
	return e.Trade(ctx, portfolioID, day, orders.PendingOrder{
		Timestamp:  day.Time(),
		Symbol:     symbol,
		Side:       orders.Buy,
		Quantity:   quantity,
		LimitPrice: limit,
		Market:     mkt,
	})
}

// Sell executes a manual sell of quantity shares at the limit price.
func (e *Engine) Sell(ctx context.Context, portfolioID string, day date.Date, symbol string, quantity int64, limit decimal.Decimal, mkt market.Market) (ledger.TradeOutcome, error) {
	return e.Trade(ctx, portfolioID, day, orders.PendingOrder{
		Timestamp:  day.Time(),
		Symbol:     symbol,
		Side:       orders.Sell,
		Quantity:   quantity,
		LimitPrice: limit,
		Market:     mkt,
	})
}

// RecordNoTrade appends an explicit "held, did nothing" entry with
// the unchanged position. Agents record these so a day without trades
// is distinguishable from a day that was never processed.
func (e *Engine) RecordNoTrade(ctx context.Context, portfolioID string, day date.Date, reason string) (ledger.Entry, error) {
	if err := market.AssertNotFuture(day, e.now); err != nil {
		return ledger.Entry{}, err
	}

	var entry ledger.Entry
	err := e.locks.WithExclusive(ctx, portfolioID, func() error {
		pos, _, err := ledger.Resolve(e.store, portfolioID, day)
		if err != nil {
			return err
		}
		lastID, err := ledger.LastID(e.store, portfolioID)
		if err != nil {
			return err
		}

		entry = ledger.Entry{
			Date:      day,
			ID:        lastID + 1,
			Action:    ledger.Action{Kind: ledger.ActionNoTrade, Reason: reason},
			Positions: pos,
		}
		if err := e.store.Append(portfolioID, entry); err != nil {
			return fmt.Errorf("persist no-trade: %w", err)
		}
		return nil
	})
	if err != nil {
		return ledger.Entry{}, err
	}
	return entry, nil
}

// boughtOn sums the quantities bought on the given day across manual
// buy entries and settlement fills, so the T+1 rule also binds manual
// sells that follow same-day buys.
func (e *Engine) boughtOn(portfolioID string, day date.Date) (map[string]int64, error) {
	entries, err := e.store.ReadAll(portfolioID)
	if err != nil {
		return nil, err
	}

	bought := make(map[string]int64)
	for _, entry := range entries {
		if entry.Date != day {
			continue
		}
		switch entry.Action.Kind {
		case ledger.ActionBuy:
			bought[entry.Action.Symbol] += entry.Action.Quantity
		case ledger.ActionDailySettlement:
			for _, t := range entry.Action.Trades {
				if t.Filled() && t.Side == string(orders.Buy) {
					bought[t.Symbol] += t.Quantity
				}
			}
		}
	}
	return bought, nil
}
