// Package settle implements the settlement engine: it consumes a
// trading period's pending order intents, matches them against the
// day's price ranges under the market's settlement-cycle rules, and
// appends exactly one ledger entry with the resulting position.
package settle

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/HKUDS/AI-Trader-sub000/date"
	"github.com/HKUDS/AI-Trader-sub000/ledger"
	"github.com/HKUDS/AI-Trader-sub000/lockfile"
	"github.com/HKUDS/AI-Trader-sub000/market"
	"github.com/HKUDS/AI-Trader-sub000/orders"
)

// Engine orchestrates settlement for any number of portfolios over a
// shared ledger store, order queue and price source. All
// date-parameterized reads go through the temporal guard against the
// engine's simulated clock.
type Engine struct {
	store  ledger.Store
	queue  orders.Queue
	prices market.RangeSource
	locks  *lockfile.Registry
	log    *slog.Logger

	now        date.Date
	clearQueue bool
}

// NewEngine wires an engine from its collaborators. The simulated
// clock starts unset; call SetClock before settlement runs or the
// temporal guard is inert.
func NewEngine(store ledger.Store, queue orders.Queue, prices market.RangeSource, locks *lockfile.Registry) *Engine {
	e := &Engine{
		store: store,
		queue: queue,
		locks: locks,
		log:   slog.Default(),
	}
	e.prices = market.Guard(prices, e.Clock)
	return e
}

// SetClock sets the simulated "current date". Every read dated after
// it fails with a look-ahead violation.
func (e *Engine) SetClock(d date.Date) { e.now = d }

// Clock returns the simulated current date; zero means unset.
func (e *Engine) Clock() date.Date { return e.now }

// SetClearQueue makes settlement remove the period's order file after
// a successful append. This is a configurable post-condition, not a
// correctness requirement.
func (e *Engine) SetClearQueue(clear bool) { e.clearQueue = clear }

// SetLogger replaces the engine's logger.
func (e *Engine) SetLogger(l *slog.Logger) { e.log = l }

// Result summarizes one settlement invocation. When AlreadySettled is
// true the trades and position are those of the original run and
// nothing was written.
type Result struct {
	Portfolio      string
	Period         date.Date
	EntryID        int64
	Trades         []ledger.TradeOutcome
	Position       ledger.Position
	AlreadySettled bool
}

// Settle runs settlement for one portfolio and one trading period.
//
// It acquires the portfolio's lock, returns the recorded result if
// the period is already settled, loads the starting position as of
// the previous calendar day, matches pending orders in timestamp
// order against the day's price ranges, and appends exactly one
// daily_settlement entry — even when there are no orders.
//
// Individual order failures are recorded outcomes, never errors. The
// only hard failures are lock acquisition, the price source
// transport, the final append, and a look-ahead violation on the
// period itself.
func (e *Engine) Settle(ctx context.Context, portfolioID string, period date.Date) (Result, error) {
	if err := market.AssertNotFuture(period, e.now); err != nil {
		return Result{}, err
	}

	var res Result
	err := e.locks.WithExclusive(ctx, portfolioID, func() error {
		// Idempotency: at most one settlement per period. A repeat
		// call is success, not an error.
		existing, ok, err := ledger.SettlementFor(e.store, portfolioID, period)
		if err != nil {
			return err
		}
		if ok {
			res = Result{
				Portfolio:      portfolioID,
				Period:         period,
				EntryID:        existing.ID,
				Trades:         existing.Action.Trades,
				Position:       existing.Positions,
				AlreadySettled: true,
			}
			e.log.Debug("period already settled", "portfolio", portfolioID, "period", period.String())
			return nil
		}

		// Start from the previous calendar day, not the previous
		// trading day: the resolver's at-or-before semantics skip
		// weekends and unsettled days for us. A Monday settlement
		// resolves through the absent Sunday back to Friday's entry.
		pos, _, err := ledger.Resolve(e.store, portfolioID, period.Add(-1))
		if err != nil {
			return err
		}
		lastID, err := ledger.LastID(e.store, portfolioID)
		if err != nil {
			return err
		}

		pending, err := e.queue.Load(portfolioID, period)
		if err != nil {
			return err
		}

		// Timestamp order is load-bearing: it is what lets a T+0
		// batch sell shares bought earlier in the same period, and it
		// fixes which buys claim the cash first.
		sort.SliceStable(pending, func(i, j int) bool {
			return pending[i].Timestamp.Before(pending[j].Timestamp)
		})

		outcomes, err := e.matchBatch(ctx, period, pending, &pos)
		if err != nil {
			return err
		}

		entry := ledger.Entry{
			Date:      period,
			ID:        lastID + 1,
			Action:    ledger.Action{Kind: ledger.ActionDailySettlement, Trades: outcomes},
			Positions: pos,
		}
		if err := e.store.Append(portfolioID, entry); err != nil {
			return fmt.Errorf("persist settlement: %w", err)
		}

		if e.clearQueue {
			if err := e.queue.Clear(portfolioID, period); err != nil {
				// The settlement is already durable; a leftover queue
				// file is harmless because of the idempotency check.
				e.log.Warn("clear order queue failed",
					"portfolio", portfolioID, "period", period.String(), "err", err)
			}
		}

		filled := 0
		for _, o := range outcomes {
			if o.Filled() {
				filled++
			}
		}
		e.log.Info("settled period",
			"portfolio", portfolioID, "period", period.String(),
			"orders", len(outcomes), "filled", filled, "entry_id", entry.ID)

		res = Result{
			Portfolio: portfolioID,
			Period:    period,
			EntryID:   entry.ID,
			Trades:    outcomes,
			Position:  pos,
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

// matchBatch resolves the batch's price ranges once and applies the
// matching rule to each order in sequence, mutating pos.
func (e *Engine) matchBatch(ctx context.Context, period date.Date, pending []orders.PendingOrder, pos *ledger.Position) ([]ledger.TradeOutcome, error) {
	outcomes := make([]ledger.TradeOutcome, 0, len(pending))
	if len(pending) == 0 {
		return outcomes, nil
	}

	// One batch call, keyed by the first order's market: all orders
	// of one settlement batch share a venue.
	mkt := pending[0].Market
	seen := make(map[string]bool)
	symbols := make([]string, 0, len(pending))
	for _, o := range pending {
		if !seen[o.Symbol] {
			seen[o.Symbol] = true
			symbols = append(symbols, o.Symbol)
		}
	}
	sort.Strings(symbols)

	ranges, err := e.prices.GetHighLow(ctx, period, symbols, mkt)
	if err != nil {
		return nil, fmt.Errorf("load price ranges: %w", err)
	}

	cycle := mkt.SettlementCycle()
	boughtToday := make(map[string]int64)
	for _, o := range pending {
		r, ok := ranges[o.Symbol]
		outcomes = append(outcomes, matchOrder(o, r, ok, pos, boughtToday, cycle))
	}
	return outcomes, nil
}

// matchOrder applies the order matching rule to one intent. The
// engine never improves on the trader's limit: fills execute at the
// limit price exactly.
func matchOrder(o orders.PendingOrder, r market.PriceRange, haveData bool, pos *ledger.Position, boughtToday map[string]int64, cycle market.Cycle) ledger.TradeOutcome {
	out := ledger.TradeOutcome{
		OrderID:    o.ID,
		Timestamp:  o.Timestamp,
		Symbol:     o.Symbol,
		Side:       string(o.Side),
		Quantity:   o.Quantity,
		LimitPrice: o.LimitPrice,
	}

	if !haveData {
		out.Status = ledger.StatusFailedNoData
		out.Message = fmt.Sprintf("no price data for %s", o.Symbol)
		return out
	}

	switch o.Side {
	case orders.Buy:
		// A buy fills iff the limit reaches down to the day's low.
		if o.LimitPrice.LessThan(r.Low) {
			out.Status = ledger.StatusNotFilledPrice
			out.Message = fmt.Sprintf("limit %s below day low %s", o.LimitPrice, r.Low)
			return out
		}
		cost := o.LimitPrice.Mul(decimal.NewFromInt(o.Quantity))
		if pos.Cash.LessThan(cost) {
			out.Status = ledger.StatusFailedCash
			out.Message = fmt.Sprintf("need %s cash for %d %s at %s, have %s",
				cost, o.Quantity, o.Symbol, o.LimitPrice, pos.Cash)
			return out
		}
		pos.Cash = pos.Cash.Sub(cost)
		pos.Add(o.Symbol, o.Quantity)
		boughtToday[o.Symbol] += o.Quantity

		price := o.LimitPrice
		out.Status = ledger.StatusFilled
		out.FilledPrice = &price
		out.Message = fmt.Sprintf("bought %d %s at %s", o.Quantity, o.Symbol, price)
		return out

	case orders.Sell:
		// A sell fills iff the limit reaches up to the day's high.
		if o.LimitPrice.GreaterThan(r.High) {
			out.Status = ledger.StatusNotFilledPrice
			out.Message = fmt.Sprintf("limit %s above day high %s", o.LimitPrice, r.High)
			return out
		}
		sellable := pos.Quantity(o.Symbol)
		if cycle == market.T1 {
			sellable -= boughtToday[o.Symbol]
		}
		if sellable < o.Quantity {
			out.Status = ledger.StatusFailedSharesOrRule
			if cycle == market.T1 && boughtToday[o.Symbol] > 0 {
				out.Message = fmt.Sprintf("only %d %s sellable (%d bought today are locked until T+1)",
					sellable, o.Symbol, boughtToday[o.Symbol])
			} else {
				out.Message = fmt.Sprintf("hold %d %s, cannot sell %d", sellable, o.Symbol, o.Quantity)
			}
			return out
		}
		pos.Add(o.Symbol, -o.Quantity)
		pos.Cash = pos.Cash.Add(o.LimitPrice.Mul(decimal.NewFromInt(o.Quantity)))

		price := o.LimitPrice
		out.Status = ledger.StatusFilled
		out.FilledPrice = &price
		out.Message = fmt.Sprintf("sold %d %s at %s", o.Quantity, o.Symbol, price)
		return out

	default:
		out.Status = ledger.StatusFailedSharesOrRule
		out.Message = fmt.Sprintf("unknown order side %q", o.Side)
		return out
	}
}
