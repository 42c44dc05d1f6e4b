package settle

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HKUDS/AI-Trader-sub000/date"
	"github.com/HKUDS/AI-Trader-sub000/ledger"
	"github.com/HKUDS/AI-Trader-sub000/lockfile"
	"github.com/HKUDS/AI-Trader-sub000/market"
	"github.com/HKUDS/AI-Trader-sub000/orders"
)

// stubPrices serves fixed ranges and records how it was called.
type stubPrices struct {
	ranges map[string]market.PriceRange
	err    error
	calls  int
}

func (s *stubPrices) GetHighLow(_ context.Context, on date.Date, symbols []string, _ market.Market) (map[string]market.PriceRange, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := make(map[string]market.PriceRange)
	for _, sym := range symbols {
		if r, ok := s.ranges[sym]; ok {
			r.Date = on
			out[sym] = r
		}
	}
	return out, nil
}

type fixture struct {
	engine *Engine
	store  *ledger.FileStore
	queue  *orders.FileQueue
	prices *stubPrices
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dir := t.TempDir()
	store, err := ledger.NewFileStore(dir)
	require.NoError(t, err)
	queue, err := orders.NewFileQueue(dir)
	require.NoError(t, err)
	locks, err := lockfile.NewRegistry(dir, 5*time.Second)
	require.NoError(t, err)

	prices := &stubPrices{ranges: map[string]market.PriceRange{}}
	return &fixture{
		engine: NewEngine(store, queue, prices, locks),
		store:  store,
		queue:  queue,
		prices: prices,
	}
}

func (f *fixture) setRange(symbol, low, high string) {
	f.prices.ranges[symbol] = market.PriceRange{
		Symbol: symbol,
		Low:    decimal.RequireFromString(low),
		High:   decimal.RequireFromString(high),
	}
}

func (f *fixture) initCash(t *testing.T, portfolio string, day date.Date, cash int64) {
	t.Helper()
	_, err := f.engine.InitPortfolio(context.Background(), portfolio, day, decimal.NewFromInt(cash))
	require.NoError(t, err)
}

func (f *fixture) queueOrder(t *testing.T, portfolio string, period date.Date, o orders.PendingOrder) {
	t.Helper()
	require.NoError(t, f.queue.Append(portfolio, period, o))
}

func intent(m market.Market, symbol string, side orders.Side, qty int64, limit string, at time.Time) orders.PendingOrder {
	return orders.PendingOrder{
		Timestamp:  at,
		Symbol:     symbol,
		Side:       side,
		Quantity:   qty,
		LimitPrice: decimal.RequireFromString(limit),
		Market:     m,
	}
}

var period = date.MustParse("2025-05-19")

func ts(sec int) time.Time {
	return time.Date(2025, 5, 19, 9, 30, sec, 0, time.UTC)
}

func TestSettleConcreteScenario(t *testing.T) {
	t.Parallel()

	// Starting {CASH: 10000}, T+0, buy 10 AAPL @150 then sell 5 @160,
	// day range 148-162: both fill, outcome {AAPL: 5, CASH: 9300}.
	f := newFixture(t)
	f.engine.SetClock(period)
	f.initCash(t, "p1", period.Add(-1), 10000)
	f.setRange("AAPL", "148", "162")

	f.queueOrder(t, "p1", period, intent(market.US, "AAPL", orders.Buy, 10, "150", ts(1)))
	f.queueOrder(t, "p1", period, intent(market.US, "AAPL", orders.Sell, 5, "160", ts(2)))

	res, err := f.engine.Settle(context.Background(), "p1", period)
	require.NoError(t, err)

	require.Len(t, res.Trades, 2)
	assert.True(t, res.Trades[0].Filled())
	assert.True(t, res.Trades[1].Filled())
	assert.True(t, res.Trades[0].FilledPrice.Equal(decimal.NewFromInt(150)), "fill at the limit, never improved")
	assert.True(t, res.Trades[1].FilledPrice.Equal(decimal.NewFromInt(160)))

	assert.Equal(t, int64(5), res.Position.Quantity("AAPL"))
	assert.True(t, res.Position.Cash.Equal(decimal.NewFromInt(9300)),
		"10000 - 1500 + 800 = 9300, got %s", res.Position.Cash)
	assert.False(t, res.AlreadySettled)
	assert.Equal(t, int64(1), res.EntryID)

	// Exactly one batch call to the price source.
	assert.Equal(t, 1, f.prices.calls)
}

func TestSettleIdempotent(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.engine.SetClock(period)
	f.initCash(t, "p1", period.Add(-1), 10000)
	f.setRange("AAPL", "148", "162")
	f.queueOrder(t, "p1", period, intent(market.US, "AAPL", orders.Buy, 10, "150", ts(1)))

	first, err := f.engine.Settle(context.Background(), "p1", period)
	require.NoError(t, err)
	require.False(t, first.AlreadySettled)

	second, err := f.engine.Settle(context.Background(), "p1", period)
	require.NoError(t, err)
	assert.True(t, second.AlreadySettled)
	assert.Equal(t, first.EntryID, second.EntryID)
	require.Len(t, second.Trades, 1)
	assert.Equal(t, first.Trades[0].Message, second.Trades[0].Message)

	// Exactly one daily_settlement entry exists for the period.
	entries, err := f.store.ReadAll("p1")
	require.NoError(t, err)
	settlements := 0
	for _, e := range entries {
		if e.Date == period && e.Action.Kind == ledger.ActionDailySettlement {
			settlements++
		}
	}
	assert.Equal(t, 1, settlements)
}

func TestSettleRejectsFuturePeriod(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.engine.SetClock(period)

	_, err := f.engine.Settle(context.Background(), "p1", period.Add(1))
	var la *market.LookAheadError
	require.True(t, errors.As(err, &la), "got %v", err)
	assert.Equal(t, 1, la.Days())

	// Nothing was written.
	entries, err := f.store.ReadAll("p1")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSettleEmptyPeriodStillAppendsEntry(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.engine.SetClock(period)
	f.initCash(t, "p1", period.Add(-1), 10000)

	res, err := f.engine.Settle(context.Background(), "p1", period)
	require.NoError(t, err)
	assert.Empty(t, res.Trades)
	assert.True(t, res.Position.Cash.Equal(decimal.NewFromInt(10000)))

	e, ok, err := ledger.SettlementFor(f.store, "p1", period)
	require.NoError(t, err)
	require.True(t, ok, "settlement always produces exactly one entry, even with nothing to do")
	assert.Empty(t, e.Action.Trades)
	// No orders means no price lookup.
	assert.Equal(t, 0, f.prices.calls)
}

func TestSettleTPlusOneEnforcement(t *testing.T) {
	t.Parallel()

	run := func(t *testing.T, m market.Market) ledger.TradeOutcome {
		f := newFixture(t)
		f.engine.SetClock(period)
		f.initCash(t, "p1", period.Add(-1), 100000)
		f.setRange("600519", "1700", "1750")

		f.queueOrder(t, "p1", period, intent(m, "600519", orders.Buy, 10, "1720", ts(1)))
		f.queueOrder(t, "p1", period, intent(m, "600519", orders.Sell, 10, "1730", ts(2)))

		res, err := f.engine.Settle(context.Background(), "p1", period)
		require.NoError(t, err)
		require.Len(t, res.Trades, 2)
		require.True(t, res.Trades[0].Filled())
		return res.Trades[1]
	}

	t.Run("T+1 market rejects same-day sell of today's buy", func(t *testing.T) {
		sell := run(t, market.CN)
		assert.Equal(t, ledger.StatusFailedSharesOrRule, sell.Status)
		assert.Contains(t, sell.Message, "bought today")
	})

	t.Run("T+0 market fills the same sequence", func(t *testing.T) {
		sell := run(t, market.US)
		assert.Equal(t, ledger.StatusFilled, sell.Status)
	})
}

func TestSettleFillBoundaries(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		side  orders.Side
		limit string
		want  ledger.TradeStatus
	}{
		{"buy at day low fills", orders.Buy, "148", ledger.StatusFilled},
		{"buy below day low does not", orders.Buy, "147.99", ledger.StatusNotFilledPrice},
		{"sell at day high fills", orders.Sell, "162", ledger.StatusFilled},
		{"sell above day high does not", orders.Sell, "162.01", ledger.StatusNotFilledPrice},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.engine.SetClock(period)
			f.initCash(t, "p1", period.Add(-1), 100000)
			f.setRange("AAPL", "148", "162")

			if tc.side == orders.Sell {
				// Seed a prior-day holding so shares are sellable.
				_, err := f.engine.Trade(context.Background(), "p1",
					period.Add(-1), intent(market.US, "AAPL", orders.Buy, 10, "150", ts(0)))
				require.NoError(t, err)
			}

			f.queueOrder(t, "p1", period, intent(market.US, "AAPL", tc.side, 5, tc.limit, ts(1)))

			res, err := f.engine.Settle(context.Background(), "p1", period)
			require.NoError(t, err)
			require.Len(t, res.Trades, 1)
			assert.Equal(t, tc.want, res.Trades[0].Status)
		})
	}
}

func TestSettleConservation(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.engine.SetClock(period)
	f.initCash(t, "p1", period.Add(-1), 10000)
	f.setRange("AAPL", "148", "162")
	f.setRange("MSFT", "400", "420")

	f.queueOrder(t, "p1", period, intent(market.US, "AAPL", orders.Buy, 13, "151.25", ts(1)))
	f.queueOrder(t, "p1", period, intent(market.US, "MSFT", orders.Buy, 9, "405.50", ts(2)))

	res, err := f.engine.Settle(context.Background(), "p1", period)
	require.NoError(t, err)

	// cash_after = cash_before - sum(limit*qty), exactly.
	want := decimal.NewFromInt(10000).
		Sub(decimal.RequireFromString("151.25").Mul(decimal.NewFromInt(13))).
		Sub(decimal.RequireFromString("405.50").Mul(decimal.NewFromInt(9)))
	assert.True(t, res.Position.Cash.Equal(want), "got %s want %s", res.Position.Cash, want)
	assert.Equal(t, int64(13), res.Position.Quantity("AAPL"))
	assert.Equal(t, int64(9), res.Position.Quantity("MSFT"))
}

func TestSettleInsufficientCashIsRecordedNotFatal(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.engine.SetClock(period)
	f.initCash(t, "p1", period.Add(-1), 2000)
	f.setRange("AAPL", "148", "162")
	f.setRange("MSFT", "400", "420")

	// First buy consumes most of the cash; the second fails; the
	// third still runs.
	f.queueOrder(t, "p1", period, intent(market.US, "AAPL", orders.Buy, 10, "150", ts(1)))
	f.queueOrder(t, "p1", period, intent(market.US, "MSFT", orders.Buy, 5, "405", ts(2)))
	f.queueOrder(t, "p1", period, intent(market.US, "AAPL", orders.Sell, 4, "160", ts(3)))

	res, err := f.engine.Settle(context.Background(), "p1", period)
	require.NoError(t, err)
	require.Len(t, res.Trades, 3)

	assert.Equal(t, ledger.StatusFilled, res.Trades[0].Status)
	assert.Equal(t, ledger.StatusFailedCash, res.Trades[1].Status)
	assert.Equal(t, ledger.StatusFilled, res.Trades[2].Status)
	assert.Equal(t, int64(6), res.Position.Quantity("AAPL"))
	assert.Equal(t, int64(0), res.Position.Quantity("MSFT"))
	// 2000 - 1500 + 640
	assert.True(t, res.Position.Cash.Equal(decimal.NewFromInt(1140)))
}

func TestSettleMissingPriceDataIsRecordedNotFatal(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.engine.SetClock(period)
	f.initCash(t, "p1", period.Add(-1), 10000)
	f.setRange("AAPL", "148", "162")

	f.queueOrder(t, "p1", period, intent(market.US, "HALTED", orders.Buy, 10, "50", ts(1)))
	f.queueOrder(t, "p1", period, intent(market.US, "AAPL", orders.Buy, 10, "150", ts(2)))

	res, err := f.engine.Settle(context.Background(), "p1", period)
	require.NoError(t, err)
	require.Len(t, res.Trades, 2)
	assert.Equal(t, ledger.StatusFailedNoData, res.Trades[0].Status)
	assert.Contains(t, res.Trades[0].Message, "HALTED")
	assert.True(t, res.Trades[1].Filled())
}

func TestSettleTimestampOrderNotFileOrder(t *testing.T) {
	t.Parallel()

	// The sell is written to the queue file first but timestamped
	// after the buy; sorting must fill the buy first so the T+0 sell
	// has shares to dispose of.
	f := newFixture(t)
	f.engine.SetClock(period)
	f.initCash(t, "p1", period.Add(-1), 10000)
	f.setRange("AAPL", "148", "162")

	f.queueOrder(t, "p1", period, intent(market.US, "AAPL", orders.Sell, 5, "160", ts(10)))
	f.queueOrder(t, "p1", period, intent(market.US, "AAPL", orders.Buy, 10, "150", ts(1)))

	res, err := f.engine.Settle(context.Background(), "p1", period)
	require.NoError(t, err)
	require.Len(t, res.Trades, 2)
	assert.Equal(t, "buy", res.Trades[0].Side)
	assert.True(t, res.Trades[0].Filled())
	assert.True(t, res.Trades[1].Filled())
	assert.Equal(t, int64(5), res.Position.Quantity("AAPL"))
}

func TestSettleMondayFallsBackToFriday(t *testing.T) {
	t.Parallel()

	// Ledger has Friday state only; settling Monday resolves through
	// the absent Sunday to Friday's position.
	f := newFixture(t)
	friday := date.MustParse("2025-05-16")
	monday := date.MustParse("2025-05-19")
	f.engine.SetClock(monday)
	f.initCash(t, "p1", friday, 10000)
	f.setRange("AAPL", "148", "162")
	f.queueOrder(t, "p1", monday, intent(market.US, "AAPL", orders.Buy, 10, "150", ts(1)))

	res, err := f.engine.Settle(context.Background(), "p1", monday)
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)
	assert.True(t, res.Trades[0].Filled())
	assert.True(t, res.Position.Cash.Equal(decimal.NewFromInt(8500)))
}

func TestSettlePriceSourceFailureIsFatalAndWritesNothing(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.engine.SetClock(period)
	f.initCash(t, "p1", period.Add(-1), 10000)
	f.queueOrder(t, "p1", period, intent(market.US, "AAPL", orders.Buy, 10, "150", ts(1)))
	f.prices.err = fmt.Errorf("connection refused")

	_, err := f.engine.Settle(context.Background(), "p1", period)
	require.Error(t, err)

	// The ledger is exactly as it was: retry is safe.
	_, ok, err := ledger.SettlementFor(f.store, "p1", period)
	require.NoError(t, err)
	assert.False(t, ok)

	f.prices.err = nil
	f.setRange("AAPL", "148", "162")
	res, err := f.engine.Settle(context.Background(), "p1", period)
	require.NoError(t, err)
	assert.True(t, res.Trades[0].Filled())
}

func TestSettleClearQueuePostCondition(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.engine.SetClock(period)
	f.engine.SetClearQueue(true)
	f.initCash(t, "p1", period.Add(-1), 10000)
	f.setRange("AAPL", "148", "162")
	f.queueOrder(t, "p1", period, intent(market.US, "AAPL", orders.Buy, 10, "150", ts(1)))

	_, err := f.engine.Settle(context.Background(), "p1", period)
	require.NoError(t, err)

	left, err := f.queue.Load("p1", period)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestSettleUnknownPortfolioProducesEmptyPositionEntry(t *testing.T) {
	t.Parallel()

	// No init entry: absence of history is a valid state, never an
	// error. The settlement starts from an empty, cashless position.
	f := newFixture(t)
	f.engine.SetClock(period)
	f.setRange("AAPL", "148", "162")
	f.queueOrder(t, "p1", period, intent(market.US, "AAPL", orders.Buy, 1, "150", ts(1)))

	res, err := f.engine.Settle(context.Background(), "p1", period)
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)
	assert.Equal(t, ledger.StatusFailedCash, res.Trades[0].Status)
	assert.Equal(t, int64(0), res.EntryID, "first ever entry continues the sequence from the sentinel")
}
