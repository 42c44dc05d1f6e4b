// Package ledger implements the append-only, per-portfolio sequence
// of dated position snapshots that is the sole source of portfolio
// truth, together with the "latest at or before a date" resolver used
// by settlement.
package ledger

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/HKUDS/AI-Trader-sub000/date"
)

// CashKey is the distinguished positions key holding the monetary
// balance.
const CashKey = "CASH"

// Action kind tags as they appear in the persisted ledger. Readers
// must accept all of them.
const (
	ActionInit            = "init"
	ActionBuy             = "buy"
	ActionSell            = "sell"
	ActionNoTrade         = "no_trade"
	ActionDailySettlement = "daily_settlement"
)

// TradeStatus classifies the outcome of one order intent. Failures
// are data, not errors: they are recorded in the ledger and never
// abort a settlement batch.
type TradeStatus string

const (
	StatusFilled             TradeStatus = "filled"
	StatusNotFilledPrice     TradeStatus = "not_filled_price"
	StatusFailedNoData       TradeStatus = "failed_no_data"
	StatusFailedCash         TradeStatus = "failed_insufficient_cash"
	StatusFailedSharesOrRule TradeStatus = "failed_shares_or_rule"
)

// TradeOutcome records what happened to a single order intent during
// settlement. FilledPrice is set only for filled trades.
type TradeOutcome struct {
	OrderID     string           `json:"order_id,omitempty"`
	Timestamp   time.Time        `json:"timestamp"`
	Symbol      string           `json:"symbol"`
	Side        string           `json:"action"`
	Quantity    int64            `json:"amount"`
	LimitPrice  decimal.Decimal  `json:"limit_price"`
	Status      TradeStatus      `json:"status"`
	FilledPrice *decimal.Decimal `json:"filled_price,omitempty"`
	Message     string           `json:"message"`
}

// Filled reports whether the order executed.
func (o TradeOutcome) Filled() bool { return o.Status == StatusFilled }

// Action describes what produced a ledger entry: portfolio
// initialization, a single manual trade, an explicit no-trade record,
// or a daily settlement carrying the full batch of trade outcomes.
type Action struct {
	Kind   string `json:"action"`
	Reason string `json:"reason,omitempty"`

	// Single manual trade fields (buy/sell kinds).
	Symbol     string           `json:"symbol,omitempty"`
	Quantity   int64            `json:"amount,omitempty"`
	LimitPrice *decimal.Decimal `json:"limit_price,omitempty"`

	// Settlement fields (daily_settlement kind).
	Trades []TradeOutcome `json:"trades,omitempty"`
}

// Entry is one immutable ledger record. ID is unique and strictly
// increasing within a portfolio across all dates; it is a global
// per-portfolio sequence, never reset daily.
type Entry struct {
	Date      date.Date `json:"date"`
	ID        int64     `json:"id"`
	Action    Action    `json:"this_action"`
	Positions Position  `json:"positions"`
}

// Position maps instrument symbols to held quantities plus a cash
// balance. Absence of a symbol means zero holding; negative holdings
// are not modeled.
type Position struct {
	Cash     decimal.Decimal
	Holdings map[string]int64
}

// NewPosition returns an all-cash position.
func NewPosition(cash decimal.Decimal) Position {
	return Position{Cash: cash, Holdings: make(map[string]int64)}
}

// Quantity returns the held quantity for symbol, zero when absent.
func (p Position) Quantity(symbol string) int64 {
	return p.Holdings[symbol]
}

// Add adjusts the holding for symbol by delta, dropping the key when
// it reaches zero so the persisted object stays sparse.
func (p *Position) Add(symbol string, delta int64) {
	if p.Holdings == nil {
		p.Holdings = make(map[string]int64)
	}
	q := p.Holdings[symbol] + delta
	if q == 0 {
		delete(p.Holdings, symbol)
		return
	}
	p.Holdings[symbol] = q
}

// Clone returns a deep copy, so a working position can be mutated
// without aliasing the snapshot it was resolved from.
func (p Position) Clone() Position {
	c := Position{Cash: p.Cash, Holdings: make(map[string]int64, len(p.Holdings))}
	for sym, q := range p.Holdings {
		c.Holdings[sym] = q
	}
	return c
}

// Symbols returns held symbols in sorted order.
func (p Position) Symbols() []string {
	syms := make([]string, 0, len(p.Holdings))
	for sym := range p.Holdings {
		syms = append(syms, sym)
	}
	sort.Strings(syms)
	return syms
}

// MarshalJSON encodes the position as a single flat object mapping
// symbol to quantity, with CASH carrying the balance rounded to two
// places. This is the interchange format consumers parse.
func (p Position) MarshalJSON() ([]byte, error) {
	obj := make(map[string]json.RawMessage, len(p.Holdings)+1)
	obj[CashKey] = json.RawMessage(p.Cash.Round(2).String())
	for sym, q := range p.Holdings {
		if sym == CashKey {
			return nil, fmt.Errorf("position holds an instrument named %q", CashKey)
		}
		obj[sym] = json.RawMessage(fmt.Sprintf("%d", q))
	}
	return json.Marshal(obj)
}

// UnmarshalJSON decodes the flat symbol→quantity object.
func (p *Position) UnmarshalJSON(b []byte) error {
	var obj map[string]json.Number
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	pos := NewPosition(decimal.Zero)
	for sym, num := range obj {
		if sym == CashKey {
			cash, err := decimal.NewFromString(num.String())
			if err != nil {
				return fmt.Errorf("invalid CASH amount %q: %w", num, err)
			}
			pos.Cash = cash
			continue
		}
		q, err := num.Int64()
		if err != nil {
			return fmt.Errorf("invalid quantity for %s: %w", sym, err)
		}
		if q != 0 {
			pos.Holdings[sym] = q
		}
	}
	*p = pos
	return nil
}

var _ json.Marshaler = Position{}
var _ json.Unmarshaler = (*Position)(nil)
