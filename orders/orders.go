// Package orders holds pending order intents: trade requests produced
// by an external decision process, queued per portfolio and trading
// period, and consumed exactly once by settlement.
package orders

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/HKUDS/AI-Trader-sub000/market"
)

// Side is the order direction.
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// ParseSide returns the Side for a string value.
func ParseSide(s string) (Side, error) {
	switch Side(s) {
	case Buy, Sell:
		return Side(s), nil
	default:
		return "", fmt.Errorf("unknown order side: %q", s)
	}
}

// PendingOrder is one trade intent awaiting settlement. Orders belong
// to exactly one portfolio and one trading period and are never
// mutated by the engine.
type PendingOrder struct {
	ID         string          `json:"id,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
	Symbol     string          `json:"symbol"`
	Side       Side            `json:"action"`
	Quantity   int64           `json:"amount"`
	LimitPrice decimal.Decimal `json:"limit_price"`
	Market     market.Market   `json:"market"`
}

// Validate checks the intent is well-formed before it is queued.
func (o PendingOrder) Validate() error {
	if o.Symbol == "" {
		return fmt.Errorf("order symbol is required")
	}
	if o.Side != Buy && o.Side != Sell {
		return fmt.Errorf("order side must be %q or %q, got %q", Buy, Sell, o.Side)
	}
	if o.Quantity <= 0 {
		return fmt.Errorf("order quantity must be positive, got %d", o.Quantity)
	}
	if !o.LimitPrice.IsPositive() {
		return fmt.Errorf("order limit price must be positive, got %s", o.LimitPrice)
	}
	if o.Timestamp.IsZero() {
		return fmt.Errorf("order timestamp is required")
	}
	if _, err := market.Parse(string(o.Market)); err != nil {
		return err
	}
	return nil
}
