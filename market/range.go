package market

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/HKUDS/AI-Trader-sub000/date"
)

// PriceRange is one instrument's daily trading range. Low <= High is
// assumed from providers but must be checked before use; open/close
// are carried for callers outside the settlement path and may be
// zero.
type PriceRange struct {
	Symbol string
	Date   date.Date
	Low    decimal.Decimal
	High   decimal.Decimal
	Open   decimal.Decimal
	Close  decimal.Decimal
}

// Valid reports whether the range is usable for matching: both bounds
// positive and low not above high.
func (r PriceRange) Valid() bool {
	return r.Low.IsPositive() && r.High.IsPositive() && !r.Low.GreaterThan(r.High)
}

// RangeSource supplies daily high/low ranges. A symbol absent from
// the returned map means "no data for that day", not an error; errors
// are reserved for transport or storage failures.
type RangeSource interface {
	GetHighLow(ctx context.Context, on date.Date, symbols []string, m Market) (map[string]PriceRange, error)
}
