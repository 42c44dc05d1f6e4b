package market

import (
	"context"
	"fmt"

	"github.com/HKUDS/AI-Trader-sub000/date"
)

// LookAheadError reports an attempt to read data dated after the
// simulation clock. It is an integrity violation, never a business
// outcome.
type LookAheadError struct {
	Requested date.Date
	Current   date.Date
}

func (e *LookAheadError) Error() string {
	return fmt.Sprintf("look-ahead violation: requested %s is %d day(s) after current simulated date %s",
		e.Requested, e.Requested.Sub(e.Current), e.Current)
}

// Days returns how far past the clock the request reached.
func (e *LookAheadError) Days() int { return e.Requested.Sub(e.Current) }

// AssertNotFuture fails when requested is later than current. An
// unset current date disables the guard; that permits out-of-band
// tooling but means callers must set the clock before any settlement
// run.
func AssertNotFuture(requested, current date.Date) error {
	if current.IsZero() {
		return nil
	}
	if requested.After(current) {
		return &LookAheadError{Requested: requested, Current: current}
	}
	return nil
}

// Guarded wraps a RangeSource so every read is checked against a
// simulation clock before it reaches the underlying provider.
type Guarded struct {
	Source RangeSource
	Now    func() date.Date
}

// Guard returns src wrapped with the given clock function.
func Guard(src RangeSource, now func() date.Date) *Guarded {
	return &Guarded{Source: src, Now: now}
}

// GetHighLow enforces the temporal guard and then delegates.
func (g *Guarded) GetHighLow(ctx context.Context, on date.Date, symbols []string, m Market) (map[string]PriceRange, error) {
	if err := AssertNotFuture(on, g.Now()); err != nil {
		return nil, err
	}
	return g.Source.GetHighLow(ctx, on, symbols, m)
}

var _ RangeSource = (*Guarded)(nil)
