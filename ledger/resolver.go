package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/HKUDS/AI-Trader-sub000/date"
)

// NoHistory is the sentinel last-action id returned when a portfolio
// has no ledger entry at or before the requested date.
const NoHistory int64 = -1

// Resolve returns the most recent position snapshot at or before
// asOf, with ties on the date broken by the highest action id.
//
// This is a "latest-at-or-before" query, not an exact-date lookup: a
// portfolio with no entry for a weekend or an unsettled day resolves
// to its last known state. Ledger dates are not assumed contiguous or
// evenly spaced.
//
// Absence of history is a valid state, not an error: the result is an
// empty position and NoHistory.
func Resolve(s Store, portfolioID string, asOf date.Date) (Position, int64, error) {
	entries, err := s.ReadAll(portfolioID)
	if err != nil {
		return Position{}, NoHistory, fmt.Errorf("resolve %s as of %s: %w", portfolioID, asOf, err)
	}

	found := false
	var best Entry
	for _, e := range entries {
		if e.Date.After(asOf) {
			continue
		}
		if !found || e.Date.After(best.Date) || (e.Date == best.Date && e.ID > best.ID) {
			best = e
			found = true
		}
	}
	if !found {
		return NewPosition(decimal.Zero), NoHistory, nil
	}
	return best.Positions.Clone(), best.ID, nil
}

// LastID returns the highest action id recorded for the portfolio
// across all dates, or NoHistory when the ledger is empty. Settlement
// uses it to assign the next id in the global per-portfolio sequence.
func LastID(s Store, portfolioID string) (int64, error) {
	entries, err := s.ReadAll(portfolioID)
	if err != nil {
		return NoHistory, fmt.Errorf("last id for %s: %w", portfolioID, err)
	}
	last := NoHistory
	for _, e := range entries {
		if e.ID > last {
			last = e.ID
		}
	}
	return last, nil
}

// SettlementFor returns the daily settlement entry recorded for the
// given period, if any. Settlement is at-most-once per period; this
// is the idempotency probe.
func SettlementFor(s Store, portfolioID string, period date.Date) (Entry, bool, error) {
	entries, err := s.ReadAll(portfolioID)
	if err != nil {
		return Entry{}, false, fmt.Errorf("settlement lookup for %s on %s: %w", portfolioID, period, err)
	}
	for _, e := range entries {
		if e.Date == period && e.Action.Kind == ActionDailySettlement {
			return e, true, nil
		}
	}
	return Entry{}, false, nil
}
