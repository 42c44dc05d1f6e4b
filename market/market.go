// Package market defines market identifiers, settlement-cycle rules,
// daily price ranges and the temporal guard that keeps the simulation
// from reading data newer than its own clock.
package market

import (
	"fmt"
	"strings"
)

// Cycle is a market's settlement cycle convention.
type Cycle int

const (
	// T0 markets allow shares bought today to be sold the same day.
	T0 Cycle = iota
	// T1 markets forbid selling shares until a later trading period.
	T1
)

func (c Cycle) String() string {
	switch c {
	case T0:
		return "T+0"
	case T1:
		return "T+1"
	default:
		return "unknown"
	}
}

// Market identifies a trading venue and, through it, the settlement
// cycle applied by the engine.
type Market string

const (
	// US is the U.S. equity market, settled T+0 for simulation purposes.
	US Market = "us"
	// CN is the China A-share market, where same-day sells of shares
	// bought today are rejected (T+1).
	CN Market = "cn"
)

// Meta carries the per-market parameters the engine consults.
type Meta struct {
	Name     string
	Cycle    Cycle
	Currency string
}

// Markets is the registry of known markets.
var Markets = map[Market]Meta{
	US: {
		Name:     "us",
		Cycle:    T0,
		Currency: "USD",
	},
	CN: {
		Name:     "cn",
		Cycle:    T1,
		Currency: "CNY",
	},
}

// Parse returns the Market for a string identifier.
func Parse(s string) (Market, error) {
	m := Market(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := Markets[m]; !ok {
		return "", fmt.Errorf("unknown market: %q", s)
	}
	return m, nil
}

// SettlementCycle returns the cycle for m, defaulting to T+1 for
// unknown markets. Rejecting a sell is the safe direction when the
// venue is unrecognised.
func (m Market) SettlementCycle() Cycle {
	meta, ok := Markets[m]
	if !ok {
		return T1
	}
	return meta.Cycle
}

func (m Market) String() string { return string(m) }
