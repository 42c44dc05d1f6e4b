package pricefeed

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/HKUDS/AI-Trader-sub000/date"
	"github.com/HKUDS/AI-Trader-sub000/market"
)

// Dir serves daily ranges from per-symbol CSV files laid out as
// <root>/<market>/<SYMBOL>.csv with a "date,open,high,low,close"
// header. Rows may appear in any order; lookup is by exact date.
type Dir struct {
	root string
}

var _ market.RangeSource = (*Dir)(nil)

// NewDir creates a CSV-backed range source rooted at dir.
func NewDir(dir string) *Dir {
	return &Dir{root: dir}
}

// Path returns the CSV file for a symbol in a market.
func (d *Dir) Path(m market.Market, symbol string) string {
	return filepath.Join(d.root, m.String(), strings.ToUpper(symbol)+".csv")
}

// GetHighLow reads each symbol's file and picks the row for the
// requested day. A missing file or missing row means no data for that
// symbol, not an error.
func (d *Dir) GetHighLow(_ context.Context, on date.Date, symbols []string, m market.Market) (map[string]market.PriceRange, error) {
	out := make(map[string]market.PriceRange, len(symbols))
	for _, symbol := range symbols {
		r, ok, err := d.lookup(m, symbol, on)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if !r.Valid() {
			slog.Warn("dropping invalid price range",
				"symbol", r.Symbol, "low", r.Low, "high", r.High)
			continue
		}
		out[symbol] = r
	}
	return out, nil
}

func (d *Dir) lookup(m market.Market, symbol string, on date.Date) (market.PriceRange, bool, error) {
	f, err := os.Open(d.Path(m, symbol))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return market.PriceRange{}, false, nil
		}
		return market.PriceRange{}, false, fmt.Errorf("open price file for %s: %w", symbol, err)
	}
	defer f.Close()

	rd := csv.NewReader(f)
	rd.FieldsPerRecord = 5

	header, err := rd.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return market.PriceRange{}, false, nil
		}
		return market.PriceRange{}, false, fmt.Errorf("read price file header for %s: %w", symbol, err)
	}
	if strings.ToLower(header[0]) != "date" {
		return market.PriceRange{}, false, fmt.Errorf("price file for %s: unexpected header %v", symbol, header)
	}

	for {
		rec, err := rd.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return market.PriceRange{}, false, nil
			}
			return market.PriceRange{}, false, fmt.Errorf("read price file for %s: %w", symbol, err)
		}

		day, err := date.Parse(rec[0])
		if err != nil || day != on {
			continue
		}

		r := market.PriceRange{Symbol: symbol, Date: on}
		if r.Open, err = decimal.NewFromString(rec[1]); err != nil {
			return r, false, fmt.Errorf("parse open for %s on %s: %w", symbol, on, err)
		}
		if r.High, err = decimal.NewFromString(rec[2]); err != nil {
			return r, false, fmt.Errorf("parse high for %s on %s: %w", symbol, on, err)
		}
		if r.Low, err = decimal.NewFromString(rec[3]); err != nil {
			return r, false, fmt.Errorf("parse low for %s on %s: %w", symbol, on, err)
		}
		if r.Close, err = decimal.NewFromString(rec[4]); err != nil {
			return r, false, fmt.Errorf("parse close for %s on %s: %w", symbol, on, err)
		}
		return r, true, nil
	}
}
