// Package pricefeed provides RangeSource implementations: an HTTP
// client for a daily-bar data service and a CSV directory source for
// offline backtests. Both report a missing symbol by omitting it from
// the result map; only transport and storage failures are errors.
package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/HKUDS/AI-Trader-sub000/date"
	"github.com/HKUDS/AI-Trader-sub000/market"
)

// Client fetches daily high/low ranges from a JSON data API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

var _ market.RangeSource = (*Client)(nil)

// NewClient creates a price data client for the given base URL. The
// token may be empty for services that do not authenticate.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// apiRange mirrors one element of the service's "ranges" array.
type apiRange struct {
	Symbol string `json:"symbol"`
	Date   string `json:"date"`
	Open   string `json:"open"`
	High   string `json:"high"`
	Low    string `json:"low"`
	Close  string `json:"close"`
}

type rangesResponse struct {
	Market string     `json:"market"`
	Ranges []apiRange `json:"ranges"`
}

// GetHighLow fetches the daily range for each symbol on the given
// day. Symbols the service has no data for are absent from the
// result. Ranges that fail the low<=high sanity check are dropped the
// same way; a provider bug must not become a fill.
func (c *Client) GetHighLow(ctx context.Context, on date.Date, symbols []string, m market.Market) (map[string]market.PriceRange, error) {
	if len(symbols) == 0 {
		return map[string]market.PriceRange{}, nil
	}

	params := url.Values{}
	params.Set("date", on.String())
	params.Set("market", m.String())
	params.Set("symbols", strings.Join(symbols, ","))

	apiURL := fmt.Sprintf("%s/v1/daily?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, "GET", apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	var apiResp rangesResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	out := make(map[string]market.PriceRange, len(apiResp.Ranges))
	for _, ar := range apiResp.Ranges {
		r, err := parseRange(ar, on)
		if err != nil {
			slog.Warn("dropping unparseable price range", "symbol", ar.Symbol, "err", err)
			continue
		}
		if !r.Valid() {
			slog.Warn("dropping invalid price range",
				"symbol", r.Symbol, "low", r.Low, "high", r.High)
			continue
		}
		out[r.Symbol] = r
	}
	return out, nil
}

func parseRange(ar apiRange, on date.Date) (market.PriceRange, error) {
	r := market.PriceRange{Symbol: ar.Symbol, Date: on}

	var err error
	if r.Low, err = decimal.NewFromString(ar.Low); err != nil {
		return r, fmt.Errorf("parse low: %w", err)
	}
	if r.High, err = decimal.NewFromString(ar.High); err != nil {
		return r, fmt.Errorf("parse high: %w", err)
	}
	// Open/close are optional; other callers use them, settlement
	// does not.
	if ar.Open != "" {
		if r.Open, err = decimal.NewFromString(ar.Open); err != nil {
			return r, fmt.Errorf("parse open: %w", err)
		}
	}
	if ar.Close != "" {
		if r.Close, err = decimal.NewFromString(ar.Close); err != nil {
			return r, fmt.Errorf("parse close: %w", err)
		}
	}
	return r, nil
}
