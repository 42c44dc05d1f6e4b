package pricefeed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HKUDS/AI-Trader-sub000/date"
	"github.com/HKUDS/AI-Trader-sub000/market"
)

func TestClientGetHighLow(t *testing.T) {
	t.Parallel()

	var gotPath, gotQuery, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"market": "us",
			"ranges": [
				{"symbol":"AAPL","date":"2025-05-19","open":"149.5","high":"162","low":"148","close":"161"},
				{"symbol":"BROKEN","date":"2025-05-19","open":"10","high":"8","low":"9","close":"9"}
			]
		}`))
	}))
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL, "sekrit")
	on := date.MustParse("2025-05-19")

	ranges, err := c.GetHighLow(context.Background(), on, []string{"AAPL", "MISSING", "BROKEN"}, market.US)
	require.NoError(t, err)

	assert.Equal(t, "/v1/daily", gotPath)
	assert.Contains(t, gotQuery, "date=2025-05-19")
	assert.Contains(t, gotQuery, "market=us")
	assert.Equal(t, "Bearer sekrit", gotAuth)

	// MISSING is simply absent; BROKEN fails low<=high and is dropped.
	require.Len(t, ranges, 1)
	r := ranges["AAPL"]
	assert.True(t, r.Low.Equal(decimal.NewFromInt(148)))
	assert.True(t, r.High.Equal(decimal.NewFromInt(162)))
	assert.True(t, r.Open.Equal(decimal.RequireFromString("149.5")))
	assert.Equal(t, on, r.Date)
}

func TestClientEmptySymbolList(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for an empty symbol list")
	}))
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL, "")
	ranges, err := c.GetHighLow(context.Background(), date.MustParse("2025-05-19"), nil, market.US)
	assert.NoError(t, err)
	assert.Empty(t, ranges)
}

func TestClientAPIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL, "")
	_, err := c.GetHighLow(context.Background(), date.MustParse("2025-05-19"), []string{"AAPL"}, market.US)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}
