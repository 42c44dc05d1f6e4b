package ledger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HKUDS/AI-Trader-sub000/date"
)

func newTestFileStore(t *testing.T) *FileStore {
	t.Helper()

	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	return s
}

func entry(day string, id int64, kind string, cash int64) Entry {
	return Entry{
		Date:      date.MustParse(day),
		ID:        id,
		Action:    Action{Kind: kind},
		Positions: NewPosition(decimal.NewFromInt(cash)),
	}
}

func TestFileStoreEmptyLedger(t *testing.T) {
	t.Parallel()

	s := newTestFileStore(t)
	entries, err := s.ReadAll("ghost")
	assert.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFileStoreAppendReadRoundTrip(t *testing.T) {
	t.Parallel()

	s := newTestFileStore(t)

	require.NoError(t, s.Append("p1", entry("2025-01-02", 0, ActionInit, 10000)))
	require.NoError(t, s.Append("p1", entry("2025-01-03", 1, ActionDailySettlement, 9300)))
	require.NoError(t, s.Append("p2", entry("2025-01-02", 0, ActionInit, 500)))

	got, err := s.ReadAll("p1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(0), got[0].ID)
	assert.Equal(t, ActionDailySettlement, got[1].Action.Kind)
	assert.True(t, got[1].Positions.Cash.Equal(decimal.NewFromInt(9300)))

	// Portfolios do not leak into each other.
	got, err = s.ReadAll("p2")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Positions.Cash.Equal(decimal.NewFromInt(500)))
}

func TestFileStoreSkipsCorruptLines(t *testing.T) {
	t.Parallel()

	s := newTestFileStore(t)
	require.NoError(t, s.Append("p1", entry("2025-01-02", 0, ActionInit, 10000)))

	// Simulate a torn write and garbage between two valid entries.
	f, err := os.OpenFile(s.Path("p1"), os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("{\"date\":\"2025-01-03\",\"id\":1,\"this_ac\nnot json at all\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.NoError(t, s.Append("p1", entry("2025-01-04", 1, ActionNoTrade, 10000)))

	got, err := s.ReadAll("p1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, ActionInit, got[0].Action.Kind)
	assert.Equal(t, ActionNoTrade, got[1].Action.Kind)
}

func TestFileStorePathConvention(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "alpha", "ledger.jsonl"), s.Path("alpha"))
}
