package journal

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	fh, err := os.Open(path)
	require.NoError(t, err)
	defer fh.Close()
	rows, err := csv.NewReader(fh).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestCSVJournal(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tradesPath := filepath.Join(dir, "trades.csv")
	equityPath := filepath.Join(dir, "equity.csv")

	j, err := NewCSV(tradesPath, equityPath)
	require.NoError(t, err)

	closed := time.Date(2024, 4, 10, 15, 30, 0, 0, time.UTC)
	require.NoError(t, j.RecordTrade(sampleTrade("T1", closed, 98)))
	require.NoError(t, j.RecordEquity(EquitySnapshot{Time: closed, Cash: 1000, Equity: 1250.5, MarketValue: 250.5, Positions: 1}))
	require.NoError(t, j.Close())

	trades := readCSV(t, tradesPath)
	require.Len(t, trades, 2)
	assert.Equal(t, tradeHeader, trades[0])
	assert.Equal(t, "T1", trades[1][0])
	assert.Equal(t, "LONG", trades[1][2])
	assert.Equal(t, "2024-04-10T15:30:00Z", trades[1][7])
	assert.Equal(t, "98.000000", trades[1][8])
	assert.Equal(t, "2", trades[1][11])

	equity := readCSV(t, equityPath)
	require.Len(t, equity, 2)
	assert.Equal(t, equityHeader, equity[0])
	assert.Equal(t, []string{"2024-04-10T15:30:00Z", "1000.000000", "1250.500000", "250.500000", "1", "0"}, equity[1])
}

func TestNewCSVBadPath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	_, err := NewCSV(filepath.Join(dir, "missing", "t.csv"), filepath.Join(dir, "e.csv"))
	assert.Error(t, err)
}
