package cmd

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/tradebook/config"
	"github.com/rustyeddy/tradebook/trade"
)

// The commands share package state, so these tests are not parallel.

func writeConfig(t *testing.T) (string, *config.Config) {
	t.Helper()
	dir := t.TempDir()
	c := config.Default()
	c.Storage.TradesDir = filepath.Join(dir, "trades")
	c.Broker.StateFile = filepath.Join(dir, "sim.json")
	c.Journal.DBPath = filepath.Join(dir, "journal.db")
	path := filepath.Join(dir, "tradebook.yaml")
	require.NoError(t, c.SaveToFile(path))
	return path, c
}

func run(t *testing.T, cfgPath string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(append([]string{"--config", cfgPath}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, cfgPath string, args ...string) string {
	t.Helper()
	out, err := run(t, cfgPath, args...)
	require.NoError(t, err, "tradebook %v", args)
	return out
}

func onlyTrade(t *testing.T, c *config.Config, ticker string) trade.State {
	t.Helper()
	states, _, err := trade.NewStore(c.Storage.TradesDir).Walk()
	require.NoError(t, err)
	for _, st := range states {
		if st.Ticker == ticker {
			return st
		}
	}
	t.Fatalf("no %s trade", ticker)
	return trade.State{}
}

func TestVersion(t *testing.T) {
	out := mustRun(t, "unused.yaml", "version")
	assert.Contains(t, out, "tradebook version "+version)
}

func TestTradeLifecycleThroughCLI(t *testing.T) {
	path, c := writeConfig(t)
	today := time.Now().Format(time.DateOnly)

	mustRun(t, path, "cash", "10000", "deposit")
	mustRun(t, path, "trade", "new", "AAPL")
	id := onlyTrade(t, c, "AAPL").ID

	mustRun(t, path, "sim", "price", "AAPL", "100")
	out := mustRun(t, path, "trade", "enter", id, "10", "--stop", "95")
	assert.Contains(t, out, "Entry order ORD-")

	out = mustRun(t, path, "trade", "refresh", id)
	assert.Contains(t, out, "1 new fills")
	assert.Contains(t, out, "status OPEN")

	out = mustRun(t, path, "trade", "show", id, "--target", "110")
	assert.Contains(t, out, "Reward/risk to 110.00: 2.00")

	out = mustRun(t, path, "sim", "price", "AAPL", "110")
	assert.NotContains(t, out, "filled", "stop below the market stays working")

	out = mustRun(t, path, "trade", "close", id)
	assert.Contains(t, out, "CLOSING")
	out = mustRun(t, path, "trade", "refresh", id)
	assert.Contains(t, out, "status CLOSED")

	st := onlyTrade(t, c, "AAPL")
	assert.Equal(t, trade.StatusClosed, st.Status)
	assert.Empty(t, st.ActiveOrders)

	out = mustRun(t, path, "portfolio", "closed", "--from", today)
	assert.Contains(t, out, "AAPL")
	assert.Contains(t, out, "100.00")

	out = mustRun(t, path, "portfolio", "snapshot")
	assert.Contains(t, out, "Equity: 10100.00")

	out = mustRun(t, path, "journal", "sync", "--from", today)
	assert.Contains(t, out, "Journaled 1 trades")
	out = mustRun(t, path, "journal", "trade", id)
	assert.Contains(t, out, "AAPL")

	mustRun(t, path, "trade", "archive", id)
	out = mustRun(t, path, "trade", "list")
	assert.NotContains(t, out, id)
}

func TestTradeErrors(t *testing.T) {
	path, c := writeConfig(t)

	_, err := run(t, path, "trade", "show", "nope")
	assert.ErrorIs(t, err, trade.ErrNotFound)

	mustRun(t, path, "trade", "new", "MSFT")
	id := onlyTrade(t, c, "MSFT").ID

	_, err = run(t, path, "trade", "archive", id)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only closed trades")

	_, err = run(t, path, "trade", "stop", id, "90")
	assert.ErrorIs(t, err, trade.ErrInvalidTransition)

	_, err = run(t, path, "trade", "enter", id, "ten")
	assert.Error(t, err)
}
