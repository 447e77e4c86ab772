package portfolio

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/tradebook/trade"
)

type countingQuoter struct {
	prices map[string]float64
	calls  int
	err    error
}

func (q *countingQuoter) CurrentPrice(_ context.Context, symbol string) (float64, error) {
	q.calls++
	if q.err != nil {
		return 0, q.err
	}
	return q.prices[symbol], nil
}

func TestLiveSnapshot(t *testing.T) {
	t.Parallel()

	states := fixtureStates()
	states[2].ActiveOrders["S9"] = trade.RoleStop
	states[2].OrderHistory = []trade.OrderLogEntry{
		entry("S9", 0, trade.OrderSubmitted, -5, trade.OrderStop, nil, ptr(190)),
	}
	// A second MSFT trade shares the quote.
	states = append(states, trade.State{
		ID: "msft-2", Ticker: "MSFT", Status: trade.StatusOpen, Kind: trade.KindStock,
		Transactions: []trade.Transaction{tx("m2", 0, 1, 210, 0)},
		ActiveOrders: map[string]trade.Role{"GONE": trade.RoleExit},
	})

	q := &countingQuoter{prices: map[string]float64{"MSFT": 220}}
	snap, err := LiveSnapshot(context.Background(), states, q, t0)
	require.NoError(t, err)

	assert.Equal(t, SourceLive, snap.Source)
	assert.Equal(t, 1, q.calls)
	require.Len(t, snap.Positions, 2)
	assert.Equal(t, "msft-1", snap.Positions[0].TradeID)
	assert.Equal(t, 1100.0, snap.Positions[0].MarketValue)
	assert.Equal(t, 220.0, snap.Positions[1].MarketValue)
	assert.Equal(t, 10.0, snap.Positions[1].UnrealizedPnL, "1 share from 210 to 220")

	require.Len(t, snap.Orders, 2)
	assert.Equal(t, "GONE", snap.Orders[0].OrderID)
	assert.Nil(t, snap.Orders[0].Price)
	assert.Equal(t, "S9", snap.Orders[1].OrderID)
	assert.Equal(t, 190.0, *snap.Orders[1].Price)

	// deposit 10000, AAPL round trip +98, MSFT buys 1000 and 210
	assert.Equal(t, 8888.0, snap.Cash)
	assert.Equal(t, 8888.0+1320.0, snap.Equity)
}

func TestLiveSnapshotQuoteError(t *testing.T) {
	t.Parallel()

	boom := errors.New("no market data")
	_, err := LiveSnapshot(context.Background(), fixtureStates(), &countingQuoter{err: boom}, t0)
	assert.ErrorIs(t, err, boom)
}
