package trade

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCash(t *testing.T) {
	t.Parallel()

	s := NewStore(t.TempDir())
	clock := func() time.Time { return t0 }

	r, err := NewCash(s, 5000, "initial deposit", WithClock(clock))
	require.NoError(t, err)
	assert.Equal(t, CashTicker, r.Ticker())
	assert.Equal(t, StatusArchived, r.Status())

	st, err := s.Load(CashTicker, r.ID())
	require.NoError(t, err)
	assert.Equal(t, KindCash, st.Kind)
	require.Len(t, st.Transactions, 1)
	assert.Equal(t, TxAdjustment, st.Transactions[0].Type)
	assert.Equal(t, 5000.0, st.CashFlow(st.Transactions[0]))

	_, err = NewCash(s, 0, "", WithClock(clock))
	assert.Error(t, err)
}

func TestEventStream(t *testing.T) {
	t.Parallel()

	stock := newState("s", "AAPL", KindStock)
	buy := fill("b", time.Hour, 10, 100)
	buy.Commission = 1
	sell := fill("x", 3*time.Hour, -10, 110)
	sell.Commission = 1
	stock.Transactions = []Transaction{sell, buy}

	cash := newState("c", CashTicker, KindCash)
	dep := fill("d", 0, 2000, 1)
	dep.Type = TxAdjustment
	cash.Transactions = []Transaction{dep}

	events := EventStream(stock, cash)
	require.Len(t, events, 3)

	assert.Equal(t, "c", events[0].TradeID)
	assert.Equal(t, 2000.0, events[0].CashFlow)
	assert.Equal(t, SignedQuantity(0), events[0].Quantity, "cash moves no shares")

	assert.Equal(t, -1001.0, events[1].CashFlow)
	assert.Equal(t, SignedQuantity(10), events[1].Quantity)
	assert.Equal(t, 1099.0, events[2].CashFlow)
}
