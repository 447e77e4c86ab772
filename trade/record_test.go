package trade

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/tradebook/pkg/atomicfile"
)

type fakeBroker struct {
	seq       int
	placed    []OrderRequest
	active    map[string]bool
	fills     []Transaction
	cancelled []string
	refuse    bool
	placeErr  error
	updates   int
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{active: map[string]bool{}}
}

func (b *fakeBroker) PlaceOrder(_ context.Context, req OrderRequest) (string, error) {
	if b.placeErr != nil {
		return "", b.placeErr
	}
	b.seq++
	id := fmt.Sprintf("O%d", b.seq)
	b.placed = append(b.placed, req)
	b.active[id] = true
	return id, nil
}

func (b *fakeBroker) GetUpdates(context.Context, string) (Update, error) {
	b.updates++
	var ids []string
	for id := range b.active {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	// Every fill is reported on every call; the record must dedupe.
	return Update{NewFills: append([]Transaction(nil), b.fills...), ActiveOrderIDs: ids}, nil
}

func (b *fakeBroker) CancelOrder(_ context.Context, id string) (bool, error) {
	if b.refuse {
		return false, nil
	}
	b.cancelled = append(b.cancelled, id)
	return true, nil
}

func (b *fakeBroker) CurrentPrice(context.Context, string) (float64, error) { return 100, nil }

// execute fills an order completely at px and retires it.
func (b *fakeBroker) execute(oid string, qty, px float64, at time.Time) {
	b.partial(oid, qty, px, at)
	delete(b.active, oid)
}

func (b *fakeBroker) partial(oid string, qty, px float64, at time.Time) {
	b.fills = append(b.fills, Transaction{
		ID:         fmt.Sprintf("F%d", len(b.fills)+1),
		Timestamp:  at,
		Quantity:   SignedQuantity(qty),
		Price:      px,
		Commission: 1,
		OrderID:    oid,
	})
}

// confirmCancels retires every order a cancel was sent for.
func (b *fakeBroker) confirmCancels() {
	for _, id := range b.cancelled {
		delete(b.active, id)
	}
}

type stepClock struct{ n int }

func (c *stepClock) now() time.Time {
	c.n++
	return t0.Add(time.Duration(c.n) * time.Minute)
}

type countingObserver struct {
	placed, fills, closed, changes, persistFailed int
}

func (o *countingObserver) OrderPlaced(Role)             { o.placed++ }
func (o *countingObserver) FillsIngested(n int)          { o.fills += n }
func (o *countingObserver) OrderClosed(OrderStatus)      { o.closed++ }
func (o *countingObserver) StatusChanged(Status, Status) { o.changes++ }
func (o *countingObserver) PersistFailed()               { o.persistFailed++ }

type fixture struct {
	store  *Store
	broker *fakeBroker
	clock  *stepClock
	writes int
	obs    *countingObserver
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{broker: newFakeBroker(), clock: &stepClock{}, obs: &countingObserver{}}
	w := atomicfile.Default
	w.Rename = func(oldpath, newpath string) error {
		f.writes++
		return os.Rename(oldpath, newpath)
	}
	f.store = NewStore(t.TempDir(), WithWriter(w))
	return f
}

func (f *fixture) newRecord(t *testing.T) *Record {
	t.Helper()
	r, err := New(f.store, f.broker, "AAPL", WithClock(f.clock.now), WithObserver(f.obs))
	require.NoError(t, err)
	return r
}

func TestRecordNewIsPersistedPlanned(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	r := f.newRecord(t)

	assert.Equal(t, StatusPlanned, r.Status())
	assert.NotEmpty(t, r.ID())
	assert.FileExists(t, r.Path())

	loaded, err := Load(f.store, f.broker, "AAPL", r.ID())
	require.NoError(t, err)
	assert.Equal(t, StatusPlanned, loaded.Status())
}

func TestRecordOpenCreatesOrLoads(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	r, err := Open(f.store, f.broker, "MSFT", "fixed-id")
	require.NoError(t, err)
	assert.Equal(t, "fixed-id", r.ID())
	require.NoError(t, r.SetNotes("breakout"))

	again, err := Open(f.store, f.broker, "MSFT", "fixed-id")
	require.NoError(t, err)
	assert.Equal(t, "breakout", again.State().Notes)

	_, err = New(f.store, f.broker, "../etc")
	assert.Error(t, err)
}

func TestRecordEnterWithStop(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	r := f.newRecord(t)

	oid, err := r.Enter(context.Background(), 10, price(100), price(95))
	require.NoError(t, err)
	assert.Equal(t, "O1", oid)
	assert.Equal(t, StatusOpening, r.Status())

	require.Len(t, f.broker.placed, 2)
	assert.Equal(t, r.ID(), f.broker.placed[0].Ref)
	assert.Equal(t, SignedQuantity(10), f.broker.placed[0].Quantity)
	assert.Equal(t, OrderLimit, f.broker.placed[0].Type())
	assert.Equal(t, SignedQuantity(-10), f.broker.placed[1].Quantity)
	assert.Equal(t, OrderStop, f.broker.placed[1].Type())

	st := r.State()
	assert.Equal(t, map[string]Role{"O1": RoleEntry, "O2": RoleStop}, st.ActiveOrders)
	require.Len(t, st.OrderHistory, 2)
	assert.Equal(t, ActionBuy, st.OrderHistory[0].Action)
	assert.Equal(t, ActionSell, st.OrderHistory[1].Action)
	assert.Equal(t, 95.0, *st.CurrentStopPrice)
	assert.Equal(t, 95.0, *st.InitialStopPrice)
	assert.Equal(t, 2, f.obs.placed)

	disk, err := f.store.Load("AAPL", r.ID())
	require.NoError(t, err)
	assert.Equal(t, StatusOpening, disk.Status)
}

func TestRecordEnterOnlyFromPlanned(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	r := f.newRecord(t)
	_, err := r.Enter(context.Background(), 10, nil, nil)
	require.NoError(t, err)

	before := r.State()
	writes := f.writes
	_, err = r.Enter(context.Background(), 5, nil, nil)
	require.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, before, r.State())
	assert.Len(t, f.broker.placed, 1)
	assert.Equal(t, writes, f.writes)
}

func TestRecordEnterBrokerFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	r := f.newRecord(t)
	boom := errors.New("broker down")
	f.broker.placeErr = boom

	_, err := r.Enter(context.Background(), 10, nil, nil)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, StatusPlanned, r.Status())
	assert.Empty(t, r.State().OrderHistory)
}

func TestRecordNeedsBroker(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	r, err := New(f.store, nil, "AAPL")
	require.NoError(t, err)

	_, err = r.Enter(context.Background(), 1, nil, nil)
	assert.ErrorIs(t, err, ErrNoBroker)
	_, err = r.Refresh(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNoBroker)
}

func TestRecordRefreshIngestsFills(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	r := f.newRecord(t)
	ctx := context.Background()

	_, err := r.Enter(ctx, 10, price(100), price(95))
	require.NoError(t, err)

	f.broker.execute("O1", 10, 100.5, t0.Add(time.Hour))
	res, err := r.Refresh(ctx, 101)
	require.NoError(t, err)
	assert.Equal(t, 1, res.NewFills)
	assert.Equal(t, 1, res.OrdersClosed)
	assert.True(t, res.StatusChanged)
	assert.Equal(t, StatusOpen, r.Status())
	assert.Equal(t, SignedQuantity(10), res.Metrics.NetQuantity)
	assert.Equal(t, 5.0, res.Metrics.UnrealizedPnL)

	st := r.State()
	require.Len(t, st.Transactions, 1)
	assert.Equal(t, TxEntry, st.Transactions[0].Type)
	assert.InDelta(t, -0.5, st.Transactions[0].Slippage, 1e-9)
	assert.Equal(t, map[string]Role{"O2": RoleStop}, st.ActiveOrders)

	last := st.OrderHistory[len(st.OrderHistory)-1]
	assert.Equal(t, "O1", last.OrderID)
	assert.Equal(t, OrderFilled, last.Status, "a filled order is not logged as cancelled")
	assert.Equal(t, 1, f.obs.fills)
}

func TestRecordRefreshIsIdempotent(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	r := f.newRecord(t)
	ctx := context.Background()

	_, err := r.Enter(ctx, 10, nil, nil)
	require.NoError(t, err)
	f.broker.execute("O1", 10, 100, t0.Add(time.Hour))
	_, err = r.Refresh(ctx, 100)
	require.NoError(t, err)

	before := r.State()
	writes := f.writes

	res, err := r.Refresh(ctx, 100)
	require.NoError(t, err)
	assert.False(t, res.Changed())
	assert.Equal(t, before, r.State())
	assert.Equal(t, writes, f.writes, "unchanged refresh must not rewrite the file")
	assert.Equal(t, 2, f.broker.updates)
}

func TestRecordPartialFills(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	r := f.newRecord(t)
	ctx := context.Background()

	_, err := r.Enter(ctx, 10, price(50), nil)
	require.NoError(t, err)

	f.broker.partial("O1", 4, 50, t0.Add(time.Hour))
	_, err = r.Refresh(ctx, 50)
	require.NoError(t, err)
	assert.Equal(t, StatusOpen, r.Status())
	hist := r.State().OrderHistory
	assert.Equal(t, OrderPartiallyFilled, hist[len(hist)-1].Status)
	assert.Contains(t, r.State().ActiveOrders, "O1")

	f.broker.execute("O1", 6, 49.9, t0.Add(2*time.Hour))
	_, err = r.Refresh(ctx, 50)
	require.NoError(t, err)
	hist = r.State().OrderHistory
	assert.Equal(t, OrderFilled, hist[len(hist)-1].Status)
	assert.Empty(t, r.State().ActiveOrders)
	assert.Equal(t, SignedQuantity(10), r.Metrics(50).NetQuantity)
}

func TestRecordLingeringStopBlocksClosed(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	r := f.newRecord(t)
	ctx := context.Background()

	_, err := r.Enter(ctx, 10, nil, price(95))
	require.NoError(t, err)
	f.broker.execute("O1", 10, 100, t0.Add(time.Hour))
	_, err = r.Refresh(ctx, 100)
	require.NoError(t, err)

	// The position is flattened outside the record's own orders while the
	// stop is still working at the broker.
	f.broker.partial("manual", -10, 110, t0.Add(2*time.Hour))
	res, err := r.Refresh(ctx, 110)
	require.NoError(t, err)
	assert.Equal(t, SignedQuantity(0), res.Metrics.NetQuantity)
	assert.Equal(t, 100.0, res.Metrics.RealizedPnL)
	assert.Equal(t, StatusOpen, r.Status(), "a working stop keeps the trade out of CLOSED")
	assert.Contains(t, r.State().ActiveOrders, "O2")

	delete(f.broker.active, "O2")
	_, err = r.Refresh(ctx, 110)
	require.NoError(t, err)
	assert.Equal(t, StatusClosed, r.Status())

	hist := r.State().OrderHistory
	last := hist[len(hist)-1]
	assert.Equal(t, "O2", last.OrderID)
	assert.Equal(t, OrderCancelled, last.Status)
}

func TestRecordSetStopLoss(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	r := f.newRecord(t)
	ctx := context.Background()

	_, err := r.Enter(ctx, 10, nil, price(95))
	require.NoError(t, err)

	_, err = r.SetStopLoss(ctx, 97)
	require.ErrorIs(t, err, ErrNoPosition, "nothing filled yet")
	assert.Empty(t, f.broker.cancelled)

	f.broker.execute("O1", 10, 100, t0.Add(time.Hour))
	_, err = r.Refresh(ctx, 100)
	require.NoError(t, err)

	sid, err := r.SetStopLoss(ctx, 98)
	require.NoError(t, err)
	assert.Equal(t, "O3", sid)
	assert.Equal(t, []string{"O2"}, f.broker.cancelled)
	assert.Equal(t, SignedQuantity(-10), f.broker.placed[2].Quantity)

	st := r.State()
	assert.Equal(t, 98.0, *st.CurrentStopPrice)
	assert.Equal(t, 95.0, *st.InitialStopPrice)
	assert.Equal(t, []string{"O2", "O3"}, st.RolesOf(RoleStop), "old stop tracked until confirmed")

	// A second adjustment before the broker confirms does not cancel O2 again.
	_, err = r.SetStopLoss(ctx, 99)
	require.NoError(t, err)
	assert.Equal(t, []string{"O2", "O3"}, f.broker.cancelled)

	f.broker.confirmCancels()
	_, err = r.Refresh(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, []string{"O4"}, r.State().RolesOf(RoleStop))
	assert.Equal(t, StatusOpen, r.Status())
}

func TestRecordCancelOrder(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	r := f.newRecord(t)
	ctx := context.Background()

	_, err := r.Enter(ctx, 10, price(100), nil)
	require.NoError(t, err)

	ok, err := r.CancelOrder(ctx, "unknown")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, f.broker.cancelled)

	ok, err = r.CancelOrder(ctx, "O1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, r.State().ActiveOrders, "O1", "removed only on refresh")

	f.broker.confirmCancels()
	_, err = r.Refresh(ctx, 100)
	require.NoError(t, err)
	assert.Empty(t, r.State().ActiveOrders)
	assert.Equal(t, StatusOpening, r.Status())

	views := FoldOrders(r.State().OrderHistory)
	require.Len(t, views, 1)
	assert.Equal(t, OrderCancelled, views[0].Status)
	assert.True(t, views[0].CancelRequested)
}

func TestRecordCancelRefusedByBroker(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	r := f.newRecord(t)
	ctx := context.Background()

	_, err := r.Enter(ctx, 10, price(100), nil)
	require.NoError(t, err)
	f.broker.refuse = true

	ok, err := r.CancelOrder(ctx, "O1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, FoldOrders(r.State().OrderHistory)[0].CancelRequested)
}

func TestRecordClose(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	r := f.newRecord(t)
	ctx := context.Background()

	_, err := r.Enter(ctx, -10, nil, price(105))
	require.NoError(t, err)
	f.broker.execute("O1", -10, 100, t0.Add(time.Hour))
	_, err = r.Refresh(ctx, 100)
	require.NoError(t, err)

	oid, err := r.Close(ctx)
	require.NoError(t, err)
	assert.Equal(t, "O3", oid)
	assert.Equal(t, StatusClosing, r.Status())
	assert.Equal(t, []string{"O2"}, f.broker.cancelled)
	assert.Equal(t, SignedQuantity(10), f.broker.placed[2].Quantity)
	assert.Equal(t, OrderMarket, f.broker.placed[2].Type())

	f.broker.confirmCancels()
	f.broker.execute("O3", 10, 90, t0.Add(2*time.Hour))
	res, err := r.Refresh(ctx, 90)
	require.NoError(t, err)
	assert.Equal(t, StatusClosed, r.Status())
	assert.Equal(t, 100.0, res.Metrics.RealizedPnL)
	assert.Equal(t, TxExit, r.State().SortedTransactions()[1].Type)

	_, err = r.Close(ctx)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	require.NoError(t, r.Archive())
	assert.Equal(t, StatusArchived, r.Status())
}

func TestRecordCloseAlreadyFlat(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	r := f.newRecord(t)
	ctx := context.Background()

	_, err := r.Enter(ctx, 10, price(90), nil)
	require.NoError(t, err)

	oid, err := r.Close(ctx)
	require.NoError(t, err)
	assert.Equal(t, AlreadyFlat, oid)
	assert.Equal(t, StatusClosed, r.Status())
	assert.Equal(t, []string{"O1"}, f.broker.cancelled)
	assert.Len(t, f.broker.placed, 1, "no exit order for a flat trade")
}

func TestRecordPersistenceFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	r := f.newRecord(t)

	w := atomicfile.Default
	w.Retries = 1
	w.Rename = func(string, string) error { return errors.New("read-only filesystem") }
	w.Remove = func(string) error { return errors.New("read-only filesystem") }
	broken := NewStore(f.store.Root(), WithWriter(w))
	r2, err := Load(broken, f.broker, "AAPL", r.ID(), WithObserver(f.obs))
	require.NoError(t, err)

	oid, err := r2.Enter(context.Background(), 10, nil, nil)
	require.ErrorIs(t, err, ErrPersistence)
	assert.Equal(t, "O1", oid, "the order went out and is reported")
	assert.Equal(t, StatusOpening, r2.Status(), "memory is authoritative")
	assert.Equal(t, 1, f.obs.persistFailed)

	disk, err := f.store.Load("AAPL", r.ID())
	require.NoError(t, err)
	assert.Equal(t, StatusPlanned, disk.Status, "file is stale but intact")
}
