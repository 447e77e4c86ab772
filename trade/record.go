package trade

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rustyeddy/tradebook/risk"
)

// AlreadyFlat is returned by Close instead of an order id when there was no
// position left to close.
const AlreadyFlat = "ALREADY_FLAT"

// Record is one logical trade: its fills, its order log and the broker
// orders it is tracking. Every mutating operation ends by persisting the
// full state. A Record is not safe for concurrent use, and only one process
// may hold a given (ticker, id) at a time.
type Record struct {
	state  State
	store  *Store
	broker Broker
	log    zerolog.Logger
	obs    Observer
	now    func() time.Time
}

type Option func(*Record)

func WithLogger(l zerolog.Logger) Option {
	return func(r *Record) { r.log = l }
}

func WithObserver(o Observer) Option {
	return func(r *Record) {
		if o != nil {
			r.obs = o
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Record) { r.now = now }
}

func newRecord(store *Store, b Broker, st State, opts []Option) *Record {
	r := &Record{
		state:  st,
		store:  store,
		broker: b,
		log:    zerolog.Nop(),
		obs:    nopObserver{},
		now:    time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	r.log = r.log.With().Str("trade_id", st.ID).Str("ticker", st.Ticker).Logger()
	return r
}

// New creates a PLANNED trade with a fresh id and persists it. b may be nil
// for records that are only inspected. On a persistence failure the record
// is still returned together with the error.
func New(store *Store, b Broker, ticker string, opts ...Option) (*Record, error) {
	return create(store, b, uuid.NewString(), ticker, KindStock, opts)
}

// Open loads the trade stored under (ticker, id). If no file exists a new
// PLANNED trade is created under that id.
func Open(store *Store, b Broker, ticker, id string, opts ...Option) (*Record, error) {
	st, err := store.Load(ticker, id)
	if errors.Is(err, ErrNotFound) {
		return create(store, b, id, ticker, KindStock, opts)
	}
	if err != nil {
		return nil, err
	}
	return newRecord(store, b, st, opts), nil
}

// Load returns the stored trade or ErrNotFound.
func Load(store *Store, b Broker, ticker, id string, opts ...Option) (*Record, error) {
	st, err := store.Load(ticker, id)
	if err != nil {
		return nil, err
	}
	return newRecord(store, b, st, opts), nil
}

// FromState wraps an already loaded state, e.g. one returned by Store.Walk.
func FromState(store *Store, b Broker, st State, opts ...Option) *Record {
	return newRecord(store, b, st.Clone(), opts)
}

func create(store *Store, b Broker, id, ticker string, kind Kind, opts []Option) (*Record, error) {
	if err := validTicker(ticker); err != nil {
		return nil, err
	}
	r := newRecord(store, b, newState(id, ticker, kind), opts)
	err := r.save()
	r.log.Info().Msg("trade planned")
	return r, err
}

func validTicker(t string) error {
	if t == "" || t == "." || t == ".." || strings.ContainsAny(t, `/\`) {
		return fmt.Errorf("invalid ticker %q", t)
	}
	return nil
}

func (r *Record) ID() string     { return r.state.ID }
func (r *Record) Ticker() string { return r.state.Ticker }
func (r *Record) Status() Status { return r.state.Status }
func (r *Record) Path() string   { return r.store.Path(r.state.Ticker, r.state.ID) }
func (r *Record) State() State   { return r.state.Clone() }

// Events returns the trade's cash-flow events in time order.
func (r *Record) Events() []CashEvent { return EventStream(r.state) }

// Metrics values the trade at currentPrice. The initial risk is taken from
// the first fill and the initial stop.
func (r *Record) Metrics(currentPrice float64) Metrics {
	return CalculateAt(r.state.Transactions, currentPrice, r.initialRisk(), r.now())
}

func (r *Record) initialRisk() float64 {
	if r.state.InitialStopPrice == nil || len(r.state.Transactions) == 0 {
		return 0
	}
	first := r.state.SortedTransactions()[0]
	return risk.InitialRisk(first.Price, *r.state.InitialStopPrice, first.Quantity.Float64())
}

func (r *Record) netQuantity() SignedQuantity {
	return CalculateAt(r.state.Transactions, 0, 0, r.now()).NetQuantity
}

func (r *Record) facts() Facts {
	return Facts{NetQuantity: r.netQuantity(), ActiveOrders: len(r.state.ActiveOrders)}
}

// Enter places the entry order and, when stopLoss is given, a protective
// stop for the opposite quantity. PLANNED becomes OPENING.
func (r *Record) Enter(ctx context.Context, qty SignedQuantity, limit, stopLoss *float64) (string, error) {
	if r.broker == nil {
		return "", ErrNoBroker
	}
	if qty.IsZero() {
		return "", fmt.Errorf("enter %s: quantity must not be zero", r.state.ID)
	}
	next, err := Next(r.state.Status, EventEnter, r.facts())
	if err != nil {
		return "", err
	}

	oid, err := r.broker.PlaceOrder(ctx, OrderRequest{
		Ref:        r.state.ID,
		Symbol:     r.state.Ticker,
		Quantity:   qty,
		LimitPrice: limit,
	})
	if err != nil {
		return "", fmt.Errorf("enter %s: place entry: %w", r.state.ID, err)
	}
	r.track(oid, RoleEntry, OrderLogEntry{
		OrderID:    oid,
		Action:     qty.Action(),
		Status:     OrderSubmitted,
		Message:    "Initial Entry",
		Quantity:   qty,
		Type:       OrderTypeFor(limit, nil),
		LimitPrice: copyPrice(limit),
	})
	r.setStatus(next)

	var stopErr error
	if stopLoss != nil {
		sid, err := r.broker.PlaceOrder(ctx, OrderRequest{
			Ref:       r.state.ID,
			Symbol:    r.state.Ticker,
			Quantity:  qty.Neg(),
			StopPrice: stopLoss,
		})
		if err != nil {
			stopErr = fmt.Errorf("enter %s: place stop: %w", r.state.ID, err)
		} else {
			r.track(sid, RoleStop, OrderLogEntry{
				OrderID:   sid,
				Action:    qty.Neg().Action(),
				Status:    OrderSubmitted,
				Message:   "Initial Stop",
				Quantity:  qty.Neg(),
				Type:      OrderStop,
				StopPrice: copyPrice(stopLoss),
			})
			r.state.InitialStopPrice = copyPrice(stopLoss)
			r.state.CurrentStopPrice = copyPrice(stopLoss)
		}
	}

	r.log.Info().Str("order_id", oid).Float64("quantity", qty.Float64()).Msg("entry placed")
	return oid, errors.Join(stopErr, r.save())
}

// SetStopLoss replaces every tracked stop with one stop at price sized to
// flatten the current position.
func (r *Record) SetStopLoss(ctx context.Context, price float64) (string, error) {
	if r.broker == nil {
		return "", ErrNoBroker
	}
	f := r.facts()
	if _, err := Next(r.state.Status, EventSetStop, f); err != nil {
		return "", err
	}

	if err := r.cancelAll(ctx, RoleStop, "Stop Replaced"); err != nil {
		return "", errors.Join(err, r.save())
	}

	qty := f.NetQuantity.Neg()
	sid, err := r.broker.PlaceOrder(ctx, OrderRequest{
		Ref:       r.state.ID,
		Symbol:    r.state.Ticker,
		Quantity:  qty,
		StopPrice: &price,
	})
	if err != nil {
		return "", errors.Join(fmt.Errorf("set stop %s: %w", r.state.ID, err), r.save())
	}
	r.track(sid, RoleStop, OrderLogEntry{
		OrderID:   sid,
		Action:    qty.Action(),
		Status:    OrderSubmitted,
		Message:   "Stop Adjustment",
		Quantity:  qty,
		Type:      OrderStop,
		StopPrice: copyPrice(&price),
	})
	r.state.CurrentStopPrice = copyPrice(&price)
	if r.state.InitialStopPrice == nil {
		r.state.InitialStopPrice = copyPrice(&price)
	}

	r.log.Info().Str("order_id", sid).Float64("stop", price).Msg("stop adjusted")
	return sid, r.save()
}

// CancelOrder asks the broker to cancel a tracked order. It returns false
// without calling the broker when the id is not tracked, since the order may
// simply have completed already. The order stays tracked until a Refresh
// confirms it is gone.
func (r *Record) CancelOrder(ctx context.Context, orderID string) (bool, error) {
	if _, ok := r.state.ActiveOrders[orderID]; !ok {
		r.log.Debug().Str("order_id", orderID).Msg("cancel: order not tracked")
		return false, nil
	}
	if r.broker == nil {
		return false, ErrNoBroker
	}
	ok, err := r.requestCancel(ctx, orderID, "Cancel Requested")
	if err != nil || !ok {
		return false, err
	}
	return true, r.save()
}

// Close cancels everything working and flattens the position at market.
// When the position is already flat the trade goes straight to CLOSED and
// AlreadyFlat is returned.
func (r *Record) Close(ctx context.Context) (string, error) {
	if r.broker == nil {
		return "", ErrNoBroker
	}
	f := r.facts()

	if f.NetQuantity.IsZero() {
		next, err := Next(r.state.Status, EventFlatten, f)
		if err != nil {
			return "", err
		}
		if err := r.cancelAll(ctx, "", "Trade Closed"); err != nil {
			return "", errors.Join(err, r.save())
		}
		r.setStatus(next)
		return AlreadyFlat, r.save()
	}

	next, err := Next(r.state.Status, EventExit, f)
	if err != nil {
		return "", err
	}
	if err := r.cancelAll(ctx, "", "Trade Closing"); err != nil {
		return "", errors.Join(err, r.save())
	}

	qty := f.NetQuantity.Neg()
	oid, err := r.broker.PlaceOrder(ctx, OrderRequest{
		Ref:      r.state.ID,
		Symbol:   r.state.Ticker,
		Quantity: qty,
	})
	if err != nil {
		return "", errors.Join(fmt.Errorf("close %s: %w", r.state.ID, err), r.save())
	}
	r.track(oid, RoleExit, OrderLogEntry{
		OrderID:  oid,
		Action:   qty.Action(),
		Status:   OrderSubmitted,
		Message:  "Full Exit",
		Quantity: qty,
		Type:     OrderMarket,
	})
	r.setStatus(next)

	r.log.Info().Str("order_id", oid).Float64("quantity", qty.Float64()).Msg("exit placed")
	return oid, r.save()
}

// RefreshResult summarizes what a Refresh changed.
type RefreshResult struct {
	NewFills      int
	OrdersClosed  int
	StatusChanged bool
	Status        Status
	Metrics       Metrics
}

// Changed reports whether anything was written.
func (res RefreshResult) Changed() bool {
	return res.NewFills > 0 || res.OrdersClosed > 0 || res.StatusChanged
}

// Refresh reconciles the trade with the broker. New fills are appended
// (fills already present are ignored), orders the broker no longer reports
// are dropped, and the status follows the resulting position. Nothing is
// written when nothing changed.
func (r *Record) Refresh(ctx context.Context, currentPrice float64) (RefreshResult, error) {
	if r.broker == nil {
		return RefreshResult{}, ErrNoBroker
	}
	upd, err := r.broker.GetUpdates(ctx, r.state.ID)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("refresh %s: %w", r.state.ID, err)
	}

	now := r.now()
	stillActive := make(map[string]bool, len(upd.ActiveOrderIDs))
	for _, oid := range upd.ActiveOrderIDs {
		stillActive[oid] = true
	}
	seen := make(map[string]bool, len(r.state.Transactions))
	for _, tx := range r.state.Transactions {
		seen[tx.ID] = true
	}
	views := r.orderViews()

	var res RefreshResult
	filled := map[string]bool{}
	net := r.netQuantity()

	for _, fill := range upd.NewFills {
		if seen[fill.ID] {
			continue
		}
		if err := fill.Validate(); err != nil {
			r.log.Warn().Err(err).Msg("refresh: ignoring invalid fill")
			continue
		}
		if fill.Type == "" {
			fill.Type = TxExit
			if net.IsZero() || net.SameSide(fill.Quantity) {
				fill.Type = TxEntry
			}
		}
		oid := fill.OrderID
		if oid == "" {
			oid = fill.ID
		}
		v, known := views[oid]
		if fill.Slippage == 0 && known {
			if ref, ok := v.RefPrice(); ok {
				fill.Slippage = Slippage(ref, fill.Price, fill.Quantity)
			}
		}

		r.state.Transactions = append(r.state.Transactions, fill)
		seen[fill.ID] = true
		net += fill.Quantity
		res.NewFills++
		filled[oid] = true
		if r.state.EntryDate == nil {
			ts := fill.Timestamp
			r.state.EntryDate = &ts
		}

		if known && v.Status.Terminal() {
			continue
		}
		status := OrderFilled
		if stillActive[oid] {
			status = OrderPartiallyFilled
		}
		r.appendLog(OrderLogEntry{
			Timestamp: fill.Timestamp,
			OrderID:   oid,
			Action:    fill.Quantity.Action(),
			Status:    status,
			Message:   fmt.Sprintf("Fill %s @ %g", fill.ID, fill.Price),
			Quantity:  fill.Quantity,
			Type:      OrderFill,
		})
		if known {
			v.Status = status
			views[oid] = v
		}
	}
	if res.NewFills > 0 {
		r.state.Transactions = sortTransactions(r.state.Transactions)
		r.obs.FillsIngested(res.NewFills)
	}

	tracked := make([]string, 0, len(r.state.ActiveOrders))
	for oid := range r.state.ActiveOrders {
		tracked = append(tracked, oid)
	}
	sort.Strings(tracked)
	for _, oid := range tracked {
		if stillActive[oid] {
			continue
		}
		delete(r.state.ActiveOrders, oid)
		res.OrdersClosed++
		if filled[oid] {
			r.obs.OrderClosed(OrderFilled)
			continue
		}
		if v, ok := views[oid]; ok && v.Status.Terminal() {
			r.obs.OrderClosed(v.Status)
			continue
		}
		v := views[oid]
		r.appendLogAt(now, OrderLogEntry{
			OrderID:  oid,
			Action:   v.Action,
			Status:   OrderCancelled,
			Message:  "No longer active at broker",
			Quantity: v.Quantity,
			Type:     v.Type,
		})
		r.obs.OrderClosed(OrderCancelled)
	}

	m := CalculateAt(r.state.Transactions, currentPrice, r.initialRisk(), now)
	next, _ := Next(r.state.Status, EventReconcile, Facts{
		NetQuantity:  m.NetQuantity,
		ActiveOrders: len(r.state.ActiveOrders),
	})
	if next != r.state.Status {
		r.setStatus(next)
		res.StatusChanged = true
	}
	res.Status = r.state.Status
	res.Metrics = m

	if !res.Changed() {
		return res, nil
	}
	r.log.Info().
		Int("new_fills", res.NewFills).
		Int("orders_closed", res.OrdersClosed).
		Str("status", string(res.Status)).
		Msg("refreshed")
	return res, r.save()
}

// Archive moves a CLOSED trade to ARCHIVED.
func (r *Record) Archive() error {
	next, err := Next(r.state.Status, EventArchive, r.facts())
	if err != nil {
		return err
	}
	r.setStatus(next)
	return r.save()
}

// SetNotes replaces the free-text notes.
func (r *Record) SetNotes(notes string) error {
	r.state.Notes = notes
	return r.save()
}

func (r *Record) orderViews() map[string]OrderView {
	out := map[string]OrderView{}
	for _, v := range FoldOrders(r.state.OrderHistory) {
		out[v.OrderID] = v
	}
	return out
}

// cancelAll sends a cancel for each tracked order with the given role (all
// roles when role is empty) that has no cancel request outstanding.
func (r *Record) cancelAll(ctx context.Context, role Role, reason string) error {
	views := r.orderViews()
	ids := make([]string, 0, len(r.state.ActiveOrders))
	for oid, rl := range r.state.ActiveOrders {
		if role == "" || rl == role {
			ids = append(ids, oid)
		}
	}
	sort.Strings(ids)

	for _, oid := range ids {
		if views[oid].CancelRequested {
			continue
		}
		ok, err := r.requestCancel(ctx, oid, reason)
		if err != nil {
			return err
		}
		if !ok {
			r.log.Warn().Str("order_id", oid).Msg("broker refused cancel")
		}
	}
	return nil
}

func (r *Record) requestCancel(ctx context.Context, oid, reason string) (bool, error) {
	ok, err := r.broker.CancelOrder(ctx, oid)
	if err != nil {
		return false, fmt.Errorf("cancel %s: %w", oid, err)
	}
	if !ok {
		return false, nil
	}
	v := r.orderViews()[oid]
	r.appendLog(OrderLogEntry{
		OrderID:  oid,
		Action:   v.Action,
		Status:   OrderSubmitted,
		Message:  reason,
		Quantity: v.Quantity,
		Type:     OrderCancel,
	})
	return true, nil
}

func (r *Record) track(oid string, role Role, e OrderLogEntry) {
	r.state.ActiveOrders[oid] = role
	r.appendLog(e)
	r.obs.OrderPlaced(role)
}

func (r *Record) appendLog(e OrderLogEntry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = r.now()
	}
	r.state.OrderHistory = append(r.state.OrderHistory, e)
}

func (r *Record) appendLogAt(t time.Time, e OrderLogEntry) {
	e.Timestamp = t
	r.appendLog(e)
}

func (r *Record) setStatus(next Status) {
	if next == r.state.Status {
		return
	}
	prev := r.state.Status
	r.state.Status = next
	r.obs.StatusChanged(prev, next)
	r.log.Info().Str("from", string(prev)).Str("to", string(next)).Msg("status changed")
}

func (r *Record) save() error {
	if err := r.store.Save(r.state); err != nil {
		r.obs.PersistFailed()
		r.log.Error().Err(err).Msg("trade state not persisted")
		return err
	}
	return nil
}

func copyPrice(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
