// Package sim is an in-memory paper broker. It satisfies trade.Broker, so a
// trade can be driven end to end without a brokerage: orders are placed,
// SetPrice moves the market and fills whatever became executable, and
// GetUpdates reports the fills back.
package sim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/tradebook/pkg/atomicfile"
	"github.com/rustyeddy/tradebook/pkg/id"
	"github.com/rustyeddy/tradebook/trade"
)

type Engine struct {
	mu         sync.Mutex
	prices     *PriceStore
	orders     map[string]*Order
	fills      map[string][]trade.Transaction // by ref
	commission Commission
	now        func() time.Time
	path       string
	log        zerolog.Logger
}

type Option func(*Engine)

func WithCommission(c Commission) Option {
	return func(e *Engine) { e.commission = c }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithStateFile persists the engine to path after every change.
func WithStateFile(path string) Option {
	return func(e *Engine) { e.path = path }
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		prices: NewPriceStore(),
		orders: make(map[string]*Order),
		fills:  make(map[string][]trade.Transaction),
		now:    time.Now,
		log:    zerolog.Nop(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Open creates an engine backed by a state file, loading it when present.
func Open(path string, opts ...Option) (*Engine, error) {
	e := NewEngine(append(opts, WithStateFile(path))...)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return e, nil
	}
	if err != nil {
		return nil, err
	}
	var st state
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("sim state %s: %w", path, err)
	}
	for _, o := range st.Orders {
		e.orders[o.ID] = o
	}
	for ref, fills := range st.Fills {
		e.fills[ref] = fills
	}
	for _, q := range st.Quotes {
		e.prices.Set(q)
	}
	return e, nil
}

type state struct {
	Orders []*Order                       `json:"orders"`
	Fills  map[string][]trade.Transaction `json:"fills"`
	Quotes []Quote                        `json:"quotes"`
}

func (e *Engine) saveLocked() error {
	if e.path == "" {
		return nil
	}
	st := state{Orders: e.sortedOrdersLocked(), Fills: e.fills}
	for _, q := range e.prices.All() {
		st.Quotes = append(st.Quotes, q)
	}
	sort.Slice(st.Quotes, func(i, j int) bool { return st.Quotes[i].Symbol < st.Quotes[j].Symbol })

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	if err := atomicfile.WriteFile(e.path, data, 0o644); err != nil {
		return fmt.Errorf("sim state: %w", err)
	}
	return nil
}

func (e *Engine) Prices() *PriceStore { return e.prices }

func (e *Engine) PlaceOrder(ctx context.Context, req trade.OrderRequest) (string, error) {
	_ = ctx

	if req.Symbol == "" {
		return "", fmt.Errorf("place order: missing symbol")
	}
	if req.Quantity.IsZero() {
		return "", fmt.Errorf("place order: zero quantity")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	o := &Order{
		ID:         id.Prefixed("ORD", now),
		Ref:        req.Ref,
		Symbol:     req.Symbol,
		Quantity:   req.Quantity,
		LimitPrice: req.LimitPrice,
		StopPrice:  req.StopPrice,
		State:      Working,
		Created:    now,
		Updated:    now,
	}
	e.orders[o.ID] = o

	e.log.Info().
		Str("order_id", o.ID).
		Str("symbol", o.Symbol).
		Str("type", string(o.Type())).
		Float64("quantity", o.Quantity.Float64()).
		Msg("order placed")

	if q, err := e.prices.Get(req.Symbol); err == nil {
		e.tryFillLocked(o, q)
	}
	return o.ID, e.saveLocked()
}

func (e *Engine) GetUpdates(ctx context.Context, ref string) (trade.Update, error) {
	_ = ctx

	e.mu.Lock()
	defer e.mu.Unlock()

	upd := trade.Update{
		NewFills:       append([]trade.Transaction(nil), e.fills[ref]...),
		ActiveOrderIDs: []string{},
	}
	for _, o := range e.sortedOrdersLocked() {
		if o.Ref == ref && o.State == Working {
			upd.ActiveOrderIDs = append(upd.ActiveOrderIDs, o.ID)
		}
	}
	return upd, nil
}

// CancelOrder cancels a working order. It reports false for unknown or
// finished orders.
func (e *Engine) CancelOrder(ctx context.Context, orderID string) (bool, error) {
	_ = ctx

	e.mu.Lock()
	defer e.mu.Unlock()

	o, ok := e.orders[orderID]
	if !ok || o.State != Working {
		return false, nil
	}
	o.State = Cancelled
	o.Updated = e.now()
	e.log.Info().Str("order_id", o.ID).Msg("order cancelled")
	return true, e.saveLocked()
}

// CurrentPrice is the mid of the last quote.
func (e *Engine) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	_ = ctx
	q, err := e.prices.Get(symbol)
	if err != nil {
		return 0, err
	}
	return q.Mid(), nil
}

// SetPrice records a new quote and fills every working order on the symbol
// that it makes executable. Orders are processed oldest first.
func (e *Engine) SetPrice(q Quote) ([]trade.Transaction, error) {
	if q.Time.IsZero() {
		q.Time = e.now()
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.prices.Set(q)

	var filled []trade.Transaction
	for _, o := range e.sortedOrdersLocked() {
		if o.Symbol != q.Symbol || o.State != Working {
			continue
		}
		if tx, ok := e.tryFillLocked(o, q); ok {
			filled = append(filled, tx)
		}
	}
	return filled, e.saveLocked()
}

// Orders lists the orders placed under ref, oldest first. An empty ref lists
// everything.
func (e *Engine) Orders(ref string) []Order {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []Order
	for _, o := range e.sortedOrdersLocked() {
		if ref == "" || o.Ref == ref {
			out = append(out, *o)
		}
	}
	return out
}

func (e *Engine) tryFillLocked(o *Order, q Quote) (trade.Transaction, bool) {
	px, ok := executable(o, q)
	if !ok {
		return trade.Transaction{}, false
	}

	// A fill never precedes its order, even against an older quote.
	ts := q.Time
	if ts.IsZero() || ts.Before(o.Created) {
		ts = o.Created
	}
	tx := trade.Transaction{
		ID:         id.Prefixed("FIL", ts),
		Timestamp:  ts,
		Quantity:   o.Quantity,
		Price:      px,
		Commission: e.commission.For(o.Quantity),
		OrderID:    o.ID,
	}
	if ref, ok := (trade.OrderLogEntry{LimitPrice: o.LimitPrice, StopPrice: o.StopPrice}).RefPrice(); ok {
		tx.Slippage = trade.Slippage(ref, px, o.Quantity)
	}

	o.State = Filled
	o.Updated = ts
	e.fills[o.Ref] = append(e.fills[o.Ref], tx)

	e.log.Info().
		Str("order_id", o.ID).
		Str("symbol", o.Symbol).
		Float64("price", px).
		Float64("quantity", o.Quantity.Float64()).
		Msg("order filled")
	return tx, true
}

func (e *Engine) sortedOrdersLocked() []*Order {
	out := make([]*Order, 0, len(e.orders))
	for _, o := range e.orders {
		out = append(out, o)
	}
	// ULID ids sort by creation time.
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
