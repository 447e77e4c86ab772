package trade

import (
	"fmt"
	"sort"
	"time"
)

type Status string

const (
	StatusPlanned  Status = "PLANNED"  // no position, setup phase
	StatusOpening  Status = "OPENING"  // entry order sent, no fill yet
	StatusOpen     Status = "OPEN"     // position on
	StatusClosing  Status = "CLOSING"  // exit order sent
	StatusClosed   Status = "CLOSED"   // flat, nothing working
	StatusArchived Status = "ARCHIVED" // historical record
)

func (s Status) Valid() bool {
	switch s {
	case StatusPlanned, StatusOpening, StatusOpen, StatusClosing, StatusClosed, StatusArchived:
		return true
	}
	return false
}

// Done reports whether the trade has reached a final state.
func (s Status) Done() bool { return s == StatusClosed || s == StatusArchived }

// Live reports whether the trade may still have broker-side activity.
func (s Status) Live() bool {
	return s == StatusOpening || s == StatusOpen || s == StatusClosing
}

type Kind string

const (
	KindStock Kind = "STOCK"
	KindCash  Kind = "CASH"
)

type TxType string

const (
	TxEntry      TxType = "ENTRY"
	TxExit       TxType = "EXIT"
	TxAdjustment TxType = "ADJUSTMENT"
)

type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
)

type OrderStatus string

const (
	OrderSubmitted       OrderStatus = "SUBMITTED"
	OrderPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderFilled          OrderStatus = "FILLED"
	OrderCancelled       OrderStatus = "CANCELLED"
	OrderRejected        OrderStatus = "REJECTED"
	OrderExpired         OrderStatus = "EXPIRED"
)

// Terminal reports whether no further entries may follow this status.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderFilled, OrderCancelled, OrderRejected, OrderExpired:
		return true
	}
	return false
}

type OrderType string

const (
	OrderMarket    OrderType = "MKT"
	OrderLimit     OrderType = "LMT"
	OrderStop      OrderType = "STP"
	OrderStopLimit OrderType = "STP LMT"
	OrderFill      OrderType = "FILL"
	OrderCancel    OrderType = "CANCEL"
)

// OrderTypeFor classifies an order by which prices it carries.
func OrderTypeFor(limit, stop *float64) OrderType {
	switch {
	case limit != nil && stop != nil:
		return OrderStopLimit
	case stop != nil:
		return OrderStop
	case limit != nil:
		return OrderLimit
	}
	return OrderMarket
}

// Role is what a tracked broker order does for its trade.
type Role string

const (
	RoleEntry Role = "ENTRY"
	RoleStop  Role = "STOP"
	RoleExit  Role = "EXIT"
)

// Transaction is one executed fill. Quantity is never zero and Commission is
// never negative.
type Transaction struct {
	ID         string         `json:"id"`
	Timestamp  time.Time      `json:"timestamp"`
	Type       TxType         `json:"type"`
	Quantity   SignedQuantity `json:"quantity"`
	Price      float64        `json:"price"`
	Commission float64        `json:"commission"`
	Slippage   float64        `json:"slippage"`
	OrderID    string         `json:"order_id,omitempty"`
}

func (t Transaction) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("transaction: missing id")
	}
	if t.Quantity == 0 {
		return fmt.Errorf("transaction %s: zero quantity", t.ID)
	}
	if t.Commission < 0 {
		return fmt.Errorf("transaction %s: negative commission %v", t.ID, t.Commission)
	}
	if t.Timestamp.IsZero() {
		return fmt.Errorf("transaction %s: missing timestamp", t.ID)
	}
	return nil
}

// OrderLogEntry is one event in an order's life. The log is append-only.
type OrderLogEntry struct {
	Timestamp  time.Time      `json:"timestamp"`
	OrderID    string         `json:"order_id"`
	Action     Action         `json:"action"`
	Status     OrderStatus    `json:"status"`
	Message    string         `json:"message"`
	Quantity   SignedQuantity `json:"quantity"`
	Type       OrderType      `json:"type"`
	LimitPrice *float64       `json:"limit_price"`
	StopPrice  *float64       `json:"stop_price"`
	Note       string         `json:"note,omitempty"`
}

// RefPrice is the price an order was expected to execute at: limit if set,
// otherwise the stop trigger.
func (e OrderLogEntry) RefPrice() (float64, bool) {
	if e.LimitPrice != nil {
		return *e.LimitPrice, true
	}
	if e.StopPrice != nil {
		return *e.StopPrice, true
	}
	return 0, false
}

// State is the full persisted state of one trade.
type State struct {
	ID               string          `json:"id"`
	Ticker           string          `json:"ticker"`
	Status           Status          `json:"status"`
	Kind             Kind            `json:"trade_type"`
	Transactions     []Transaction   `json:"transactions"`
	OrderHistory     []OrderLogEntry `json:"order_history"`
	ActiveOrders     map[string]Role `json:"active_orders"`
	InitialStopPrice *float64        `json:"initial_stop_price"`
	CurrentStopPrice *float64        `json:"current_stop_price"`
	EntryDate        *time.Time      `json:"entry_date"`
	Notes            string          `json:"notes"`
}

func newState(id, ticker string, kind Kind) State {
	return State{
		ID:           id,
		Ticker:       ticker,
		Status:       StatusPlanned,
		Kind:         kind,
		Transactions: []Transaction{},
		OrderHistory: []OrderLogEntry{},
		ActiveOrders: map[string]Role{},
	}
}

// Validate checks the invariants a loaded file must satisfy.
func (s *State) Validate() error {
	if s.ID == "" || s.Ticker == "" {
		return fmt.Errorf("missing id or ticker")
	}
	if !s.Status.Valid() {
		return fmt.Errorf("unknown status %q", s.Status)
	}
	switch s.Kind {
	case "":
		s.Kind = KindStock
	case KindStock, KindCash:
	default:
		return fmt.Errorf("unknown trade_type %q", s.Kind)
	}
	for _, tx := range s.Transactions {
		if err := tx.Validate(); err != nil {
			return err
		}
	}
	if s.ActiveOrders == nil {
		s.ActiveOrders = map[string]Role{}
	}
	if s.Transactions == nil {
		s.Transactions = []Transaction{}
	}
	if s.OrderHistory == nil {
		s.OrderHistory = []OrderLogEntry{}
	}
	return nil
}

// Clone returns a deep copy so callers cannot mutate a Record's state.
func (s State) Clone() State {
	c := s
	c.Transactions = append([]Transaction(nil), s.Transactions...)
	c.OrderHistory = append([]OrderLogEntry(nil), s.OrderHistory...)
	c.ActiveOrders = make(map[string]Role, len(s.ActiveOrders))
	for k, v := range s.ActiveOrders {
		c.ActiveOrders[k] = v
	}
	return c
}

// SortedTransactions returns the transactions ordered by timestamp. Equal
// timestamps keep their insertion order.
func (s State) SortedTransactions() []Transaction {
	return sortTransactions(s.Transactions)
}

// TransactionsUntil returns the timestamp-ordered transactions at or before t.
func (s State) TransactionsUntil(t time.Time) []Transaction {
	var out []Transaction
	for _, tx := range s.SortedTransactions() {
		if tx.Timestamp.After(t) {
			break
		}
		out = append(out, tx)
	}
	return out
}

// CashFlow is the cash effect of tx on the account: buying costs cash,
// selling returns it, commission always costs. A cash record moves its
// amount directly.
func (s State) CashFlow(tx Transaction) float64 {
	if s.Kind == KindCash {
		return tx.Quantity.Float64()*tx.Price - tx.Commission
	}
	return -(tx.Quantity.Float64() * tx.Price) - tx.Commission
}

// RolesOf returns the active order ids with the given role, sorted.
func (s State) RolesOf(role Role) []string {
	var ids []string
	for oid, r := range s.ActiveOrders {
		if r == role {
			ids = append(ids, oid)
		}
	}
	sort.Strings(ids)
	return ids
}

func sortTransactions(txs []Transaction) []Transaction {
	out := append([]Transaction(nil), txs...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}
