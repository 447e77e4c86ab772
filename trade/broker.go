package trade

import "context"

// Broker is the capability a Record needs from a brokerage. Implementations
// own retries and timeouts; a Record never retries a call.
type Broker interface {
	// PlaceOrder submits an order tagged with req.Ref and returns the broker
	// order id.
	PlaceOrder(ctx context.Context, req OrderRequest) (string, error)

	// GetUpdates returns the fills for orders tagged ref and the ids of those
	// orders still working. Returning fills already seen is allowed.
	GetUpdates(ctx context.Context, ref string) (Update, error)

	// CancelOrder asks the broker to cancel an order. false means the broker
	// did not accept the request.
	CancelOrder(ctx context.Context, orderID string) (bool, error)

	CurrentPrice(ctx context.Context, symbol string) (float64, error)
}

// OrderRequest describes one order. No limit and no stop means market.
type OrderRequest struct {
	Ref        string
	Symbol     string
	Quantity   SignedQuantity
	LimitPrice *float64
	StopPrice  *float64
}

func (r OrderRequest) Type() OrderType { return OrderTypeFor(r.LimitPrice, r.StopPrice) }

type Update struct {
	NewFills       []Transaction
	ActiveOrderIDs []string
}

// Observer is told about lifecycle activity. All methods must be cheap and
// must not call back into the Record.
type Observer interface {
	OrderPlaced(role Role)
	FillsIngested(n int)
	OrderClosed(status OrderStatus)
	StatusChanged(from, to Status)
	PersistFailed()
}

type nopObserver struct{}

func (nopObserver) OrderPlaced(Role)             {}
func (nopObserver) FillsIngested(int)            {}
func (nopObserver) OrderClosed(OrderStatus)      {}
func (nopObserver) StatusChanged(Status, Status) {}
func (nopObserver) PersistFailed()               {}
