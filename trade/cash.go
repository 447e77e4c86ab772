package trade

import (
	"fmt"

	"github.com/google/uuid"
)

// CashTicker is the ticker every cash record is filed under.
const CashTicker = "CASH"

// NewCash records a deposit (amount > 0) or withdrawal (amount < 0). The
// record holds a single adjustment at price 1 and is archived immediately,
// so it only ever contributes to cash during replay.
func NewCash(store *Store, amount float64, note string, opts ...Option) (*Record, error) {
	qty := SignedQuantity(amount)
	if qty.IsZero() {
		return nil, fmt.Errorf("cash: amount must not be zero")
	}

	st := newState(uuid.NewString(), CashTicker, KindCash)
	r := newRecord(store, nil, st, opts)
	now := r.now()
	r.state.Transactions = append(r.state.Transactions, Transaction{
		ID:        uuid.NewString(),
		Timestamp: now,
		Type:      TxAdjustment,
		Quantity:  qty,
		Price:     1,
	})
	r.state.EntryDate = &now
	r.state.Status = StatusArchived
	r.state.Notes = note

	err := r.save()
	r.log.Info().Float64("amount", amount).Msg("cash recorded")
	return r, err
}
