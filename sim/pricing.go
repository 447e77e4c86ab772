package sim

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

var ErrNoPrice = errors.New("price not found")

// Quote is the top of book for one symbol. Buys fill at Ask, sells at Bid.
type Quote struct {
	Symbol string    `json:"symbol"`
	Bid    float64   `json:"bid"`
	Ask    float64   `json:"ask"`
	Time   time.Time `json:"time"`
}

func (q Quote) Mid() float64 { return (q.Bid + q.Ask) / 2 }

// Flat returns a quote with no spread.
func Flat(symbol string, px float64, t time.Time) Quote {
	return Quote{Symbol: symbol, Bid: px, Ask: px, Time: t}
}

type PriceStore struct {
	mu     sync.RWMutex
	quotes map[string]Quote
}

func NewPriceStore() *PriceStore {
	return &PriceStore{quotes: make(map[string]Quote)}
}

func (ps *PriceStore) Set(q Quote) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.quotes[q.Symbol] = q
}

func (ps *PriceStore) Get(symbol string) (Quote, error) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	q, ok := ps.quotes[symbol]
	if !ok {
		return Quote{}, fmt.Errorf("%s: %w", symbol, ErrNoPrice)
	}
	return q, nil
}

// All returns a copy of every quote.
func (ps *PriceStore) All() map[string]Quote {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	out := make(map[string]Quote, len(ps.quotes))
	for k, v := range ps.quotes {
		out[k] = v
	}
	return out
}
