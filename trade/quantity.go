package trade

import "math"

// SignedQuantity is a share count whose sign carries direction: positive is
// a buy (long open or short cover), negative is a sell (long reduce or short
// open). The sign convention is part of the file format and the broker wire
// format and must not be dropped by converting to an unsigned count.
type SignedQuantity float64

// Epsilon is the tolerance under which a quantity counts as flat.
const Epsilon = 1e-8

func (q SignedQuantity) Float64() float64 { return float64(q) }

// Abs returns the unsigned share count.
func (q SignedQuantity) Abs() float64 { return math.Abs(float64(q)) }

// Sign is +1, -1 or 0.
func (q SignedQuantity) Sign() int {
	switch {
	case q > 0:
		return 1
	case q < 0:
		return -1
	}
	return 0
}

func (q SignedQuantity) IsZero() bool { return math.Abs(float64(q)) < Epsilon }

// Neg returns the quantity that flattens q.
func (q SignedQuantity) Neg() SignedQuantity { return -q }

// SameSide reports whether q and o point in the same direction.
func (q SignedQuantity) SameSide(o SignedQuantity) bool {
	return (q > 0 && o > 0) || (q < 0 && o < 0)
}

// Action is the broker side for an order of this quantity.
func (q SignedQuantity) Action() Action {
	if q < 0 {
		return ActionSell
	}
	return ActionBuy
}
