package trade

// Event is something that may move a trade to another status.
type Event string

const (
	EventEnter     Event = "enter"
	EventSetStop   Event = "set_stop_loss"
	EventExit      Event = "close"
	EventFlatten   Event = "close_flat"
	EventReconcile Event = "refresh"
	EventArchive   Event = "archive"
)

// Facts are the derived inputs the transition depends on.
type Facts struct {
	NetQuantity  SignedQuantity
	ActiveOrders int
}

// Next is the single authority on status changes. Apart from EventEnter,
// which is driven by placing an order, the resulting status is a function of
// the net position and whether any orders are still tracked.
func Next(from Status, ev Event, f Facts) (Status, error) {
	switch ev {
	case EventEnter:
		if from == StatusPlanned {
			return StatusOpening, nil
		}

	case EventSetStop:
		if from == StatusOpening || from == StatusOpen {
			if f.NetQuantity.IsZero() {
				return from, ErrNoPosition
			}
			return from, nil
		}

	case EventExit:
		if from == StatusOpening || from == StatusOpen || from == StatusClosing {
			if f.NetQuantity.IsZero() {
				return from, ErrNoPosition
			}
			return StatusClosing, nil
		}

	case EventFlatten:
		if !from.Done() {
			if !f.NetQuantity.IsZero() {
				return from, &TransitionError{Op: ev, From: from}
			}
			return StatusClosed, nil
		}

	case EventReconcile:
		switch {
		case from == StatusOpening && !f.NetQuantity.IsZero():
			return StatusOpen, nil
		case (from == StatusOpen || from == StatusClosing) && f.NetQuantity.IsZero() && f.ActiveOrders == 0:
			// A stop still working after the position is flat keeps the
			// trade out of CLOSED until the broker confirms it is gone.
			return StatusClosed, nil
		}
		return from, nil

	case EventArchive:
		if from == StatusClosed {
			return StatusArchived, nil
		}
	}

	return from, &TransitionError{Op: ev, From: from}
}
