package trade

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition is returned when an operation is not allowed in
	// the trade's current status. The state is left untouched.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrNoPosition is returned when an operation needs an open position and
	// the net quantity is zero.
	ErrNoPosition = errors.New("no open position")

	// ErrPersistence means the state changed in memory but could not be
	// written. The in-memory state is authoritative; the file is stale.
	ErrPersistence = errors.New("trade state not persisted")

	// ErrMalformedRecord is returned for a stored file that cannot be decoded
	// or violates the record invariants.
	ErrMalformedRecord = errors.New("malformed trade record")

	ErrNoBroker = errors.New("no broker configured")
	ErrNotFound = errors.New("trade not found")
)

type TransitionError struct {
	Op   Event
	From Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s not allowed in status %s", e.Op, e.From)
}

func (e *TransitionError) Is(target error) bool { return target == ErrInvalidTransition }

type PersistenceError struct {
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

type MalformedError struct {
	Path string
	Err  error
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed trade record %s: %v", e.Path, e.Err)
}

func (e *MalformedError) Unwrap() error { return e.Err }

func (e *MalformedError) Is(target error) bool { return target == ErrMalformedRecord }
