package orderview

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition rejects a status change the lifecycle does not allow.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrUnknownStatus is a status outside the fixed vocabulary.
	ErrUnknownStatus = errors.New("unknown order status")
)

// TransitionError describes a rejected status change.
type TransitionError struct {
	From  string
	To    string
	Cause error
}

func (e *TransitionError) Error() string {
	if e.Cause != nil && !errors.Is(e.Cause, ErrInvalidTransition) {
		return fmt.Sprintf("cannot move order from %q to %q: %v", e.From, e.To, e.Cause)
	}
	return fmt.Sprintf("cannot move order from %q to %q", e.From, e.To)
}

func (e *TransitionError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrInvalidTransition}
	}
	return []error{ErrInvalidTransition, e.Cause}
}
