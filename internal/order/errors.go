package order

import (
	"errors"
	"fmt"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrInvalidOrder  = errors.New("invalid order")
	ErrEmptyMessage  = errors.New("empty order message")
)

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidOrder
}

type TransitionError struct {
	OrderID string
	From    Status
	To      Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("order %s: cannot move from %q to %q", e.OrderID, e.From, e.To)
}

// ProcessingError reports a message that was handled but could not advance
// its order. The message is dropped.
type ProcessingError struct {
	OrderID string
	Step    string
	Err     error
}

func (e *ProcessingError) Error() string {
	if e.OrderID == "" {
		return fmt.Sprintf("%s: %v", e.Step, e.Err)
	}
	return fmt.Sprintf("%s order %s: %v", e.Step, e.OrderID, e.Err)
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}
