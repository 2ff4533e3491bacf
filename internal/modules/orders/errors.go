package orders

import "errors"

var (
	ErrNotFound          = errors.New("order not found")
	ErrInvalidTransition = errors.New("invalid order status transition")
	ErrTerminal          = errors.New("order is in a terminal state")
	ErrConcurrentUpdate  = errors.New("order was modified concurrently")
	ErrPaidNotDeletable  = errors.New("paid orders cannot be deleted")
	ErrFieldNotWritable  = errors.New("field is not writable")
	ErrNothingToUpdate   = errors.New("nothing to update")
	ErrInvalidOrder      = errors.New("invalid order")
)
