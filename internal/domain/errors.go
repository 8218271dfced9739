package domain

import "errors"

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when an order id is reused.
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidOrder  = errors.New("invalid order")
	// ErrIllegalTransition means the authority refused a status change.
	ErrIllegalTransition = errors.New("illegal transition")
)
