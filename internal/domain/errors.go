package domain

import "errors"

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when a unique constraint rejects a write.
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidInput  = errors.New("invalid input")
	ErrForbidden     = errors.New("forbidden")
	// ErrCheckoutFailed is the only checkout error surfaced to buyers; the cause is logged.
	ErrCheckoutFailed    = errors.New("checkout failed")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrInvalidSignature  = errors.New("invalid webhook signature")
	ErrInvalidTransition = errors.New("invalid status transition")
)
