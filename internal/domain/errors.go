package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrBookingNotFound     = errors.New("booking not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrAlreadyPaid         = errors.New("booking already paid")
	ErrUnknownProvider     = errors.New("unknown payment provider")
	ErrInvalidSignature    = errors.New("invalid webhook signature")
	ErrGateway             = errors.New("gateway request failed")
	ErrPersistence         = errors.New("persistence failure")
	ErrValidation          = errors.New("invalid input")
	ErrConflict            = errors.New("conflict")
	ErrDuplicateEvent      = errors.New("duplicate booking event")
	ErrInsufficientStock   = errors.New("insufficient inventory")
)
