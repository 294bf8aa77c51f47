package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrUnknownSymbol      = fmt.Errorf("unknown symbol: %w", ErrNotFound)
	ErrInvalidSymbolTable = errors.New("invalid symbol table")
	ErrMalformedSignal    = errors.New("malformed signal")
	ErrSubscriberClosed   = errors.New("subscriber closed")
	ErrDeliveryFailed     = errors.New("delivery failed")
	ErrGenerationFault    = errors.New("tick generation fault")
	ErrRateLimited        = errors.New("rate limited")
	ErrLockHeld           = errors.New("lock held by another owner")
	ErrLockLost           = errors.New("lock lost")
)
