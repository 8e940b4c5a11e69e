package interfaces

import (
	"errors"
	"fmt"
)

// Common error variables shared by adapters and the manager.
var (
	// ErrSymbolNotFound is returned from symbol resolution when the venue
	// has no such instrument.
	ErrSymbolNotFound = errors.New("symbol not found")

	// ErrNoAdapter is returned by the manager when no adapter handles a
	// qualified name and no default adapter is registered.
	ErrNoAdapter = errors.New("no adapter registered for symbol")

	// ErrUnknownResolution is reported by MapResolution for a canonical
	// code with no native mapping; adapters log it and fall back to the
	// 15-minute default rather than surfacing it.
	ErrUnknownResolution = errors.New("unknown resolution code")

	// ErrSubscriptionFailed is returned when a streaming connection for a
	// live bar subscription cannot be established.
	ErrSubscriptionFailed = errors.New("failed to establish subscription")

	// ErrManagerClosed is returned for requests made after the manager
	// has been shut down.
	ErrManagerClosed = errors.New("datafeed manager closed")
)

// MarketError carries venue context for a market-data failure.
type MarketError struct {
	Symbol  string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *MarketError) Error() string {
	return fmt.Sprintf("market error for %s: %s", e.Symbol, e.Message)
}

// Unwrap returns the underlying error.
func (e *MarketError) Unwrap() error {
	return e.Err
}

// NewMarketError creates a new market-specific error.
func NewMarketError(symbol, message string, err error) error {
	return &MarketError{
		Symbol:  symbol,
		Message: message,
		Err:     err,
	}
}
